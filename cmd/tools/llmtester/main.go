package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/talentscout/backend/internal/app"
	"github.com/zhouzirui/talentscout/backend/internal/config"
	"github.com/zhouzirui/talentscout/backend/internal/model/candidate"
	"github.com/zhouzirui/talentscout/backend/internal/model/chat"
	"github.com/zhouzirui/talentscout/backend/internal/prompt"
	"github.com/zhouzirui/talentscout/backend/internal/service/ai"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	mode := flag.String("mode", "greet", "测试模式: greet 或 ask")
	text := flag.String("text", "", "ask 模式下发送给模型的候选人回答")
	provider := flag.String("provider", "", "覆盖 LLM_PROVIDER (groq, ark, gemini)")
	modelName := flag.String("model", "", "覆盖 LLM_MODEL")
	promptsFile := flag.String("prompts", "", "提示词 YAML 文件，默认使用内置提示词")
	timeout := flag.Duration("timeout", 45*time.Second, "请求超时时间")

	flag.Parse()

	if *mode != "greet" && *mode != "ask" {
		flag.Usage()
		log.Fatal("请通过 -mode=greet 或 -mode=ask 指定测试模式")
	}

	if *provider != "" {
		os.Setenv("LLM_PROVIDER", *provider)
	}
	if *modelName != "" {
		os.Setenv("LLM_MODEL", *modelName)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}
	if err := cfg.AI.RequireCredential(); err != nil {
		log.Fatal(app.CredentialHint(cfg.AI))
	}

	set := prompt.Default()
	if *promptsFile != "" {
		if set, err = prompt.LoadFile(*promptsFile); err != nil {
			log.Fatalf("提示词加载失败: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	svc, err := ai.NewService(ctx, cfg.AI, nil)
	if err != nil {
		log.Fatalf("模型初始化失败: %v", err)
	}

	switch *mode {
	case "greet":
		runGreet(ctx, svc, set, cfg)
	case "ask":
		runAsk(ctx, svc, set, cfg, *text)
	}
}

func runGreet(ctx context.Context, svc *ai.Service, set *prompt.Set, cfg *config.Config) {
	log.Printf("开始开场白测试: provider=%s model=%s prompts=%s", cfg.AI.Provider, cfg.AI.Model, set.Version)

	start := time.Now()
	reply, err := svc.Reply(ctx, ai.Request{
		Instructions: set.BuildInstructions().Content,
		History:      []chat.Message{set.GreetingDirective()},
		Temperature:  ai.TemperatureGreeting,
	})
	if err != nil {
		log.Fatalf("模型调用失败: %v", err)
	}

	log.Printf("调用成功 (%s):\n%s", time.Since(start).Round(time.Millisecond), reply)
}

func runAsk(ctx context.Context, svc *ai.Service, set *prompt.Set, cfg *config.Config, text string) {
	if strings.TrimSpace(text) == "" {
		log.Fatal("ask 模式需要通过 -text 提供候选人回答")
	}

	var record candidate.Record
	log.Printf("开始单轮测试: provider=%s model=%s", cfg.AI.Provider, cfg.AI.Model)

	start := time.Now()
	reply, err := svc.Reply(ctx, ai.Request{
		Instructions: set.BuildInstructions().Content,
		Context:      []chat.Message{set.BuildContext(&record)},
		History: []chat.Message{{
			Role:      chat.RoleUser,
			Content:   text,
			CreatedAt: time.Now().UTC(),
		}},
		Temperature: ai.TemperatureTurn,
	})
	if err != nil {
		log.Fatalf("模型调用失败: %v", err)
	}

	log.Printf("调用成功 (%s):\n%s", time.Since(start).Round(time.Millisecond), reply)
}
