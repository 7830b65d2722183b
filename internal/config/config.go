package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// 支持的模型提供方。
const (
	ProviderGroq   = "groq"
	ProviderArk    = "ark"
	ProviderGemini = "gemini"
)

// 支持的存储后端。
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

// ErrMissingCredential 表示所选模型提供方缺少凭证，服务无法开始会话。
var ErrMissingCredential = errors.New("llm credential missing")

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Store   StoreConfig
	Notify  NotifyConfig
	Prompts PromptConfig
	Log     LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	prompts, err := loadPromptConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server:  server,
		AI:      ai,
		Store:   store,
		Notify:  loadNotifyConfig(),
		Prompts: prompts,
		Log:     loadLogConfig(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate 检查枚举值与取值范围。
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid configuration %s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string `validate:"required"`
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider  string `validate:"oneof=groq ark gemini"`
	Model     string
	APIKey    string
	AccessKey string
	SecretKey string
	BaseURL   string
	Region    string
	MaxTokens int           `validate:"gt=0"`
	Timeout   time.Duration `validate:"gt=0"`
}

// CredentialEnv 返回当前提供方需要的环境变量名，用于提示用户。
func (c AIConfig) CredentialEnv() string {
	switch c.Provider {
	case ProviderArk:
		return "ARK_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return "GROQ_API_KEY"
	}
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	if c.Model == "" {
		return false
	}
	if c.Provider == ProviderArk {
		return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
	}
	return c.APIKey != ""
}

// RequireCredential 在缺少凭证时返回 ErrMissingCredential。
func (c AIConfig) RequireCredential() error {
	if c.Enabled() {
		return nil
	}
	if c.Model == "" {
		return fmt.Errorf("%w: no model configured for provider %s", ErrMissingCredential, c.Provider)
	}
	return fmt.Errorf("%w: %s is not set", ErrMissingCredential, c.CredentialEnv())
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderGroq))

	maxTokens := 512
	if override, err := parseOptionalIntEnv("AI_MAX_TOKENS"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		maxTokens = *override
	}

	timeout, err := parseDurationEnv("AI_TIMEOUT", 60*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	cfg := AIConfig{
		Provider:  provider,
		MaxTokens: maxTokens,
		Timeout:   timeout,
	}

	switch provider {
	case ProviderArk:
		cfg.APIKey = strings.TrimSpace(os.Getenv("ARK_API_KEY"))
		cfg.AccessKey = strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY"))
		cfg.SecretKey = strings.TrimSpace(os.Getenv("ARK_SECRET_KEY"))
		cfg.Model = getEnvOrDefault("LLM_MODEL", strings.TrimSpace(os.Getenv("Model")))
		cfg.BaseURL = getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3")
		cfg.Region = getEnvOrDefault("ARK_REGION", "cn-beijing")
	case ProviderGemini:
		cfg.APIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
		if cfg.APIKey == "" {
			cfg.APIKey = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
		}
		cfg.Model = getEnvOrDefault("LLM_MODEL", "gemini-2.5-flash")
	default:
		cfg.APIKey = strings.TrimSpace(os.Getenv("GROQ_API_KEY"))
		cfg.Model = getEnvOrDefault("LLM_MODEL", "llama-3.3-70b-versatile")
		cfg.BaseURL = getEnvOrDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1")
	}

	return cfg, nil
}

// StoreConfig 描述候选人记录的持久化方式。
type StoreConfig struct {
	Backend     string `validate:"oneof=file sqlite postgres s3"`
	Path        string `validate:"required_if=Backend file,required_if=Backend sqlite"`
	DatabaseURL string `validate:"required_if=Backend postgres"`
	S3          S3Config
}

// S3Config 描述对象存储（S3 或兼容服务，如 R2、MinIO）。
type S3Config struct {
	Bucket    string
	Key       string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

func loadStoreConfig() (StoreConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("STORE_BACKEND", BackendFile))

	defaultPath := "candidate_data.json"
	if backend == BackendSQLite {
		defaultPath = "candidates.db"
	}

	cfg := StoreConfig{
		Backend:     backend,
		Path:        getEnvOrDefault("STORE_PATH", defaultPath),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		S3: S3Config{
			Bucket:    strings.TrimSpace(os.Getenv("S3_BUCKET")),
			Key:       getEnvOrDefault("S3_KEY", "candidate_data.json"),
			Region:    getEnvOrDefault("S3_REGION", "auto"),
			Endpoint:  strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
			AccessKey: strings.TrimSpace(os.Getenv("S3_ACCESS_KEY")),
			SecretKey: strings.TrimSpace(os.Getenv("S3_SECRET_KEY")),
		},
	}

	if backend == BackendS3 && cfg.S3.Bucket == "" {
		return StoreConfig{}, errors.New("S3_BUCKET is required when STORE_BACKEND=s3")
	}
	return cfg, nil
}

// NotifyConfig 描述会话结束事件的投递目标，URL 为空时不投递。
type NotifyConfig struct {
	AMQPURL  string
	Exchange string
}

// Enabled 表示是否配置了消息队列。
func (c NotifyConfig) Enabled() bool {
	return c.AMQPURL != ""
}

func loadNotifyConfig() NotifyConfig {
	return NotifyConfig{
		AMQPURL:  strings.TrimSpace(os.Getenv("RABBITMQ_URL")),
		Exchange: getEnvOrDefault("RABBITMQ_EXCHANGE", "candidate_events"),
	}
}

// PromptConfig 控制提示词来源与热更新。
type PromptConfig struct {
	Path  string
	Watch bool
}

func loadPromptConfig() (PromptConfig, error) {
	watch, err := parseBoolEnv("PROMPTS_WATCH", false)
	if err != nil {
		return PromptConfig{}, err
	}
	return PromptConfig{
		Path:  strings.TrimSpace(os.Getenv("PROMPTS_FILE")),
		Watch: watch,
	}, nil
}

// LogConfig 描述日志级别与输出格式。
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json console"`
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Format: strings.ToLower(getEnvOrDefault("LOG_FORMAT", "json")),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	// 纯数字按秒处理。
	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}
