package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/talentscout/backend/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an intake conversation in the terminal",
	RunE:  runChat,
}

var chatStyle string

func init() {
	chatCmd.Flags().StringVar(&chatStyle, "style", "", "Markdown style for replies (dark, light, notty); auto-detected when empty")

	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	// 日志会破坏终端界面，对话模式下不输出
	a, err := buildApp(ctx, zap.NewNop())
	if err != nil {
		return err
	}
	defer a.Close()

	model := tui.New(ctx, a.Intake, tui.Options{Style: chatStyle})
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("chat ui failed: %w", err)
	}
	return nil
}
