// Package main is the command line entry point: a terminal intake chat, the HTTP
// server and a viewer for saved candidate records.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/talentscout/backend/internal/app"
	"github.com/zhouzirui/talentscout/backend/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "intake",
	Short:         "TalentScout hiring assistant",
	Long:          "TalentScout runs a screening conversation with a candidate, collects their details and saves them when the conversation ends.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildApp loads configuration and assembles the services, turning a missing
// model credential into the user-facing hint.
func buildApp(ctx context.Context, logger *zap.Logger) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		if errors.Is(err, config.ErrMissingCredential) {
			return nil, errors.New(app.CredentialHint(cfg.AI))
		}
		return nil, err
	}
	return a, nil
}
