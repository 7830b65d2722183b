package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/zhouzirui/talentscout/backend/internal/config"
	"github.com/zhouzirui/talentscout/backend/internal/logging"
)

// credentialError 的文本就是给用户看的提示
type credentialError struct {
	hint string
}

func (e *credentialError) Error() string { return e.hint }

func (e *credentialError) Unwrap() error { return config.ErrMissingCredential }

// Run loads configuration from the environment, builds the app and serves until ctx is done.
// A non-empty addr overrides the configured listen address.
func Run(ctx context.Context, addr string, opts ...Option) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	a, err := New(ctx, cfg, logger, opts...)
	if err != nil {
		if errors.Is(err, config.ErrMissingCredential) {
			return &credentialError{hint: CredentialHint(cfg.AI)}
		}
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to release resources", zap.Error(err))
		}
	}()

	if addr != "" {
		a.Config.Server.Addr = addr
	}
	if err := a.Serve(ctx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
