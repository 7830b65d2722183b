// Package app assembles the intake services from configuration and runs the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/talentscout/backend/internal/config"
	"github.com/zhouzirui/talentscout/backend/internal/handler"
	"github.com/zhouzirui/talentscout/backend/internal/logging"
	"github.com/zhouzirui/talentscout/backend/internal/prompt"
	"github.com/zhouzirui/talentscout/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/talentscout/backend/internal/service/chat"
	"github.com/zhouzirui/talentscout/backend/internal/service/intake"
	"github.com/zhouzirui/talentscout/backend/internal/service/notify"
	"github.com/zhouzirui/talentscout/backend/internal/store"
)

const shutdownTimeout = 10 * time.Second

// App 持有一个进程内共享的全部服务
type App struct {
	Config        *config.Config
	Logger        *zap.Logger
	Records       store.RecordStore
	Publisher     notify.Publisher
	Prompts       *prompt.Manager
	Intake        *intake.Service
	Conversations *intake.Conversations
}

// Option customizes New.
type Option func(*options)

type options struct {
	responder ai.Responder
}

// WithResponder skips building a model client from configuration.
func WithResponder(r ai.Responder) Option {
	return func(o *options) { o.responder = r }
}

// CredentialHint is the message shown when the configured provider has no credential.
func CredentialHint(cfg config.AIConfig) string {
	return fmt.Sprintf("LLM initialization failed. Make sure %s is set in your environment or .env file.", cfg.CredentialEnv())
}

// New builds every service. Resources opened before a failure are released.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	logger = logging.OrNop(logger)

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	responder := o.responder
	if responder == nil {
		svc, err := ai.NewService(ctx, cfg.AI, logger)
		if err != nil {
			return nil, err
		}
		responder = svc
		logger.Info("AI service initialized", zap.String("provider", cfg.AI.Provider), zap.String("model", cfg.AI.Model))
	}

	prompts, err := prompt.NewManager(cfg.Prompts.Path, logger)
	if err != nil {
		return nil, err
	}

	records, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("record store opened", zap.String("backend", cfg.Store.Backend))

	publisher, err := notify.New(cfg.Notify, logger)
	if err != nil {
		_ = records.Close()
		return nil, err
	}

	svc := intake.NewService(responder, prompts, records,
		intake.WithPublisher(publisher),
		intake.WithLogger(logger),
	)

	return &App{
		Config:        cfg,
		Logger:        logger,
		Records:       records,
		Publisher:     publisher,
		Prompts:       prompts,
		Intake:        svc,
		Conversations: intake.NewConversations(chatservice.NewService(), svc),
	}, nil
}

// Handler returns the HTTP routes for the app.
func (a *App) Handler() http.Handler {
	return handler.NewRouter(a.Conversations, a.Records, a.Logger)
}

// Serve runs the HTTP server, and the prompt watcher when enabled, until ctx is done
// or one of them fails.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Server.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("TalentScout backend listening", zap.String("addr", srv.Addr))
		return runServer(gctx, srv)
	})
	if a.Config.Prompts.Watch && a.Config.Prompts.Path != "" {
		g.Go(func() error {
			return a.Prompts.Watch(gctx)
		})
	}
	return g.Wait()
}

// Close releases the store and the publisher.
func (a *App) Close() error {
	return errors.Join(a.Publisher.Close(), a.Records.Close())
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
