package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/talentscout/backend/internal/handler/chat"
	"github.com/zhouzirui/talentscout/backend/internal/handler/records"
	"github.com/zhouzirui/talentscout/backend/internal/handler/stream"
	"github.com/zhouzirui/talentscout/backend/internal/handler/ws"
	"github.com/zhouzirui/talentscout/backend/internal/logging"
	middlewarePkg "github.com/zhouzirui/talentscout/backend/internal/middleware"
	"github.com/zhouzirui/talentscout/backend/internal/service/intake"
	"github.com/zhouzirui/talentscout/backend/internal/store"
	"github.com/zhouzirui/talentscout/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(conversations *intake.Conversations, recordStore store.RecordStore, logger *zap.Logger) http.Handler {
	logger = logging.OrNop(logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	// Create handlers
	chatHandler := chat.New(conversations, logger)
	recordsHandler := records.New(recordStore, logger)
	streamHandler := stream.New(conversations, logger)
	wsHandler := ws.NewWebSocketHandler(conversations, logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": conversations.SessionCount(),
		})
	})

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		recordsHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)

		// 与 POST /session/{id}/messages 相同的一轮对话，以SSE返回
		api.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			userMessage := r.URL.Query().Get("message")

			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			if err := streamHandler.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
				if errors.Is(err, stream.ErrStreamingUnsupported) {
					utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
					return
				}
				logger.Warn("stream write failed", zap.String("session", sessionID), zap.Error(err))
			}
		})
	})

	return r
}
