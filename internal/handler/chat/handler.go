package chat

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/talentscout/backend/internal/logging"
	"github.com/zhouzirui/talentscout/backend/internal/model/chat"
	chatService "github.com/zhouzirui/talentscout/backend/internal/service/chat"
	"github.com/zhouzirui/talentscout/backend/internal/service/intake"
	"github.com/zhouzirui/talentscout/backend/pkg/utils"
)

const maxMessageBytes = 16 << 10

// Handler 会话与消息的HTTP处理器
type Handler struct {
	conversations *intake.Conversations
	logger        *zap.Logger
}

// New 创建聊天处理器
func New(conversations *intake.Conversations, logger *zap.Logger) *Handler {
	return &Handler{
		conversations: conversations,
		logger:        logging.OrNop(logger).Named("http"),
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/session/{sessionID}", h.handleGetSession)
	r.Delete("/session/{sessionID}", h.handleDeleteSession)
	r.Post("/session/{sessionID}/messages", h.handleSendMessage)
}

// TurnResponse is returned for every processed user message.
type TurnResponse struct {
	Reply       chat.Message     `json:"reply"`
	Closed      bool             `json:"closed"`
	FilledField string           `json:"filledField,omitempty"`
	Session     chat.SessionView `json:"session"`
}

// NewTurnResponse builds the response body for a completed turn.
func NewTurnResponse(result intake.TurnResult, session chat.Session) TurnResponse {
	resp := TurnResponse{
		Reply:   result.Reply,
		Closed:  result.Closed,
		Session: session.View(intake.InactiveNotice),
	}
	if result.FieldFilled {
		resp.FilledField = result.Field.Name()
	}
	return resp
}

// handleCreateSession 创建会话并返回开场白
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.conversations.Start(r.Context())
	if err != nil {
		h.logger.Error("failed to start session", zap.Error(err))
		RespondTurnError(w, err)
		return
	}

	h.logger.Info("session started", zap.String("session", session.ID))
	utils.RespondJSON(w, http.StatusCreated, session.View(intake.InactiveNotice))
}

// handleGetSession 返回会话快照
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.conversations.Session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		RespondTurnError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.View(intake.InactiveNotice))
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	h.conversations.Discard(r.Context(), chi.URLParam(r, "sessionID"))
	w.WriteHeader(http.StatusNoContent)
}

// handleSendMessage 处理一轮用户输入
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Content string `json:"content"`
	}
	if err := utils.DecodeJSON(w, r, maxMessageBytes, &payload); err != nil {
		if errors.Is(err, utils.ErrBodyTooLarge) {
			utils.RespondError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, session, err := h.conversations.Send(r.Context(), sessionID, payload.Content)
	if err != nil {
		if status, _ := StatusForError(err); status >= http.StatusInternalServerError {
			h.logger.Error("turn failed", zap.String("session", sessionID), zap.Error(err))
		}
		RespondTurnError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, NewTurnResponse(result, session))
}

// StatusForError maps conversation errors to an HTTP status and a user-facing notice.
func StatusForError(err error) (int, string) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound, ""
	case errors.Is(err, intake.ErrSessionInactive):
		return http.StatusConflict, intake.InactiveNotice
	case errors.Is(err, intake.ErrEmptyMessage):
		return http.StatusBadRequest, ""
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "The assistant took too long to answer. Please try again."
	default:
		return http.StatusBadGateway, "The assistant is unavailable right now. Please try again."
	}
}

// RespondTurnError writes err using StatusForError.
func RespondTurnError(w http.ResponseWriter, err error) {
	status, notice := StatusForError(err)
	utils.RespondNotice(w, status, err.Error(), notice)
}
