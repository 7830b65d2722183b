package stream

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	chatHandler "github.com/zhouzirui/talentscout/backend/internal/handler/chat"
	"github.com/zhouzirui/talentscout/backend/internal/logging"
	"github.com/zhouzirui/talentscout/backend/internal/model/chat"
	"github.com/zhouzirui/talentscout/backend/internal/service/intake"
	"github.com/zhouzirui/talentscout/backend/pkg/utils"
)

// ErrStreamingUnsupported is returned when the response writer cannot flush.
var ErrStreamingUnsupported = errors.New("streaming unsupported")

// Handler runs a turn and reports its progress as Server-Sent Events.
type Handler struct {
	conversations *intake.Conversations
	logger        *zap.Logger
}

// New creates a new stream handler
func New(conversations *intake.Conversations, logger *zap.Logger) *Handler {
	return &Handler{
		conversations: conversations,
		logger:        logging.OrNop(logger).Named("stream"),
	}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string            `json:"event"`
	Content   string            `json:"content,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	Field     string            `json:"field,omitempty"`
	Finished  bool              `json:"finished,omitempty"`
	Closed    bool              `json:"closed,omitempty"`
	Session   *chat.SessionView `json:"session,omitempty"`
	Error     string            `json:"error,omitempty"`
	Notice    string            `json:"notice,omitempty"`
}

// HandleStreamRequest processes one user message for a session. Events, in order:
// start, field (when an answer was captured), message, end. Failures emit a single error event.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID string, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return ErrStreamingUnsupported
	}

	utils.SetupSSEHeaders(w)

	if err := h.send(w, flusher, StreamResponse{Event: "start", SessionID: sessionID}); err != nil {
		return err
	}

	result, session, err := h.conversations.Send(ctx, sessionID, userMessage)
	if err != nil {
		_, notice := chatHandler.StatusForError(err)
		h.logger.Warn("turn failed", zap.String("session", sessionID), zap.Error(err))
		return h.send(w, flusher, StreamResponse{
			Event:     "error",
			SessionID: sessionID,
			Error:     err.Error(),
			Notice:    notice,
		})
	}

	if result.FieldFilled {
		if err := h.send(w, flusher, StreamResponse{Event: "field", SessionID: sessionID, Field: result.Field.Name()}); err != nil {
			return err
		}
	}

	if err := h.send(w, flusher, StreamResponse{Event: "message", SessionID: sessionID, Content: result.Reply.Content}); err != nil {
		return err
	}

	view := session.View(intake.InactiveNotice)
	if err := h.send(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
		Closed:    result.Closed,
		Session:   &view,
	}); err != nil {
		return err
	}

	h.logger.Debug("completed streamed turn", zap.String("session", sessionID), zap.Bool("closed", result.Closed))
	return nil
}

// send writes one Server-Sent Event.
func (h *Handler) send(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) error {
	return utils.SendSSEChunk(w, flusher, response)
}
