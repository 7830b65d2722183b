package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	chatHandler "github.com/zhouzirui/talentscout/backend/internal/handler/chat"
	"github.com/zhouzirui/talentscout/backend/internal/logging"
	"github.com/zhouzirui/talentscout/backend/internal/service/intake"
)

const (
	defaultReadTimeout = 60 * time.Second
	writeTimeout       = 10 * time.Second
)

// WebSocketHandler 通过 WebSocket 进行多轮问答
type WebSocketHandler struct {
	conversations *intake.Conversations
	upgrader      websocket.Upgrader
	readTimeout   time.Duration
	logger        *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(conversations *intake.Conversations, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		conversations: conversations,
		readTimeout:   defaultReadTimeout,
		logger:        logging.OrNop(logger).Named("websocket"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/session/{sessionID}/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.conversations.Session(r.Context(), sessionID)
	if err != nil {
		chatHandler.RespondTurnError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Info("new connection", zap.String("session", sessionID))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.extendReadDeadline(conn)
	conn.SetPongHandler(func(string) error {
		h.extendReadDeadline(conn)
		return nil
	})

	go h.pingLoop(ctx, conn)

	h.send(conn, "session", sessionID, session.View(intake.InactiveNotice))

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("read error", zap.String("session", sessionID), zap.Error(err))
			}
			return
		}
		h.extendReadDeadline(conn)

		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(conn, sessionID, "session mismatch", "")
			continue
		}

		if closed := h.handleMessage(ctx, conn, sessionID, &msg); closed {
			h.closeNormally(conn)
			return
		}
		// 模型调用可能耗尽读超时，处理完后重新计时
		h.extendReadDeadline(conn)
	}
}

func (h *WebSocketHandler) extendReadDeadline(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(h.readTimeout))
}

// handleMessage returns true once the conversation has ended.
func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *websocket.Conn, sessionID string, msg *inboundMessage) bool {
	switch msg.Type {
	case "text":
		var text TextMessage
		if err := json.Unmarshal(msg.Data, &text); err != nil {
			h.sendError(conn, sessionID, "invalid text payload", "")
			return false
		}
		return h.processUserText(ctx, conn, sessionID, text.Text)
	default:
		h.sendError(conn, sessionID, "unsupported message type: "+msg.Type, "")
		return false
	}
}

func (h *WebSocketHandler) processUserText(ctx context.Context, conn *websocket.Conn, sessionID, userText string) bool {
	result, session, err := h.conversations.Send(ctx, sessionID, userText)
	if err != nil {
		_, notice := chatHandler.StatusForError(err)
		h.sendError(conn, sessionID, err.Error(), notice)
		return false
	}

	h.send(conn, "reply", sessionID, chatHandler.NewTurnResponse(result, session))
	return result.Closed
}

func (h *WebSocketHandler) send(conn *websocket.Conn, kind, sessionID string, data interface{}) {
	msg := outgoingMessage{
		Type:      kind,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Warn("write failed", zap.String("type", kind), zap.Error(err))
	}
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, sessionID, message, notice string) {
	data := map[string]string{"message": message}
	if notice != "" {
		data["notice"] = notice
	}
	h.send(conn, "error", sessionID, data)
}

func (h *WebSocketHandler) closeNormally(conn *websocket.Conn) {
	deadline := time.Now().Add(writeTimeout)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, intake.InactiveNotice), deadline)
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(h.readTimeout * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// WriteControl 可与 WriteJSON 并发调用。
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
