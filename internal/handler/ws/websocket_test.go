package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatHandler "github.com/zhouzirui/talentscout/backend/internal/handler/chat"
	"github.com/zhouzirui/talentscout/backend/internal/model/chat"
	"github.com/zhouzirui/talentscout/backend/internal/prompt"
	"github.com/zhouzirui/talentscout/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/talentscout/backend/internal/service/chat"
	"github.com/zhouzirui/talentscout/backend/internal/service/intake"
	"github.com/zhouzirui/talentscout/backend/internal/store"
)

type echoResponder struct{}

// 开场白请求没有上下文消息
func (echoResponder) Reply(_ context.Context, req ai.Request) (string, error) {
	if len(req.Context) == 0 {
		return "Hello! What is your FULL NAME?", nil
	}
	return "Noted. What is your EMAIL ADDRESS?", nil
}

type envelope struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

// slowResponder 开场白立即返回，之后每轮都等待 delay
type slowResponder struct {
	delay time.Duration
}

func (s slowResponder) Reply(ctx context.Context, req ai.Request) (string, error) {
	if len(req.Context) == 0 {
		return "Hello! What is your FULL NAME?", nil
	}
	select {
	case <-time.After(s.delay):
		return "Noted. What is your EMAIL ADDRESS?", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func setup(t *testing.T) (*httptest.Server, *intake.Conversations) {
	return setupWith(t, echoResponder{}, defaultReadTimeout)
}

func setupWith(t *testing.T, responder ai.Responder, readTimeout time.Duration) (*httptest.Server, *intake.Conversations) {
	t.Helper()
	records := store.NewFileStore(filepath.Join(t.TempDir(), "candidate_data.json"), nil)
	svc := intake.NewService(responder, prompt.Static(prompt.Default()), records)
	conv := intake.NewConversations(chatservice.NewService(), svc)

	h := NewWebSocketHandler(conv, nil)
	h.readTimeout = readTimeout

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, conv
}

func dial(t *testing.T, server *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/session/" + sessionID + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func sendText(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	data, err := json.Marshal(TextMessage{Text: text})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "text", "data": json.RawMessage(data)}))
}

func TestWebSocketTurn(t *testing.T) {
	server, conv := setup(t)
	session, err := conv.Start(context.Background())
	require.NoError(t, err)

	conn := dial(t, server, session.ID)

	first := readEnvelope(t, conn)
	assert.Equal(t, "session", first.Type)
	var view chat.SessionView
	require.NoError(t, json.Unmarshal(first.Data, &view))
	assert.Equal(t, session.ID, view.ID)
	assert.Len(t, view.Messages, 1)

	sendText(t, conn, "Ada Lovelace")

	reply := readEnvelope(t, conn)
	require.Equal(t, "reply", reply.Type)
	var turn chatHandler.TurnResponse
	require.NoError(t, json.Unmarshal(reply.Data, &turn))
	assert.Equal(t, "Full Name", turn.FilledField)
	assert.Equal(t, "Noted. What is your EMAIL ADDRESS?", turn.Reply.Content)
	assert.False(t, turn.Closed)
}

func TestWebSocketClosesAfterExit(t *testing.T) {
	server, conv := setup(t)
	session, err := conv.Start(context.Background())
	require.NoError(t, err)

	conn := dial(t, server, session.ID)
	readEnvelope(t, conn)

	sendText(t, conn, "bye")

	reply := readEnvelope(t, conn)
	require.Equal(t, "reply", reply.Type)
	var turn chatHandler.TurnResponse
	require.NoError(t, json.Unmarshal(reply.Data, &turn))
	assert.True(t, turn.Closed)
	assert.Equal(t, intake.InactiveNotice, turn.Session.Notice)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
}

func TestWebSocketRejectsUnknownType(t *testing.T) {
	server, conv := setup(t)
	session, err := conv.Start(context.Background())
	require.NoError(t, err)

	conn := dial(t, server, session.ID)
	readEnvelope(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "audio"}))

	env := readEnvelope(t, conn)
	assert.Equal(t, "error", env.Type)
	assert.Contains(t, string(env.Data), "unsupported message type")
}

func TestWebSocketUnknownSession(t *testing.T) {
	server, _ := setup(t)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/session/missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketSurvivesTurnLongerThanReadTimeout(t *testing.T) {
	server, conv := setupWith(t, slowResponder{delay: 400 * time.Millisecond}, 150*time.Millisecond)
	session, err := conv.Start(context.Background())
	require.NoError(t, err)

	conn := dial(t, server, session.ID)
	readEnvelope(t, conn)

	sendText(t, conn, "Ada Lovelace")
	first := readEnvelope(t, conn)
	require.Equal(t, "reply", first.Type)

	// 连接仍可继续下一轮
	sendText(t, conn, "ada@example.com")
	second := readEnvelope(t, conn)
	require.Equal(t, "reply", second.Type)

	var turn chatHandler.TurnResponse
	require.NoError(t, json.Unmarshal(second.Data, &turn))
	assert.Equal(t, "Email Address", turn.FilledField)
}
