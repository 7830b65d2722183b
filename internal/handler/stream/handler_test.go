package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zhouzirui/talentscout/backend/internal/prompt"
	"github.com/zhouzirui/talentscout/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/talentscout/backend/internal/service/chat"
	"github.com/zhouzirui/talentscout/backend/internal/service/intake"
	"github.com/zhouzirui/talentscout/backend/internal/store"
)

type fixedResponder string

func (f fixedResponder) Reply(context.Context, ai.Request) (string, error) {
	return string(f), nil
}

func newHandler(t *testing.T) (*Handler, *intake.Conversations) {
	t.Helper()
	records := store.NewFileStore(filepath.Join(t.TempDir(), "candidate_data.json"), nil)
	svc := intake.NewService(fixedResponder("What is your FULL NAME?"), prompt.Static(prompt.Default()), records)
	conv := intake.NewConversations(chatservice.NewService(), svc)
	return New(conv, nil), conv
}

func readEvents(t *testing.T, body string) []StreamResponse {
	t.Helper()
	var events []StreamResponse
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var evt StreamResponse
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt); err != nil {
			t.Fatalf("bad event %q: %v", line, err)
		}
		events = append(events, evt)
	}
	return events
}

func TestStreamTurnEmitsOrderedEvents(t *testing.T) {
	h, conv := newHandler(t)
	ctx := context.Background()
	session, err := conv.Start(ctx)
	if err != nil {
		t.Fatalf("Start err: %v", err)
	}

	rec := httptest.NewRecorder()
	if err := h.HandleStreamRequest(ctx, rec, session.ID, "Ada Lovelace"); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	events := readEvents(t, rec.Body.String())
	var names []string
	for _, evt := range events {
		names = append(names, evt.Event)
	}
	if got := strings.Join(names, ","); got != "start,field,message,end" {
		t.Fatalf("unexpected events %s", got)
	}
	if events[1].Field != "Full Name" {
		t.Fatalf("expected Full Name field event, got %q", events[1].Field)
	}
	last := events[len(events)-1]
	if !last.Finished || last.Session == nil || last.Session.Candidate[0].Value != "Ada Lovelace" {
		t.Fatalf("unexpected end event: %+v", last)
	}
}

func TestStreamUnknownSessionEmitsError(t *testing.T) {
	h, _ := newHandler(t)

	rec := httptest.NewRecorder()
	if err := h.HandleStreamRequest(context.Background(), rec, "missing", "hi"); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	events := readEvents(t, rec.Body.String())
	if len(events) != 2 || events[1].Event != "error" {
		t.Fatalf("expected start then error, got %+v", events)
	}
}
