package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/zhouzirui/talentscout/backend/internal/model/candidate"
	modelchat "github.com/zhouzirui/talentscout/backend/internal/model/chat"
	chat "github.com/zhouzirui/talentscout/backend/internal/service/chat"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestServiceGetSession(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	if !session.Active || session.Greeted {
		t.Fatalf("new session should be active and not greeted: %+v", session)
	}

	got, err := svc.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if got.ID != session.ID {
		t.Fatalf("unexpected session ID: got %s want %s", got.ID, session.ID)
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := chat.NewService()

	if _, err := svc.GetSession(context.Background(), "missing"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestServiceDoPersistsChanges(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	err := svc.Do(ctx, session.ID, func(s *modelchat.Session) error {
		s.Messages = append(s.Messages, modelchat.Message{Role: modelchat.RoleUser, Content: "hi"})
		s.Greeted = true
		return nil
	})
	if err != nil {
		t.Fatalf("Do err: %v", err)
	}

	stored, err := svc.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if len(stored.Messages) != 1 || stored.Messages[0].Content != "hi" || !stored.Greeted {
		t.Fatalf("unexpected session: %+v", stored)
	}
}

func TestServiceSnapshotsAreIsolated(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	snapshot, _ := svc.GetSession(ctx, session.ID)
	snapshot.Messages = append(snapshot.Messages, modelchat.Message{Content: "leak"})
	snapshot.Candidate.Fill(candidate.FullName, "Ada")

	fresh, _ := svc.GetSession(ctx, session.ID)
	if len(fresh.Messages) != 0 {
		t.Fatalf("snapshot mutation leaked into registry: %+v", fresh.Messages)
	}
	if len(fresh.Candidate.Filled()) != 0 {
		t.Fatalf("record mutation leaked into registry")
	}
}

func TestServiceDoSerializesTurns(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		running int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.Do(ctx, session.ID, func(s *modelchat.Session) error {
				mu.Lock()
				running++
				if running > maxSeen {
					maxSeen = running
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)
				s.Messages = append(s.Messages, modelchat.Message{Role: modelchat.RoleUser})

				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected serialized turns, saw %d concurrent", maxSeen)
	}
	stored, _ := svc.GetSession(ctx, session.ID)
	if len(stored.Messages) != 8 {
		t.Fatalf("expected 8 messages, got %d", len(stored.Messages))
	}
}

func TestServiceDoHonoursContextWhileWaiting(t *testing.T) {
	svc := chat.NewService()
	session, _ := svc.CreateSession(context.Background())

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Do(context.Background(), session.ID, func(*modelchat.Session) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := svc.Do(ctx, session.ID, func(*modelchat.Session) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	close(release)
	<-done
}

func TestServiceDeleteSession(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	if n := svc.Len(); n != 1 {
		t.Fatalf("expected 1 session, got %d", n)
	}

	svc.DeleteSession(ctx, session.ID)
	if n := svc.Len(); n != 0 {
		t.Fatalf("expected 0 sessions after delete, got %d", n)
	}
	if _, err := svc.GetSession(ctx, session.ID); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
}
