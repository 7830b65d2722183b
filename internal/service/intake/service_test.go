package intake

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/talentscout/backend/internal/model/candidate"
	"github.com/zhouzirui/talentscout/backend/internal/model/chat"
	"github.com/zhouzirui/talentscout/backend/internal/prompt"
	"github.com/zhouzirui/talentscout/backend/internal/service/ai"
	"github.com/zhouzirui/talentscout/backend/internal/service/notify"
	"github.com/zhouzirui/talentscout/backend/internal/store"
)

type scriptedResponder struct {
	replies  []string
	err      error
	requests []ai.Request
}

func (r *scriptedResponder) Reply(_ context.Context, req ai.Request) (string, error) {
	r.requests = append(r.requests, req)
	if r.err != nil {
		return "", r.err
	}
	if len(r.replies) == 0 {
		return "ok", nil
	}
	reply := r.replies[0]
	r.replies = r.replies[1:]
	return reply, nil
}

type memoryStore struct {
	mu      sync.Mutex
	records []candidate.Record
	err     error
}

func (m *memoryStore) Append(_ context.Context, rec candidate.Record) (candidate.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return candidate.Record{}, m.err
	}
	stamped := rec.Stamp(time.Now())
	m.records = append(m.records, stamped)
	return stamped, nil
}

func (m *memoryStore) List(context.Context) ([]candidate.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]candidate.Record(nil), m.records...), nil
}

func (m *memoryStore) Close() error { return nil }

type recordingPublisher struct {
	events []notify.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt notify.Event) error {
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func newSession() *chat.Session {
	return chat.NewSession("s-1", time.Now())
}

func assistant(session *chat.Session, content string) {
	session.Messages = append(session.Messages, chat.Message{Role: chat.RoleAssistant, Content: content})
}

func TestGreetRunsOnce(t *testing.T) {
	responder := &scriptedResponder{replies: []string{"Hi, I'm TalentScout. What is your FULL NAME?"}}
	svc := NewService(responder, prompt.Static(prompt.Default()), &memoryStore{})
	session := newSession()

	msg, greeted, err := svc.Greet(context.Background(), session)
	require.NoError(t, err)
	assert.True(t, greeted)
	assert.Equal(t, chat.RoleAssistant, msg.Role)
	assert.True(t, session.Greeted)
	require.Len(t, session.Messages, 1)

	req := responder.requests[0]
	assert.Equal(t, prompt.Default().Instructions, req.Instructions)
	require.Len(t, req.History, 1)
	assert.Equal(t, chat.RoleUser, req.History[0].Role)
	assert.Equal(t, "Greet the candidate and explain what you will do.", req.History[0].Content)
	assert.InDelta(t, 0.2, req.Temperature, 1e-6)

	_, greeted, err = svc.Greet(context.Background(), session)
	require.NoError(t, err)
	assert.False(t, greeted)
	assert.Len(t, responder.requests, 1)
	assert.Len(t, session.Messages, 1)
}

func TestGreetFailureLeavesSessionUngreeted(t *testing.T) {
	svc := NewService(&scriptedResponder{err: errors.New("401")}, prompt.Static(prompt.Default()), &memoryStore{})
	session := newSession()

	_, _, err := svc.Greet(context.Background(), session)
	require.Error(t, err)
	assert.False(t, session.Greeted)
	assert.Empty(t, session.Messages)
}

func TestTurnCapturesAnswerAndSendsStatus(t *testing.T) {
	responder := &scriptedResponder{replies: []string{"What is your PHONE NUMBER?"}}
	svc := NewService(responder, prompt.Static(prompt.Default()), &memoryStore{})
	session := newSession()
	session.Candidate.Fill(candidate.FullName, "Ada Lovelace")
	assistant(session, "Thanks Ada. What is your EMAIL ADDRESS?")

	result, err := svc.HandleTurn(context.Background(), session, "ada@example.com")
	require.NoError(t, err)

	assert.True(t, result.FieldFilled)
	assert.Equal(t, candidate.EmailAddress, result.Field)
	assert.Equal(t, "ada@example.com", session.Candidate.Get(candidate.EmailAddress))
	assert.Equal(t, "What is your PHONE NUMBER?", result.Reply.Content)
	assert.False(t, result.Closed)
	assert.True(t, session.Active)

	roles := make([]chat.Role, 0, len(session.Messages))
	for _, m := range session.Messages {
		roles = append(roles, m.Role)
	}
	if diff := cmp.Diff([]chat.Role{chat.RoleAssistant, chat.RoleUser, chat.RoleAssistant}, roles); diff != "" {
		t.Errorf("transcript roles mismatch (-want +got):\n%s", diff)
	}

	req := responder.requests[0]
	assert.InDelta(t, 0.3, req.Temperature, 1e-6)
	require.Len(t, req.Context, 1)
	assert.Equal(t, chat.RoleSystem, req.Context[0].Role)
	assert.Contains(t, req.Context[0].Content, "Full Name: Ada Lovelace")
	assert.Contains(t, req.Context[0].Content, "Email Address: ada@example.com")
	require.Len(t, req.History, 2)
	assert.Equal(t, "ada@example.com", req.History[1].Content)
}

func TestTurnNeverOverwritesFilledField(t *testing.T) {
	svc := NewService(&scriptedResponder{}, prompt.Static(prompt.Default()), &memoryStore{})
	session := newSession()
	session.Candidate.Fill(candidate.EmailAddress, "first@example.com")
	assistant(session, "Could you confirm your EMAIL ADDRESS?")

	result, err := svc.HandleTurn(context.Background(), session, "second@example.com")
	require.NoError(t, err)
	assert.False(t, result.FieldFilled)
	assert.Equal(t, "first@example.com", session.Candidate.Get(candidate.EmailAddress))
}

func TestTurnWithoutPriorQuestionCapturesNothing(t *testing.T) {
	svc := NewService(&scriptedResponder{}, prompt.Static(prompt.Default()), &memoryStore{})
	session := newSession()

	result, err := svc.HandleTurn(context.Background(), session, "hello")
	require.NoError(t, err)
	assert.False(t, result.FieldFilled)
	assert.Empty(t, session.Candidate.Filled())
}

func TestTurnModelFailureLeavesSessionUnchanged(t *testing.T) {
	svc := NewService(&scriptedResponder{err: errors.New("timeout")}, prompt.Static(prompt.Default()), &memoryStore{})
	session := newSession()
	assistant(session, "What is your FULL NAME?")
	before := *session.Clone()

	_, err := svc.HandleTurn(context.Background(), session, "Ada Lovelace")
	require.Error(t, err)

	assert.Len(t, session.Messages, len(before.Messages))
	assert.False(t, session.Candidate.IsSet(candidate.FullName))
	assert.True(t, session.Active)
}

func TestByeClosesSessionAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candidate_data.json")
	records := store.NewFileStore(path, nil)
	publisher := &recordingPublisher{}
	responder := &scriptedResponder{replies: []string{"Thank you! A recruiter will contact you."}}
	svc := NewService(responder, prompt.Static(prompt.Default()), records, WithPublisher(publisher))

	session := newSession()
	session.Candidate.Fill(candidate.FullName, "Ada Lovelace")
	assistant(session, "What is your PHONE NUMBER?")

	start := time.Now().UTC()
	result, err := svc.HandleTurn(context.Background(), session, "bye")
	end := time.Now().UTC()
	require.NoError(t, err)

	assert.True(t, result.Closed)
	assert.False(t, session.Active)
	assert.Equal(t, "Thank you! A recruiter will contact you.", session.Messages[len(session.Messages)-1].Content)

	closing := responder.requests[0]
	assert.InDelta(t, 0.2, closing.Temperature, 1e-6)
	assert.Empty(t, closing.History)
	require.Len(t, closing.Context, 1)
	assert.Equal(t, "User wants to end conversation. Thank them and describe next steps.", closing.Context[0].Content)

	saved, err := records.List(context.Background())
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "Ada Lovelace", saved[0].Get(candidate.FullName))
	// "bye" answered the phone question before the exit check ran.
	assert.Equal(t, "bye", saved[0].Get(candidate.PhoneNumber))
	ts := saved[0].CompletedAt
	assert.False(t, ts.Before(start.Truncate(time.Microsecond)))
	assert.False(t, ts.After(end))

	require.Len(t, publisher.events, 1)
	assert.Equal(t, notify.EventCandidateCompleted, publisher.events[0].Event)
	assert.Equal(t, "s-1", publisher.events[0].SessionID)

	_, err = svc.HandleTurn(context.Background(), session, "hello again")
	assert.ErrorIs(t, err, ErrSessionInactive)
	assert.Len(t, responder.requests, 1)
}

func TestCloseWithStoreFailureKeepsSessionActive(t *testing.T) {
	records := &memoryStore{err: errors.New("disk full")}
	svc := NewService(&scriptedResponder{}, prompt.Static(prompt.Default()), records)
	session := newSession()

	_, err := svc.HandleTurn(context.Background(), session, "quit")
	require.Error(t, err)
	assert.True(t, session.Active)
	assert.Empty(t, session.Messages)

	records.err = nil
	result, err := svc.HandleTurn(context.Background(), session, "quit")
	require.NoError(t, err)
	assert.True(t, result.Closed)
	assert.Len(t, records.records, 1)
}

func TestPublishFailureDoesNotFailClose(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("broker down")}
	svc := NewService(&scriptedResponder{}, prompt.Static(prompt.Default()), &memoryStore{}, WithPublisher(publisher))
	session := newSession()

	result, err := svc.HandleTurn(context.Background(), session, "I want to QUIT now")
	require.NoError(t, err)
	assert.True(t, result.Closed)
	assert.False(t, session.Active)
}

func TestEmptyInputIsRejected(t *testing.T) {
	responder := &scriptedResponder{}
	svc := NewService(responder, prompt.Static(prompt.Default()), &memoryStore{})

	_, err := svc.HandleTurn(context.Background(), newSession(), "")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, responder.requests)
}

func TestWhitespaceInputRunsTurnWithoutFillingField(t *testing.T) {
	responder := &scriptedResponder{replies: []string{"Could you share your FULL NAME?"}}
	svc := NewService(responder, prompt.Static(prompt.Default()), &memoryStore{})
	session := newSession()
	assistant(session, "Hi! What is your FULL NAME?")

	result, err := svc.HandleTurn(context.Background(), session, "   ")
	require.NoError(t, err)

	assert.False(t, result.FieldFilled)
	assert.False(t, session.Candidate.IsSet(candidate.FullName))
	assert.Len(t, responder.requests, 1)
	assert.Equal(t, "Could you share your FULL NAME?", result.Reply.Content)
	require.Len(t, session.Messages, 3)
	assert.Equal(t, "   ", session.Messages[1].Content)
}
