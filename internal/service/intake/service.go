// Package intake runs the screening conversation: it tracks candidate answers,
// detects the end of the conversation and asks the model for each reply.
package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/talentscout/backend/internal/analysis/intent"
	"github.com/zhouzirui/talentscout/backend/internal/logging"
	"github.com/zhouzirui/talentscout/backend/internal/model/candidate"
	"github.com/zhouzirui/talentscout/backend/internal/model/chat"
	"github.com/zhouzirui/talentscout/backend/internal/prompt"
	"github.com/zhouzirui/talentscout/backend/internal/service/ai"
	"github.com/zhouzirui/talentscout/backend/internal/service/notify"
	"github.com/zhouzirui/talentscout/backend/internal/store"
)

// InactiveNotice is shown instead of processing input once a session has closed.
const InactiveNotice = "Conversation ended. Start a new session to continue."

var (
	ErrSessionInactive = errors.New("conversation has ended")
	ErrEmptyMessage    = errors.New("message is empty")
)

// PromptSource yields the prompt set in effect for the next model call.
type PromptSource interface {
	Current() *prompt.Set
}

// TurnResult describes what a single turn changed.
type TurnResult struct {
	Reply chat.Message
	// Field is the record field filled by this turn, valid when FieldFilled is true.
	Field       candidate.Field
	FieldFilled bool
	Closed      bool
	// Record is the persisted record when Closed is true.
	Record candidate.Record
}

// Service orchestrates greetings and turns for one session at a time.
type Service struct {
	responder ai.Responder
	prompts   PromptSource
	records   store.RecordStore
	publisher notify.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithPublisher sets where completion events go. Defaults to a no-op.
func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logging.OrNop(logger).Named("intake") }
}

// WithClock replaces the time source used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the orchestrator.
func NewService(responder ai.Responder, prompts PromptSource, records store.RecordStore, opts ...Option) *Service {
	s := &Service{
		responder: responder,
		prompts:   prompts,
		records:   records,
		publisher: notify.Nop{},
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Greet produces the opening message once per session. It returns false when the
// session was already greeted. On error the session is unchanged.
func (s *Service) Greet(ctx context.Context, session *chat.Session) (chat.Message, bool, error) {
	if session.Greeted {
		return chat.Message{}, false, nil
	}

	set := s.prompts.Current()
	reply, err := s.responder.Reply(ctx, ai.Request{
		Instructions: set.BuildInstructions().Content,
		History:      []chat.Message{set.GreetingDirective()},
		Temperature:  ai.TemperatureGreeting,
	})
	if err != nil {
		return chat.Message{}, false, fmt.Errorf("greeting failed: %w", err)
	}

	msg := s.newMessage(session.ID, chat.RoleAssistant, reply)
	session.Messages = append(session.Messages, msg)
	session.Greeted = true

	s.logger.Info("session greeted", zap.String("session", session.ID))
	return msg, true, nil
}

// HandleTurn processes one user input. The session is only modified when the turn
// completes; a failed model call or save leaves it exactly as it was.
func (s *Service) HandleTurn(ctx context.Context, session *chat.Session, userText string) (TurnResult, error) {
	if !session.Active {
		return TurnResult{}, ErrSessionInactive
	}
	// 仅空白的输入照常进入对话，只拒绝空串
	if userText == "" {
		return TurnResult{}, ErrEmptyMessage
	}

	work := session.Clone()
	lastQuestion, _ := work.LastAssistantBefore(len(work.Messages))
	work.Messages = append(work.Messages, s.newMessage(work.ID, chat.RoleUser, userText))

	var result TurnResult
	field, written := intent.Track(&work.Candidate, userText, lastQuestion)
	if written && work.Candidate.IsSet(field) {
		result.Field, result.FieldFilled = field, true
	}

	set := s.prompts.Current()
	if intent.IsExitSignal(userText) {
		return s.close(ctx, session, work, set, result)
	}

	reply, err := s.responder.Reply(ctx, ai.Request{
		Instructions: set.BuildInstructions().Content,
		Context:      []chat.Message{set.BuildContext(&work.Candidate)},
		History:      work.Messages,
		Temperature:  ai.TemperatureTurn,
	})
	if err != nil {
		return TurnResult{}, fmt.Errorf("turn failed: %w", err)
	}

	result.Reply = s.newMessage(work.ID, chat.RoleAssistant, reply)
	work.Messages = append(work.Messages, result.Reply)
	*session = *work

	if result.FieldFilled {
		s.logger.Debug("field captured", zap.String("session", session.ID), zap.Stringer("field", result.Field))
	}
	return result, nil
}

// close asks for the farewell, persists the record and deactivates the session.
// The closing request carries no transcript.
func (s *Service) close(ctx context.Context, session, work *chat.Session, set *prompt.Set, result TurnResult) (TurnResult, error) {
	reply, err := s.responder.Reply(ctx, ai.Request{
		Instructions: set.BuildInstructions().Content,
		Context:      []chat.Message{set.ClosingDirective()},
		Temperature:  ai.TemperatureClosing,
	})
	if err != nil {
		return TurnResult{}, fmt.Errorf("closing failed: %w", err)
	}

	saved, err := s.records.Append(ctx, work.Candidate)
	if err != nil {
		return TurnResult{}, fmt.Errorf("failed to save candidate: %w", err)
	}

	result.Reply = s.newMessage(work.ID, chat.RoleAssistant, reply)
	result.Closed = true
	result.Record = saved

	work.Messages = append(work.Messages, result.Reply)
	work.Candidate = saved
	work.Active = false
	*session = *work

	s.logger.Info("session closed",
		zap.String("session", session.ID),
		zap.Int("fields", len(saved.Filled())),
		zap.Time("completedAt", saved.CompletedAt))

	evt := notify.Event{Event: notify.EventCandidateCompleted, SessionID: session.ID, Record: saved}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("failed to publish completion event", zap.String("session", session.ID), zap.Error(err))
	}
	return result, nil
}

func (s *Service) newMessage(sessionID string, role chat.Role, content string) chat.Message {
	return chat.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
}
