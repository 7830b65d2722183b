package intake

import (
	"context"

	"github.com/zhouzirui/talentscout/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/talentscout/backend/internal/service/chat"
)

// Conversations runs intake turns against sessions held in the registry.
// Turns on the same session are serialized by the registry.
type Conversations struct {
	sessions *chatservice.Service
	intake   *Service
}

// NewConversations binds the orchestrator to a session registry.
func NewConversations(sessions *chatservice.Service, intake *Service) *Conversations {
	return &Conversations{sessions: sessions, intake: intake}
}

// Start creates a session and greets the candidate. A session whose greeting fails is discarded.
func (c *Conversations) Start(ctx context.Context) (chat.Session, error) {
	created, err := c.sessions.CreateSession(ctx)
	if err != nil {
		return chat.Session{}, err
	}

	var snapshot chat.Session
	err = c.sessions.Do(ctx, created.ID, func(session *chat.Session) error {
		if _, _, err := c.intake.Greet(ctx, session); err != nil {
			return err
		}
		snapshot = *session.Clone()
		return nil
	})
	if err != nil {
		c.sessions.DeleteSession(ctx, created.ID)
		return chat.Session{}, err
	}
	return snapshot, nil
}

// Send runs one turn and returns its result with a snapshot of the updated session.
func (c *Conversations) Send(ctx context.Context, sessionID, text string) (TurnResult, chat.Session, error) {
	var (
		result   TurnResult
		snapshot chat.Session
	)
	err := c.sessions.Do(ctx, sessionID, func(session *chat.Session) error {
		var err error
		result, err = c.intake.HandleTurn(ctx, session, text)
		if err != nil {
			return err
		}
		snapshot = *session.Clone()
		return nil
	})
	if err != nil {
		return TurnResult{}, chat.Session{}, err
	}
	return result, snapshot, nil
}

// Session returns a snapshot of the session.
func (c *Conversations) Session(ctx context.Context, sessionID string) (chat.Session, error) {
	return c.sessions.GetSession(ctx, sessionID)
}

// SessionCount returns how many sessions are held in memory.
func (c *Conversations) SessionCount() int {
	return c.sessions.Len()
}

// Discard forgets a session.
func (c *Conversations) Discard(ctx context.Context, sessionID string) {
	c.sessions.DeleteSession(ctx, sessionID)
}
