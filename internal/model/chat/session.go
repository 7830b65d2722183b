package chat

import (
	"time"

	"github.com/zhouzirui/talentscout/backend/internal/model/candidate"
)

// Session holds the state of a single intake conversation.
type Session struct {
	ID        string           `json:"id"`
	Messages  []Message        `json:"messages"`
	Candidate candidate.Record `json:"candidate"`
	Active    bool             `json:"active"`
	Greeted   bool             `json:"greeted"`
	CreatedAt time.Time        `json:"createdAt"`
}

// NewSession returns an active, not yet greeted session with an empty record.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Messages:  make([]Message, 0, 16),
		Active:    true,
		CreatedAt: now.UTC(),
	}
}

// LastAssistantBefore returns the content of the most recent assistant message among the
// first n transcript entries.
func (s *Session) LastAssistantBefore(n int) (string, bool) {
	if n > len(s.Messages) {
		n = len(s.Messages)
	}
	for i := n - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i].Content, true
		}
	}
	return "", false
}

// Clone returns a copy whose transcript can be appended to without touching s.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Messages = append(make([]Message, 0, len(s.Messages)+2), s.Messages...)
	return &cp
}

// SessionView is the transport representation of a session.
type SessionView struct {
	ID        string                 `json:"id"`
	Active    bool                   `json:"active"`
	Greeted   bool                   `json:"greeted"`
	Messages  []Message              `json:"messages"`
	Candidate []candidate.FieldValue `json:"candidate"`
	Notice    string                 `json:"notice,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// View renders the session for clients. notice is attached only when the session is inactive.
func (s *Session) View(notice string) SessionView {
	view := SessionView{
		ID:        s.ID,
		Active:    s.Active,
		Greeted:   s.Greeted,
		Messages:  append([]Message(nil), s.Messages...),
		Candidate: s.Candidate.Snapshot(),
		CreatedAt: s.CreatedAt,
	}
	if view.Messages == nil {
		view.Messages = []Message{}
	}
	if !s.Active {
		view.Notice = notice
	}
	return view
}
