package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// New starts a fresh session at the consent stage.
func New(chatID, userID int64, username string) *Session {
	now := time.Now()
	return &Session{
		ChatID:    chatID,
		UserID:    userID,
		Username:  username,
		RequestID: uuid.New().String()[:8],
		Stage:     StageConsent,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	c := *s
	if s.Photos != nil {
		c.Photos = make([]string, len(s.Photos))
		copy(c.Photos, s.Photos)
	}
	if s.Form != nil {
		c.Form = make(map[string]string, len(s.Form))
		for k, v := range s.Form {
			c.Form[k] = v
		}
	}
	if s.Slot != nil {
		slot := *s.Slot
		c.Slot = &slot
	}
	return &c
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]*Session)}
}

func (m *MemoryStore) Get(_ context.Context, chatID int64) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	return sess.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	c := s.Clone()
	c.UpdatedAt = time.Now()

	m.mu.Lock()
	m.sessions[s.ChatID] = c
	m.mu.Unlock()

	return nil
}

func (m *MemoryStore) Delete(_ context.Context, chatID int64) error {
	m.mu.Lock()
	delete(m.sessions, chatID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), nil
}
