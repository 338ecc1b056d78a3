package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

type Stage string

const (
	StageConsent    Stage = "awaiting_consent"
	StageComplaints Stage = "awaiting_complaints"
	StageHistory    Stage = "awaiting_history"
	StagePhotos     Stage = "awaiting_photos"
	StagePayment    Stage = "awaiting_payment"
	StageSchedule   Stage = "awaiting_schedule"
	StageCompleted  Stage = "completed"
)

var ErrNotFound = errors.New("session not found")

// Slot is the consultation time the patient picked. At is zero for
// free-form requests ("any evening next week").
type Slot struct {
	Label  string    `json:"label"`
	At     time.Time `json:"at,omitempty"`
	Note   string    `json:"note,omitempty"`
	Source string    `json:"source"`
}

// Session is the intake record of one chat.
type Session struct {
	ChatID    int64  `json:"chat_id"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username,omitempty"`
	RequestID string `json:"request_id"`

	Stage      Stage             `json:"stage"`
	Complaints string            `json:"complaints,omitempty"`
	History    string            `json:"history,omitempty"`
	Form       map[string]string `json:"form,omitempty"`
	Photos     []string          `json:"photos,omitempty"`

	PaymentPrompted  bool `json:"payment_prompted"`
	PaymentMessageID int  `json:"payment_message_id,omitempty"`
	Paid             bool `json:"paid"`

	Slot              *Slot `json:"slot,omitempty"`
	AwaitingOtherTime bool  `json:"awaiting_other_time,omitempty"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store keeps sessions keyed by chat id. Implementations return copies, so
// a caller only changes stored state through Save.
type Store interface {
	Get(ctx context.Context, chatID int64) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, chatID int64) error
	Len(ctx context.Context) (int, error)
}

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}
