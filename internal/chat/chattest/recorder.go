// Package chattest provides a recording chat.Messenger for tests.
package chattest

import (
	"context"
	"sync"
	"time"

	"github.com/bowerhall/ari/internal/chat"
)

type Op string

const (
	OpText       Op = "text"
	OpPhoto      Op = "photo"
	OpPhotoGroup Op = "photo_group"
	OpEdit       Op = "edit"
	OpCallback   Op = "callback"
)

// Sent is one recorded outbound call.
type Sent struct {
	Op         Op
	ChatID     int64
	Text       string
	Photo      string
	Photos     []string
	Keyboard   chat.Keyboard
	MessageID  int
	Target     int // edited message
	Caption    bool
	CallbackID string
}

// Recorder implements chat.Messenger by recording every call.
type Recorder struct {
	mu     sync.Mutex
	sent   []Sent
	nextID int

	// Err, if set, is returned by every send call after recording it.
	Err error
	// Delay is slept before each call returns.
	Delay time.Duration
}

var _ chat.Messenger = (*Recorder)(nil)

func New() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(s Sent) (int, error) {
	if r.Delay > 0 {
		time.Sleep(r.Delay)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	s.MessageID = r.nextID
	r.sent = append(r.sent, s)
	return s.MessageID, r.Err
}

func (r *Recorder) SendText(_ context.Context, chatID int64, text string, kb chat.Keyboard) (int, error) {
	return r.record(Sent{Op: OpText, ChatID: chatID, Text: text, Keyboard: kb})
}

func (r *Recorder) SendPhoto(_ context.Context, chatID int64, photo, caption string, kb chat.Keyboard) (int, error) {
	return r.record(Sent{Op: OpPhoto, ChatID: chatID, Photo: photo, Text: caption, Keyboard: kb})
}

func (r *Recorder) SendPhotoGroup(_ context.Context, chatID int64, photos []string, caption string) error {
	copied := append([]string(nil), photos...)
	_, err := r.record(Sent{Op: OpPhotoGroup, ChatID: chatID, Photos: copied, Text: caption})
	return err
}

func (r *Recorder) EditMessage(_ context.Context, edit chat.Edit) error {
	_, err := r.record(Sent{Op: OpEdit, ChatID: edit.ChatID, Text: edit.Text, Target: edit.MessageID, Caption: edit.Caption})
	return err
}

func (r *Recorder) AnswerCallback(_ context.Context, callbackID string) error {
	_, err := r.record(Sent{Op: OpCallback, CallbackID: callbackID})
	return err
}

// Sent returns a copy of everything recorded so far.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := make([]Sent, len(r.sent))
	copy(copied, r.sent)
	return copied
}

// To returns the calls addressed to chatID.
func (r *Recorder) To(chatID int64) []Sent {
	var out []Sent
	for _, s := range r.Sent() {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// Count returns how many calls match op and chatID.
func (r *Recorder) Count(op Op, chatID int64) int {
	n := 0
	for _, s := range r.Sent() {
		if s.Op == op && s.ChatID == chatID {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.sent = nil
	r.mu.Unlock()
}
