// Package intake runs the consultation intake conversation: consent,
// complaints, history, photos, payment and scheduling, one session per chat.
package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bowerhall/ari/internal/chat"
	"github.com/bowerhall/ari/internal/logger"
	"github.com/bowerhall/ari/internal/messages"
	"github.com/bowerhall/ari/internal/metrics"
	"github.com/bowerhall/ari/internal/relay"
	"github.com/bowerhall/ari/internal/scheduling"
	"github.com/bowerhall/ari/internal/session"
)

const handleTimeout = 30 * time.Second

type Notifier interface {
	Notify(n relay.Notice)
}

type PhotoArchiver interface {
	Archive(chatID int64, requestID string, n int, ref string)
}

type Alerter interface {
	Critical(component, reason string, err error) bool
}

type Options struct {
	MinPhotos   int
	AlbumSettle time.Duration
	PaymentQR   string
	Price       string
	MeetingURL  string
	FormURL     string
}

type Deps struct {
	Store     session.Store
	Messenger chat.Messenger
	Scheduler scheduling.Scheduler
	Messages  *messages.Catalog
	Relay     Notifier
	Archiver  PhotoArchiver
	Alerter   Alerter
	Metrics   *metrics.IntakeMetrics
}

type Engine struct {
	store     session.Store
	messenger chat.Messenger
	scheduler scheduling.Scheduler
	msgs      *messages.Catalog
	notifier  Notifier
	archiver  PhotoArchiver
	alerter   Alerter
	metrics   *metrics.IntakeMetrics
	opts      Options

	locks  *keyedMutex
	albums *albumTracker
}

type nopNotifier struct{}

func (nopNotifier) Notify(relay.Notice) {}

type nopArchiver struct{}

func (nopArchiver) Archive(int64, string, int, string) {}

func New(deps Deps, opts Options) *Engine {
	if opts.MinPhotos < 1 {
		opts.MinPhotos = 1
	}
	if deps.Messages == nil {
		deps.Messages = messages.Default()
	}
	if deps.Relay == nil {
		deps.Relay = nopNotifier{}
	}
	if deps.Archiver == nil {
		deps.Archiver = nopArchiver{}
	}

	return &Engine{
		store:     deps.Store,
		messenger: deps.Messenger,
		scheduler: deps.Scheduler,
		msgs:      deps.Messages,
		notifier:  deps.Relay,
		archiver:  deps.Archiver,
		alerter:   deps.Alerter,
		metrics:   deps.Metrics,
		opts:      opts,
		locks:     newKeyedMutex(),
		albums:    newAlbumTracker(),
	}
}

// Handle processes one inbound event. Errors have already been logged and
// answered with an apology; the returned value is informational.
func (e *Engine) Handle(ctx context.Context, ev chat.Event) error {
	return e.run(ctx, ev.ChatID, string(ev.Kind), func() error {
		return e.handle(ctx, ev)
	})
}

// ConfirmExternal records a booking made outside the chat and sends the
// patient one confirmation. The slot is stored only while the session is
// waiting for a schedule.
func (e *Engine) ConfirmExternal(ctx context.Context, chatID int64, slot session.Slot) error {
	return e.run(ctx, chatID, "external_confirmation", func() error {
		s, err := e.store.Get(ctx, chatID)
		switch {
		case errors.Is(err, session.ErrNotFound):
			logger.Info("external booking for unknown chat", "chatID", chatID)
		case err != nil:
			return err
		case s.Stage == session.StageSchedule && s.Slot == nil:
			before := s.Stage
			s.Slot = &slot
			s.AwaitingOtherTime = false
			s.Stage = session.StageCompleted
			if err := e.save(ctx, s, before); err != nil {
				return err
			}
			e.notify(relay.EventSlot, s, nil)
		default:
			logger.Info("external booking outside scheduling stage", "chatID", chatID, "stage", s.Stage)
		}

		e.reply(ctx, chatID, chat.Outgoing{Text: e.confirmation(slot)})
		return nil
	})
}

// Close stops pending album timers.
func (e *Engine) Close() {
	e.albums.stopAll()
}

func (e *Engine) run(ctx context.Context, chatID int64, kind string, fn func() error) (err error) {
	start := time.Now()
	unlock := e.locks.Lock(chatID)
	defer unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}

		status := "ok"
		if err != nil {
			status = "error"
			e.fail(ctx, chatID, kind, err)
		}
		e.metrics.ObserveEvent(kind, status, time.Since(start).Seconds())
	}()

	return fn()
}

func (e *Engine) fail(ctx context.Context, chatID int64, kind string, err error) {
	logger.Error("intake handler failed", "chatID", chatID, "kind", kind, "error", err)

	if e.alerter != nil {
		e.alerter.Critical("intake", "handler failed", err)
	}

	if _, sendErr := e.messenger.SendText(ctx, chatID, e.msgs.InternalError, nil); sendErr != nil {
		logger.Error("failed to send apology", "chatID", chatID, "error", sendErr)
	}
}

func (e *Engine) save(ctx context.Context, s *session.Session, before session.Stage) error {
	if err := e.store.Save(ctx, s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	if s.Stage != before {
		logger.Info("stage changed", "chatID", s.ChatID, "request", s.RequestID, "from", before, "to", s.Stage)
		e.metrics.ObserveTransition(string(before), string(s.Stage))
	}
	return nil
}

// reply sends out and returns the new message id, or 0 when sending failed.
// Patient-facing send failures are logged and do not abort the transition.
func (e *Engine) reply(ctx context.Context, chatID int64, out chat.Outgoing) int {
	id, err := chat.Send(ctx, e.messenger, chatID, out)
	if err != nil {
		logger.Error("failed to send message", "chatID", chatID, "error", err)
		return 0
	}
	return id
}

func (e *Engine) edit(ctx context.Context, edit chat.Edit) {
	if edit.MessageID == 0 {
		return
	}
	if err := e.messenger.EditMessage(ctx, edit); err != nil {
		logger.Warn("failed to edit message", "chatID", edit.ChatID, "messageID", edit.MessageID, "error", err)
	}
}

func (e *Engine) notify(event relay.Event, s *session.Session, photos []string) {
	var copied []string
	if len(photos) > 0 {
		copied = append(copied, photos...)
	}
	e.notifier.Notify(relay.Notice{Event: event, Session: s.Clone(), Photos: copied})
}

func (e *Engine) format(text string, kv ...any) string {
	return messages.Format(text, kv...)
}

func (e *Engine) confirmation(slot session.Slot) string {
	text := e.format(e.msgs.Confirmation, "slot", slot.Label)
	if e.opts.MeetingURL != "" {
		text += "\n\n" + e.format(e.msgs.MeetingLink, "url", e.opts.MeetingURL)
	}
	return text
}
