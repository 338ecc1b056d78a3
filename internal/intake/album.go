package intake

import (
	"context"
	"sync"
	"time"

	"github.com/bowerhall/ari/internal/chat"
	"github.com/bowerhall/ari/internal/logger"
	"github.com/bowerhall/ari/internal/relay"
	"github.com/bowerhall/ari/internal/session"
)

// albumTracker remembers, per chat, the album whose photos are still
// arriving. Each schedule call bumps the generation, so a timer that fires
// after being replaced finds itself stale.
type albumTracker struct {
	mu      sync.Mutex
	gen     uint64
	pending map[int64]*pendingAlbum
}

type pendingAlbum struct {
	id    string
	gen   uint64
	timer *time.Timer
}

func newAlbumTracker() *albumTracker {
	return &albumTracker{pending: make(map[int64]*pendingAlbum)}
}

func (t *albumTracker) schedule(chatID int64, albumID string, delay time.Duration, fire func(gen uint64)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p, ok := t.pending[chatID]; ok {
		p.timer.Stop()
	}

	t.gen++
	gen := t.gen
	t.pending[chatID] = &pendingAlbum{
		id:    albumID,
		gen:   gen,
		timer: time.AfterFunc(delay, func() { fire(gen) }),
	}
}

// finish clears the entry if gen is still current.
func (t *albumTracker) finish(chatID int64, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.pending[chatID]
	if !ok || p.gen != gen {
		return false
	}
	delete(t.pending, chatID)
	return true
}

func (t *albumTracker) inFlight(chatID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[chatID]
	return ok
}

func (t *albumTracker) cancel(chatID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p, ok := t.pending[chatID]; ok {
		p.timer.Stop()
		delete(t.pending, chatID)
	}
}

func (t *albumTracker) stopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for chatID, p := range t.pending {
		p.timer.Stop()
		delete(t.pending, chatID)
	}
}

// acceptPhoto appends the photo and decides whether the payment prompt is
// due now, later (album still arriving) or never again.
func (e *Engine) acceptPhoto(ctx context.Context, s *session.Session, ev chat.Event) {
	s.Photos = append(s.Photos, ev.PhotoRef)
	n := len(s.Photos)

	e.archiver.Archive(s.ChatID, s.RequestID, n, ev.PhotoRef)
	e.reply(ctx, s.ChatID, chat.Outgoing{Text: e.format(e.msgs.PhotoReceived, "count", n)})

	if s.PaymentPrompted {
		e.notify(relay.EventPhotoAdded, s, []string{ev.PhotoRef})
		return
	}

	if ev.AlbumID != "" {
		chatID := s.ChatID
		e.albums.schedule(chatID, ev.AlbumID, e.opts.AlbumSettle, func(gen uint64) {
			e.settle(chatID, gen)
		})
		return
	}

	if e.albums.inFlight(s.ChatID) {
		logger.Debug("photo joins pending album", "chatID", s.ChatID, "count", n)
		return
	}

	e.checkThreshold(ctx, s)
}

// settle runs when an album has been quiet for the settle delay.
func (e *Engine) settle(chatID int64, gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	_ = e.run(ctx, chatID, "album_settle", func() error {
		if !e.albums.finish(chatID, gen) {
			return nil
		}

		s, err := e.store.Get(ctx, chatID)
		if err != nil {
			return err
		}
		if s.Stage != session.StagePhotos {
			return nil
		}

		logger.Debug("album settled", "chatID", chatID, "photos", len(s.Photos))
		before := s.Stage
		e.checkThreshold(ctx, s)
		return e.save(ctx, s, before)
	})
}

// checkThreshold prompts for payment once enough photos are in.
func (e *Engine) checkThreshold(ctx context.Context, s *session.Session) {
	if s.PaymentPrompted || len(s.Photos) < e.opts.MinPhotos {
		return
	}

	s.PaymentPrompted = true
	s.Stage = session.StagePayment
	s.PaymentMessageID = e.reply(ctx, s.ChatID, e.paymentPrompt())

	e.notify(relay.EventPhotos, s, s.Photos)
}
