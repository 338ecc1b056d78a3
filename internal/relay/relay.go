// Package relay forwards captured intake data to the operators. Delivery is
// fire-and-forget: failures are logged and counted, never retried and never
// reported to the patient flow.
package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bowerhall/ari/internal/logger"
	"github.com/bowerhall/ari/internal/metrics"
	"github.com/bowerhall/ari/internal/session"
)

// MaxGroupPhotos is the largest album a chat platform accepts in one message.
const MaxGroupPhotos = 10

const deliveryTimeout = 30 * time.Second

// Sink is one operator destination.
type Sink interface {
	Name() string
	SendText(ctx context.Context, text string) error
	// SendPhotos receives at least one and at most MaxGroupPhotos refs.
	SendPhotos(ctx context.Context, photos []string, caption string) error
}

// Notice is one piece of captured data. Session must be a snapshot the
// caller no longer mutates.
type Notice struct {
	Event   Event
	Session *session.Session
	Photos  []string
}

type Relay struct {
	sinks   []Sink
	metrics *metrics.IntakeMetrics
	timeout time.Duration
	wg      sync.WaitGroup
}

func New(m *metrics.IntakeMetrics, sinks ...Sink) *Relay {
	return &Relay{sinks: sinks, metrics: m, timeout: deliveryTimeout}
}

// Notify sends the summary card and the notice photos to every sink in the
// background.
func (r *Relay) Notify(n Notice) {
	if r == nil || len(r.sinks) == 0 || n.Session == nil {
		return
	}

	text := Summary(n)
	photos := n.Photos
	if len(photos) > MaxGroupPhotos {
		logger.Warn("relay photos truncated", "chatID", n.Session.ChatID, "count", len(photos))
		photos = photos[:MaxGroupPhotos]
	}

	r.dispatch(n.Session.ChatID, text, photos)
}

// Announce sends a text-only notice.
func (r *Relay) Announce(text string) {
	if r == nil || len(r.sinks) == 0 {
		return
	}
	r.dispatch(0, text, nil)
}

// Wait blocks until every started delivery has finished.
func (r *Relay) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}

func (r *Relay) dispatch(chatID int64, text string, photos []string) {
	for _, sink := range r.sinks {
		r.wg.Add(1)
		go func(sink Sink) {
			defer r.wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					err := fmt.Errorf("panic: %v", rec)
					logger.Error("relay delivery panicked", "sink", sink.Name(), "chatID", chatID, "error", err)
					r.metrics.ObserveRelay(sink.Name(), err)
				}
			}()

			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			defer cancel()

			err := deliver(ctx, sink, text, photos)
			r.metrics.ObserveRelay(sink.Name(), err)
			if err != nil {
				logger.Error("relay delivery failed", "sink", sink.Name(), "chatID", chatID, "error", err)
				return
			}
			logger.Debug("relay delivered", "sink", sink.Name(), "chatID", chatID, "photos", len(photos))
		}(sink)
	}
}

func deliver(ctx context.Context, sink Sink, text string, photos []string) error {
	if err := sink.SendText(ctx, text); err != nil {
		return fmt.Errorf("send summary: %w", err)
	}
	if len(photos) == 0 {
		return nil
	}
	if err := sink.SendPhotos(ctx, photos, ""); err != nil {
		return fmt.Errorf("send %d photos: %w", len(photos), err)
	}
	return nil
}
