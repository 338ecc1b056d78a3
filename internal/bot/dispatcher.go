package bot

import (
	"context"
	"sync"
	"time"

	"github.com/bowerhall/ari/internal/chat"
	"github.com/bowerhall/ari/internal/logger"
)

const handleTimeout = 60 * time.Second

// dispatcher hands events to the handler in arrival order per chat while
// different chats proceed in parallel. A chat present in queues has a
// drain goroutine running.
type dispatcher struct {
	mu      sync.Mutex
	handler Handler
	queues  map[int64][]chat.Event
	wg      sync.WaitGroup
}

func newDispatcher() *dispatcher {
	return &dispatcher{queues: make(map[int64][]chat.Event)}
}

func (d *dispatcher) setHandler(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = h
}

func (d *dispatcher) dispatch(ev chat.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.handler == nil {
		logger.Warn("no handler registered, dropping event", "chatID", ev.ChatID, "kind", ev.Kind)
		return
	}

	queue, running := d.queues[ev.ChatID]
	d.queues[ev.ChatID] = append(queue, ev)
	if running {
		return
	}

	d.wg.Add(1)
	go d.drain(ev.ChatID)
}

func (d *dispatcher) drain(chatID int64) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		queue := d.queues[chatID]
		if len(queue) == 0 {
			delete(d.queues, chatID)
			d.mu.Unlock()
			return
		}
		ev := queue[0]
		d.queues[chatID] = queue[1:]
		h := d.handler
		d.mu.Unlock()

		d.handle(h, ev)
	}
}

func (d *dispatcher) handle(h Handler, ev chat.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event handler panicked", "chatID", ev.ChatID, "error", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	if err := h.Handle(ctx, ev); err != nil {
		logger.Debug("event handling failed", "chatID", ev.ChatID, "kind", ev.Kind, "error", err)
	}
}

func (d *dispatcher) wait() {
	d.wg.Wait()
}
