// Package storage keeps a copy of every patient photo in object storage, so
// operators still have them after the chat history is gone.
package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bowerhall/ari/internal/chat"
	"github.com/bowerhall/ari/internal/logger"
)

const archiveTimeout = time.Minute

type uploader interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) error
}

// Archiver copies photos in the background. A nil *Archiver does nothing.
type Archiver struct {
	store   uploader
	fetcher chat.Fetcher
	wg      sync.WaitGroup
}

func NewArchiver(store uploader, fetcher chat.Fetcher) *Archiver {
	return &Archiver{store: store, fetcher: fetcher}
}

// ObjectName is the key of the n-th (1-based) photo of a request.
func ObjectName(chatID int64, requestID string, n int) string {
	return fmt.Sprintf("%d/%s/%03d.jpg", chatID, requestID, n)
}

// Archive starts copying ref as photo n of the request and returns at once.
func (a *Archiver) Archive(chatID int64, requestID string, n int, ref string) {
	if a == nil {
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()

		name := ObjectName(chatID, requestID, n)
		if err := a.copy(ctx, name, ref); err != nil {
			logger.Warn("photo archive failed", "chatID", chatID, "name", name, "error", err)
			return
		}
		logger.Debug("photo archived", "chatID", chatID, "name", name)
	}()
}

func (a *Archiver) copy(ctx context.Context, name, ref string) error {
	data, contentType, err := a.fetcher.Fetch(ctx, ref)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	return a.store.Upload(ctx, name, data, contentType)
}

// Wait blocks until started copies finish.
func (a *Archiver) Wait() {
	if a == nil {
		return
	}
	a.wg.Wait()
}
