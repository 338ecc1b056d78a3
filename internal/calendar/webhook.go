// Package calendar receives booking notifications from an external scheduling
// service and turns them into chat confirmations.
package calendar

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bowerhall/ari/internal/logger"
	"github.com/bowerhall/ari/internal/metrics"
	"github.com/bowerhall/ari/internal/session"
)

const maxBodyBytes = 1 << 20

var signatureHeaders = []string{"X-Cal-Signature-256", "X-Webhook-Signature"}

type Confirmer interface {
	ConfirmExternal(ctx context.Context, chatID int64, slot session.Slot) error
}

type Announcer interface {
	Announce(text string)
}

type Handler struct {
	secret    string
	chatParam string
	loc       *time.Location
	confirmer Confirmer
	announcer Announcer
	metrics   *metrics.IntakeMetrics
	wg        sync.WaitGroup
}

func NewHandler(secret, chatParam string, loc *time.Location, confirmer Confirmer, announcer Announcer, m *metrics.IntakeMetrics) *Handler {
	if chatParam == "" {
		chatParam = "telegram_id"
	}
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		secret:    strings.TrimSpace(secret),
		chatParam: chatParam,
		loc:       loc,
		confirmer: confirmer,
		announcer: announcer,
		metrics:   m,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if h.secret != "" && !verifySignature(h.secret, payload, signature(r)) {
		logger.Warn("invalid calendar webhook signature", "remote", r.RemoteAddr)
		h.metrics.ObserveWebhook("unauthorized")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var root map[string]any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	decodeErr := dec.Decode(&root)

	writeOK(w)

	if decodeErr != nil || root == nil {
		logger.Debug("calendar webhook body is not a json object", "error", decodeErr)
		h.metrics.ObserveWebhook("ignored")
		return
	}

	booking := Extract(root, h.chatParam)
	if !booking.IsCreation() {
		logger.Debug("calendar webhook ignored", "event", booking.Event)
		h.metrics.ObserveWebhook("ignored")
		return
	}

	h.metrics.ObserveWebhook("booking")
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("calendar webhook processing panicked", "error", rec)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		h.process(ctx, booking)
	}()
}

// Wait blocks until background processing of accepted webhooks is done.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) process(ctx context.Context, b Booking) {
	slot := h.slot(b)

	logger.Info("calendar booking received", "event", b.Event, "chatID", b.ChatID, "source", b.ChatIDSource, "start", b.StartRaw)

	if h.announcer != nil {
		h.announcer.Announce(announcement(b, slot))
	}

	if b.ChatID == 0 {
		logger.Warn("calendar booking without chat id", "event", b.Event, "email", b.Email)
		return
	}

	if err := h.confirmer.ConfirmExternal(ctx, b.ChatID, slot); err != nil {
		logger.Error("failed to confirm calendar booking", "chatID", b.ChatID, "error", err)
	}
}

func (h *Handler) slot(b Booking) session.Slot {
	slot := session.Slot{Source: "calendar", Note: b.Name}
	if b.Start.IsZero() {
		slot.Label = "время указано в письме-подтверждении"
		if b.StartRaw != "" {
			slot.Label = b.StartRaw
		}
		return slot
	}
	slot.At = b.Start
	slot.Label = b.Start.In(h.loc).Format("02.01 15:04")
	return slot
}

func announcement(b Booking, slot session.Slot) string {
	chat := "—"
	if b.ChatID != 0 {
		chat = fmt.Sprintf("%d (%s)", b.ChatID, b.ChatIDSource)
	}
	return fmt.Sprintf("🗓 Новая запись в календаре\nИмя: %s\nEmail: %s\nВремя: %s\nTelegram ID: %s",
		orDash(b.Name), orDash(b.Email), slot.Label, chat)
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func signature(r *http.Request) string {
	for _, name := range signatureHeaders {
		if v := strings.TrimSpace(r.Header.Get(name)); v != "" {
			return v
		}
	}
	return ""
}

// verifySignature checks a hex HMAC-SHA256 of payload, with or without a
// "sha256=" prefix.
func verifySignature(secret string, payload []byte, header string) bool {
	if header == "" {
		return false
	}
	provided, err := hex.DecodeString(strings.TrimPrefix(header, "sha256="))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), provided)
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true}`))
}
