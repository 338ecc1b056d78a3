package bot

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bowerhall/ari/internal/logger"
)

const (
	secretHeader       = "X-Telegram-Bot-Api-Secret-Token"
	maxUpdateBodyBytes = 1 << 20
)

func (t *Telegram) registerWebhook() error {
	if t.cfg.WebhookURL == "" {
		return errors.New("telegram: webhook mode requires a webhook url")
	}

	params := tgbotapi.Params{}
	params["url"] = t.cfg.WebhookURL
	params.AddNonEmpty("secret_token", t.cfg.WebhookSecret)
	if err := params.AddInterface("allowed_updates", allowedUpdates); err != nil {
		return err
	}

	if _, err := t.api.MakeRequest("setWebhook", params); err != nil {
		return err
	}
	return nil
}

// WebhookHandler receives updates pushed by Telegram. Updates are queued
// and acknowledged right away.
func (t *Telegram) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if t.cfg.WebhookSecret != "" {
			token := r.Header.Get(secretHeader)
			if subtle.ConstantTimeCompare([]byte(t.cfg.WebhookSecret), []byte(token)) != 1 {
				logger.Warn("invalid telegram webhook secret", "remote", r.RemoteAddr)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpdateBodyBytes))
		if err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		update, web, err := decodeUpdate(body)
		if err != nil {
			logger.Warn("invalid telegram update", "error", err)
			http.Error(w, "invalid update", http.StatusBadRequest)
			return
		}

		t.route(update, web)
		w.WriteHeader(http.StatusOK)
	})
}
