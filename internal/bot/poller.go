package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bowerhall/ari/internal/logger"
)

const (
	pollTimeout                 = 25 // seconds, server side long poll
	maxConsecutivePollingErrors = 5
	errorPauseDuration          = 30 * time.Second
	retryDelay                  = 2 * time.Second
)

var allowedUpdates = []string{"message", "callback_query"}

func (t *Telegram) poll(ctx context.Context) {
	var offset, consecutiveErrors int

	for {
		if ctx.Err() != nil {
			logger.Info("telegram polling stopped")
			return
		}

		next, err := t.pollOnce(offset)
		if err != nil {
			consecutiveErrors++
			logger.Error("polling getUpdates failed", "error", err, "consecutiveErrors", consecutiveErrors)

			pause := retryDelay
			if consecutiveErrors >= maxConsecutivePollingErrors {
				logger.Warn("polling paused after consecutive errors", "pause", errorPauseDuration)
				pause = errorPauseDuration
				consecutiveErrors = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(pause):
			}
			continue
		}

		consecutiveErrors = 0
		offset = next
	}
}

// pollOnce fetches one batch of updates, routes them and returns the next
// offset.
func (t *Telegram) pollOnce(offset int) (int, error) {
	params := tgbotapi.Params{}
	params.AddNonZero("offset", offset)
	params.AddNonZero("timeout", pollTimeout)
	if err := params.AddInterface("allowed_updates", allowedUpdates); err != nil {
		return offset, err
	}

	resp, err := t.api.MakeRequest("getUpdates", params)
	if err != nil {
		return offset, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		return offset, fmt.Errorf("decode updates: %w", err)
	}

	for _, item := range raw {
		update, web, err := decodeUpdate(item)
		if err != nil {
			logger.Warn("skipping undecodable update", "error", err)
			continue
		}
		if update.UpdateID >= offset {
			offset = update.UpdateID + 1
		}
		t.route(update, web)
	}
	return offset, nil
}

// decodeUpdate reads an update together with the web app payload the bot
// API library does not know about.
func decodeUpdate(data []byte) (tgbotapi.Update, *webAppData, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(data, &update); err != nil {
		return update, nil, err
	}

	var env webAppEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return update, nil, err
	}
	if env.Message == nil {
		return update, nil, nil
	}
	return update, env.Message.WebAppData, nil
}
