package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bowerhall/ari/internal/chat"
	"github.com/bowerhall/ari/internal/config"
	"github.com/bowerhall/ari/internal/logger"
)

const maxImageSize = 20 * 1024 * 1024 // 20MB limit for images

var _ chat.Messenger = (*Telegram)(nil)

func NewTelegram(cfg config.BotConfig) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	logger.Info("telegram authorized", "username", api.Self.UserName)

	return newTelegram(api, cfg), nil
}

func newTelegram(api *tgbotapi.BotAPI, cfg config.BotConfig) *Telegram {
	return &Telegram{api: api, cfg: cfg, dispatcher: newDispatcher()}
}

// SetHandler must be called before Start or before the webhook receives
// traffic.
func (t *Telegram) SetHandler(h Handler) {
	t.dispatcher.setHandler(h)
}

// Start receives updates until ctx is cancelled, by long polling or by
// registering the webhook.
func (t *Telegram) Start(ctx context.Context) error {
	if t.cfg.Mode == config.BotWebhook {
		if err := t.registerWebhook(); err != nil {
			return err
		}
		logger.Info("telegram webhook registered", "url", t.cfg.WebhookURL)
		<-ctx.Done()
		return ctx.Err()
	}

	if _, err := t.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		logger.Warn("failed to delete webhook before polling", "error", err)
	}

	logger.Info("telegram polling started")
	go t.poll(ctx)

	<-ctx.Done()
	return ctx.Err()
}

// Wait blocks until queued events have been handled.
func (t *Telegram) Wait() {
	t.dispatcher.wait()
}

func (t *Telegram) route(update tgbotapi.Update, web *webAppData) {
	ev, ok := toEvent(update, web)
	if !ok {
		logger.Debug("skipping update", "updateID", update.UpdateID)
		return
	}

	logger.Info("update received", "chatID", ev.ChatID, "kind", ev.Kind, "from", ev.Username, "text", truncate(ev.Text, 50))
	t.dispatcher.dispatch(ev)
}

func (t *Telegram) SendText(_ context.Context, chatID int64, text string, kb chat.Keyboard) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup := replyMarkup(kb); markup != nil {
		msg.ReplyMarkup = markup
	}

	sent, err := t.api.Send(msg)
	if err != nil {
		logger.Error("send failed", "error", err, "chatID", chatID)
		return 0, err
	}
	logger.Debug("message sent", "chatID", chatID, "chars", len(text))
	return sent.MessageID, nil
}

func (t *Telegram) SendPhoto(_ context.Context, chatID int64, photo, caption string, kb chat.Keyboard) (int, error) {
	msg := tgbotapi.NewPhoto(chatID, fileRef(photo))
	msg.Caption = caption
	if markup := replyMarkup(kb); markup != nil {
		msg.ReplyMarkup = markup
	}

	sent, err := t.api.Send(msg)
	if err != nil {
		logger.Error("send photo failed", "error", err, "chatID", chatID)
		return 0, err
	}
	logger.Debug("photo sent", "chatID", chatID, "caption", truncate(caption, 50))
	return sent.MessageID, nil
}

func (t *Telegram) SendPhotoGroup(_ context.Context, chatID int64, photos []string, caption string) error {
	media := make([]interface{}, 0, len(photos))
	for i, p := range photos {
		item := tgbotapi.NewInputMediaPhoto(fileRef(p))
		if i == 0 {
			item.Caption = caption
		}
		media = append(media, item)
	}

	if _, err := t.api.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media)); err != nil {
		logger.Error("send media group failed", "error", err, "chatID", chatID, "count", len(photos))
		return err
	}
	logger.Debug("media group sent", "chatID", chatID, "count", len(photos))
	return nil
}

// EditMessage replaces the text or caption and drops the inline buttons.
func (t *Telegram) EditMessage(_ context.Context, edit chat.Edit) error {
	noButtons := &tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}

	var cfg tgbotapi.Chattable
	if edit.Caption {
		c := tgbotapi.NewEditMessageCaption(edit.ChatID, edit.MessageID, edit.Text)
		c.ReplyMarkup = noButtons
		cfg = c
	} else {
		c := tgbotapi.NewEditMessageText(edit.ChatID, edit.MessageID, edit.Text)
		c.ReplyMarkup = noButtons
		cfg = c
	}

	if _, err := t.api.Request(cfg); err != nil {
		logger.Warn("edit failed", "error", err, "chatID", edit.ChatID, "messageID", edit.MessageID)
		return err
	}
	return nil
}

func (t *Telegram) AnswerCallback(_ context.Context, callbackID string) error {
	if callbackID == "" {
		return nil
	}
	_, err := t.api.Request(tgbotapi.NewCallback(callbackID, ""))
	return err
}

// Fetch downloads a photo by file id or URL.
func (t *Telegram) Fetch(ctx context.Context, ref string) ([]byte, string, error) {
	url := ref
	if !isURL(ref) {
		file, err := t.api.GetFile(tgbotapi.FileConfig{FileID: ref})
		if err != nil {
			return nil, "", fmt.Errorf("get file: %w", err)
		}
		url = file.Link(t.api.Token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, "", err
	}

	return data, http.DetectContentType(data), nil
}

func fileRef(ref string) tgbotapi.RequestFileData {
	if isURL(ref) {
		return tgbotapi.FileURL(ref)
	}
	return tgbotapi.FileID(ref)
}

func isURL(ref string) bool {
	return strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://")
}

// replyMarkup converts a keyboard. Keyboards with mini-page buttons become
// reply keyboards, everything else is inline.
func replyMarkup(kb chat.Keyboard) interface{} {
	if len(kb) == 0 {
		return nil
	}

	for _, row := range kb {
		for _, b := range row {
			if b.WebApp != "" {
				return webAppMarkup(kb)
			}
		}
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Label, b.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
			}
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func webAppMarkup(kb chat.Keyboard) replyKeyboard {
	markup := replyKeyboard{ResizeKeyboard: true, OneTimeKeyboard: true}
	for _, row := range kb {
		buttons := make([]replyButton, 0, len(row))
		for _, b := range row {
			btn := replyButton{Text: b.Label}
			if b.WebApp != "" {
				btn.WebApp = &webAppInfo{URL: b.WebApp}
			}
			buttons = append(buttons, btn)
		}
		markup.Keyboard = append(markup.Keyboard, buttons)
	}
	return markup
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	return s[:max] + "..."
}
