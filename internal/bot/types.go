package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bowerhall/ari/internal/chat"
	"github.com/bowerhall/ari/internal/config"
)

// Handler consumes inbound chat events.
type Handler interface {
	Handle(ctx context.Context, ev chat.Event) error
}

type Telegram struct {
	api        *tgbotapi.BotAPI
	cfg        config.BotConfig
	dispatcher *dispatcher
}

// webAppData is the mini-page payload of a message. The bot API library
// predates it, so updates are decoded a second time to pick it up.
type webAppData struct {
	Data       string `json:"data"`
	ButtonText string `json:"button_text"`
}

type webAppEnvelope struct {
	Message *struct {
		WebAppData *webAppData `json:"web_app_data"`
	} `json:"message"`
}

// replyKeyboard is a reply keyboard whose buttons can open a mini-page.
// Only these buttons can send web_app_data back to the chat.
type replyKeyboard struct {
	Keyboard        [][]replyButton `json:"keyboard"`
	ResizeKeyboard  bool            `json:"resize_keyboard"`
	OneTimeKeyboard bool            `json:"one_time_keyboard"`
}

type replyButton struct {
	Text   string      `json:"text"`
	WebApp *webAppInfo `json:"web_app,omitempty"`
}

type webAppInfo struct {
	URL string `json:"url"`
}
