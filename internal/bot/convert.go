package bot

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bowerhall/ari/internal/chat"
)

// toEvent maps an update to a chat event. Updates that address no chat are
// skipped.
func toEvent(update tgbotapi.Update, web *webAppData) (chat.Event, bool) {
	if cq := update.CallbackQuery; cq != nil {
		ev := chat.Event{
			Kind:       chat.EventButton,
			CallbackID: cq.ID,
			Data:       cq.Data,
		}
		if cq.From != nil {
			ev.UserID = cq.From.ID
			ev.Username = cq.From.UserName
			ev.ChatID = cq.From.ID
		}
		if m := cq.Message; m != nil {
			if m.Chat != nil {
				ev.ChatID = m.Chat.ID
			}
			ev.MessageID = m.MessageID
			ev.HasMedia = len(m.Photo) > 0
		}
		return ev, ev.ChatID != 0
	}

	m := update.Message
	if m == nil || m.Chat == nil {
		return chat.Event{}, false
	}

	ev := chat.Event{ChatID: m.Chat.ID, MessageID: m.MessageID}
	if m.From != nil {
		ev.UserID = m.From.ID
		ev.Username = m.From.UserName
	}

	switch {
	case web != nil:
		ev.Kind = chat.EventWebAppData
		ev.Text = web.Data
	case m.IsCommand():
		ev.Command = strings.ToLower(m.Command())
		ev.Text = m.CommandArguments()
		ev.Kind = chat.EventCommand
		if ev.Command == "start" {
			ev.Kind = chat.EventStart
		}
	case len(m.Photo) > 0:
		ev.Kind = chat.EventPhoto
		ev.PhotoRef = largestPhoto(m.Photo)
		ev.AlbumID = m.MediaGroupID
		ev.Text = m.Caption
	case m.Document != nil && strings.HasPrefix(m.Document.MimeType, "image/"):
		ev.Kind = chat.EventPhoto
		ev.PhotoRef = m.Document.FileID
		ev.AlbumID = m.MediaGroupID
		ev.Text = m.Caption
	case strings.TrimSpace(m.Text) != "":
		ev.Kind = chat.EventText
		ev.Text = m.Text
	default:
		ev.Kind = chat.EventOther
	}
	return ev, true
}

// largestPhoto picks the biggest size Telegram generated.
func largestPhoto(sizes []tgbotapi.PhotoSize) string {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	return best.FileID
}
