// Package chat defines the transport-neutral boundary between the intake
// engine and a messaging platform: inbound events and an outbound Messenger.
package chat

import "context"

type EventKind string

const (
	EventStart      EventKind = "start"
	EventCommand    EventKind = "command"
	EventText       EventKind = "text"
	EventPhoto      EventKind = "photo"
	EventButton     EventKind = "button"
	EventWebAppData EventKind = "web_app_data"
	EventOther      EventKind = "other"
)

// Event is one inbound update addressed to a chat.
type Event struct {
	Kind     EventKind
	ChatID   int64
	UserID   int64
	Username string

	Text    string // message text, caption or web app payload
	Command string // command name without the slash

	PhotoRef string // largest photo size file id
	AlbumID  string // shared by photos sent as one album

	CallbackID string
	Data       string // button payload
	MessageID  int    // message the button belongs to
	HasMedia   bool   // that message is a photo (edit the caption, not the text)
}

// Button is either a callback button (Data), a link (URL) or a mini-page
// launcher (WebApp).
type Button struct {
	Label  string
	Data   string
	URL    string
	WebApp string
}

type Keyboard [][]Button

// Row is a small helper to build one keyboard row.
func Row(buttons ...Button) []Button {
	return buttons
}

// Outgoing is a message the engine wants to send.
type Outgoing struct {
	Text     string
	Photo    string // optional; when set Text becomes the caption
	Keyboard Keyboard
}

type Edit struct {
	ChatID    int64
	MessageID int
	Text      string
	Caption   bool
}

// Messenger is the outbound capability of a transport. Send methods return
// the id of the created message.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, kb Keyboard) (int, error)
	SendPhoto(ctx context.Context, chatID int64, photo, caption string, kb Keyboard) (int, error)
	SendPhotoGroup(ctx context.Context, chatID int64, photos []string, caption string) error
	EditMessage(ctx context.Context, edit Edit) error
	AnswerCallback(ctx context.Context, callbackID string) error
}

// Send delivers an Outgoing through m, choosing photo or text.
func Send(ctx context.Context, m Messenger, chatID int64, out Outgoing) (int, error) {
	if out.Photo != "" {
		return m.SendPhoto(ctx, chatID, out.Photo, out.Text, out.Keyboard)
	}
	return m.SendText(ctx, chatID, out.Text, out.Keyboard)
}

// Fetcher downloads the bytes behind a photo reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (data []byte, contentType string, err error)
}
