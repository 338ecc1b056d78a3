package scheduling

import (
	"fmt"

	"github.com/bowerhall/ari/internal/chat"
	"github.com/bowerhall/ari/internal/messages"
	"github.com/bowerhall/ari/internal/session"
)

// ExternalCalendar hands the patient a booking link. The slot is confirmed
// later by the calendar webhook, never through the chat.
type ExternalCalendar struct {
	bookingURL string
	chatParam  string
	msgs       *messages.Catalog
}

func NewExternalCalendar(bookingURL, chatParam string, msgs *messages.Catalog) (*ExternalCalendar, error) {
	if err := parseURL(bookingURL); err != nil {
		return nil, fmt.Errorf("invalid BOOKING_URL: %w", err)
	}
	if chatParam == "" {
		chatParam = "telegram_id"
	}
	return &ExternalCalendar{bookingURL: bookingURL, chatParam: chatParam, msgs: msgs}, nil
}

func (e *ExternalCalendar) Name() string { return "calendar" }

// Link is the booking url carrying the chat id.
func (e *ExternalCalendar) Link(chatID int64) string {
	return withQuery(e.bookingURL, e.chatParam, chatID)
}

func (e *ExternalCalendar) Present(s *session.Session) chat.Outgoing {
	return chat.Outgoing{
		Text: e.msgs.ScheduleCalendar,
		Keyboard: chat.Keyboard{chat.Row(chat.Button{
			Label: e.msgs.ScheduleCalendarButton,
			URL:   e.Link(s.ChatID),
		})},
	}
}

func (e *ExternalCalendar) Handle(_ *session.Session, _ Input) (Result, error) {
	return Result{}, ErrUnrecognized
}
