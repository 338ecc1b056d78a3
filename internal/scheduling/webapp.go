package scheduling

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bowerhall/ari/internal/chat"
	"github.com/bowerhall/ari/internal/messages"
	"github.com/bowerhall/ari/internal/session"
)

var localLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04"}

// WebAppPicker opens a mini-page that posts back {datetime, note}.
type WebAppPicker struct {
	siteURL string
	loc     *time.Location
	msgs    *messages.Catalog
}

type pickerPayload struct {
	Datetime string `json:"datetime"`
	Note     string `json:"note"`
}

func NewWebAppPicker(siteURL string, loc *time.Location, msgs *messages.Catalog) (*WebAppPicker, error) {
	if err := parseURL(siteURL); err != nil {
		return nil, fmt.Errorf("invalid SITE_URL: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &WebAppPicker{siteURL: siteURL, loc: loc, msgs: msgs}, nil
}

func (w *WebAppPicker) Name() string { return "webapp" }

func (w *WebAppPicker) Present(s *session.Session) chat.Outgoing {
	return chat.Outgoing{
		Text: w.msgs.ScheduleWebApp,
		Keyboard: chat.Keyboard{chat.Row(chat.Button{
			Label:  w.msgs.ScheduleWebAppButton,
			WebApp: withQuery(w.siteURL, "chat_id", s.ChatID),
		})},
	}
}

func (w *WebAppPicker) Handle(_ *session.Session, in Input) (Result, error) {
	if in.Kind != InputWebApp {
		return Result{}, ErrUnrecognized
	}

	var p pickerPayload
	if err := json.Unmarshal([]byte(in.Data), &p); err != nil {
		return Result{}, ErrInvalid
	}

	at, err := w.parseTime(strings.TrimSpace(p.Datetime))
	if err != nil {
		return Result{}, ErrInvalid
	}

	return Result{Slot: &session.Slot{
		Label:  at.Format("02.01.2006 15:04"),
		At:     at,
		Note:   strings.TrimSpace(p.Note),
		Source: w.Name(),
	}}, nil
}

// parseTime accepts RFC 3339 or a zone-less local time.
func (w *WebAppPicker) parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("missing datetime")
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.In(w.loc), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, v, w.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable datetime %q", v)
}
