// Package scheduling offers the patient a consultation time once payment is
// confirmed. Exactly one Scheduler is active per deployment.
package scheduling

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/bowerhall/ari/internal/chat"
	"github.com/bowerhall/ari/internal/config"
	"github.com/bowerhall/ari/internal/messages"
	"github.com/bowerhall/ari/internal/session"
)

var (
	// ErrUnrecognized means the input is not a scheduling answer; the
	// options should be shown again.
	ErrUnrecognized = errors.New("unrecognized scheduling input")
	// ErrInvalid means the input was meant as an answer but cannot be used.
	ErrInvalid = errors.New("invalid scheduling input")
)

type InputKind int

const (
	InputButton InputKind = iota
	InputWebApp
	InputText
)

type Input struct {
	Kind InputKind
	Data string
}

// Result is either a chosen Slot or a follow-up Prompt after which the
// patient is expected to answer with free text.
type Result struct {
	Slot      *session.Slot
	AwaitText bool
	Prompt    string
}

type Scheduler interface {
	Name() string
	Present(s *session.Session) chat.Outgoing
	Handle(s *session.Session, in Input) (Result, error)
}

// New builds the scheduler selected by cfg.Mode.
func New(cfg config.SchedulingConfig, loc *time.Location, msgs *messages.Catalog) (Scheduler, error) {
	switch cfg.Mode {
	case config.SchedulingSlots, "":
		return NewFixedSlots(cfg.SlotSchedules, cfg.SlotCount, cfg.HorizonDays, loc, msgs)
	case config.SchedulingWebApp:
		return NewWebAppPicker(cfg.SiteURL, loc, msgs)
	case config.SchedulingCalendar:
		return NewExternalCalendar(cfg.BookingURL, cfg.ChatParam, msgs)
	default:
		return nil, fmt.Errorf("unknown scheduling mode %q", cfg.Mode)
	}
}

// withQuery returns raw with key=chatID added to its query string.
func withQuery(raw, key string, chatID int64) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(key, strconv.FormatInt(chatID, 10))
	u.RawQuery = q.Encode()
	return u.String()
}

func parseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute url", raw)
	}
	return nil
}
