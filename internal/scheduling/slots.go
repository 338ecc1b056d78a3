package scheduling

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bowerhall/ari/internal/chat"
	"github.com/bowerhall/ari/internal/messages"
	"github.com/bowerhall/ari/internal/session"
)

const (
	slotPrefix = "slot_"
	SlotOther  = "slot_other"

	slotLabelLayout = "02.01 15:04"
)

// FixedSlots offers the next few times produced by a set of cron specs.
type FixedSlots struct {
	schedules []cron.Schedule
	count     int
	horizon   time.Duration
	loc       *time.Location
	msgs      *messages.Catalog
	now       func() time.Time
}

func NewFixedSlots(specs []string, count, horizonDays int, loc *time.Location, msgs *messages.Catalog) (*FixedSlots, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no slot schedules configured")
	}
	if count < 1 {
		count = 1
	}
	if horizonDays < 1 {
		horizonDays = 1
	}
	if loc == nil {
		loc = time.Local
	}

	schedules := make([]cron.Schedule, 0, len(specs))
	for _, spec := range specs {
		sched, err := cron.ParseStandard(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid slot schedule %q: %w", spec, err)
		}
		schedules = append(schedules, sched)
	}

	return &FixedSlots{
		schedules: schedules,
		count:     count,
		horizon:   time.Duration(horizonDays) * 24 * time.Hour,
		loc:       loc,
		msgs:      msgs,
		now:       time.Now,
	}, nil
}

func (f *FixedSlots) Name() string { return "slots" }

// Slots returns up to count distinct times after from, ordered, within the
// horizon.
func (f *FixedSlots) Slots(from time.Time) []time.Time {
	from = from.In(f.loc)
	limit := from.Add(f.horizon)

	seen := make(map[int64]bool)
	var out []time.Time
	for _, sched := range f.schedules {
		for t := sched.Next(from); !t.IsZero() && t.Before(limit); t = sched.Next(t) {
			if !seen[t.Unix()] {
				seen[t.Unix()] = true
				out = append(out, t)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	if len(out) > f.count {
		out = out[:f.count]
	}
	return out
}

func (f *FixedSlots) Present(_ *session.Session) chat.Outgoing {
	var kb chat.Keyboard
	for _, t := range f.Slots(f.now()) {
		kb = append(kb, chat.Row(chat.Button{
			Label: t.Format(slotLabelLayout),
			Data:  slotPrefix + strconv.FormatInt(t.Unix(), 10),
		}))
	}
	kb = append(kb, chat.Row(chat.Button{Label: f.msgs.OtherTimeButton, Data: SlotOther}))

	return chat.Outgoing{Text: f.msgs.ScheduleSlots, Keyboard: kb}
}

func (f *FixedSlots) Handle(s *session.Session, in Input) (Result, error) {
	switch in.Kind {
	case InputButton:
		return f.handleButton(in.Data)
	case InputText:
		if !s.AwaitingOtherTime {
			return Result{}, ErrUnrecognized
		}
		text := strings.TrimSpace(in.Data)
		if text == "" {
			return Result{}, ErrInvalid
		}
		return Result{Slot: &session.Slot{Label: text, Note: text, Source: f.Name()}}, nil
	default:
		return Result{}, ErrUnrecognized
	}
}

func (f *FixedSlots) handleButton(data string) (Result, error) {
	if data == SlotOther {
		return Result{AwaitText: true, Prompt: f.msgs.OtherTimePrompt}, nil
	}
	if !strings.HasPrefix(data, slotPrefix) {
		return Result{}, ErrUnrecognized
	}

	unix, err := strconv.ParseInt(strings.TrimPrefix(data, slotPrefix), 10, 64)
	if err != nil {
		return Result{}, ErrInvalid
	}

	at := time.Unix(unix, 0).In(f.loc)
	if !at.After(f.now()) {
		return Result{}, ErrInvalid
	}

	return Result{Slot: &session.Slot{
		Label:  at.Format(slotLabelLayout),
		At:     at,
		Source: f.Name(),
	}}, nil
}
