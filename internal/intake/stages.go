package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/bowerhall/ari/internal/chat"
	"github.com/bowerhall/ari/internal/logger"
	"github.com/bowerhall/ari/internal/relay"
	"github.com/bowerhall/ari/internal/scheduling"
	"github.com/bowerhall/ari/internal/session"
)

// Button payloads.
const (
	ConsentAgree   = "consent_agree"
	ConsentTerms   = "consent_terms"
	ConsentPrivacy = "consent_privacy"
	PaidYes        = "paid_yes"
)

const questionnaireType = "ari_request"

func (e *Engine) handle(ctx context.Context, ev chat.Event) error {
	if ev.Kind == chat.EventButton {
		if err := e.messenger.AnswerCallback(ctx, ev.CallbackID); err != nil {
			logger.Warn("failed to answer callback", "chatID", ev.ChatID, "error", err)
		}
	}

	switch {
	case ev.Kind == chat.EventStart:
		return e.start(ctx, ev)
	case ev.Kind == chat.EventCommand && ev.Command == "id":
		id := ev.UserID
		if id == 0 {
			id = ev.ChatID
		}
		e.reply(ctx, ev.ChatID, chat.Outgoing{Text: e.format(e.msgs.YourID, "id", id)})
		return nil
	}

	s, err := e.store.Get(ctx, ev.ChatID)
	if errors.Is(err, session.ErrNotFound) {
		logger.Info("no session, starting intake", "chatID", ev.ChatID, "kind", ev.Kind)
		return e.start(ctx, ev)
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	before := s.Stage

	if ev.Kind == chat.EventPhoto && acceptsPhotos(s.Stage) {
		e.acceptPhoto(ctx, s, ev)
		return e.save(ctx, s, before)
	}

	switch s.Stage {
	case session.StageConsent:
		e.onConsent(ctx, s, ev)
	case session.StageComplaints:
		e.onComplaints(ctx, s, ev)
	case session.StageHistory:
		e.onHistory(ctx, s, ev)
	case session.StagePhotos:
		e.reprompt(ctx, s)
	case session.StagePayment:
		e.onPayment(ctx, s, ev)
	case session.StageSchedule:
		e.onSchedule(ctx, s, ev)
	case session.StageCompleted:
		e.reply(ctx, s.ChatID, chat.Outgoing{Text: e.msgs.Completed})
	default:
		return fmt.Errorf("unknown stage %q", s.Stage)
	}

	return e.save(ctx, s, before)
}

func acceptsPhotos(stage session.Stage) bool {
	switch stage {
	case session.StagePhotos, session.StagePayment, session.StageSchedule, session.StageCompleted:
		return true
	}
	return false
}

// start discards any previous session and sends the welcome message.
func (e *Engine) start(ctx context.Context, ev chat.Event) error {
	if old, err := e.store.Get(ctx, ev.ChatID); err == nil {
		logger.Info("intake restarted", "chatID", ev.ChatID, "previousStage", old.Stage, "request", old.RequestID)
	}
	e.albums.cancel(ev.ChatID)

	userID := ev.UserID
	if userID == 0 {
		userID = ev.ChatID
	}

	s := session.New(ev.ChatID, userID, ev.Username)
	if err := e.store.Save(ctx, s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	logger.Info("intake started", "chatID", s.ChatID, "request", s.RequestID)

	e.reply(ctx, s.ChatID, chat.Outgoing{Text: e.msgs.Welcome, Keyboard: e.consentKeyboard()})
	return nil
}

func (e *Engine) onConsent(ctx context.Context, s *session.Session, ev chat.Event) {
	if ev.Kind != chat.EventButton {
		e.reprompt(ctx, s)
		return
	}

	switch ev.Data {
	case ConsentAgree:
		s.Stage = session.StageComplaints
		e.reply(ctx, s.ChatID, e.complaintsPrompt(s))
	case ConsentTerms:
		e.reply(ctx, s.ChatID, chat.Outgoing{Text: e.msgs.Terms})
	case ConsentPrivacy:
		e.reply(ctx, s.ChatID, chat.Outgoing{Text: e.msgs.Privacy})
	default:
		e.reprompt(ctx, s)
	}
}

func (e *Engine) onComplaints(ctx context.Context, s *session.Session, ev chat.Event) {
	switch ev.Kind {
	case chat.EventText:
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			e.reprompt(ctx, s)
			return
		}
		s.Complaints = text
		s.Stage = session.StageHistory
		e.reply(ctx, s.ChatID, chat.Outgoing{Text: e.msgs.HistoryPrompt})
		e.notify(relay.EventComplaints, s, nil)
	case chat.EventWebAppData:
		e.onQuestionnaire(ctx, s, ev.Text)
	default:
		e.reprompt(ctx, s)
	}
}

func (e *Engine) onHistory(ctx context.Context, s *session.Session, ev chat.Event) {
	text := strings.TrimSpace(ev.Text)
	if ev.Kind != chat.EventText || text == "" {
		e.reprompt(ctx, s)
		return
	}

	s.History = text
	s.Stage = session.StagePhotos
	e.reply(ctx, s.ChatID, chat.Outgoing{Text: e.format(e.msgs.PhotosPrompt, "min", e.opts.MinPhotos)})
	e.notify(relay.EventHistory, s, nil)
}

type questionnaire struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// onQuestionnaire fills complaints and history from the mini-page form and
// skips straight to photos.
func (e *Engine) onQuestionnaire(ctx context.Context, s *session.Session, raw string) {
	var q questionnaire
	if err := json.Unmarshal([]byte(raw), &q); err != nil || q.Type != questionnaireType {
		logger.Warn("unusable questionnaire payload", "chatID", s.ChatID, "error", err, "type", q.Type)
		e.reply(ctx, s.ChatID, chat.Outgoing{Text: e.msgs.FormInvalid})
		return
	}

	form := make(map[string]string, len(q.Data))
	for k, v := range q.Data {
		if v == nil {
			continue
		}
		if str := strings.TrimSpace(fmt.Sprint(v)); str != "" {
			form[k] = str
		}
	}

	s.Form = form
	s.Complaints = form["complaints"]
	s.History = form["hx_disease"]
	s.Stage = session.StagePhotos

	e.reply(ctx, s.ChatID, chat.Outgoing{Text: e.msgs.FormReceived})
	e.reply(ctx, s.ChatID, chat.Outgoing{Text: e.format(e.msgs.PhotosPrompt, "min", e.opts.MinPhotos)})
	e.notify(relay.EventForm, s, nil)
}

func (e *Engine) onPayment(ctx context.Context, s *session.Session, ev chat.Event) {
	if ev.Kind != chat.EventButton || ev.Data != PaidYes {
		e.reprompt(ctx, s)
		return
	}

	s.Paid = true
	s.Stage = session.StageSchedule

	edit := chat.Edit{ChatID: s.ChatID, MessageID: ev.MessageID, Text: e.msgs.PaymentConfirmed, Caption: ev.HasMedia}
	if edit.MessageID == 0 {
		edit.MessageID = s.PaymentMessageID
		edit.Caption = e.opts.PaymentQR != ""
	}
	e.edit(ctx, edit)

	e.notify(relay.EventPaid, s, nil)
	e.reply(ctx, s.ChatID, e.scheduler.Present(s))
}

func (e *Engine) onSchedule(ctx context.Context, s *session.Session, ev chat.Event) {
	var in scheduling.Input
	switch ev.Kind {
	case chat.EventButton:
		in = scheduling.Input{Kind: scheduling.InputButton, Data: ev.Data}
	case chat.EventWebAppData:
		in = scheduling.Input{Kind: scheduling.InputWebApp, Data: ev.Text}
	case chat.EventText:
		in = scheduling.Input{Kind: scheduling.InputText, Data: ev.Text}
	default:
		e.reprompt(ctx, s)
		return
	}

	res, err := e.scheduler.Handle(s, in)
	switch {
	case errors.Is(err, scheduling.ErrUnrecognized):
		e.reprompt(ctx, s)
		return
	case err != nil:
		logger.Info("scheduling input rejected", "chatID", s.ChatID, "scheduler", e.scheduler.Name(), "error", err)
		e.reply(ctx, s.ChatID, chat.Outgoing{Text: e.msgs.ScheduleInvalid})
		e.reprompt(ctx, s)
		return
	}

	if res.AwaitText {
		s.AwaitingOtherTime = true
		if ev.Kind == chat.EventButton && ev.MessageID != 0 {
			e.edit(ctx, chat.Edit{ChatID: s.ChatID, MessageID: ev.MessageID, Text: res.Prompt})
		} else {
			e.reply(ctx, s.ChatID, chat.Outgoing{Text: res.Prompt})
		}
		e.notify(relay.EventOtherTime, s, nil)
		return
	}

	if res.Slot == nil {
		e.reprompt(ctx, s)
		return
	}

	s.Slot = res.Slot
	s.AwaitingOtherTime = false
	s.Stage = session.StageCompleted

	if ev.Kind == chat.EventButton {
		e.edit(ctx, chat.Edit{ChatID: s.ChatID, MessageID: ev.MessageID, Text: e.format(e.msgs.SlotChosen, "slot", res.Slot.Label)})
	}
	e.reply(ctx, s.ChatID, chat.Outgoing{Text: e.confirmation(*res.Slot)})
	e.notify(relay.EventSlot, s, nil)
}

// reprompt repeats what the current stage is waiting for.
func (e *Engine) reprompt(ctx context.Context, s *session.Session) {
	var out chat.Outgoing
	switch s.Stage {
	case session.StageConsent:
		out = chat.Outgoing{Text: e.msgs.ConsentRequired, Keyboard: e.consentKeyboard()}
	case session.StageComplaints, session.StageHistory:
		out = chat.Outgoing{Text: e.msgs.TextRequired}
	case session.StagePhotos:
		out = chat.Outgoing{Text: e.format(e.msgs.PhotoRequired, "min", e.opts.MinPhotos, "count", len(s.Photos))}
	case session.StagePayment:
		out = chat.Outgoing{Text: e.msgs.PaymentReminder, Keyboard: e.paidKeyboard()}
	case session.StageSchedule:
		if s.AwaitingOtherTime {
			out = chat.Outgoing{Text: e.msgs.OtherTimePrompt}
		} else {
			out = e.scheduler.Present(s)
		}
	default:
		out = chat.Outgoing{Text: e.msgs.Completed}
	}
	e.reply(ctx, s.ChatID, out)
}

func (e *Engine) consentKeyboard() chat.Keyboard {
	return chat.Keyboard{
		chat.Row(chat.Button{Label: e.msgs.AgreeButton, Data: ConsentAgree}),
		chat.Row(
			chat.Button{Label: e.msgs.TermsButton, Data: ConsentTerms},
			chat.Button{Label: e.msgs.PrivacyButton, Data: ConsentPrivacy},
		),
	}
}

func (e *Engine) paidKeyboard() chat.Keyboard {
	return chat.Keyboard{chat.Row(chat.Button{Label: e.msgs.PaidButton, Data: PaidYes})}
}

func (e *Engine) complaintsPrompt(s *session.Session) chat.Outgoing {
	out := chat.Outgoing{Text: e.msgs.ComplaintsPrompt}
	if e.opts.FormURL != "" {
		out.Keyboard = chat.Keyboard{chat.Row(chat.Button{
			Label:  e.msgs.FormButton,
			WebApp: withChatID(e.opts.FormURL, s.ChatID),
		})}
	}
	return out
}

func (e *Engine) paymentPrompt() chat.Outgoing {
	if e.opts.PaymentQR != "" {
		return chat.Outgoing{
			Photo:    e.opts.PaymentQR,
			Text:     e.format(e.msgs.PaymentCaption, "price", e.opts.Price),
			Keyboard: e.paidKeyboard(),
		}
	}
	return chat.Outgoing{
		Text:     e.format(e.msgs.PaymentFallback, "price", e.opts.Price),
		Keyboard: e.paidKeyboard(),
	}
}

func withChatID(raw string, chatID int64) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set("chat_id", strconv.FormatInt(chatID, 10))
	u.RawQuery = q.Encode()
	return u.String()
}
