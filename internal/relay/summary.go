package relay

import (
	"fmt"
	"strings"
)

type Event string

const (
	EventComplaints Event = "complaints"
	EventHistory    Event = "history"
	EventForm       Event = "form"
	EventPhotos     Event = "photos"
	EventPhotoAdded Event = "photo_added"
	EventPaid       Event = "paid"
	EventOtherTime  Event = "other_time"
	EventSlot       Event = "slot"
)

var eventLabels = map[Event]string{
	EventComplaints: "📝 Жалобы",
	EventHistory:    "📝 Анамнез",
	EventForm:       "📨 Новая заявка (анкета)",
	EventPhotos:     "📷 Фото получены",
	EventPhotoAdded: "📷 Дополнительное фото",
	EventPaid:       "💳 Пациент подтвердил оплату",
	EventOtherTime:  "🗓 Пациент попросил другое время",
	EventSlot:       "🗓 Выбрано время",
}

// formFields are the questionnaire keys in display order.
var formFields = []struct{ key, label string }{
	{"fio", "ФИО"},
	{"dob", "Дата рождения"},
	{"email", "Email"},
	{"phone", "Телефон"},
	{"hx_life", "Анамнез жизни"},
	{"chronic", "Хронические"},
	{"meds", "Лекарства"},
	{"allergy", "Аллергии"},
	{"prev_tx", "Ранее лечение"},
}

// Summary renders the operator card for a notice.
func Summary(n Notice) string {
	s := n.Session
	label, ok := eventLabels[n.Event]
	if !ok {
		label = string(n.Event)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s · ARI #%s\n", label, s.RequestID)
	fmt.Fprintf(&b, "👤 %s (id %d)\n", username(s.Username), s.ChatID)
	fmt.Fprintf(&b, "Жалобы: %s\n", orDash(s.Complaints))
	fmt.Fprintf(&b, "Анамнез заболевания: %s\n", orDash(s.History))

	for _, f := range formFields {
		if v, ok := s.Form[f.key]; ok && v != "" {
			fmt.Fprintf(&b, "%s: %s\n", f.label, v)
		}
	}

	fmt.Fprintf(&b, "Фото: %d\n", len(s.Photos))
	if s.Paid {
		b.WriteString("Оплата: подтверждена ✅\n")
	} else {
		b.WriteString("Оплата: —\n")
	}

	if s.Slot != nil {
		fmt.Fprintf(&b, "Время: %s", s.Slot.Label)
		if s.Slot.Note != "" && s.Slot.Note != s.Slot.Label {
			fmt.Fprintf(&b, " (%s)", s.Slot.Note)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func username(u string) string {
	if u == "" {
		return "@—"
	}
	return "@" + u
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "—"
	}
	return v
}
