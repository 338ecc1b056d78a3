package calendar

import (
	"encoding/json"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	creationEvent = regexp.MustCompile(`(?i)^(booking[._ ]?created|invitee\.created)$`)
	telegramLabel = regexp.MustCompile(`(?i)telegram\s*(id|айди)`)
)

// Booking is what a calendar provider told us about a new appointment.
type Booking struct {
	Event        string
	ChatID       int64 // 0 when the payload does not identify a chat
	ChatIDSource string
	Name         string
	Email        string
	Start        time.Time
	StartRaw     string
}

// IsCreation reports whether the event announces a new booking.
func (b Booking) IsCreation() bool {
	return creationEvent.MatchString(b.Event)
}

// Extract reads a decoded webhook body. chatParam is the query parameter the
// booking link carried the chat id in.
func Extract(root map[string]any, chatParam string) Booking {
	b := Booking{Event: firstString(root, "triggerEvent", "event", "type")}

	scopes := []map[string]any{root}
	if inner, ok := root["payload"].(map[string]any); ok {
		scopes = append(scopes, inner)
	}

	for _, m := range scopes {
		if b.Name == "" {
			b.Name = attendeeField(m, "name")
		}
		if b.Email == "" {
			b.Email = attendeeField(m, "email")
		}
		if b.StartRaw == "" {
			b.StartRaw = startTime(m)
		}
	}
	if t, err := time.Parse(time.RFC3339, b.StartRaw); err == nil {
		b.Start = t
	}

	b.ChatID, b.ChatIDSource = findChatID(root, scopes, chatParam)
	return b
}

// findChatID applies the precedence: structured metadata, then a query
// parameter in any url, then a labelled answer.
func findChatID(root map[string]any, scopes []map[string]any, chatParam string) (int64, string) {
	for _, m := range scopes {
		if meta, ok := m["metadata"].(map[string]any); ok {
			for _, key := range []string{chatParam, "chat_id"} {
				if id, ok := parseChatID(meta[key]); ok {
					return id, "metadata"
				}
			}
		}
		if tracking, ok := m["tracking"].(map[string]any); ok {
			if id, ok := parseChatID(tracking["utm_content"]); ok {
				return id, "tracking"
			}
		}
	}

	var fromURL int64
	walk(root, func(v any) bool {
		s, ok := v.(string)
		if !ok || !strings.Contains(s, "://") {
			return true
		}
		u, err := url.Parse(s)
		if err != nil {
			return true
		}
		q := u.Query()
		for _, key := range []string{chatParam, "chat_id"} {
			if id, ok := parseChatID(q.Get(key)); ok {
				fromURL = id
				return false
			}
		}
		return true
	})
	if fromURL != 0 {
		return fromURL, "url"
	}

	var fromAnswer int64
	walk(root, func(v any) bool {
		m, ok := v.(map[string]any)
		if !ok {
			return true
		}
		label := firstString(m, "question", "label", "name")
		if !telegramLabel.MatchString(label) {
			return true
		}
		for _, key := range []string{"answer", "value", "response"} {
			if id, ok := parseChatID(m[key]); ok {
				fromAnswer = id
				return false
			}
		}
		return true
	})
	if fromAnswer != 0 {
		return fromAnswer, "answer"
	}

	return 0, ""
}

// walk visits v and everything below it in a stable order until fn returns
// false. Map keys are visited sorted.
func walk(v any, fn func(any) bool) bool {
	if !fn(v) {
		return false
	}

	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !walk(t[k], fn) {
				return false
			}
		}
	case []any:
		for _, item := range t {
			if !walk(item, fn) {
				return false
			}
		}
	}
	return true
}

func parseChatID(v any) (int64, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		// form answers shaped {"label": ..., "value": ...}
		return parseChatID(t["value"])
	default:
		return 0, false
	}

	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func attendeeField(m map[string]any, field string) string {
	if attendees, ok := m["attendees"].([]any); ok && len(attendees) > 0 {
		if a, ok := attendees[0].(map[string]any); ok {
			if s := firstString(a, field); s != "" {
				return s
			}
		}
	}
	if invitee, ok := m["invitee"].(map[string]any); ok {
		if s := firstString(invitee, field); s != "" {
			return s
		}
	}
	if responses, ok := m["responses"].(map[string]any); ok {
		switch r := responses[field].(type) {
		case string:
			return strings.TrimSpace(r)
		case map[string]any:
			if s := firstString(r, "value"); s != "" {
				return s
			}
		}
	}
	return firstString(m, field)
}

func startTime(m map[string]any) string {
	if s := firstString(m, "startTime", "start_time"); s != "" {
		return s
	}
	if ev, ok := m["scheduled_event"].(map[string]any); ok {
		return firstString(ev, "start_time", "startTime")
	}
	return ""
}
