package alerts

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestAlertCooldown(t *testing.T) {
	var sent []string
	a := New(func(text string) error {
		sent = append(sent, text)
		return nil
	}, time.Minute)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	if !a.Critical("intake", "handler panic", errors.New("nil map")) {
		t.Fatal("first alert should be sent")
	}
	if a.Critical("intake", "handler panic", nil) {
		t.Error("repeat within cooldown should be suppressed")
	}
	if !a.Warn("relay", "handler panic", nil) {
		t.Error("different component should not share the cooldown")
	}

	now = now.Add(2 * time.Minute)
	if !a.Critical("intake", "handler panic", nil) {
		t.Error("alert after cooldown should be sent")
	}

	if len(sent) != 3 {
		t.Fatalf("expected 3 alerts, got %d", len(sent))
	}
	if !strings.HasPrefix(sent[0], "🚨 intake: handler panic") || !strings.Contains(sent[0], "nil map") {
		t.Errorf("unexpected alert text %q", sent[0])
	}
}

func TestAlertDisabled(t *testing.T) {
	var a *Alerter
	if a.Warn("x", "y", nil) {
		t.Error("nil alerter should not send")
	}

	if New(nil, time.Minute).Warn("x", "y", nil) {
		t.Error("alerter without send func should not send")
	}
}

func TestAlertSendFailure(t *testing.T) {
	a := New(func(string) error { return errors.New("chat not found") }, time.Minute)
	if a.Warn("relay", "down", nil) {
		t.Error("failed send should report false")
	}
}
