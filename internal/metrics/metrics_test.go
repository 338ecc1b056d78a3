package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesCounters(t *testing.T) {
	m, handler := NewWithHandler()

	m.ObserveEvent("photo", "ok", 0.01)
	m.ObserveTransition("awaiting_photos", "awaiting_payment")
	m.ObserveRelay("telegram", errors.New("boom"))
	m.ObserveWebhook("unauthorized")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	body := rr.Body.String()
	for _, name := range []string{
		"ari_intake_events_total",
		"ari_intake_transitions_total",
		`ari_relay_deliveries_total{sink="telegram",status="error"} 1`,
		"ari_calendar_webhooks_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s to be exported", name)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *IntakeMetrics

	m.ObserveEvent("text", "ok", 0)
	m.ObserveTransition("a", "b")
	m.ObserveRelay("discord", nil)
	m.ObserveWebhook("ok")
}
