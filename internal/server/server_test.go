package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bowerhall/ari/internal/session"
)

type brokenStore struct{ session.Store }

func (brokenStore) Len(context.Context) (int, error) { return 0, errors.New("redis down") }

type storageStatus bool

func (s storageStatus) Healthy(context.Context) bool { return bool(s) }

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRootLiveness(t *testing.T) {
	rr := serve(New(Config{}), http.MethodGet, "/")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ARI bot is running", rr.Body.String())
}

func TestHealthReportsSessionCount(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), session.New(1, 1, "a")))
	require.NoError(t, store.Save(context.Background(), session.New(2, 2, "b")))

	rr := serve(New(Config{Sessions: store, Storage: storageStatus(true)}), http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp healthResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Sessions)
	assert.Equal(t, "ok", resp.Storage)
}

func TestHealthDegraded(t *testing.T) {
	rr := serve(New(Config{Sessions: brokenStore{}, Storage: storageStatus(false)}), http.MethodGet, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var resp healthResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "unavailable", resp.Storage)
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "ari_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	rr := serve(New(Config{MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}), http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "ari_test_total 1"))
}

func TestWebhookRoutes(t *testing.T) {
	var hits []string
	record := func(name string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits = append(hits, name)
			w.WriteHeader(http.StatusOK)
		})
	}
	h := New(Config{CalendarWebhook: record("calendar"), TelegramWebhook: record("telegram")})

	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/webhooks/calendar").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/telegram/webhook").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodGet, "/webhooks/calendar").Code)
	assert.Equal(t, []string{"calendar", "telegram"}, hits)
}

func TestUnconfiguredWebhooksAreNotFound(t *testing.T) {
	h := New(Config{})

	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodPost, "/webhooks/calendar").Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/metrics").Code)
}

func TestRecovererCatchesPanics(t *testing.T) {
	h := New(Config{CalendarWebhook: http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})})

	assert.Equal(t, http.StatusInternalServerError, serve(h, http.MethodPost, "/webhooks/calendar").Code)
}
