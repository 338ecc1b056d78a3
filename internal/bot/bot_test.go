package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bowerhall/ari/internal/chat"
	"github.com/bowerhall/ari/internal/config"
)

type recordingHandler struct {
	mu      sync.Mutex
	events  []chat.Event
	delay   time.Duration
	active  map[int64]int
	overlap bool
}

func (h *recordingHandler) Handle(_ context.Context, ev chat.Event) error {
	h.mu.Lock()
	if h.active == nil {
		h.active = make(map[int64]int)
	}
	h.active[ev.ChatID]++
	if h.active[ev.ChatID] > 1 {
		h.overlap = true
	}
	h.mu.Unlock()

	time.Sleep(h.delay)

	h.mu.Lock()
	h.active[ev.ChatID]--
	h.events = append(h.events, ev)
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) texts(chatID int64) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, ev := range h.events {
		if ev.ChatID == chatID {
			out = append(out, ev.Text)
		}
	}
	return out
}

// fakeAPI is a minimal Bot API server. It records form parameters per
// method.
type fakeAPI struct {
	mu      sync.Mutex
	calls   map[string][]map[string]string
	updates string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	params := make(map[string]string)
	for k := range r.Form {
		params[k] = r.Form.Get(k)
	}
	f.mu.Lock()
	f.calls[method] = append(f.calls[method], params)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "getMe":
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Ari","username":"ari_bot"}}`)
	case "getUpdates":
		fmt.Fprintf(w, `{"ok":true,"result":%s}`, f.updates)
	case "sendMessage", "sendPhoto":
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":42,"date":0,"chat":{"id":7,"type":"private"}}}`)
	case "sendMediaGroup":
		fmt.Fprint(w, `{"ok":true,"result":[{"message_id":43,"date":0,"chat":{"id":7,"type":"private"}}]}`)
	default:
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	}
}

func (f *fakeAPI) params(method string) []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func newTestTelegram(t *testing.T, cfg config.BotConfig) (*Telegram, *fakeAPI) {
	t.Helper()
	fake := &fakeAPI{calls: make(map[string][]map[string]string), updates: "[]"}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	api, err := tgbotapi.NewBotAPIWithClient("TOKEN", srv.URL+"/bot%s/%s", srv.Client())
	require.NoError(t, err)
	return newTelegram(api, cfg), fake
}

func TestSendTextInlineKeyboard(t *testing.T) {
	tg, fake := newTestTelegram(t, config.BotConfig{})

	id, err := tg.SendText(context.Background(), 7, "hello", chat.Keyboard{
		chat.Row(chat.Button{Label: "Согласен", Data: "consent_agree"}),
		chat.Row(chat.Button{Label: "Записаться", URL: "https://cal.example.com"}),
	})
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	calls := fake.params("sendMessage")
	require.Len(t, calls, 1)
	assert.Equal(t, "7", calls[0]["chat_id"])
	assert.Equal(t, "hello", calls[0]["text"])

	var markup struct {
		InlineKeyboard [][]map[string]string `json:"inline_keyboard"`
	}
	require.NoError(t, json.Unmarshal([]byte(calls[0]["reply_markup"]), &markup))
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, "consent_agree", markup.InlineKeyboard[0][0]["callback_data"])
	assert.Equal(t, "https://cal.example.com", markup.InlineKeyboard[1][0]["url"])
}

func TestSendTextWebAppKeyboardIsReplyKeyboard(t *testing.T) {
	tg, fake := newTestTelegram(t, config.BotConfig{})

	_, err := tg.SendText(context.Background(), 7, "pick", chat.Keyboard{
		chat.Row(chat.Button{Label: "Выбрать время", WebApp: "https://site.example.com/?chat_id=7"}),
	})
	require.NoError(t, err)

	calls := fake.params("sendMessage")
	require.Len(t, calls, 1)

	var markup replyKeyboard
	require.NoError(t, json.Unmarshal([]byte(calls[0]["reply_markup"]), &markup))
	require.Len(t, markup.Keyboard, 1)
	require.NotNil(t, markup.Keyboard[0][0].WebApp)
	assert.Equal(t, "https://site.example.com/?chat_id=7", markup.Keyboard[0][0].WebApp.URL)
	assert.True(t, markup.ResizeKeyboard)
}

func TestSendPhotoByFileIDAndURL(t *testing.T) {
	tg, fake := newTestTelegram(t, config.BotConfig{})

	_, err := tg.SendPhoto(context.Background(), 7, "AgACfile", "QR", nil)
	require.NoError(t, err)
	_, err = tg.SendPhoto(context.Background(), 7, "https://cdn.example.com/qr.png", "QR", nil)
	require.NoError(t, err)

	calls := fake.params("sendPhoto")
	require.Len(t, calls, 2)
	assert.Equal(t, "AgACfile", calls[0]["photo"])
	assert.Equal(t, "https://cdn.example.com/qr.png", calls[1]["photo"])
	assert.Equal(t, "QR", calls[0]["caption"])
	assert.Empty(t, calls[0]["reply_markup"])
}

func TestSendPhotoGroupCaptionsFirstItem(t *testing.T) {
	tg, fake := newTestTelegram(t, config.BotConfig{})

	err := tg.SendPhotoGroup(context.Background(), 7, []string{"a", "b", "c"}, "card")
	require.NoError(t, err)

	calls := fake.params("sendMediaGroup")
	require.Len(t, calls, 1)

	var media []map[string]string
	require.NoError(t, json.Unmarshal([]byte(calls[0]["media"]), &media))
	require.Len(t, media, 3)
	assert.Equal(t, "card", media[0]["caption"])
	assert.Empty(t, media[1]["caption"])
	assert.Equal(t, "b", media[1]["media"])
}

func TestEditMessageDropsButtons(t *testing.T) {
	tg, fake := newTestTelegram(t, config.BotConfig{})

	require.NoError(t, tg.EditMessage(context.Background(), chat.Edit{ChatID: 7, MessageID: 5, Text: "done"}))
	require.NoError(t, tg.EditMessage(context.Background(), chat.Edit{ChatID: 7, MessageID: 6, Text: "paid", Caption: true}))

	text := fake.params("editMessageText")
	require.Len(t, text, 1)
	assert.Equal(t, "done", text[0]["text"])
	assert.JSONEq(t, `{"inline_keyboard":[]}`, text[0]["reply_markup"])

	caption := fake.params("editMessageCaption")
	require.Len(t, caption, 1)
	assert.Equal(t, "paid", caption[0]["caption"])
	assert.Equal(t, "6", caption[0]["message_id"])
}

func TestAnswerCallbackSkipsEmptyID(t *testing.T) {
	tg, fake := newTestTelegram(t, config.BotConfig{})

	require.NoError(t, tg.AnswerCallback(context.Background(), ""))
	require.NoError(t, tg.AnswerCallback(context.Background(), "cb-1"))

	calls := fake.params("answerCallbackQuery")
	require.Len(t, calls, 1)
	assert.Equal(t, "cb-1", calls[0]["callback_query_id"])
}

func TestPollOnceRoutesUpdatesInOrder(t *testing.T) {
	tg, fake := newTestTelegram(t, config.BotConfig{})
	h := &recordingHandler{}
	tg.SetHandler(h)

	fake.updates = `[
		{"update_id": 10, "message": {"message_id": 1, "date": 0, "chat": {"id": 7, "type": "private"}, "text": "first"}},
		{"update_id": 11, "message": {"message_id": 2, "date": 0, "chat": {"id": 7, "type": "private"},
			"web_app_data": {"data": "{\"datetime\":\"2026-03-05T15:30\"}", "button_text": "Выбрать"}}}
	]`

	next, err := tg.pollOnce(0)
	require.NoError(t, err)
	assert.Equal(t, 12, next)

	tg.Wait()
	require.Len(t, h.events, 2)
	assert.Equal(t, chat.EventText, h.events[0].Kind)
	assert.Equal(t, chat.EventWebAppData, h.events[1].Kind)
	assert.Equal(t, `{"datetime":"2026-03-05T15:30"}`, h.events[1].Text)

	calls := fake.params("getUpdates")
	require.Len(t, calls, 1)
	assert.Equal(t, "25", calls[0]["timeout"])
	assert.JSONEq(t, `["message","callback_query"]`, calls[0]["allowed_updates"])
}

func TestWebhookHandlerChecksSecret(t *testing.T) {
	tg := newTelegram(nil, config.BotConfig{Mode: config.BotWebhook, WebhookSecret: "s3cret"})
	h := &recordingHandler{}
	tg.SetHandler(h)
	srv := tg.WebhookHandler()

	body := `{"update_id": 1, "message": {"message_id": 1, "date": 0, "chat": {"id": 9, "type": "private"}, "text": "hi"}}`

	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body))
	req.Header.Set(secretHeader, "wrong")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body))
	req.Header.Set(secretHeader, "s3cret")
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	tg.Wait()
	assert.Equal(t, []string{"hi"}, h.texts(9))
}

func TestWebhookHandlerRejectsGarbage(t *testing.T) {
	tg := newTelegram(nil, config.BotConfig{})
	tg.SetHandler(&recordingHandler{})

	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(`{"update_id":`))
	w := httptest.NewRecorder()
	tg.WebhookHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDispatcherKeepsPerChatOrder(t *testing.T) {
	d := newDispatcher()
	h := &recordingHandler{delay: 2 * time.Millisecond}
	d.setHandler(h)

	var want []string
	for i := 0; i < 20; i++ {
		text := fmt.Sprintf("m%d", i)
		want = append(want, text)
		d.dispatch(chat.Event{ChatID: 1, Text: text})
		d.dispatch(chat.Event{ChatID: 2, Text: text})
	}
	d.wait()

	assert.Equal(t, want, h.texts(1))
	assert.Equal(t, want, h.texts(2))
	assert.False(t, h.overlap)
	assert.Empty(t, d.queues)
}

func TestDispatcherWithoutHandlerDrops(t *testing.T) {
	d := newDispatcher()
	d.dispatch(chat.Event{ChatID: 1})
	d.wait()
	assert.Empty(t, d.queues)
}

type panickingHandler struct{ calls int }

func (p *panickingHandler) Handle(context.Context, chat.Event) error {
	p.calls++
	if p.calls == 1 {
		panic("boom")
	}
	return nil
}

func TestDispatcherSurvivesPanic(t *testing.T) {
	d := newDispatcher()
	h := &panickingHandler{}
	d.setHandler(h)

	d.dispatch(chat.Event{ChatID: 1})
	d.dispatch(chat.Event{ChatID: 1})
	d.wait()

	assert.Equal(t, 2, h.calls)
}
