package notifier_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceSentinel/internal/notifier"
)

const token = "123456:SECRET"

type sentMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// fakeBotAPI records sendMessage calls and serves getUpdates from a script.
type fakeBotAPI struct {
	mu      sync.Mutex
	sent    []sentMessage
	offsets []string
	updates func(offset string) string
	status  int
}

func (f *fakeBotAPI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bot" + token + "/sendMessage":
			var msg sentMessage
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
			f.mu.Lock()
			f.sent = append(f.sent, msg)
			status := f.status
			f.mu.Unlock()
			if status != 0 {
				w.WriteHeader(status)
				return
			}
			_, _ = w.Write([]byte(`{"ok":true}`))
		case "/bot" + token + "/getUpdates":
			offset := r.URL.Query().Get("offset")
			f.mu.Lock()
			f.offsets = append(f.offsets, offset)
			f.mu.Unlock()
			_, _ = w.Write([]byte(f.updates(offset)))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (f *fakeBotAPI) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func TestTelegramNotifier_Send(t *testing.T) {
	t.Parallel()

	api := &fakeBotAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	n := notifier.NewTelegramNotifier(token, "42", "", notifier.WithBaseURL(srv.URL))
	require.NoError(t, n.Send(context.Background(), "<b>hola</b>"))

	msgs := api.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, sentMessage{ChatID: "42", Text: "<b>hola</b>", ParseMode: "HTML"}, msgs[0])
}

func TestTelegramNotifier_SendIsNotRetried(t *testing.T) {
	t.Parallel()

	api := &fakeBotAPI{status: http.StatusBadGateway}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	n := notifier.NewTelegramNotifier(token, "42", "", notifier.WithBaseURL(srv.URL))
	err := n.Send(context.Background(), "hola")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Len(t, api.messages(), 1)
}

func TestTelegramNotifier_ErrorsHideToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	n := notifier.NewTelegramNotifier(token, "42", "", notifier.WithBaseURL(base))
	err := n.Send(context.Background(), "hola")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET")
}

func TestTelegramNotifier_StartPolling(t *testing.T) {
	t.Parallel()

	api := &fakeBotAPI{
		updates: func(offset string) string {
			switch offset {
			case "-1":
				return `{"ok":true,"result":[{"update_id":5,"message":{"text":"/revisar","chat":{"id":42}}}]}`
			case "6":
				return `{"ok":true,"result":[
					{"update_id":6,"message":{"text":"/revisar","chat":{"id":999}}},
					{"update_id":7,"message":{"text":"/revisar@PriceBot","chat":{"id":42}}},
					{"update_id":8,"message":{"text":"hola","chat":{"id":42}}},
					{"update_id":9}
				]}`
			default:
				time.Sleep(20 * time.Millisecond)
				return `{"ok":true,"result":[]}`
			}
		},
	}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	n := notifier.NewTelegramNotifier(token, "42", "", notifier.WithBaseURL(srv.URL))

	var handled atomic.Int32
	var gotName atomic.Value
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.StartPolling(ctx, func(ctx context.Context, cmd notifier.Command, reply notifier.Reply) {
			handled.Add(1)
			gotName.Store(cmd.Name)
			assert.NoError(t, reply(ctx, "ok"))
		})
		close(done)
	}()

	require.Eventually(t, func() bool { return len(api.messages()) == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, int32(1), handled.Load())
	assert.Equal(t, "revisar", gotName.Load())

	msgs := api.messages()
	byChat := map[string]string{}
	for _, m := range msgs {
		byChat[m.ChatID] = m.Text
	}
	assert.Contains(t, byChat["999"], "Acceso denegado")
	assert.Equal(t, "ok", byChat["42"])

	api.mu.Lock()
	offsets := append([]string(nil), api.offsets...)
	api.mu.Unlock()
	require.GreaterOrEqual(t, len(offsets), 3)
	assert.Equal(t, []string{"-1", "6", "10"}, offsets[:3])
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text   string
		want   notifier.Command
		wantOK bool
	}{
		{text: "/revisar", want: notifier.Command{Name: "revisar"}, wantOK: true},
		{text: "  /CHECK@PriceBot  ", want: notifier.Command{Name: "check"}, wantOK: true},
		{text: "/precios ahora mismo", want: notifier.Command{Name: "precios", Args: "ahora mismo"}, wantOK: true},
		{text: "/"},
		{text: "/@bot"},
		{text: "revisar"},
		{text: ""},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.text), func(t *testing.T) {
			t.Parallel()

			got, ok := notifier.ParseCommand(tt.text)
			require.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
