package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/studiobot/core/outbound"
)

var sample = Lead{
	Kind:           "referral",
	Name:           "Jane Doe",
	Phone:          "919876543210",
	Email:          "jane@x.com",
	City:           "mumbai",
	Detail:         "Asha, 9123456780",
	ConversationID: "919876543210",
	Line:           "1055",
}

func TestFormat(t *testing.T) {
	want := "New customer referral received:\n\n*Details*:\n" +
		"Name: Jane Doe\nPhone Number: 919876543210\nEmail Id:jane@x.com\nCity: mumbai\n" +
		"Referral Details:Asha, 9123456780"
	assert.Equal(t, want, Format(sample))

	join := sample
	join.Kind, join.Detail = "join", ""
	assert.True(t, strings.HasPrefix(Format(join), "New customer demo booking request received:"))
	assert.True(t, strings.HasSuffix(Format(join), "City: mumbai"))

	odd := Lead{Kind: "walk_in", Detail: "x"}
	assert.Contains(t, Format(odd), "New customer walk in received:")
	assert.Contains(t, Format(odd), "\nDetails:x")
}

type fakeDispatcher struct {
	mu   sync.Mutex
	to   []outbound.Recipient
	msgs []outbound.Message
	err  error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, to outbound.Recipient, msgs ...outbound.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.to = append(f.to, to)
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func TestWhatsAppNotifier(t *testing.T) {
	d := &fakeDispatcher{}
	n := WhatsApp{Dispatcher: d, TeamNumber: "910000000000", DefaultLine: "default"}

	require.NoError(t, n.Notify(context.Background(), sample))
	noLine := sample
	noLine.Line = ""
	require.NoError(t, n.Notify(context.Background(), noLine))

	assert.Equal(t, []outbound.Recipient{
		{From: "1055", To: "910000000000"},
		{From: "default", To: "910000000000"},
	}, d.to)
	assert.Equal(t, outbound.Text(Format(sample)), d.msgs[0])

	assert.Error(t, WhatsApp{Dispatcher: d}.Notify(context.Background(), sample))
}

func TestMultiAggregatesFailures(t *testing.T) {
	var calls []string
	sink := func(name string, err error) Named {
		return Named{Name: name, Notifier: NotifierFunc(func(context.Context, Lead) error {
			calls = append(calls, name)
			return err
		})}
	}
	boom := errors.New("boom")
	m := Multi{sink("wa", boom), sink("journal", nil), sink("telegram", errors.New("down"))}

	err := m.Notify(context.Background(), sample)
	require.Error(t, err)
	assert.Equal(t, []string{"wa", "journal", "telegram"}, calls)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "telegram: down")

	assert.NoError(t, Multi{sink("ok", nil)}.Notify(context.Background(), sample))
	assert.NoError(t, Multi{}.Notify(context.Background(), sample))
}

func TestTelegramNotifier(t *testing.T) {
	var got url.Values
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		got = decodeParams(t, r.Header.Get("Content-Type"), body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"chat":{"id":42,"type":"private"},"date":0}}`)
	}))
	defer srv.Close()

	n, err := NewTelegram("123:abc", 42, WithTelegramAPI(srv.URL), WithTelegramClient(srv.Client()))
	require.NoError(t, err)
	require.NoError(t, n.Notify(context.Background(), sample))

	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, "42", got.Get("chat_id"))
	assert.Equal(t, Format(sample), got.Get("text"))
	assert.Equal(t, "Markdown", got.Get("parse_mode"))

	_, err = NewTelegram("", 42)
	assert.Error(t, err)
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `jane\_doe\*x\`+"`"+`y\[z\`, escapeMarkdown("jane_doe*x`y[z\\"))
	assert.Equal(t, "plain text", escapeMarkdown("plain text"))
}

// decodeParams reads the JSON object telebot posts for Bot API calls.
func decodeParams(t *testing.T, contentType string, body []byte) url.Values {
	t.Helper()
	require.True(t, strings.HasPrefix(contentType, "application/json"), contentType)
	var m map[string]string
	require.NoError(t, json.Unmarshal(body, &m))
	out := url.Values{}
	for k, v := range m {
		out.Set(k, v)
	}
	return out
}
