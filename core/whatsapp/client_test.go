package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/studiobot/core/netutil"
	"github.com/m3rciful/studiobot/core/outbound"
)

type captured struct {
	path string
	auth string
	body map[string]any
}

func newGraph(t *testing.T, status int, reply string) (*Client, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.path = r.URL.Path
		c.auth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &c.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{BaseURL: srv.URL + "/", Version: "v18.0", Token: "EAAB", HTTPClient: srv.Client()})
	require.NoError(t, err)
	return client, c
}

const okReply = `{"messaging_product":"whatsapp","contacts":[{"input":"919876543210","wa_id":"919876543210"}],"messages":[{"id":"wamid.OUT"}]}`

var rcpt = outbound.Recipient{From: "1055", To: "919876543210"}

func TestSendText(t *testing.T) {
	client, got := newGraph(t, http.StatusOK, okReply)
	id, err := client.SendMessage(context.Background(), rcpt, outbound.Text("hello"))
	require.NoError(t, err)

	assert.Equal(t, "wamid.OUT", id)
	assert.Equal(t, "/v18.0/1055/messages", got.path)
	assert.Equal(t, "Bearer EAAB", got.auth)
	assert.Equal(t, "whatsapp", got.body["messaging_product"])
	assert.Equal(t, "919876543210", got.body["to"])
	assert.Equal(t, "text", got.body["type"])
	assert.Equal(t, map[string]any{"body": "hello"}, got.body["text"])
}

func TestSendButtons(t *testing.T) {
	client, got := newGraph(t, http.StatusOK, okReply)
	msg := outbound.Buttons("Do you have more questions?", outbound.Option{ID: "yes", Title: "Yes"}, outbound.Option{ID: "no", Title: "No"})
	require.NoError(t, client.Send(context.Background(), rcpt, msg))

	assert.Equal(t, "interactive", got.body["type"])
	inter := got.body["interactive"].(map[string]any)
	assert.Equal(t, "button", inter["type"])
	assert.Equal(t, map[string]any{"text": "Do you have more questions?"}, inter["body"])
	buttons := inter["action"].(map[string]any)["buttons"].([]any)
	require.Len(t, buttons, 2)
	assert.Equal(t, map[string]any{"type": "reply", "reply": map[string]any{"id": "yes", "title": "Yes"}}, buttons[0])
}

func TestSendList(t *testing.T) {
	client, got := newGraph(t, http.StatusOK, okReply)
	msg := outbound.List("Pick a city", "City", "", outbound.Option{ID: "mumbai", Title: "Mumbai"})
	require.NoError(t, client.Send(context.Background(), rcpt, msg))

	inter := got.body["interactive"].(map[string]any)
	assert.Equal(t, "list", inter["type"])
	assert.Equal(t, map[string]any{"type": "text", "text": "City"}, inter["header"])
	action := inter["action"].(map[string]any)
	assert.Equal(t, "Show Options", action["button"])
	sections := action["sections"].([]any)
	require.Len(t, sections, 1)
	assert.Equal(t, "City", sections[0].(map[string]any)["title"])
}

func TestSendAPIError(t *testing.T) {
	client, _ := newGraph(t, http.StatusInternalServerError, `{"error":{"message":"Service temporarily unavailable","type":"OAuthException","code":2,"fbtrace_id":"T"}}`)
	err := client.Send(context.Background(), rcpt, outbound.Text("x"))
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.Status)
	assert.Equal(t, 2, apiErr.Code)
	assert.True(t, netutil.ShouldRetry(err))

	client, _ = newGraph(t, http.StatusBadRequest, `not json`)
	err = client.Send(context.Background(), rcpt, outbound.Text("x"))
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "not json", apiErr.Message)
	assert.False(t, netutil.ShouldRetry(err))
}

func TestSendRejectsInvalid(t *testing.T) {
	client, _ := newGraph(t, http.StatusOK, okReply)
	assert.Error(t, client.Send(context.Background(), outbound.Recipient{To: "1"}, outbound.Text("x")))
	assert.Error(t, client.Send(context.Background(), rcpt, outbound.Buttons("x")))

	_, err := NewClient(ClientConfig{BaseURL: "http://x", Version: "v18.0"})
	assert.Error(t, err)
}
