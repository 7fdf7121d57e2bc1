package whatsapp

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deliveryJSON = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "15550000000", "phone_number_id": "1055"},
        "contacts": [{"profile": {"name": "Jane"}, "wa_id": "919876543210"}],
        "messages": [
          {"from": "919876543210", "id": "wamid.A", "timestamp": "1760000000", "type": "text", "text": {"body": "  Hi  "}},
          {"from": "919876543210", "id": "wamid.B", "timestamp": "1760000001", "type": "interactive",
           "interactive": {"type": "button_reply", "button_reply": {"id": "yes", "title": "Yes"}}},
          {"from": "919876543210", "id": "wamid.C", "timestamp": "1760000002", "type": "interactive",
           "interactive": {"type": "list_reply", "list_reply": {"id": "mumbai", "title": "Mumbai"}}},
          {"from": "919876543210", "id": "wamid.D", "timestamp": "1760000003", "type": "image"}
        ]
      }
    }]
  }]
}`

func decode(t *testing.T, raw string) WebhookPayload {
	t.Helper()
	var p WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return p
}

func TestNormalize(t *testing.T) {
	got, err := Normalize(decode(t, deliveryJSON))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, Inbound{
		ConversationID: "919876543210",
		Line:           "1055",
		MessageID:      "wamid.A",
		Text:           "Hi",
		ProfileName:    "Jane",
		SentAt:         time.Unix(1760000000, 0).UTC(),
	}, got[0])
	assert.Equal(t, "Yes", got[1].Text)
	assert.Equal(t, "yes", got[1].SelectionID)
	assert.Equal(t, "Mumbai", got[2].Text)
	assert.Equal(t, "mumbai", got[2].SelectionID)
}

func TestNormalizeStatusOnly(t *testing.T) {
	raw := `{"entry":[{"changes":[{"value":{"metadata":{"phone_number_id":"1055"},"statuses":[{"id":"wamid.X","status":"read"}]}}]}]}`
	got, err := Normalize(decode(t, raw))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNormalizeMissingPhoneNumberID(t *testing.T) {
	_, err := Normalize(decode(t, `{"entry":[{"changes":[{"value":{"messages":[{"from":"1","type":"text","text":{"body":"hi"}}]}}]}]}`))
	assert.ErrorIs(t, err, ErrNoPhoneNumberID)

	_, err = Normalize(WebhookPayload{})
	assert.ErrorIs(t, err, ErrNoPhoneNumberID)
}
