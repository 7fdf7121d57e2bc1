package whatsapp

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrNoPhoneNumberID marks a delivery without metadata.phone_number_id.
var ErrNoPhoneNumberID = errors.New("whatsapp: phone_number_id missing")

// Inbound is a normalised user message.
type Inbound struct {
	ConversationID string
	// Line is the business phone-number id the user wrote to.
	Line      string
	MessageID string
	// Text is the typed body, or the title of the selected option.
	Text        string
	SelectionID string
	ProfileName string
	SentAt      time.Time
}

// Normalize flattens a webhook delivery into user messages. Status updates
// and unsupported message types are skipped. A delivery whose first change
// carries no phone_number_id is rejected.
func Normalize(p WebhookPayload) ([]Inbound, error) {
	var out []Inbound
	seenLine := false
	for _, entry := range p.Entry {
		for _, ch := range entry.Changes {
			line := ch.Value.Metadata.PhoneNumberID
			if line == "" {
				if !seenLine {
					return nil, ErrNoPhoneNumberID
				}
				continue
			}
			seenLine = true
			names := make(map[string]string, len(ch.Value.Contacts))
			for _, c := range ch.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, m := range ch.Value.Messages {
				in, ok := normalizeMessage(m)
				if !ok {
					continue
				}
				in.Line = line
				in.ProfileName = names[m.From]
				out = append(out, in)
			}
		}
	}
	if !seenLine {
		return nil, ErrNoPhoneNumberID
	}
	return out, nil
}

func normalizeMessage(m Message) (Inbound, bool) {
	in := Inbound{ConversationID: m.From, MessageID: m.ID, SentAt: parseUnix(m.Timestamp)}
	if m.From == "" {
		return in, false
	}
	switch m.Type {
	case "text":
		if m.Text == nil {
			return in, false
		}
		in.Text = strings.TrimSpace(m.Text.Body)
	case "interactive":
		if m.Interactive == nil {
			return in, false
		}
		r := m.Interactive.ButtonReply
		if r == nil {
			r = m.Interactive.ListReply
		}
		if r == nil {
			return in, false
		}
		in.Text, in.SelectionID = r.Title, r.ID
	case "button":
		if m.Button == nil {
			return in, false
		}
		in.Text, in.SelectionID = m.Button.Text, m.Button.Payload
	default:
		return in, false
	}
	return in, in.Text != "" || in.SelectionID != ""
}

func parseUnix(s string) time.Time {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil || sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
