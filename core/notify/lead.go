// Package notify delivers team alerts about leads, concerns and feedback.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Lead is the fixed field set carried by every team alert.
type Lead struct {
	Kind           string
	Name           string
	Phone          string
	Email          string
	City           string
	Detail         string
	ConversationID string
	Line           string
	At             time.Time
}

// Notifier delivers a lead to one sink.
type Notifier interface {
	Notify(ctx context.Context, lead Lead) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, lead Lead) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, lead Lead) error {
	return f(ctx, lead)
}

var kindTitles = map[string]string{
	"other_location":    "location enquiry",
	"personal_training": "personal training request",
	"join":              "demo booking request",
	"callback":          "callback request",
	"referral":          "referral",
	"concern":           "concern/complaint",
	"feedback":          "feedback",
}

var detailLabels = map[string]string{
	"other_location": "Location Details",
	"referral":       "Referral Details",
	"concern":        "Concern Details",
	"feedback":       "Feedback Details",
}

// Title is the human wording of the lead kind.
func (l Lead) Title() string {
	if t, ok := kindTitles[l.Kind]; ok {
		return t
	}
	return strings.ReplaceAll(l.Kind, "_", " ")
}

// Format renders the team message.
func Format(l Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New customer %s received:\n\n*Details*:\n", l.Title())
	fmt.Fprintf(&b, "Name: %s\nPhone Number: %s\nEmail Id:%s\nCity: %s", l.Name, l.Phone, l.Email, l.City)
	if l.Detail != "" {
		label, ok := detailLabels[l.Kind]
		if !ok {
			label = "Details"
		}
		fmt.Fprintf(&b, "\n%s:%s", label, l.Detail)
	}
	return b.String()
}
