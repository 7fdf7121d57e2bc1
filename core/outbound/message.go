// Package outbound describes the messages the concierge sends and the
// capabilities used to hand them to a transport.
package outbound

import (
	"context"
	"errors"
	"fmt"
)

// Kind enumerates message shapes.
type Kind string

const (
	// KindText is a plain text message.
	KindText Kind = "text"
	// KindButtons is an interactive reply-button prompt (at most three buttons).
	KindButtons Kind = "buttons"
	// KindList is an interactive single-section list prompt.
	KindList Kind = "list"
)

// MaxButtons is the provider limit for reply buttons.
const MaxButtons = 3

// MaxListRows is the provider limit for list rows.
const MaxListRows = 10

// Option is one selectable button or list row.
type Option struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
}

// Message is a transport-neutral message specification.
type Message struct {
	Kind Kind
	// Body is the text body for every kind.
	Body string
	// Header and Button apply to lists: section title and the label of the open-list button.
	Header  string
	Button  string
	Options []Option
}

// Text builds a plain text message.
func Text(body string) Message {
	return Message{Kind: KindText, Body: body}
}

// Buttons builds a reply-button prompt.
func Buttons(body string, opts ...Option) Message {
	return Message{Kind: KindButtons, Body: body, Options: opts}
}

// List builds a list prompt.
func List(body, header, button string, opts ...Option) Message {
	return Message{Kind: KindList, Body: body, Header: header, Button: button, Options: opts}
}

// Validate checks provider limits.
func (m Message) Validate() error {
	if m.Body == "" {
		return errors.New("outbound: empty body")
	}
	switch m.Kind {
	case KindText:
		return nil
	case KindButtons:
		if len(m.Options) == 0 || len(m.Options) > MaxButtons {
			return fmt.Errorf("outbound: buttons need 1..%d options, got %d", MaxButtons, len(m.Options))
		}
	case KindList:
		if len(m.Options) == 0 || len(m.Options) > MaxListRows {
			return fmt.Errorf("outbound: list needs 1..%d rows, got %d", MaxListRows, len(m.Options))
		}
	default:
		return fmt.Errorf("outbound: unknown kind %q", m.Kind)
	}
	for _, o := range m.Options {
		if o.ID == "" || o.Title == "" {
			return fmt.Errorf("outbound: option %+v needs id and title", o)
		}
	}
	return nil
}

// Recipient addresses a message: From is the business line, To the end user.
type Recipient struct {
	From string
	To   string
}

// Sender delivers a single message synchronously.
type Sender interface {
	Send(ctx context.Context, to Recipient, msg Message) error
}

// Dispatcher hands an ordered batch of messages to the transport.
// Implementations may deliver asynchronously; the order within a batch is preserved.
type Dispatcher interface {
	Dispatch(ctx context.Context, to Recipient, msgs ...Message) error
}
