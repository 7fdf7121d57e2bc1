package notify

import (
	"context"
	"errors"

	"github.com/m3rciful/studiobot/core/outbound"
)

// WhatsApp sends the formatted lead to the team number from the business
// line the customer wrote to.
type WhatsApp struct {
	Dispatcher  outbound.Dispatcher
	TeamNumber  string
	DefaultLine string
}

// Notify implements Notifier.
func (w WhatsApp) Notify(ctx context.Context, lead Lead) error {
	if w.TeamNumber == "" {
		return errors.New("notify: team number not configured")
	}
	from := lead.Line
	if from == "" {
		from = w.DefaultLine
	}
	return w.Dispatcher.Dispatch(ctx, outbound.Recipient{From: from, To: w.TeamNumber}, outbound.Text(Format(lead)))
}
