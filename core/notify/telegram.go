package notify

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	tele "gopkg.in/telebot.v4"
)

// Telegram mirrors leads into an admin chat.
type Telegram struct {
	bot  *tele.Bot
	chat *tele.Chat
}

// TelegramOption customises the Telegram notifier.
type TelegramOption func(*tele.Settings)

// WithTelegramAPI points the bot at another Bot API endpoint.
func WithTelegramAPI(url string) TelegramOption {
	return func(s *tele.Settings) { s.URL = url }
}

// WithTelegramClient sets the HTTP client used for Bot API calls.
func WithTelegramClient(c *http.Client) TelegramOption {
	return func(s *tele.Settings) { s.Client = c }
}

// NewTelegram builds an offline bot: it only sends, never polls.
func NewTelegram(token string, adminID int64, opts ...TelegramOption) (*Telegram, error) {
	if token == "" || adminID == 0 {
		return nil, fmt.Errorf("notify: telegram needs token and admin id")
	}
	settings := tele.Settings{Token: token, Offline: true}
	for _, opt := range opts {
		opt(&settings)
	}
	bot, err := tele.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("notify: telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chat: &tele.Chat{ID: adminID}}, nil
}

// Notify implements Notifier. User-typed fields are escaped so a stray
// underscore or asterisk cannot break the Markdown parse.
func (t *Telegram) Notify(_ context.Context, lead Lead) error {
	for _, f := range []*string{&lead.Name, &lead.Phone, &lead.Email, &lead.City, &lead.Detail} {
		*f = escapeMarkdown(*f)
	}
	if _, err := t.bot.Send(t.chat, Format(lead), tele.ModeMarkdown); err != nil {
		return fmt.Errorf("notify: telegram send: %w", err)
	}
	return nil
}

var markdownSpecials = regexp.MustCompile("([_*`\\[])")

// escapeMarkdown escapes the legacy Markdown control characters. A backslash
// cannot be escaped there and is left as is.
func escapeMarkdown(s string) string {
	return markdownSpecials.ReplaceAllString(s, `\$1`)
}
