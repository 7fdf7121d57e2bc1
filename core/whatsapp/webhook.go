package whatsapp

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/m3rciful/studiobot/core/logger"
)

const maxPayload = 1 << 20

// ErrVerifyFailed is reported when the subscription handshake is rejected.
var ErrVerifyFailed = errors.New("whatsapp: webhook verification failed")

// Sink consumes normalised messages.
type Sink interface {
	HandleInbound(ctx context.Context, in Inbound)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, in Inbound)

// HandleInbound calls f.
func (f SinkFunc) HandleInbound(ctx context.Context, in Inbound) { f(ctx, in) }

// Webhook serves the Cloud API callback endpoint.
type Webhook struct {
	VerifyToken string
	Sink        Sink
	Limiter     *RateLimiter
}

// Verify checks the subscription handshake, responding 200 with the challenge
// or 403.
func (w *Webhook) Verify(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()
	if err := w.verify(q.Get("hub.mode"), q.Get("hub.verify_token")); err != nil {
		logger.Warn(ctx, "http", "webhook.verify", slog.String("status", "fail"), slog.Int("http_code", http.StatusForbidden))
		rw.WriteHeader(http.StatusForbidden)
		return
	}
	logger.Info(ctx, "http", "webhook.verify", slog.String("status", "ok"))
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	rw.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(rw, q.Get("hub.challenge"))
}

func (w *Webhook) verify(mode, token string) error {
	if mode != "subscribe" || w.VerifyToken == "" {
		return ErrVerifyFailed
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(w.VerifyToken)) != 1 {
		return ErrVerifyFailed
	}
	return nil
}

// Receive decodes a delivery and hands each user message to the sink in order.
// Responses: 400 for undecodable bodies or a missing phone_number_id, else 200.
func (w *Webhook) Receive(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var payload WebhookPayload
	dec := json.NewDecoder(io.LimitReader(r.Body, maxPayload))
	if err := dec.Decode(&payload); err != nil {
		logger.Warn(ctx, "http", "webhook.decode", slog.String("status", "fail"), slog.String("err", err.Error()))
		rw.WriteHeader(http.StatusBadRequest)
		return
	}
	events, err := Normalize(payload)
	if err != nil {
		logger.Warn(ctx, "http", "webhook.decode", slog.String("status", "fail"), slog.String("err", err.Error()))
		rw.WriteHeader(http.StatusBadRequest)
		return
	}

	for _, in := range events {
		if !w.Limiter.Allow(in.ConversationID) {
			logger.Warn(ctx, "http", "webhook.rate_limit",
				slog.String("conversation_id", logger.MaskAddress(in.ConversationID)),
				slog.Bool("rate_limited", true),
			)
			continue
		}
		if w.Sink != nil {
			w.Sink.HandleInbound(logger.WithMessageMeta(ctx, in.ConversationID, in.MessageID), in)
		}
	}
	logger.Debug(ctx, "http", "webhook.receive", slog.String("status", "ok"), slog.Int("count", len(events)))
	rw.WriteHeader(http.StatusOK)
}
