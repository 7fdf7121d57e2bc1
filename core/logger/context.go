package logger

import (
	"context"
	"strings"
)

type ctxKey int

const (
	keyRID ctxKey = iota
	keyConversation
	keyMessage
)

// WithRID attaches the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if rid == "" {
		return ctx
	}
	return context.WithValue(ctx, keyRID, rid)
}

// WithMessageMeta attaches the conversation id and the provider message id.
// Empty values are left out.
func WithMessageMeta(ctx context.Context, conversationID, messageID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if conversationID != "" {
		ctx = context.WithValue(ctx, keyConversation, conversationID)
	}
	if messageID != "" {
		ctx = context.WithValue(ctx, keyMessage, messageID)
	}
	return ctx
}

func ctxString(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(key).(string)
	return s
}

// contextFields adds correlation fields unless the record already set them.
func contextFields(ctx context.Context, fields map[string]any) {
	set := func(key, val string) {
		if val == "" {
			return
		}
		if _, ok := fields[key]; !ok {
			fields[key] = val
		}
	}
	set("rid", ctxString(ctx, keyRID))
	set("conversation_id", MaskAddress(ctxString(ctx, keyConversation)))
	set("message_id", CompactRID(ctxString(ctx, keyMessage)))
}

// MaskAddress hides the middle of a phone number.
func MaskAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if len(addr) <= 6 {
		return addr
	}
	return addr[:3] + strings.Repeat("*", len(addr)-6) + addr[len(addr)-3:]
}

// CompactRID keeps the last 12 characters of a long id, dropping the wamid. prefix.
func CompactRID(rid string) string {
	rid = strings.TrimPrefix(strings.TrimSpace(rid), "wamid.")
	if len(rid) <= 12 {
		return rid
	}
	return rid[len(rid)-12:]
}
