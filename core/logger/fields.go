package logger

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

// statusValues are the accepted status values; anything else is logged as is.
var statusValues = map[string]bool{
	"ok":           true,
	"fail":         true,
	"skip":         true,
	"retry":        true,
	"rate_limited": true,
	"cancelled":    true,
}

var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	"conversation_id", "message_id",
	"state", "from_state", "to_state", "intent", "timer", "kind", "action",
	"duration_ms", "messages", "count",
	"method", "path", "http_code", "addr",
	"err", "err_code", "retryable", "attempts", "backoff_ms", "rate_limited",
	"pending_count", "sessions",
}

// levelName maps slog levels to the names used on disk.
func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}

// durationKey renames duration attributes so the unit is part of the key.
func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	default:
		return key + "_ms"
	}
}

// fieldValue converts an attribute to the key and value written out. The
// second result is false for attributes that carry nothing.
func fieldValue(key string, v slog.Value) (string, any, bool) {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		s := strings.TrimSpace(v.String())
		return key, s, s != ""
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		s := x.String()
		return key, s, s != ""
	default:
		return key, fmt.Sprint(x), true
	}
}

// walkAttr flattens groups into dotted keys.
func walkAttr(prefix string, a slog.Attr, fn func(string, slog.Value)) {
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if key == "" {
		key = prefix
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, child := range a.Value.Group() {
			walkAttr(key, child, fn)
		}
		return
	}
	if key != "" {
		fn(key, a.Value)
	}
}

func stringOf(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

// finish fills the mandatory fields of a record.
func finish(fields map[string]any, msg string, json bool) {
	if stringOf(fields, "event") == "" {
		fields["event"] = msg
		if msg == "" {
			fields["event"] = "unknown"
		}
	}
	if stringOf(fields, "component") == "" {
		fields["component"] = "app"
	}
	if s := strings.ToLower(stringOf(fields, "status")); s != "" {
		if statusValues[s] {
			fields["status"] = s
		}
	}
	if rid := stringOf(fields, "rid"); rid != "" {
		if short := CompactRID(rid); short != rid {
			if json {
				fields["rid_full"] = rid
			}
			fields["rid"] = short
		}
	}
}
