package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/m3rciful/studiobot/core/logger"
)

// Named labels a sink for logs and errors.
type Named struct {
	Name string
	Notifier
}

// Multi fans a lead out to every sink and aggregates failures.
type Multi []Named

// Notify delivers to every sink even when earlier ones fail.
func (m Multi) Notify(ctx context.Context, lead Lead) error {
	var result *multierror.Error
	for _, sink := range m {
		start := time.Now()
		err := sink.Notify(ctx, lead)
		attrs := []slog.Attr{
			slog.String("status", logger.Status(err)),
			slog.String("kind", lead.Kind),
			slog.String("action", sink.Name),
			slog.Duration("duration", logger.Took(start)),
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", sink.Name, err))
			logger.Warn(ctx, "notify", "notify.sink", append(attrs, slog.String("err", err.Error()))...)
			continue
		}
		logger.Debug(ctx, "notify", "notify.sink", attrs...)
	}
	return result.ErrorOrNil()
}
