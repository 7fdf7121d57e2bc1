// Package sender delivers outbound message batches asynchronously with retries.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/studiobot/core/logger"
	"github.com/m3rciful/studiobot/core/netutil"
	"github.com/m3rciful/studiobot/core/outbound"
)

var (
	// ErrQueueClosed is returned when dispatch is attempted after Close.
	ErrQueueClosed = errors.New("sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the batch was not accepted.
	ErrQueueFull = errors.New("sender: queue full")
)

// Options controls the behaviour of the dispatcher.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on one batch, retries included.
	MaxDuration time.Duration
	// SyncOnFull sends a batch inline when the queue is saturated instead of failing.
	SyncOnFull bool
}

// batch is one Dispatch call. Messages of a batch go out in order and a
// retry resumes from the first undelivered one.
type batch struct {
	ctx  context.Context
	to   outbound.Recipient
	msgs []outbound.Message
}

// Dispatcher implements outbound.Dispatcher on top of a worker pool.
type Dispatcher struct {
	sender outbound.Sender
	opts   Options
	jobs   chan batch

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	sent atomic.Uint64
	errs atomic.Uint64
}

var _ outbound.Dispatcher = (*Dispatcher)(nil)

// NewDispatcher starts the workers, applying defaults to zeroed options.
func NewDispatcher(s outbound.Sender, opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 30 * time.Second
	}

	d := &Dispatcher{
		sender: s,
		opts:   opts,
		jobs:   make(chan batch, opts.QueueSize),
	}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	return d
}

// Dispatch queues msgs for to. The caller's cancellation does not reach the
// queued batch; its values (request id, conversation) do.
func (d *Dispatcher) Dispatch(ctx context.Context, to outbound.Recipient, msgs ...outbound.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	b := batch{ctx: context.WithoutCancel(ctx), to: to, msgs: msgs}

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return ErrQueueClosed
	}
	select {
	case d.jobs <- b:
		d.mu.RUnlock()
		return nil
	default:
	}
	d.mu.RUnlock()

	if !d.opts.SyncOnFull {
		logger.Warn(ctx, "wa", "send.queue_full", slog.Int("messages", len(msgs)))
		return ErrQueueFull
	}
	logger.Warn(ctx, "wa", "send.queue_full", slog.Int("messages", len(msgs)), slog.String("mode", "sync"))
	return d.handle(b)
}

// Sent reports the number of delivered messages.
func (d *Dispatcher) Sent() uint64 {
	return d.sent.Load()
}

// ErrorCount reports the number of batches that were abandoned.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting batches and waits for queued ones to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for b := range d.jobs {
		_ = d.handle(b)
	}
}

func (d *Dispatcher) handle(b batch) error {
	ctx, cancel := context.WithTimeout(b.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	next := 0
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		next, lastErr = d.sendFrom(ctx, b, next)
		if lastErr == nil {
			attrs := []slog.Attr{
				slog.String("status", "ok"),
				slog.String("conversation_id", logger.MaskAddress(b.to.To)),
				slog.Int("messages", len(b.msgs)),
				slog.Duration("duration", logger.Took(start)),
			}
			if attempt > 1 {
				attrs = append(attrs, slog.Int("attempts", attempt))
			}
			logger.Debug(ctx, "wa", "send.batch", attrs...)
			return nil
		}
		if !netutil.ShouldRetry(lastErr) || attempt == attempts {
			break
		}

		delay := d.opts.RetryBackoff * time.Duration(attempt)
		logger.Debug(ctx, "wa", "send.retry",
			slog.Int("attempts", attempt),
			slog.Int64("backoff_ms", delay.Milliseconds()),
			slog.String("err_code", netutil.Classify(lastErr)),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			lastErr = ctx.Err()
			attempt = attempts
		case <-timer.C:
		}
	}

	d.errs.Add(1)
	logger.Error(ctx, "wa", "send.batch",
		slog.String("status", "fail"),
		slog.String("conversation_id", logger.MaskAddress(b.to.To)),
		slog.Int("messages", len(b.msgs)),
		slog.Int("count", next),
		slog.String("err", netutil.Redact(lastErr)),
		slog.String("err_code", netutil.Classify(lastErr)),
		slog.Bool("retryable", netutil.ShouldRetry(lastErr)),
		slog.Duration("duration", logger.Took(start)),
	)
	return fmt.Errorf("sender: %d/%d delivered: %w", next, len(b.msgs), lastErr)
}

// sendFrom delivers b.msgs[from:] and returns the index of the first undelivered message.
func (d *Dispatcher) sendFrom(ctx context.Context, b batch, from int) (int, error) {
	for i := from; i < len(b.msgs); i++ {
		if err := d.sender.Send(ctx, b.to, b.msgs[i]); err != nil {
			return i, err
		}
		d.sent.Add(1)
	}
	return len(b.msgs), nil
}
