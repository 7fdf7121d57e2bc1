package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/studiobot/core/logger"
	"github.com/m3rciful/studiobot/core/notify"
)

type noticeJob struct {
	ctx  context.Context
	lead notify.Lead
}

// noticeQueue delivers team notifications off the conversation path. A full
// queue drops the lead with a warning instead of stalling the user's turn.
type noticeQueue struct {
	notifier notify.Notifier
	timeout  time.Duration
	jobs     chan noticeJob

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func newNoticeQueue(n notify.Notifier, size, workers int, timeout time.Duration) *noticeQueue {
	if size <= 0 {
		size = 64
	}
	if workers <= 0 {
		workers = 2
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	q := &noticeQueue{notifier: n, timeout: timeout, jobs: make(chan noticeJob, size)}
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker()
	}
	return q
}

// push hands lead over without waiting for delivery. The caller's
// cancellation does not reach the notifier; its values do.
func (q *noticeQueue) push(ctx context.Context, lead notify.Lead) {
	job := noticeJob{ctx: context.WithoutCancel(ctx), lead: lead}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		logger.Warn(ctx, "notify", "notify.dropped", slog.String("kind", lead.Kind), slog.String("reason", "closed"))
		return
	}
	select {
	case q.jobs <- job:
	default:
		logger.Warn(ctx, "notify", "notify.dropped", slog.String("kind", lead.Kind), slog.String("reason", "queue_full"))
	}
}

// close stops accepting leads and waits for queued ones to be delivered.
func (q *noticeQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *noticeQueue) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		q.deliver(job)
	}
}

func (q *noticeQueue) deliver(job noticeJob) {
	ctx, cancel := context.WithTimeout(job.ctx, q.timeout)
	defer cancel()

	start := time.Now()
	err := q.notifier.Notify(ctx, job.lead)
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("kind", job.lead.Kind),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
		logger.Warn(ctx, "notify", "notify.lead", attrs...)
		return
	}
	logger.Info(ctx, "notify", "notify.lead", attrs...)
}
