// Package timeout keeps conversations alive only while the user responds.
//
// Every session owns a set of named timers (at most one per name). Re-arming
// replaces the whole ladder; a callback that was already released by the clock
// re-checks its generation under the conversation guard and aborts if it was
// cancelled or superseded in the meantime.
package timeout

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/m3rciful/studiobot/core/logger"
)

// Action runs when a timer fires. Errors are logged and swallowed.
type Action func(ctx context.Context, id string) error

// Step is one rung of a ladder.
type Step struct {
	Name   string
	Delay  time.Duration
	Action Action
}

// Ladder is the ordered set of timers armed together on activity.
type Ladder []Step

// Validate checks that names are unique and delays strictly increase.
func (l Ladder) Validate() error {
	seen := make(map[string]struct{}, len(l))
	var prev time.Duration
	for i, st := range l {
		if st.Name == "" {
			return fmt.Errorf("timeout: step %d has no name", i)
		}
		if _, dup := seen[st.Name]; dup {
			return fmt.Errorf("timeout: duplicate step %q", st.Name)
		}
		seen[st.Name] = struct{}{}
		if st.Delay <= 0 || st.Delay <= prev {
			return fmt.Errorf("timeout: step %q delay %s must be positive and greater than %s", st.Name, st.Delay, prev)
		}
		if st.Action == nil {
			return fmt.Errorf("timeout: step %q has no action", st.Name)
		}
		prev = st.Delay
	}
	return nil
}

type handle struct {
	timer Timer
	gen   uint64
}

// Scheduler is the per-session timer-handle registry.
type Scheduler struct {
	clock Clock
	guard *Guard

	mu     sync.Mutex
	gen    uint64
	timers map[string]map[string]handle

	baseCtx context.Context
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the real clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithGuard shares the per-conversation guard used by inbound processing so
// fired actions and inbound steps for one id never interleave.
func WithGuard(g *Guard) Option {
	return func(s *Scheduler) {
		if g != nil {
			s.guard = g
		}
	}
}

// WithContext sets the parent context for fired actions.
func WithContext(ctx context.Context) Option {
	return func(s *Scheduler) {
		if ctx != nil {
			s.baseCtx = ctx
		}
	}
}

// NewScheduler builds a Scheduler on the real clock with a private guard.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:   RealClock{},
		guard:   NewGuard(),
		timers:  make(map[string]map[string]handle),
		baseCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Guard exposes the per-conversation guard.
func (s *Scheduler) Guard() *Guard {
	return s.guard
}

// Arm schedules action under name, replacing any timer of the same name.
func (s *Scheduler) Arm(id, name string, delay time.Duration, action Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armLocked(id, name, delay, action)
}

func (s *Scheduler) armLocked(id, name string, delay time.Duration, action Action) {
	set, ok := s.timers[id]
	if !ok {
		set = make(map[string]handle)
		s.timers[id] = set
	}
	if prev, ok := set[name]; ok {
		prev.timer.Stop()
	}
	s.gen++
	gen := s.gen
	t := s.clock.AfterFunc(delay, func() { s.fire(id, name, gen, action) })
	set[name] = handle{timer: t, gen: gen}
}

// Cancel stops the named timer for id. It reports whether one was armed.
func (s *Scheduler) Cancel(id, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.timers[id]
	if !ok {
		return false
	}
	h, ok := set[name]
	if !ok {
		return false
	}
	h.timer.Stop()
	delete(set, name)
	if len(set) == 0 {
		delete(s.timers, id)
	}
	return true
}

// CancelAll stops every timer owned by id and returns how many were armed.
func (s *Scheduler) CancelAll(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelAllLocked(id)
}

func (s *Scheduler) cancelAllLocked(id string) int {
	set, ok := s.timers[id]
	if !ok {
		return 0
	}
	for _, h := range set {
		h.timer.Stop()
	}
	delete(s.timers, id)
	return len(set)
}

// Rearm atomically cancels the previous ladder of id and arms ladder anchored to now.
func (s *Scheduler) Rearm(id string, ladder Ladder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancelled := s.cancelAllLocked(id)
	for _, st := range ladder {
		s.armLocked(id, st.Name, st.Delay, st.Action)
	}
	logger.Debug(s.baseCtx, "session", "timer.rearm",
		slog.String("conversation_id", logger.MaskAddress(id)),
		slog.Int("pending_count", len(ladder)),
		slog.Int("count", cancelled),
	)
}

// Pending lists the armed timer names of id in sorted order.
func (s *Scheduler) Pending(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.timers[id]
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Conversations reports how many ids have at least one armed timer.
func (s *Scheduler) Conversations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every timer. Used on shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.timers {
		s.cancelAllLocked(id)
	}
}

func (s *Scheduler) fire(id, name string, gen uint64, action Action) {
	unlock := s.guard.Lock(id)
	defer unlock()

	s.mu.Lock()
	h, ok := s.timers[id][name]
	if !ok || h.gen != gen {
		s.mu.Unlock()
		logger.Debug(s.baseCtx, "session", "timer.stale",
			slog.String("conversation_id", logger.MaskAddress(id)),
			slog.String("timer", name),
		)
		return
	}
	delete(s.timers[id], name)
	if len(s.timers[id]) == 0 {
		delete(s.timers, id)
	}
	s.mu.Unlock()

	ctx := logger.WithMessageMeta(s.baseCtx, id, "")
	start := time.Now()
	err := run(ctx, id, action)
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("timer", name),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
		logger.Warn(ctx, "session", "timer.fired", attrs...)
		return
	}
	logger.Info(ctx, "session", "timer.fired", attrs...)
}

func run(ctx context.Context, id string, action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "session", "timer.panic",
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("timeout: action panicked: %v", r)
		}
	}()
	return action(ctx, id)
}
