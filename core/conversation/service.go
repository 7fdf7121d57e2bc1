// Package conversation drives one inbound event through the session store,
// the reminder ladder and the flow engine, then hands the outcome to the
// outbound dispatcher and the team notifier.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/studiobot/core/flow"
	"github.com/m3rciful/studiobot/core/logger"
	"github.com/m3rciful/studiobot/core/notify"
	"github.com/m3rciful/studiobot/core/outbound"
	"github.com/m3rciful/studiobot/core/session"
	"github.com/m3rciful/studiobot/core/timeout"
)

// Timer names of the reminder ladder.
const (
	TimerReminder1 = "reminder_1"
	TimerReminder2 = "reminder_2"
	TimerExpiry    = "expiry"
)

// Event is a normalised inbound user turn.
type Event struct {
	ConversationID string
	Line           string
	MessageID      string
	Text           string
	SelectionID    string
}

// Ladder holds the reminder and expiry delays.
type Ladder struct {
	FirstReminder  time.Duration
	SecondReminder time.Duration
	Expiry         time.Duration
}

// Validate requires 0 < first < second < expiry.
func (l Ladder) Validate() error {
	if l.FirstReminder <= 0 || l.FirstReminder >= l.SecondReminder || l.SecondReminder >= l.Expiry {
		return fmt.Errorf("conversation: ladder must satisfy 0 < %s < %s < %s", l.FirstReminder, l.SecondReminder, l.Expiry)
	}
	return nil
}

// Deps are the collaborators of a Service. Notifier may be nil.
type Deps struct {
	Store      session.Store
	Engine     *flow.Engine
	Scheduler  *timeout.Scheduler
	Dispatcher outbound.Dispatcher
	Notifier   notify.Notifier
	Ladder     Ladder
	// DefaultLine is used when neither the event nor the session carries one.
	DefaultLine string
	Now         func() time.Time
	// Team notifications are queued and delivered by NotifyWorkers goroutines,
	// each call bounded by NotifyTimeout. Zero values pick defaults.
	NotifyQueue   int
	NotifyWorkers int
	NotifyTimeout time.Duration
}

// Service is the per-event orchestrator.
type Service struct {
	store    session.Store
	engine   *flow.Engine
	sched    *timeout.Scheduler
	out      outbound.Dispatcher
	notices  *noticeQueue
	ladder   timeout.Ladder
	line     string
	now      func() time.Time
}

// New validates deps and builds a Service.
func New(d Deps) (*Service, error) {
	if d.Store == nil || d.Engine == nil || d.Scheduler == nil || d.Dispatcher == nil {
		return nil, errors.New("conversation: store, engine, scheduler and dispatcher are required")
	}
	if err := d.Ladder.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		store:  d.Store,
		engine: d.Engine,
		sched:  d.Scheduler,
		out:    d.Dispatcher,
		line:   d.DefaultLine,
		now:    d.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	texts := d.Engine.Catalog().Texts
	s.ladder = timeout.Ladder{
		{Name: TimerReminder1, Delay: d.Ladder.FirstReminder, Action: s.remind(texts.Reminder1)},
		{Name: TimerReminder2, Delay: d.Ladder.SecondReminder, Action: s.remind(texts.Reminder2)},
		{Name: TimerExpiry, Delay: d.Ladder.Expiry, Action: s.expire},
	}
	if err := s.ladder.Validate(); err != nil {
		return nil, err
	}
	if d.Notifier != nil {
		s.notices = newNoticeQueue(d.Notifier, d.NotifyQueue, d.NotifyWorkers, d.NotifyTimeout)
	}
	return s, nil
}

// Handle processes one event. Events of one conversation are serialised with
// each other and with its timer actions.
func (s *Service) Handle(ctx context.Context, ev Event) {
	id := ev.ConversationID
	if id == "" {
		return
	}
	unlock := s.sched.Guard().Lock(id)
	defer unlock()

	ctx = logger.WithMessageMeta(ctx, id, ev.MessageID)
	start := time.Now()

	cur := s.store.GetOrCreate(id)
	s.sched.Rearm(id, s.ladder)
	res := s.engine.Step(cur, flow.Input{Text: ev.Text, SelectionID: ev.SelectionID})

	next := res.Session
	next.ConversationID = id
	if ev.Line != "" {
		next.Line = ev.Line
	}
	to := s.recipient(next)

	if err := s.out.Dispatch(ctx, to, res.Messages...); err != nil {
		logger.Warn(ctx, "flow", "conversation.dispatch",
			slog.String("status", "fail"),
			slog.Int("messages", len(res.Messages)),
			slog.String("err", err.Error()),
		)
	}
	leads := make([]notify.Lead, 0, len(res.Notices))
	for _, n := range res.Notices {
		leads = append(leads, s.lead(next, n))
	}

	action := "put"
	if res.End {
		action = "delete"
		s.store.Delete(id)
	} else {
		s.store.Put(id, next)
	}
	for _, l := range leads {
		s.notify(ctx, l)
	}

	logger.Info(ctx, "flow", "conversation.step",
		slog.String("status", "ok"),
		slog.String("from_state", string(cur.State)),
		slog.String("to_state", string(next.State)),
		slog.String("intent", res.Rule),
		slog.Int("messages", len(res.Messages)),
		slog.String("action", action),
		slog.Duration("duration", logger.Took(start)),
	)
}

// Sessions reports the number of live sessions.
func (s *Service) Sessions() int {
	return s.store.Len()
}

// Close stops every armed timer and waits for queued team notifications.
func (s *Service) Close() {
	s.sched.Stop()
	if s.notices != nil {
		s.notices.close()
	}
}

func (s *Service) recipient(sess *session.Session) outbound.Recipient {
	from := sess.Line
	if from == "" {
		from = s.line
	}
	return outbound.Recipient{From: from, To: sess.ConversationID}
}

func (s *Service) lead(sess *session.Session, n flow.Notice) notify.Lead {
	city := sess.Field(session.FieldCity)
	if c, ok := s.engine.Catalog().City(city); ok && c.Title != "" {
		city = c.Title
	}
	lead := notify.Lead{
		Kind:           n.Kind,
		Name:           sess.Field(session.FieldName),
		Phone:          sess.Field(session.FieldPhone),
		Email:          sess.Field(session.FieldEmail),
		City:           city,
		Detail:         n.Detail,
		ConversationID: sess.ConversationID,
		Line:           sess.Line,
		At:             s.now(),
	}
	if lead.Phone == "" {
		lead.Phone = sess.ConversationID
	}
	return lead
}

// notify queues lead for the team; delivery never holds up the turn.
func (s *Service) notify(ctx context.Context, lead notify.Lead) {
	if s.notices == nil {
		return
	}
	s.notices.push(ctx, lead)
}

// remind nudges a silent user without touching the session.
func (s *Service) remind(text string) timeout.Action {
	return func(ctx context.Context, id string) error {
		sess, ok := s.store.Get(id)
		if !ok {
			return nil
		}
		return s.out.Dispatch(ctx, s.recipient(sess), outbound.Text(text), s.engine.ContinuePrompt())
	}
}

// expire says goodbye and deletes the session; deletion happens even when
// the farewell cannot be dispatched.
func (s *Service) expire(ctx context.Context, id string) error {
	sess, ok := s.store.Get(id)
	if !ok {
		return nil
	}
	err := s.out.Dispatch(ctx, s.recipient(sess), outbound.Text(s.engine.Catalog().Texts.Timeout))
	s.store.Delete(id)
	logger.Info(ctx, "session", "session.expired",
		slog.String("status", logger.Status(err)),
		slog.String("state", string(sess.State)),
	)
	return err
}
