package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/studiobot/core/flow"
	"github.com/m3rciful/studiobot/core/notify"
	"github.com/m3rciful/studiobot/core/outbound"
	"github.com/m3rciful/studiobot/core/session"
	"github.com/m3rciful/studiobot/core/timeout"
)

const user = "919876543210"

type sentBatch struct {
	to   outbound.Recipient
	msgs []outbound.Message
}

type fakeDispatcher struct {
	mu      sync.Mutex
	batches []sentBatch
	err     error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, to outbound.Recipient, msgs ...outbound.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, sentBatch{to: to, msgs: msgs})
	return f.err
}

func (f *fakeDispatcher) last() sentBatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches[len(f.batches)-1]
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

type fakeNotifier struct {
	mu    sync.Mutex
	leads []notify.Lead
	err   error
	// release, when set, holds every Notify call until it is closed.
	release chan struct{}
	started chan struct{}
}

func (f *fakeNotifier) Notify(ctx context.Context, l notify.Lead) error {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leads = append(f.leads, l)
	return f.err
}

func (f *fakeNotifier) snapshot() []notify.Lead {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Lead(nil), f.leads...)
}

type harness struct {
	svc    *Service
	store  session.Store
	sched  *timeout.Scheduler
	clock  *timeout.ManualClock
	out    *fakeDispatcher
	notes  *fakeNotifier
	engine *flow.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	start := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	clock := timeout.NewManualClock(start)
	sched := timeout.NewScheduler(timeout.WithClock(clock))
	store := session.NewMemoryStore(flow.StateGreeting, session.WithOnDelete(func(id string) { sched.CancelAll(id) }))
	cat, err := flow.DefaultCatalog()
	require.NoError(t, err)
	engine, err := flow.New(cat)
	require.NoError(t, err)

	h := &harness{store: store, sched: sched, clock: clock, out: &fakeDispatcher{}, notes: &fakeNotifier{}, engine: engine}
	h.svc, err = New(Deps{
		Store:       store,
		Engine:      engine,
		Scheduler:   sched,
		Dispatcher:  h.out,
		Notifier:    h.notes,
		Ladder:      Ladder{FirstReminder: 30 * time.Minute, SecondReminder: 60 * time.Minute, Expiry: 65 * time.Minute},
		DefaultLine: "default-line",
		Now:         clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(h.svc.Close)
	return h
}

func (h *harness) say(text string) {
	h.svc.Handle(context.Background(), Event{ConversationID: user, Line: "1055", Text: text})
}

func (h *harness) state(t *testing.T) session.State {
	t.Helper()
	s, ok := h.store.Get(user)
	require.True(t, ok)
	return s.State
}

func TestGreetingArmsLadder(t *testing.T) {
	h := newHarness(t)
	h.say("hi")

	assert.Equal(t, flow.StateCollectingContactInfo, h.state(t))
	assert.Equal(t, []string{TimerExpiry, TimerReminder1, TimerReminder2}, h.sched.Pending(user))
	b := h.out.last()
	assert.Equal(t, outbound.Recipient{From: "1055", To: user}, b.to)
	require.Len(t, b.msgs, 1)
}

func TestNoEndsConversationAndCancelsTimers(t *testing.T) {
	h := newHarness(t)
	for _, in := range []string{"hi", "Name: Jane Doe\nEmail: jane@x.com", "new", "mumbai", "personal"} {
		h.say(in)
	}
	require.Equal(t, flow.StateAwaitingContinue, h.state(t))

	h.say("no")
	_, ok := h.store.Get(user)
	assert.False(t, ok)
	assert.Empty(t, h.sched.Pending(user))
	assert.Equal(t, outbound.Text(h.engine.Catalog().Texts.Farewell), h.out.last().msgs[0])

	sent := h.out.count()
	h.clock.Advance(3 * time.Hour)
	assert.Equal(t, sent, h.out.count())

	h.say("hello")
	assert.Equal(t, flow.StateCollectingContactInfo, h.state(t))
	s, _ := h.store.Get(user)
	assert.Empty(t, s.Field(session.FieldName))
}

func TestRemindersAndExpiry(t *testing.T) {
	h := newHarness(t)
	h.say("hi")
	base := h.out.count()
	texts := h.engine.Catalog().Texts

	h.clock.Advance(30 * time.Minute)
	require.Equal(t, base+1, h.out.count())
	first := h.out.last()
	assert.Equal(t, []outbound.Message{outbound.Text(texts.Reminder1), h.engine.ContinuePrompt()}, first.msgs)
	assert.Equal(t, flow.StateCollectingContactInfo, h.state(t))

	h.clock.Advance(30 * time.Minute)
	assert.Equal(t, outbound.Text(texts.Reminder2), h.out.last().msgs[0])
	assert.Equal(t, flow.StateCollectingContactInfo, h.state(t))

	h.clock.Advance(5 * time.Minute)
	assert.Equal(t, []outbound.Message{outbound.Text(texts.Timeout)}, h.out.last().msgs)
	_, ok := h.store.Get(user)
	assert.False(t, ok)
	assert.Empty(t, h.sched.Pending(user))
	assert.Equal(t, 0, h.svc.Sessions())
}

func TestActivityResetsLadder(t *testing.T) {
	h := newHarness(t)
	h.say("hi")
	h.clock.Advance(20 * time.Minute)
	h.say("Name: Jane\nEmail: jane@x.com")
	sent := h.out.count()

	h.clock.Advance(25 * time.Minute)
	assert.Equal(t, sent, h.out.count(), "first ladder must not fire after rearm")

	h.clock.Advance(5 * time.Minute)
	assert.Equal(t, sent+1, h.out.count())
	assert.Equal(t, flow.StateConfirmingClientStatus, h.state(t))
}

func TestExpiryDeletesEvenWhenDispatchFails(t *testing.T) {
	h := newHarness(t)
	h.say("hi")
	h.out.err = errors.New("provider down")

	h.clock.Advance(65 * time.Minute)
	_, ok := h.store.Get(user)
	assert.False(t, ok)
}

func TestDispatchFailureDoesNotBlockTransition(t *testing.T) {
	h := newHarness(t)
	h.out.err = errors.New("provider down")
	h.say("hi")
	assert.Equal(t, flow.StateCollectingContactInfo, h.state(t))
}

func TestFreeformNotifiesTeam(t *testing.T) {
	h := newHarness(t)
	h.notes.err = errors.New("team unreachable")
	for _, in := range []string{"hi", "Name: Jane Doe\nEmail: jane@x.com", "existing", "bangalore", "raise a concern"} {
		h.say(in)
	}
	require.Equal(t, flow.StateCollectingFreeformInput, h.state(t))

	h.say("Mat was dirty")
	assert.Equal(t, flow.StateAwaitingContinue, h.state(t))
	h.svc.Close()
	leads := h.notes.snapshot()
	require.Len(t, leads, 1)
	assert.Equal(t, notify.Lead{
		Kind:           flow.NoticeConcern,
		Name:           "Jane Doe",
		Phone:          user,
		Email:          "jane@x.com",
		City:           "Bangalore",
		Detail:         "Mat was dirty",
		ConversationID: user,
		Line:           "1055",
		At:             h.clock.Now(),
	}, leads[0])
}

func TestSlowNotifierDoesNotHoldTheTurn(t *testing.T) {
	h := newHarness(t)
	for _, in := range []string{"hi", "Name: Jane Doe\nEmail: jane@x.com", "new", "mumbai"} {
		h.say(in)
	}
	require.Equal(t, flow.StateSelectingClassMode, h.state(t))

	h.notes.started = make(chan struct{}, 1)
	h.notes.release = make(chan struct{})

	done := make(chan struct{})
	go func() {
		h.say("personal")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		close(h.notes.release)
		t.Fatal("turn waited for the team notifier")
	}
	assert.Equal(t, flow.StateAwaitingContinue, h.state(t))

	select {
	case <-h.notes.started:
	case <-time.After(time.Second):
		t.Fatal("notifier never called")
	}
	assert.Empty(t, h.notes.snapshot())

	// the next turn of the same user is not blocked either
	h.say("yes")
	assert.Equal(t, flow.StateMainMenu, h.state(t))

	close(h.notes.release)
	h.svc.Close()
	leads := h.notes.snapshot()
	require.Len(t, leads, 1)
	assert.Equal(t, "Jane Doe", leads[0].Name)
	assert.Equal(t, "Mumbai", leads[0].City)
}

func TestLineFallsBackToDefault(t *testing.T) {
	h := newHarness(t)
	h.svc.Handle(context.Background(), Event{ConversationID: user, Text: "hi"})
	assert.Equal(t, "default-line", h.out.last().to.From)

	h.clock.Advance(30 * time.Minute)
	assert.Equal(t, "default-line", h.out.last().to.From)
}

func TestLadderValidate(t *testing.T) {
	assert.NoError(t, Ladder{time.Minute, 2 * time.Minute, 3 * time.Minute}.Validate())
	assert.Error(t, Ladder{time.Minute, time.Minute, 3 * time.Minute}.Validate())
	assert.Error(t, Ladder{0, time.Minute, 3 * time.Minute}.Validate())
	assert.Error(t, Ladder{time.Minute, 4 * time.Minute, 3 * time.Minute}.Validate())

	_, err := New(Deps{})
	assert.Error(t, err)
}
