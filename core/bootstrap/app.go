package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/studiobot/core/config"
	"github.com/m3rciful/studiobot/core/conversation"
	"github.com/m3rciful/studiobot/core/flow"
	"github.com/m3rciful/studiobot/core/logger"
	"github.com/m3rciful/studiobot/core/netutil"
	"github.com/m3rciful/studiobot/core/notify"
	"github.com/m3rciful/studiobot/core/outbound"
	"github.com/m3rciful/studiobot/core/sender"
	"github.com/m3rciful/studiobot/core/server"
	"github.com/m3rciful/studiobot/core/session"
	"github.com/m3rciful/studiobot/core/timeout"
	"github.com/m3rciful/studiobot/core/whatsapp"
)

// App holds the wired runtime components.
type App struct {
	cfg *coreconfig.Config
	db  *sqlx.DB

	Service    *conversation.Service
	Webhook    *whatsapp.Webhook
	Dispatcher *sender.Dispatcher
	Notifier   notify.Multi
}

// AppOptions override collaborators, mostly for tests.
type AppOptions struct {
	// Sender replaces the Graph API client.
	Sender outbound.Sender
	// Clock replaces the real timer clock.
	Clock timeout.Clock
	// Telegram passes extra options to the admin-chat notifier.
	Telegram []notify.TelegramOption
}

// Build wires catalog, engine, timers, store, outbound path, notifiers and
// the webhook. db may be nil.
func Build(cfg *coreconfig.Config, db *sqlx.DB, opts AppOptions) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	cat, err := flow.LoadCatalog(cfg.Flow.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: catalog: %w", err)
	}
	engine, err := flow.New(cat)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: engine: %w", err)
	}

	schedOpts := []timeout.Option{timeout.WithContext(logger.Background())}
	if opts.Clock != nil {
		schedOpts = append(schedOpts, timeout.WithClock(opts.Clock))
	}
	sched := timeout.NewScheduler(schedOpts...)
	store := session.NewMemoryStore(engine.Initial(), session.WithOnDelete(func(id string) {
		sched.CancelAll(id)
	}))

	out := opts.Sender
	if out == nil {
		client, err := whatsapp.NewClient(whatsapp.ClientConfig{
			BaseURL:    cfg.WhatsApp.APIBase,
			Version:    cfg.WhatsApp.APIVersion,
			Token:      cfg.WhatsApp.Token,
			HTTPClient: netutil.NewHTTPClient(netutil.ClientOptions{}),
		})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: whatsapp client: %w", err)
		}
		out = client
	}
	dispatcher := sender.NewDispatcher(out, sender.Options{
		QueueSize:    cfg.Dispatcher.QueueSize,
		Workers:      cfg.Dispatcher.Workers,
		MaxRetries:   cfg.Dispatcher.MaxRetries,
		RetryBackoff: time.Duration(cfg.Dispatcher.RetryBackoffMS) * time.Millisecond,
		SyncOnFull:   true,
	})

	sinks, err := buildNotifiers(cfg, db, dispatcher, opts.Telegram)
	if err != nil {
		dispatcher.Close()
		return nil, err
	}

	first, second, expiry := cfg.Session.Durations()
	svc, err := conversation.New(conversation.Deps{
		Store:       store,
		Engine:      engine,
		Scheduler:   sched,
		Dispatcher:  dispatcher,
		Notifier:    sinks,
		Ladder:      conversation.Ladder{FirstReminder: first, SecondReminder: second, Expiry: expiry},
		DefaultLine: cfg.WhatsApp.PhoneNumberID,
	})
	if err != nil {
		dispatcher.Close()
		return nil, fmt.Errorf("bootstrap: conversation: %w", err)
	}

	hook := &whatsapp.Webhook{
		VerifyToken: cfg.WhatsApp.VerifyToken,
		Sink:        whatsapp.SinkFunc(func(ctx context.Context, in whatsapp.Inbound) { svc.Handle(ctx, eventFrom(in)) }),
		Limiter:     whatsapp.NewRateLimiter(time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond),
	}

	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name)
	}
	summary, _ := logger.SummarizeStrings(names, 5)
	logger.Info(logger.Background(), "app", "app.wired",
		slog.String("status", "ok"),
		slog.String("notifiers", summary),
		slog.Int("cities", len(cat.Cities)),
	)

	return &App{cfg: cfg, db: db, Service: svc, Webhook: hook, Dispatcher: dispatcher, Notifier: sinks}, nil
}

func buildNotifiers(cfg *coreconfig.Config, db *sqlx.DB, out outbound.Dispatcher, tgOpts []notify.TelegramOption) (notify.Multi, error) {
	var sinks notify.Multi
	if cfg.WhatsApp.TeamNumber != "" {
		sinks = append(sinks, notify.Named{Name: "whatsapp", Notifier: notify.WhatsApp{
			Dispatcher:  out,
			TeamNumber:  cfg.WhatsApp.TeamNumber,
			DefaultLine: cfg.WhatsApp.PhoneNumberID,
		}})
	}
	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.AdminID, tgOpts...)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: telegram notifier: %w", err)
		}
		sinks = append(sinks, notify.Named{Name: "telegram", Notifier: tg})
	}
	if db != nil {
		sinks = append(sinks, notify.Named{Name: "journal", Notifier: notify.NewJournal(db)})
	}
	return sinks, nil
}

func eventFrom(in whatsapp.Inbound) conversation.Event {
	return conversation.Event{
		ConversationID: in.ConversationID,
		Line:           in.Line,
		MessageID:      in.MessageID,
		Text:           in.Text,
		SelectionID:    in.SelectionID,
	}
}

// ServerOptions describes the HTTP listener for this app.
func (a *App) ServerOptions() server.Options {
	return server.Options{
		Listen:      a.cfg.HTTP.Listen,
		Port:        a.cfg.HTTP.Port,
		WebhookPath: a.cfg.HTTP.WebhookPath,
		Webhook:     a.Webhook,
	}
}

// Close stops timers, drains the outbound queue and closes the database.
func (a *App) Close() error {
	a.Service.Close()
	a.Dispatcher.Close()
	var errs *multierror.Error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("db close: %w", err))
		}
	}
	return errs.ErrorOrNil()
}
