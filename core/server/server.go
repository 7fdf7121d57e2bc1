// Package server exposes the webhook endpoint over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/m3rciful/studiobot/core/logger"
)

// WebhookHandler is the pair of endpoints the Cloud API calls.
type WebhookHandler interface {
	Verify(w http.ResponseWriter, r *http.Request)
	Receive(w http.ResponseWriter, r *http.Request)
}

// Options configure the listener.
type Options struct {
	Listen      string
	Port        int
	WebhookPath string
	Webhook     WebhookHandler

	ShutdownTimeout time.Duration

	OnStart func(ctx context.Context, addr string) error
	OnStop  func(ctx context.Context) error
}

// NewRouter wires the health probe and the webhook routes.
func NewRouter(path string, hook WebhookHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestContext)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))

	if path == "" {
		path = "/webhook"
	}
	r.Get(path, hook.Verify)
	r.Post(path, hook.Receive)
	return r
}

// requestContext carries the request id into the structured logger and logs
// one summary line per request.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logger.WithRID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		status := "ok"
		if code >= http.StatusBadRequest {
			status = "fail"
		}
		attrs := []slog.Attr{
			slog.String("status", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("http_code", code),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", logger.Took(start)),
		}
		if r.URL.Path == "/health" {
			logger.Debug(ctx, "http", "http.request", attrs...)
			return
		}
		logger.Info(ctx, "http", "http.request", attrs...)
	})
}

// Addr joins the listen host and port.
func (o Options) Addr() string {
	return net.JoinHostPort(o.Listen, strconv.Itoa(o.Port))
}

// Run serves until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, opts Options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Webhook == nil {
		return fmt.Errorf("server: nil webhook handler")
	}
	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ln, err := net.Listen("tcp", opts.Addr())
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", opts.Addr(), err)
	}
	srv := &http.Server{
		Handler:           NewRouter(opts.WebhookPath, opts.Webhook),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, ln.Addr().String()); err != nil {
			_ = ln.Close()
			return err
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http", "http.listen",
			slog.String("status", "ok"),
			slog.String("addr", ln.Addr().String()),
			slog.String("path", opts.WebhookPath),
		)
		serveErr <- srv.Serve(ln)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("server: shutdown: %w", err))
	}

	if opts.OnStop != nil {
		if err := opts.OnStop(shutdownCtx); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}
	logger.Info(shutdownCtx, "http", "http.stopped", slog.String("status", logger.Status(runErr)))
	return runErr
}
