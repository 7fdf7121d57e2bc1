package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/studiobot/core/config"
	"github.com/m3rciful/studiobot/core/server"
)

type fakeApp struct {
	closed bool
}

func (a *fakeApp) ServerOptions() server.Options { return server.Options{Port: 8080} }
func (a *fakeApp) Close() error                  { a.closed = true; return nil }

func TestRunWiresLifecycle(t *testing.T) {
	t.Setenv("STUDIOBOT_TEST_CONFIG", "from-env.yaml")
	app := &fakeApp{}
	var loaded string
	loggerClosed := false

	err := Run(Options{
		ConfigEnvVar:      "STUDIOBOT_TEST_CONFIG",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (*coreconfig.Config, error) {
			loaded = path
			return &coreconfig.Config{}, nil
		},
		Bootstrap: func(context.Context, *coreconfig.Config) (App, error) { return app, nil },
		ShutdownLogger: func() error {
			loggerClosed = true
			return nil
		},
		Serve: func(ctx context.Context, opts server.Options) error {
			assert.Equal(t, 8080, opts.Port)
			require.NoError(t, opts.OnStart(ctx, "127.0.0.1:8080"))
			return opts.OnStop(ctx)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "from-env.yaml", loaded)
	assert.True(t, app.closed)
	assert.True(t, loggerClosed)
}

func TestRunPropagatesFailures(t *testing.T) {
	err := Run(Options{})
	assert.ErrorContains(t, err, "Bootstrap is required")

	err = Run(Options{
		LoadConfig: func(string) (*coreconfig.Config, error) { return nil, errors.New("bad yaml") },
		Bootstrap:  func(context.Context, *coreconfig.Config) (App, error) { return nil, nil },
	})
	assert.ErrorContains(t, err, "bad yaml")

	err = Run(Options{
		LoadConfig: func(string) (*coreconfig.Config, error) { return &coreconfig.Config{}, nil },
		Bootstrap:  func(context.Context, *coreconfig.Config) (App, error) { return nil, errors.New("no db") },
	})
	assert.ErrorContains(t, err, "no db")
}
