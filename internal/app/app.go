package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/inboxed/internal/pkg/clock"
	"github.com/shandysiswandi/inboxed/internal/pkg/config"
	"github.com/shandysiswandi/inboxed/internal/pkg/instrument"
	"github.com/shandysiswandi/inboxed/internal/pkg/mail"
	"github.com/shandysiswandi/inboxed/internal/pkg/metrics"
	"github.com/shandysiswandi/inboxed/internal/pkg/ratelimit"
	"github.com/shandysiswandi/inboxed/internal/pkg/router"
	"github.com/shandysiswandi/inboxed/internal/pkg/uid"
	"github.com/shandysiswandi/inboxed/internal/pkg/upload"
	"github.com/shandysiswandi/inboxed/internal/pkg/validator"
	"go.uber.org/atomic"
)

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx       context.Context
	cancel    context.CancelFunc
	startedAt time.Time
	serveErr  atomic.Error

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	validator validator.Validator
	clock     clock.Clocker
	uid       uid.NumberID
	uuid      uid.StringID

	// resources
	cacheConn redis.UniversalClient
	limiter   ratelimit.Limiter
	mail      mail.Mail
	upload    *upload.Parser
	metrics   *metrics.Registry

	// server
	router     *router.Router
	httpServer *http.Server

	//
	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New loads configuration, initializes the application and returns an App
// instance. Any failure is fatal.
func New() *App {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("failed to init config", "error", err)
		os.Exit(1)
	}

	//nolint:errcheck,gosec // ignore error
	os.Setenv("TZ", cfg.GetString("app.tz"))

	app, err := newApp(cfg)
	if err != nil {
		slog.Error("failed to init application", "error", err)
		os.Exit(1)
	}

	return app
}

func newApp(cfg config.Config) (*App, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:       ctx,
		cancel:    cancel,
		startedAt: time.Now(),
		config:    cfg,
	}
	app.initClosers()

	steps := []struct {
		name string
		fn   func() error
	}{
		{name: "instrument", fn: app.initInstrument},
		{name: "libraries", fn: app.initLibraries},
		{name: "cache", fn: app.initCache},
		{name: "rate limiter", fn: app.initRateLimiter},
		{name: "mail", fn: app.initMail},
		{name: "upload", fn: app.initUpload},
		{name: "metrics", fn: app.initMetrics},
		{name: "http server", fn: app.initHTTPServer},
		{name: "modules", fn: app.initModules},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			app.close(context.Background())
			cancel()
			return nil, fmt.Errorf("failed to init %s: %w", step.name, err)
		}
	}

	return app, nil
}
