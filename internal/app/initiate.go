package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/shandysiswandi/inboxed/internal/pkg/clock"
	"github.com/shandysiswandi/inboxed/internal/pkg/instrument"
	"github.com/shandysiswandi/inboxed/internal/pkg/mail"
	"github.com/shandysiswandi/inboxed/internal/pkg/metrics"
	"github.com/shandysiswandi/inboxed/internal/pkg/ratelimit"
	"github.com/shandysiswandi/inboxed/internal/pkg/router"
	"github.com/shandysiswandi/inboxed/internal/pkg/uid"
	"github.com/shandysiswandi/inboxed/internal/pkg/upload"
	"github.com/shandysiswandi/inboxed/internal/pkg/validator"
)

const (
	driverMemory = "memory"
	driverRedis  = "redis"
)

func (a *App) initInstrument() error {
	ins, err := instrument.New(a.ctx, &instrument.Config{
		Enabled:          a.config.GetBool("instrument.enabled"),
		ServiceName:      a.config.GetString("instrument.service_name"),
		ServiceVersion:   a.config.GetString("app.version"),
		Environment:      a.config.GetString("app.env"),
		OTLPEndpoint:     a.config.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       a.config.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: a.config.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  a.config.GetSecond("instrument.metric_interval_seconds"),
		MaskFields:       a.config.GetArray("instrument.log_mask_fields"),
		LogLevel:         a.config.GetString("instrument.log_level"),
		LogFile:          a.config.GetString("instrument.log_file"),
	})
	if err != nil {
		return err
	}

	a.ins = ins
	return nil
}

func (a *App) initLibraries() error {
	a.clock = clock.New()
	a.uuid = uid.NewUUID()

	v, err := validator.NewV10Validator()
	if err != nil {
		return err
	}
	a.validator = v

	snow, err := uid.NewSnowflake()
	if err != nil {
		return err
	}
	a.uid = snow

	return nil
}

func (a *App) initCache() error {
	if !a.config.GetBool("rate_limit.enabled") || a.config.GetString("rate_limit.driver") != driverRedis {
		return nil
	}

	opt, err := redis.ParseURL(a.config.GetString("redis.url"))
	if err != nil {
		return err
	}

	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		//nolint:errcheck // the ping error is the one worth returning
		rdb.Close()
		return err
	}

	a.cacheConn = rdb
	return nil
}

func (a *App) initRateLimiter() error {
	if !a.config.GetBool("rate_limit.enabled") {
		slog.Warn("rate limiting is disabled")
		return nil
	}

	cfg := ratelimit.Config{
		Max:    a.config.GetInt("rate_limit.max"),
		Window: a.config.GetSecond("rate_limit.window_seconds"),
	}

	if a.cacheConn != nil {
		l, err := ratelimit.NewRedis(a.cacheConn, cfg, a.clock)
		if err != nil {
			return err
		}
		a.limiter = l
		return nil
	}

	l, err := ratelimit.NewMemory(cfg, a.clock)
	if err != nil {
		return err
	}
	a.limiter = l
	return nil
}

func (a *App) initMail() error {
	port := a.config.GetInt("smtp.port")
	secure := port == 465
	if a.config.IsSet("smtp.secure") {
		secure = a.config.GetBool("smtp.secure")
	}
	from := a.config.GetString("smtp.from")
	if from == "" {
		from = a.config.GetString("smtp.user")
	}

	m, err := mail.NewSMTP(mail.SMTPConfig{
		Host:           a.config.GetString("smtp.host"),
		Port:           port,
		Username:       a.config.GetString("smtp.user"),
		Password:       a.config.GetString("smtp.pass"),
		From:           from,
		Secure:         secure,
		Timeout:        a.config.GetSecond("smtp.timeout_seconds"),
		MaxAttempts:    a.config.GetInt("smtp.max_attempts"),
		RetryBaseDelay: a.config.GetMillisecond("smtp.retry_base_delay_ms"),
	})
	if err != nil {
		return err
	}

	a.mail = m
	return nil
}

func (a *App) initUpload() error {
	p, err := upload.New(upload.Config{
		Dir:          a.config.GetString("upload.dir"),
		MaxFileSize:  a.config.GetBytes("upload.max_file_size"),
		MaxFiles:     a.config.GetInt("upload.max_files"),
		AllowedTypes: a.config.GetArray("upload.allowed_types"),
		MaxFields:    a.config.GetInt("upload.max_fields"),
		MaxFieldSize: a.config.GetBytes("upload.max_field_size"),
		SniffContent: a.config.GetBool("upload.sniff_content"),
	})
	if err != nil {
		return err
	}

	a.upload = p
	return nil
}

func (a *App) initMetrics() error {
	if !a.config.GetBool("metrics.enabled") {
		return nil
	}

	reg, err := metrics.New()
	if err != nil {
		return err
	}

	a.metrics = reg
	return nil
}

func (a *App) initHTTPServer() error {
	a.router = router.NewRouter(router.Config{
		Config:     a.config,
		UUID:       a.uuid,
		Instrument: a.ins,
	})

	a.router.GET("/", a.welcome)
	a.router.GET("/health", a.health)
	if a.metrics != nil {
		a.router.GETRaw("/metrics", a.metrics.Handler())
	}

	routerWithCORS := cors.New(cors.Options{
		AllowedOrigins: a.config.GetArray("app.server.cors"),
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{
			router.HeaderCorrelationID,
			"RateLimit-Limit",
			"RateLimit-Remaining",
			"RateLimit-Reset",
			"Retry-After",
		},
	}).Handler(a.router)

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("app.server.http.address"),
		Handler:           routerWithCORS,
		ReadTimeout:       a.config.GetSecond("app.server.http.read_timeout_seconds"),
		ReadHeaderTimeout: a.config.GetSecond("app.server.http.read_header_timeout_seconds"),
		WriteTimeout:      a.config.GetSecond("app.server.http.write_timeout_seconds"),
		IdleTimeout:       a.config.GetSecond("app.server.http.idle_timeout_seconds"),
	}

	return nil
}

func (a *App) initClosers() {
	a.closers = []struct {
		name string
		fn   func(context.Context) error
	}{
		{
			name: "Instrument",
			fn: func(ctx context.Context) error {
				if a.ins == nil {
					return nil
				}
				return a.ins.Shutdown(ctx)
			},
		},
		{
			name: "Redis",
			fn: func(context.Context) error {
				if a.cacheConn == nil {
					return nil
				}
				return a.cacheConn.Close()
			},
		},
		{
			name: "Mail",
			fn: func(context.Context) error {
				if a.mail == nil {
					return nil
				}
				return a.mail.Close()
			},
		},
		{
			name: "Config",
			fn: func(context.Context) error {
				return a.config.Close()
			},
		},
	}
}
