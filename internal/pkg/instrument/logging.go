package instrument

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const redacted = "***"

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func openLogFile(name string) (*os.File, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o750); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Clean(name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		a.Key = "ts"
	case slog.LevelKey:
		a.Key = "severity"
	case slog.SourceKey:
		if src, ok := a.Value.Any().(*slog.Source); ok {
			if strings.Contains(src.File, "/internal/") {
				relPath := filepath.Join("internal", strings.SplitAfter(src.File, "/internal/")[1])
				return slog.Attr{
					Key:   "file",
					Value: slog.StringValue(fmt.Sprintf("%s:%d", relPath, src.Line)),
				}
			}
			return slog.Attr{}
		}
	}
	return a
}

func initLogging(cfg *Config, lp *sdklog.LoggerProvider, errFile *os.File) {
	handlers := []slog.Handler{slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       parseLevel(cfg.LogLevel),
		AddSource:   true,
		ReplaceAttr: replaceAttr,
	})}
	if errFile != nil {
		handlers = append(handlers, slog.NewJSONHandler(errFile, &slog.HandlerOptions{
			Level:       slog.LevelError,
			AddSource:   true,
			ReplaceAttr: replaceAttr,
		}))
	}
	if lp != nil {
		handlers = append(handlers, otelslog.NewHandler(
			cfg.ServiceName,
			otelslog.WithLoggerProvider(lp),
		))
	}

	var handler slog.Handler = fanout(handlers)
	if len(handlers) == 1 {
		handler = handlers[0]
	}

	mask := lo.Keyify(lo.Compact(lo.Map(cfg.MaskFields, func(f string, _ int) string {
		return strings.ToLower(strings.TrimSpace(f))
	})))
	slog.SetDefault(slog.New(&contextHandler{Handler: handler, service: cfg.ServiceName, mask: mask}))
}

// contextHandler stamps records with the correlation id and service name
// and redacts attributes whose key is in mask, at any depth.
type contextHandler struct {
	slog.Handler
	service string
	mask    map[string]struct{}
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redact(a))
		return true
	})
	if cid := GetCorrelationID(ctx); cid != "" {
		out.AddAttrs(slog.String("_cID", cid))
	}
	out.AddAttrs(slog.String("service", h.service))

	return h.Handler.Handle(ctx, out)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := lo.Map(attrs, func(a slog.Attr, _ int) slog.Attr { return h.redact(a) })
	return &contextHandler{Handler: h.Handler.WithAttrs(redacted), service: h.service, mask: h.mask}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name), service: h.service, mask: h.mask}
}

func (h *contextHandler) redact(a slog.Attr) slog.Attr {
	if h.masked(a.Key) {
		return slog.String(a.Key, redacted)
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		a.Value = slog.GroupValue(lo.Map(a.Value.Group(), func(g slog.Attr, _ int) slog.Attr { return h.redact(g) })...)
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case map[string]any, []any:
			a.Value = slog.AnyValue(h.redactValue(v))
		case map[string]string:
			a.Value = slog.AnyValue(lo.MapEntries(v, func(k, val string) (string, string) {
				if h.masked(k) {
					return k, redacted
				}
				return k, val
			}))
		}
	}
	return a
}

func (h *contextHandler) redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return lo.MapEntries(val, func(k string, inner any) (string, any) {
			if h.masked(k) {
				return k, redacted
			}
			return k, h.redactValue(inner)
		})
	case []any:
		return lo.Map(val, func(inner any, _ int) any { return h.redactValue(inner) })
	default:
		return v
	}
}

func (h *contextHandler) masked(key string) bool {
	_, ok := h.mask[strings.ToLower(key)]
	return ok
}

// fanout sends each record to every handler enabled for its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(f, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return fanout(lo.Map(f, func(h slog.Handler, _ int) slog.Handler { return h.WithAttrs(attrs) }))
}

func (f fanout) WithGroup(name string) slog.Handler {
	return fanout(lo.Map(f, func(h slog.Handler, _ int) slog.Handler { return h.WithGroup(name) }))
}
