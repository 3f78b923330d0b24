package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Viper is a Config implementation backed by github.com/spf13/viper.
type Viper struct {
	v *viper.Viper
}

// Option customizes how a Viper config is built.
type Option func(*options)

type options struct {
	defaults     map[string]any
	env          bool
	optionalFile bool
}

// WithDefaults registers fallback values for keys absent from every source.
func WithDefaults(defaults map[string]any) Option {
	return func(o *options) {
		o.defaults = defaults
	}
}

// WithEnv lets environment variables override file values. Dots in keys map
// to underscores, so "smtp.host" reads SMTP_HOST.
func WithEnv() Option {
	return func(o *options) {
		o.env = true
	}
}

// WithOptionalFile tolerates a missing config file.
func WithOptionalFile() Option {
	return func(o *options) {
		o.optionalFile = true
	}
}

func newViper(opts []Option) (*viper.Viper, *options) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	v := viper.New()
	for key, val := range o.defaults {
		v.SetDefault(key, val)
	}
	if o.env {
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}

	return v, o
}

// NewViper loads configuration from the given file path and returns a Viper-backed Config.
//
// The config file type is inferred by Viper from the filename extension. The
// file is watched and reloaded on change.
func NewViper(pathFile string, opts ...Option) (*Viper, error) {
	v, o := newViper(opts)
	v.SetConfigFile(pathFile)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if o.optionalFile && (errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound)) {
			slog.Warn("config file not found, using defaults and environment", "path", pathFile)
			return &Viper{v: v}, nil
		}
		return nil, err
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		if err := v.ReadInConfig(); err != nil {
			slog.Error("config reload failed", "path", pathFile, "err", err)
			return
		}
		slog.Info("config success reloaded", "path", pathFile)
	})
	v.WatchConfig()

	return &Viper{v: v}, nil
}

// NewViperFromBytes loads configuration from memory and returns a Viper-backed Config.
// configType should be a format supported by Viper (e.g. "yaml", "json", "toml").
func NewViperFromBytes(configType string, data []byte, opts ...Option) (*Viper, error) {
	if strings.TrimSpace(configType) == "" {
		return nil, errors.New("config type is required")
	}

	v, _ := newViper(opts)
	v.SetConfigType(configType)

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	return &Viper{v: v}, nil
}

// IsSet reports whether key has a value in any source, defaults included.
func (vc *Viper) IsSet(key string) bool {
	return vc.v.IsSet(key)
}

// GetInt returns the value for key as int.
func (vc *Viper) GetInt(key string) int {
	return vc.v.GetInt(key)
}

// GetBool returns the value for key as bool.
func (vc *Viper) GetBool(key string) bool {
	return vc.v.GetBool(key)
}

// GetFloat64 returns the value for key as float64.
func (vc *Viper) GetFloat64(key string) float64 {
	return vc.v.GetFloat64(key)
}

// GetMillisecond returns the value for key as milliseconds.
func (vc *Viper) GetMillisecond(key string) time.Duration {
	return time.Duration(vc.v.GetInt64(key)) * time.Millisecond
}

// GetSecond returns the value for key as seconds.
func (vc *Viper) GetSecond(key string) time.Duration {
	return time.Duration(vc.v.GetInt64(key)) * time.Second
}

// GetString returns the value for key as string.
func (vc *Viper) GetString(key string) string {
	return vc.v.GetString(key)
}

// GetBytes returns the value for key parsed as a binary size.
func (vc *Viper) GetBytes(key string) int64 {
	n, err := units.RAMInBytes(strings.TrimSpace(vc.v.GetString(key)))
	if err != nil {
		return -1
	}
	return n
}

// GetArray returns the value for key split by commas, or the items of a list
// value. Items are trimmed and empty items dropped.
func (vc *Viper) GetArray(key string) []string {
	var items []string
	if list, ok := vc.v.Get(key).([]any); ok {
		items = lo.Map(list, func(item any, _ int) string { return fmt.Sprint(item) })
	} else {
		items = strings.Split(vc.v.GetString(key), ",")
	}

	return lo.Compact(lo.Map(items, func(item string, _ int) string {
		return strings.TrimSpace(item)
	}))
}

// Close implements io.Closer for interface compatibility.
func (vc *Viper) Close() error {
	// No resources to close for ViperConfig; this is just for interface completeness.
	return nil
}
