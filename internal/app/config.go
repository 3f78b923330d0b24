package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/go-units"
	"github.com/shandysiswandi/inboxed/internal/pkg/config"
)

const (
	defaultConfigPath = "./config/config.yaml"

	warnFileSize = 50 * units.MiB
	warnMaxFiles = 20
)

func defaults() map[string]any {
	return map[string]any{
		"app.name":                             "inboxed",
		"app.env":                              "development",
		"app.version":                          "1.0.0",
		"app.tz":                               "UTC",
		"app.server.http.address":              ":3000",
		"app.server.http.read_timeout_seconds": 15,
		"app.server.http.read_header_timeout_seconds": 5,
		"app.server.http.write_timeout_seconds":       30,
		"app.server.http.idle_timeout_seconds":        60,
		"app.server.shutdown_timeout_seconds":         30,
		"app.server.cors":                             "*",
		"app.server.trust_proxy":                      false,
		"app.server.max_json_bytes":                   "1MB",
		"app.maintenance.endpoints":                   "",

		"smtp.port":                 587,
		"smtp.max_attempts":         3,
		"smtp.retry_base_delay_ms":  200,
		"smtp.timeout_seconds":      15,
		"smtp.send_timeout_seconds": 30,

		"upload.dir":                     filepath.Join(os.TempDir(), "inboxed-uploads"),
		"upload.cleanup_dirs":            "",
		"upload.max_file_size":           "5MB",
		"upload.max_files":               5,
		"upload.allowed_types":           "image/jpeg,image/png,image/webp",
		"upload.sniff_content":           true,
		"upload.max_fields":              50,
		"upload.max_field_size":          "1MB",
		"upload.cleanup_timeout_seconds": 10,
		"upload.cleanup_concurrency":     4,

		"rate_limit.enabled":        true,
		"rate_limit.driver":         "memory",
		"rate_limit.window_seconds": 900,
		"rate_limit.max":            100,

		"redis.url": "redis://localhost:6379/0",

		"instrument.enabled":                 false,
		"instrument.service_name":            "inboxed",
		"instrument.trace_sample_ratio":      1.0,
		"instrument.metric_interval_seconds": 15,
		"instrument.log_level":               "info",
		"instrument.log_mask_fields":         "authorization,smtp_pass,password,cookie",
		"instrument.log_request_body":        false,

		"metrics.enabled": true,
	}
}

func loadConfig() (config.Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}

	return config.NewViper(path, config.WithDefaults(defaults()), config.WithEnv(), config.WithOptionalFile())
}

// validateConfig fails fast on settings the relay cannot run without.
func validateConfig(cfg config.Config) error {
	var errs []error

	for _, key := range []string{"smtp.host", "smtp.user", "smtp.pass", "form.to_email"} {
		if strings.TrimSpace(cfg.GetString(key)) == "" {
			errs = append(errs, fmt.Errorf("missing required config %s (%s)", key, envName(key)))
		}
	}

	if host := cfg.GetString("smtp.host"); host != "" && !strings.Contains(host, ".") {
		errs = append(errs, fmt.Errorf("smtp.host %q appears to be invalid", host))
	}
	if port := cfg.GetInt("smtp.port"); port < 1 || port > 65535 {
		errs = append(errs, errors.New("smtp.port must be between 1 and 65535"))
	}
	if to := cfg.GetString("form.to_email"); to != "" {
		if _, err := mail.ParseAddress(to); err != nil {
			errs = append(errs, fmt.Errorf("form.to_email must be a valid email address: %w", err))
		}
	}

	for _, key := range []string{"upload.max_file_size", "upload.max_field_size", "app.server.max_json_bytes"} {
		if cfg.GetBytes(key) <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive size", key))
		}
	}
	for _, key := range []string{"upload.max_files", "upload.max_fields"} {
		if cfg.GetInt(key) <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}
	if cfg.GetBool("rate_limit.enabled") {
		if cfg.GetInt("rate_limit.max") <= 0 || cfg.GetSecond("rate_limit.window_seconds") <= 0 {
			errs = append(errs, errors.New("rate_limit.max and rate_limit.window_seconds must be positive"))
		}
		if d := cfg.GetString("rate_limit.driver"); d != driverMemory && d != driverRedis {
			errs = append(errs, fmt.Errorf("rate_limit.driver %q is not supported", d))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	if size := cfg.GetBytes("upload.max_file_size"); size > warnFileSize {
		slog.Warn("upload.max_file_size is very large, this may cause memory issues", "max_file_size", units.BytesSize(float64(size)))
	}
	if n := cfg.GetInt("upload.max_files"); n > warnMaxFiles {
		slog.Warn("upload.max_files is very large, this may cause performance issues", "max_files", n)
	}

	return nil
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
