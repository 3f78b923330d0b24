// Package tempfile removes uploaded attachments from local disk once a
// submission is finished with them.
package tempfile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shandysiswandi/inboxed/internal/form/entity"
	"github.com/shandysiswandi/inboxed/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

var (
	// ErrNoRoots is returned when none of the configured roots can be resolved.
	ErrNoRoots = errors.New("tempfile: no usable cleanup root")

	errNotRegular = errors.New("not a regular file")
	errOutside    = errors.New("outside cleanup roots")
)

type recorder interface {
	Cleanup(removed, failed, abandoned int)
}

type Config struct {
	// Roots are the only directories files may be removed from.
	Roots []string
	// Timeout bounds one Remove call; zero waits for every file.
	Timeout time.Duration
	// Concurrency caps parallel deletions.
	Concurrency int
}

type Cleaner struct {
	roots   []string
	timeout time.Duration
	limit   int
	ins     instrument.Instrumentation
	metrics recorder
}

// New resolves every root to an absolute, symlink-free path. Roots that do not
// exist are skipped with a warning.
func New(cfg Config, ins instrument.Instrumentation, metrics recorder) (*Cleaner, error) {
	roots := make([]string, 0, len(cfg.Roots))
	for _, root := range cfg.Roots {
		resolved, err := resolve(root)
		if err != nil {
			slog.Warn("skipping cleanup root", "root", root, "error", err)
			continue
		}
		roots = append(roots, resolved)
	}
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}

	limit := cfg.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}

	return &Cleaner{
		roots:   roots,
		timeout: cfg.Timeout,
		limit:   limit,
		ins:     ins,
		metrics: metrics,
	}, nil
}

// Remove deletes files concurrently and never fails. A file that is missing,
// not a regular file, or outside the roots counts as a failure.
func (c *Cleaner) Remove(ctx context.Context, files []entity.UploadedFile) entity.CleanupReport {
	report := entity.CleanupReport{Files: len(files)}
	if len(files) == 0 {
		return report
	}

	ctx, span := c.ins.Tracer("form.outbound.tempfile").Start(ctx, "Remove")
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var succeeded, failed atomic.Int64
	done := make(chan struct{})

	go func() {
		defer close(done)

		var g errgroup.Group
		g.SetLimit(c.limit)
		for _, f := range files {
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				if err := c.remove(f.TemporaryPath); err != nil {
					failed.Inc()
					if errors.Is(err, errOutside) {
						slog.WarnContext(ctx, "skipped cleanup for file outside upload directories",
							"original_name", f.OriginalName, "path", f.TemporaryPath)
					} else {
						slog.WarnContext(ctx, "failed to cleanup file",
							"original_name", f.OriginalName, "path", f.TemporaryPath, "error", err)
					}
					return nil
				}
				succeeded.Inc()
				return nil
			})
		}
		//nolint:errcheck // workers never return an error
		g.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	report.Succeeded = int(succeeded.Load())
	report.Failed = int(failed.Load())
	abandoned := report.Files - report.Succeeded - report.Failed
	if abandoned > 0 {
		report.Abandoned = true
		slog.ErrorContext(ctx, "file cleanup abandoned", "pending", abandoned, "error", ctx.Err())
	}

	span.SetAttributes(
		attribute.Int("cleanup.files", report.Files),
		attribute.Int("cleanup.succeeded", report.Succeeded),
		attribute.Int("cleanup.failed", report.Failed),
	)
	slog.InfoContext(ctx, "file cleanup completed",
		"event", "file_cleanup",
		"files", report.Files,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"abandoned", report.Abandoned,
	)
	if c.metrics != nil {
		c.metrics.Cleanup(report.Succeeded, report.Failed, abandoned)
	}

	return report
}

func (c *Cleaner) remove(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	info, err := os.Lstat(abs)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return errNotRegular
	}

	// The file itself is not a link, but a parent directory may be.
	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		return err
	}
	resolved := filepath.Join(dir, filepath.Base(abs))
	if !c.allowed(resolved) {
		return fmt.Errorf("%s: %w", resolved, errOutside)
	}

	return os.Remove(resolved)
}

func (c *Cleaner) allowed(path string) bool {
	for _, root := range c.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || filepath.IsAbs(rel) {
			continue
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return true
	}
	return false
}

func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
