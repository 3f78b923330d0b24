package tempfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shandysiswandi/inboxed/internal/form/entity"
	"github.com/shandysiswandi/inboxed/internal/pkg/instrument"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countRecorder struct {
	removed, failed, abandoned int
}

func (c *countRecorder) Cleanup(removed, failed, abandoned int) {
	c.removed += removed
	c.failed += failed
	c.abandoned += abandoned
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("data"), 0o600))
	return p
}

func newCleaner(t *testing.T, roots ...string) (*Cleaner, *countRecorder) {
	t.Helper()
	rec := &countRecorder{}
	c, err := New(Config{Roots: roots, Concurrency: 2}, instrument.NewNoop(), rec)
	require.NoError(t, err)
	return c, rec
}

func TestCleaner_RemovesFilesUnderRoot(t *testing.T) {
	// Arrange
	root := t.TempDir()
	c, rec := newCleaner(t, root)
	files := []entity.UploadedFile{
		{TemporaryPath: writeFile(t, root, "a"), OriginalName: "a.png"},
		{TemporaryPath: writeFile(t, root, "b"), OriginalName: "b.png"},
		{TemporaryPath: writeFile(t, root, "c"), OriginalName: "c.png"},
	}

	// Act
	report := c.Remove(context.Background(), files)

	// Assert
	assert.Equal(t, entity.CleanupReport{Files: 3, Succeeded: 3}, report)
	for _, f := range files {
		assert.NoFileExists(t, f.TemporaryPath)
	}
	assert.Equal(t, 3, rec.removed)
}

func TestCleaner_RelativePath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "rel")
	t.Chdir(root)
	c, _ := newCleaner(t, ".")

	report := c.Remove(context.Background(), []entity.UploadedFile{{TemporaryPath: "rel"}})

	assert.Equal(t, 1, report.Succeeded)
	assert.NoFileExists(t, filepath.Join(root, "rel"))
}

func TestCleaner_Failures(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	tests := []struct {
		name  string
		setup func(t *testing.T) (path string, keep string)
	}{
		{
			name: "missing file",
			setup: func(t *testing.T) (string, string) {
				return filepath.Join(root, "gone"), ""
			},
		},
		{
			name: "outside roots",
			setup: func(t *testing.T) (string, string) {
				p := writeFile(t, outside, "secret")
				return p, p
			},
		},
		{
			name: "traversal out of root",
			setup: func(t *testing.T) (string, string) {
				p := writeFile(t, outside, "traversal")
				rel, err := filepath.Rel(root, p)
				require.NoError(t, err)
				return filepath.Join(root, rel), p
			},
		},
		{
			name: "symlinked file",
			setup: func(t *testing.T) (string, string) {
				target := writeFile(t, outside, "target")
				link := filepath.Join(root, "link")
				require.NoError(t, os.Symlink(target, link))
				return link, target
			},
		},
		{
			name: "symlinked directory",
			setup: func(t *testing.T) (string, string) {
				target := writeFile(t, outside, "via-dir")
				dirLink := filepath.Join(root, "escape")
				require.NoError(t, os.Symlink(outside, dirLink))
				return filepath.Join(dirLink, "via-dir"), target
			},
		},
		{
			name: "directory",
			setup: func(t *testing.T) (string, string) {
				d := filepath.Join(root, "subdir")
				require.NoError(t, os.Mkdir(d, 0o700))
				return d, d
			},
		},
		{
			name: "root itself",
			setup: func(t *testing.T) (string, string) {
				return root, root
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			c, rec := newCleaner(t, root)
			path, keep := tt.setup(t)

			// Act
			report := c.Remove(context.Background(), []entity.UploadedFile{{TemporaryPath: path, OriginalName: "x"}})

			// Assert
			assert.Equal(t, entity.CleanupReport{Files: 1, Failed: 1}, report)
			assert.Equal(t, 1, rec.failed)
			if keep != "" {
				_, err := os.Stat(keep)
				assert.NoError(t, err, "must not be removed")
			}
		})
	}
}

func TestCleaner_OneFailureDoesNotStopBatch(t *testing.T) {
	root := t.TempDir()
	c, _ := newCleaner(t, root)
	ok := writeFile(t, root, "ok")

	report := c.Remove(context.Background(), []entity.UploadedFile{
		{TemporaryPath: filepath.Join(root, "missing")},
		{TemporaryPath: ok},
	})

	assert.Equal(t, entity.CleanupReport{Files: 2, Succeeded: 1, Failed: 1}, report)
	assert.NoFileExists(t, ok)
}

func TestCleaner_MultipleRoots(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	c, _ := newCleaner(t, first, filepath.Join(t.TempDir(), "does-not-exist"), second)

	report := c.Remove(context.Background(), []entity.UploadedFile{
		{TemporaryPath: writeFile(t, first, "a")},
		{TemporaryPath: writeFile(t, second, "b")},
	})

	assert.Equal(t, 2, report.Succeeded)
}

func TestCleaner_Abandoned(t *testing.T) {
	// Arrange
	root := t.TempDir()
	c, rec := newCleaner(t, root)
	p := writeFile(t, root, "slow")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Act
	report := c.Remove(ctx, []entity.UploadedFile{{TemporaryPath: p}})

	// Assert
	assert.True(t, report.Abandoned)
	assert.Equal(t, 1, report.Files)
	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, 1, rec.abandoned)
}

func TestCleaner_Empty(t *testing.T) {
	c, rec := newCleaner(t, t.TempDir())

	report := c.Remove(context.Background(), nil)

	assert.Equal(t, entity.CleanupReport{}, report)
	assert.Equal(t, countRecorder{}, *rec)
}

func TestNew_NoUsableRoot(t *testing.T) {
	_, err := New(Config{Roots: []string{filepath.Join(t.TempDir(), "nope")}}, instrument.NewNoop(), nil)

	require.ErrorIs(t, err, ErrNoRoots)
}
