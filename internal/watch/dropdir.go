// Package watch imports grade files dropped into a directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/JonMunkholm/gradebook/internal/core"
)

// Subdirectories of the drop directory that receive processed files.
const (
	UploadedDir = "Uploaded"
	FailedDir   = "Failed"
)

// maxAttempts bounds how often a file whose import failed transiently is
// tried before it is moved to Failed.
const maxAttempts = 5

// Importer is the part of core.Service the watcher needs.
type Importer interface {
	ImportFile(ctx context.Context, up core.Upload) (*core.ImportResult, error)
}

// DropDir imports every supported file that appears in a directory and
// moves it to Uploaded or Failed afterwards.
type DropDir struct {
	dir      string
	debounce time.Duration
	importer Importer
	logger   *slog.Logger
}

// New returns a watcher for dir. Files are imported once no event has been
// seen for them during debounce.
func New(dir string, debounce time.Duration, importer Importer) *DropDir {
	return &DropDir{
		dir:      dir,
		debounce: debounce,
		importer: importer,
		logger:   slog.Default().With("component", "watch", "dir", dir),
	}
}

// Run imports the files already present, then watches for new ones until
// ctx is cancelled.
func (d *DropDir) Run(ctx context.Context) error {
	for _, sub := range []string{UploadedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(d.dir, sub), 0o755); err != nil {
			return fmt.Errorf("create %s directory: %w", sub, err)
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(d.dir); err != nil {
		return fmt.Errorf("watch %s: %w", d.dir, err)
	}

	pending := map[string]time.Time{}
	attempts := map[string]int{}

	// Files created between the sweep and Add are picked up by events.
	for _, name := range d.Sweep(ctx) {
		attempts[name] = 1
		pending[name] = time.Now()
	}
	d.logger.Info("watching drop directory", "debounce", d.debounce)

	ticker := time.NewTicker(tickInterval(d.debounce))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(ev.Name)
			if filepath.Dir(ev.Name) != filepath.Clean(d.dir) || !isSupported(name) {
				continue
			}
			pending[name] = time.Now()

		case <-ticker.C:
			now := time.Now()
			var ready []string
			for name, seen := range pending {
				if now.Sub(seen) >= d.debounce {
					ready = append(ready, name)
					delete(pending, name)
				}
			}
			sort.Strings(ready)
			for _, name := range ready {
				if ctx.Err() != nil {
					return nil
				}
				final := attempts[name]+1 >= maxAttempts
				if d.process(ctx, name, final) {
					attempts[name]++
					pending[name] = time.Now()
					continue
				}
				delete(attempts, name)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			d.logger.Warn("watch error", "error", err)
		}
	}
}

// Sweep imports every supported file currently in the directory, in name
// order. It returns the files left in place after a transient failure.
func (d *DropDir) Sweep(ctx context.Context) []string {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		d.logger.Error("read drop directory", "error", err)
		return nil
	}
	var retry []string
	for _, e := range entries {
		if ctx.Err() != nil {
			return retry
		}
		if e.IsDir() || !isSupported(e.Name()) {
			continue
		}
		if d.process(ctx, e.Name(), false) {
			retry = append(retry, e.Name())
		}
	}
	return retry
}

// process imports one file and moves it out of the drop directory. It
// reports true when the import failed transiently and the file was left in
// place; when final is set such a file goes to Failed instead.
func (d *DropDir) process(ctx context.Context, name string, final bool) bool {
	src := filepath.Join(d.dir, name)
	logger := d.logger.With("file", name)

	data, err := os.ReadFile(src)
	if errors.Is(err, os.ErrNotExist) {
		// Already moved or removed by someone else.
		return false
	}
	if err != nil {
		logger.Error("read dropped file", "error", err)
		d.move(logger, name, FailedDir)
		return false
	}

	result, err := d.importer.ImportFile(ctx, core.Upload{Data: data, FileName: name})
	if err != nil {
		if ctx.Err() != nil {
			// Shutting down: leave the file for the next start.
			return false
		}
		if isTransient(err) && !final {
			logger.Warn("dropped file import will be retried", "error", err)
			return true
		}
		logger.Warn("dropped file import failed", "error", err)
		d.move(logger, name, FailedDir)
		return false
	}

	logger.Info("dropped file imported",
		"import_id", result.ImportID,
		"inserted", result.Inserted,
		"rejected", len(result.Rejected),
	)
	d.move(logger, name, UploadedDir)
	return false
}

// isTransient reports whether a later attempt at the same file may succeed.
func isTransient(err error) bool {
	return errors.Is(err, core.ErrTooManyImports) || errors.Is(err, core.ErrImportFailed)
}

func (d *DropDir) move(logger *slog.Logger, name, sub string) {
	dst := uniquePath(filepath.Join(d.dir, sub, name))
	if err := os.Rename(filepath.Join(d.dir, name), dst); err != nil {
		logger.Error("move dropped file", "to", sub, "error", err)
	}
}

// uniquePath returns path, or path with a timestamp suffix when it exists.
func uniquePath(path string) string {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-" + strconv.FormatInt(time.Now().UnixNano(), 10) + ext
}

func isSupported(name string) bool {
	// Editors and Excel leave hidden and lock files next to the real one.
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

func tickInterval(debounce time.Duration) time.Duration {
	tick := debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	return tick
}
