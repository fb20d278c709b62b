// Package watcher executes task files dropped into a directory.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ppiankov/scriptforge/internal/reporter"
	"github.com/ppiankov/scriptforge/internal/task"
)

// debounceDefault is the debounce interval for file events.
const debounceDefault = 200 * time.Millisecond

// pollDefault is the polling interval when fsnotify is unavailable.
const pollDefault = 5 * time.Second

// resultSuffix marks result files written next to processed task files.
const resultSuffix = ".result.json"

// ExecFunc runs every task in a task file and returns their results.
// It is injected by the cli package to keep this package free of runner wiring.
type ExecFunc func(ctx context.Context, path string) ([]*task.TaskResult, error)

// Config holds watcher configuration.
type Config struct {
	Dir      string
	PollMode bool // fall back to polling if fsnotify unavailable
	Debounce time.Duration
	ExecFn   ExecFunc
}

// Watcher watches a directory and executes task files as they appear.
type Watcher struct {
	cfg Config
	mu  sync.Mutex // serializes executions
}

// New creates a watcher with validated configuration.
func New(cfg Config) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("watch directory is required")
	}
	if cfg.ExecFn == nil {
		return nil, fmt.Errorf("execution function is required")
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch directory: %s is not a directory", cfg.Dir)
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = debounceDefault
	}
	return &Watcher{cfg: cfg}, nil
}

// Run processes existing task files, then watches for new ones.
// Blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	slog.Info("watcher starting", "dir", w.cfg.Dir, "poll", w.cfg.PollMode)

	if err := w.scanExisting(ctx); err != nil {
		return fmt.Errorf("scan existing: %w", err)
	}
	if w.cfg.PollMode {
		return w.runPollWatcher(ctx)
	}
	return w.runFSWatcher(ctx)
}

// Process executes one task file and writes its result file.
// Files that already have a result are skipped.
func (w *Watcher) Process(ctx context.Context, path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := ResultPath(path)
	if _, err := os.Stat(out); err == nil {
		slog.Debug("already processed", "file", filepath.Base(path))
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	slog.Info("processing task file", "file", filepath.Base(path))
	results, err := w.cfg.ExecFn(ctx, path)
	if err != nil {
		results = append(results, &task.TaskResult{
			TaskID: filepath.Base(path),
			State:  task.StateFailed,
			Error:  err.Error(),
		})
	}
	if err := reporter.WriteJSONResults(results, out); err != nil {
		return err
	}
	slog.Info("task file processed", "file", filepath.Base(path), "results", len(results))
	return nil
}

// scanExisting processes task files already in the directory.
func (w *Watcher) scanExisting(ctx context.Context) error {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !IsTaskFile(e.Name()) {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		path := filepath.Join(w.cfg.Dir, e.Name())
		if err := w.Process(ctx, path); err != nil {
			slog.Error("process existing", "file", e.Name(), "error", err)
		}
	}
	return nil
}

// runFSWatcher watches the directory using fsnotify.
func (w *Watcher) runFSWatcher(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("watch dir: %w", err)
	}

	slog.Info("watching for task files", "mode", "fsnotify", "dir", w.cfg.Dir)

	var mu sync.Mutex
	pending := make(map[string]*time.Timer)

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			for _, t := range pending {
				t.Stop()
			}
			mu.Unlock()
			slog.Info("watcher stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !IsTaskFile(filepath.Base(event.Name)) {
				continue
			}

			// Writers may emit several events per file; the last one wins.
			path := event.Name
			mu.Lock()
			if t, exists := pending[path]; exists {
				t.Stop()
			}
			pending[path] = time.AfterFunc(w.cfg.Debounce, func() {
				if err := w.Process(ctx, path); err != nil {
					slog.Error("process task file", "file", filepath.Base(path), "error", err)
				}
				mu.Lock()
				delete(pending, path)
				mu.Unlock()
			})
			mu.Unlock()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

// runPollWatcher watches the directory using polling.
func (w *Watcher) runPollWatcher(ctx context.Context) error {
	slog.Info("watching for task files", "mode", "poll", "dir", w.cfg.Dir, "interval", pollDefault)

	ticker := time.NewTicker(pollDefault)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("watcher stopped")
			return nil
		case <-ticker.C:
			if err := w.scanExisting(ctx); err != nil {
				slog.Error("poll directory", "error", err)
			}
		}
	}
}

// IsTaskFile reports whether name looks like a task file rather than a result.
func IsTaskFile(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, resultSuffix) {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yml", ".yaml", ".json":
		return true
	}
	return false
}

// ResultPath returns the result file path for a task file. The task file's
// extension is kept so tasks.yml and tasks.json get distinct results.
func ResultPath(path string) string {
	return path + resultSuffix
}
