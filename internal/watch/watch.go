// Package watch loads a YAML monitor configuration and re-applies it whenever
// the file changes on disk.
package watch

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ogulcanaydogan/credit-monitor/pkg/model"
)

const (
	defaultDebounce = 250 * time.Millisecond
	restartBackoff  = time.Second
)

// ApplyFunc installs a parsed configuration, typically monitor.Service.Setup.
type ApplyFunc func(ctx context.Context, cfg *model.Configuration) error

// Watcher applies a monitor configuration file and follows its changes.
type Watcher struct {
	path     string
	apply    ApplyFunc
	debounce time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	lastHash uint64
}

// New creates a Watcher for path. A non-positive debounce uses the default.
func New(path string, apply ApplyFunc, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		path:     path,
		apply:    apply,
		debounce: debounce,
		logger:   logger,
	}
}

// Load reads, validates and applies the file once.
func (w *Watcher) Load(ctx context.Context) error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("read monitor file: %w", err)
	}
	return w.applyBytes(ctx, data)
}

func (w *Watcher) applyBytes(ctx context.Context, data []byte) error {
	h := hashBytes(data)
	w.mu.Lock()
	unchanged := h == w.lastHash
	w.mu.Unlock()
	if unchanged {
		w.logger.Debug("monitor file unchanged, skipping", "path", w.path)
		return nil
	}

	cfg, err := model.ParseYAML(data)
	if err != nil {
		return fmt.Errorf("parse monitor file: %w", err)
	}
	if err := w.apply(ctx, cfg); err != nil {
		return fmt.Errorf("apply monitor file: %w", err)
	}

	w.mu.Lock()
	w.lastHash = h
	w.mu.Unlock()
	w.logger.Info("monitor configuration applied", "path", w.path, "thresholds", len(cfg.Thresholds))
	return nil
}

// Run watches the file's directory until ctx is cancelled. Bursts of events
// are debounced into one reload. A broken watcher is recreated.
func (w *Watcher) Run(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	reload := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, func() {
			if err := w.Load(ctx); err != nil {
				w.logger.Warn("monitor file rejected", "path", w.path, "error", err)
			}
		})
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		fw, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.logger.Debug("watching monitor file", "dir", dir, "file", file)

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = fw.Close()
				return nil
			case ev, ok := <-fw.Events:
				if !ok {
					broken = true
					break
				}
				if strings.EqualFold(filepath.Base(ev.Name), file) &&
					ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					reload()
				}
			case err, ok := <-fw.Errors:
				if !ok {
					broken = true
					break
				}
				w.logger.Warn("watch error", "dir", dir, "error", err)
			}
		}

		_ = fw.Close()
		w.logger.Warn("watcher stopped, restarting", "dir", dir, "backoff", restartBackoff.String())
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(restartBackoff):
		}
	}
}

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
