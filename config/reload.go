package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Reloader polls a config file and publishes a new snapshot when it changes.
// Overrides re-applies settings that take precedence over the file, such as
// command-line flags. The model, detection geometry and dry-run mode are read
// once at startup; edits to them take effect on the next start.
type Reloader struct {
	path      string
	store     *Store
	overrides func(*Config)
	logger    *slog.Logger
	modTime   time.Time
	size      int64
}

// NewReloader seeds the reloader with the file's current state so the first
// Check only reports later edits.
func NewReloader(path string, store *Store, overrides func(*Config), logger *slog.Logger) *Reloader {
	r := &Reloader{path: path, store: store, overrides: overrides, logger: logger}
	if fi, err := os.Stat(path); err == nil {
		r.modTime, r.size = fi.ModTime(), fi.Size()
	}
	return r
}

// Check reloads the file if its modification time or size changed. It
// reports whether a new snapshot was published. A file that fails to parse
// leaves the current snapshot in place and is not retried until it changes
// again.
func (r *Reloader) Check() (bool, error) {
	fi, err := os.Stat(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("config: stat %q: %w", r.path, err)
	}
	if fi.ModTime().Equal(r.modTime) && fi.Size() == r.size {
		return false, nil
	}
	r.modTime, r.size = fi.ModTime(), fi.Size()
	loaded, err := Load(r.path)
	if err != nil {
		return false, fmt.Errorf("config: reload %q: %w", r.path, err)
	}
	snap := r.store.Update(func(c *Config) {
		*c = *loaded
		if r.overrides != nil {
			r.overrides(c)
		}
	})
	if r.logger != nil {
		r.logger.Info("config reloaded", "path", r.path, "version", snap.Version)
	}
	return true, nil
}

// Run calls Check every interval until ctx is done.
func (r *Reloader) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if _, err := r.Check(); err != nil && r.logger != nil {
			r.logger.Warn("config reload", "error", err)
		}
	}
}
