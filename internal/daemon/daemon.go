package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"paddock/internal/bundle"
	"paddock/internal/config"
	"paddock/internal/engine"
	"paddock/internal/logging"
)

// Daemon wraps the engine with lifecycle and control operations.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *bundle.Store
	engine *engine.Engine

	lockPath string
	lock     *flock.Flock
	logPath  string

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Health       bundle.HealthSummary
	CarDir       string
	InboxDir     string
	BundleDBPath string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *bundle.Store, logger *slog.Logger, eng *engine.Engine) (*Daemon, error) {
	if cfg == nil || store == nil || eng == nil {
		return nil, errors.New("daemon requires config, store, and engine")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "paddockd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		engine:   eng,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		logPath:  filepath.Join(cfg.Paths.LogDir, "paddock.log"),
	}, nil
}

// Start acquires the daemon lock and launches the ingestion engine.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another paddock daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.engine.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start engine: %w", err)
	}
	d.cancel = cancel

	d.running.Store(true)
	d.logger.Info("paddock daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops the engine and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.engine.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("paddock daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	health, err := d.store.Health(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Running:      d.running.Load(),
		Health:       health,
		CarDir:       d.cfg.Paths.CarDir,
		InboxDir:     d.cfg.Paths.InboxDir,
		BundleDBPath: d.store.Path(),
		LockFilePath: d.lockPath,
	}, nil
}

// ListSessions returns bundle rows filtered by optional statuses.
func (d *Daemon) ListSessions(ctx context.Context, statuses []bundle.Status) ([]*bundle.Bundle, error) {
	return d.store.List(ctx, statuses...)
}

// Retry resets failed bundles (optionally a subset) for reprocessing.
func (d *Daemon) Retry(ctx context.Context, sessionKeys []string) (int64, error) {
	return d.store.Retry(ctx, sessionKeys...)
}

// ClearDone removes done bundle rows from the store.
func (d *Daemon) ClearDone(ctx context.Context) (int64, error) {
	return d.store.ClearDone(ctx)
}
