// Package engine drives ingestion: it pumps drop-off arrival events into the
// bundle store, schedules due bundles, and runs processing passes on a
// bounded worker pool with per-session-key serialization.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"paddock/internal/bundle"
	"paddock/internal/classify"
	"paddock/internal/config"
	"paddock/internal/inbox"
	"paddock/internal/logging"
	"paddock/internal/markers"
	"paddock/internal/services"
	"paddock/internal/session"
)

// Engine owns the scheduler loop and worker pool.
type Engine struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *bundle.Store
	source  *inbox.Source
	manager *session.Manager

	debounce   time.Duration
	retryAfter time.Duration
	tick       time.Duration

	sem chan struct{}

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inFlight map[string]struct{}
}

// New constructs an Engine over the given store, event source, and manager.
func New(cfg *config.Config, logger *slog.Logger, store *bundle.Store, source *inbox.Source, manager *session.Manager) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "engine"),
		store:      store,
		source:     source,
		manager:    manager,
		debounce:   time.Duration(cfg.Engine.DebounceSeconds) * time.Second,
		retryAfter: time.Duration(cfg.Engine.ErrorRetryInterval) * time.Second,
		tick:       time.Second,
		sem:        make(chan struct{}, cfg.Engine.WorkerCount),
		inFlight:   make(map[string]struct{}),
	}
}

// Start rehydrates the store, starts the event source, and launches the
// event pump and scheduler loops.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("engine already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.mu.Unlock()

	if err := e.Rehydrate(runCtx); err != nil {
		e.logger.Warn("store rehydration incomplete",
			logging.Error(err),
			logging.String(logging.FieldEventType, "rehydrate_failed"),
			logging.String(logging.FieldErrorHint, "check bundle database access"),
		)
	}

	if err := e.source.Start(runCtx); err != nil {
		cancel()
		e.mu.Lock()
		e.running = false
		e.cancel = nil
		e.mu.Unlock()
		return err
	}

	e.wg.Add(2)
	go e.eventLoop(runCtx)
	go e.scheduleLoop(runCtx)
	return nil
}

// Stop terminates the loops and waits for in-flight passes to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	e.running = false
	e.cancel = nil
	e.mu.Unlock()

	cancel()
	e.source.Stop()
	e.wg.Wait()
}

// Rehydrate reconciles the transient bundle store with the authoritative
// on-disk state: interrupted passes reset to accumulating, and rows whose
// completion marker exists flip to done.
func (e *Engine) Rehydrate(ctx context.Context) error {
	reset, err := e.store.ResetStuckProcessing(ctx)
	if err != nil {
		return err
	}
	if reset > 0 {
		e.logger.Info("reset interrupted bundles",
			logging.Int64("count", reset),
			logging.String(logging.FieldEventType, "rehydrate_reset"),
		)
	}

	keys, err := markers.List(e.cfg.Paths.InboxDir)
	if err != nil {
		return err
	}
	for _, key := range keys {
		b, err := e.store.GetBySessionKey(ctx, key)
		if err != nil {
			return err
		}
		if b == nil || b.Status == bundle.StatusDone {
			continue
		}
		if err := e.store.MarkDone(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) eventLoop(ctx context.Context) {
	defer e.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-e.source.Events():
			key, ok := classify.Classify(evt.Name)
			if !ok {
				e.logger.Warn("file does not classify, left in drop-off",
					logging.String(logging.FieldFile, evt.Name),
					logging.String(logging.FieldEventType, "unclassifiable_file"),
					logging.String(logging.FieldErrorHint, "rename with date_track_tag tokens"),
				)
				continue
			}
			if _, err := e.store.Observe(ctx, key, time.Now().UTC()); err != nil {
				e.logger.Error("failed to record file arrival",
					logging.Error(err),
					logging.String(logging.FieldFile, evt.Name),
					logging.String(logging.FieldSessionKey, key),
					logging.String(logging.FieldEventType, "observe_failed"),
				)
				continue
			}
			e.logger.Debug("file observed",
				logging.String(logging.FieldFile, evt.Name),
				logging.String(logging.FieldSessionKey, key),
			)
		}
	}
}

func (e *Engine) scheduleLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.dispatchDue(ctx)
		}
	}
}

// dispatchDue hands every due bundle to the worker pool, skipping keys that
// already have a pass in flight.
func (e *Engine) dispatchDue(ctx context.Context) {
	due, err := e.store.Due(ctx, time.Now().UTC(), e.debounce, e.retryAfter)
	if err != nil {
		e.logger.Error("failed to fetch due bundles",
			logging.Error(err),
			logging.String(logging.FieldEventType, "due_fetch_failed"),
			logging.String(logging.FieldErrorHint, "check bundle database access"),
		)
		return
	}

	for _, b := range due {
		if !e.claim(b.SessionKey) {
			continue
		}
		select {
		case e.sem <- struct{}{}:
		case <-ctx.Done():
			e.release(b.SessionKey)
			return
		}

		e.wg.Add(1)
		go func(key string) {
			defer e.wg.Done()
			defer func() { <-e.sem }()
			defer e.release(key)
			e.runPass(ctx, key)
		}(b.SessionKey)
	}
}

func (e *Engine) claim(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[key]; busy {
		return false
	}
	e.inFlight[key] = struct{}{}
	return true
}

func (e *Engine) release(key string) {
	e.mu.Lock()
	delete(e.inFlight, key)
	e.mu.Unlock()
}

// runPass executes one processing pass for a session key. Failures are
// recorded on the bundle and never propagate.
func (e *Engine) runPass(ctx context.Context, key string) {
	passID := uuid.NewString()
	passStart := time.Now().UTC()
	passCtx := services.WithRequestID(services.WithSessionKey(ctx, key), passID)
	logger := logging.WithContext(passCtx, e.logger)

	if err := e.store.MarkProcessing(ctx, key, passID); err != nil {
		logger.Error("failed to mark bundle processing",
			logging.Error(err),
			logging.String(logging.FieldEventType, "mark_processing_failed"),
		)
		return
	}

	logger.Info("processing pass started")
	if err := e.manager.Process(passCtx, key); err != nil {
		if errors.Is(err, context.Canceled) {
			// Shutdown, not a failure: the bundle goes back to
			// accumulating and the next run picks it up.
			if markErr := e.store.MarkInterrupted(context.WithoutCancel(ctx), key); markErr != nil {
				logger.Error("failed to reset interrupted bundle",
					logging.Error(markErr),
					logging.String(logging.FieldEventType, "mark_interrupted_failed"),
				)
			}
			logger.Info("processing pass interrupted",
				logging.String(logging.FieldEventType, "pass_interrupted"),
			)
			return
		}
		if markErr := e.store.MarkFailed(ctx, key, err.Error()); markErr != nil {
			logger.Error("failed to record pass failure",
				logging.Error(markErr),
				logging.String(logging.FieldEventType, "mark_failed_failed"),
			)
		}
		logger.Error("processing pass failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "pass_failed"),
		)
		return
	}

	status, err := e.store.Complete(context.WithoutCancel(ctx), key, passStart)
	if err != nil {
		logger.Error("failed to mark bundle done",
			logging.Error(err),
			logging.String(logging.FieldEventType, "mark_done_failed"),
		)
		return
	}
	if status == bundle.StatusAccumulating {
		logger.Info("files arrived during pass, bundle rescheduled",
			logging.String(logging.FieldEventType, "pass_rescheduled"),
		)
		return
	}
	logger.Info("processing pass complete")
}

// RunOnce performs a single synchronous ingestion sweep: every session key
// with pending drop-off files gets one processing pass. Used by one-shot
// mode, which runs without the daemon's scheduler.
func (e *Engine) RunOnce(ctx context.Context) error {
	if err := e.Rehydrate(ctx); err != nil {
		return err
	}

	pending, err := e.pendingKeys()
	if err != nil {
		return err
	}

	var errs []error
	for _, key := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := e.store.Observe(ctx, key, time.Now().UTC()); err != nil {
			errs = append(errs, err)
			continue
		}
		e.runPass(ctx, key)
		b, err := e.store.GetBySessionKey(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if b != nil && b.Status == bundle.StatusFailed {
			errs = append(errs, errors.New(key+": "+b.ErrorMessage))
		}
	}
	return errors.Join(errs...)
}

// pendingKeys enumerates the distinct session keys with eligible drop-off
// files, sorted for stable one-shot ordering.
func (e *Engine) pendingKeys() ([]string, error) {
	names, err := e.listInbox()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var keys []string
	for _, name := range names {
		key, ok := classify.Classify(name)
		if !ok {
			e.logger.Warn("file does not classify, left in drop-off",
				logging.String(logging.FieldFile, name),
				logging.String(logging.FieldEventType, "unclassifiable_file"),
			)
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (e *Engine) listInbox() ([]string, error) {
	entries, err := os.ReadDir(e.cfg.Paths.InboxDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !inbox.Eligible(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}
