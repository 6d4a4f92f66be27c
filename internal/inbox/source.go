package inbox

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"paddock/internal/config"
	"paddock/internal/logging"
	"paddock/internal/markers"
)

// Event describes one eligible file appearing in the drop-off directory.
type Event struct {
	Name string
	Path string
}

// Source watches the drop-off directory and emits file arrival events.
type Source struct {
	cfg          *config.Config
	logger       *slog.Logger
	pollInterval time.Duration

	events chan Event

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	seen    map[string]struct{}
}

// New constructs a Source for the configured drop-off directory.
func New(cfg *config.Config, logger *slog.Logger) *Source {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Source{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "inbox"),
		pollInterval: time.Duration(cfg.Engine.PollInterval) * time.Second,
		events:       make(chan Event, 128),
		seen:         make(map[string]struct{}),
	}
}

// Events returns the arrival event stream.
func (s *Source) Events() <-chan Event {
	return s.events
}

// Start begins watching. The polling scan always runs; a filesystem watcher
// is layered on top unless force_poll is set or the watcher cannot be opened.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("inbox source already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	var watcher *fsnotify.Watcher
	if !s.cfg.Engine.ForcePoll {
		w, err := fsnotify.NewWatcher()
		if err == nil {
			err = w.Add(s.cfg.Paths.InboxDir)
		}
		if err != nil {
			if w != nil {
				_ = w.Close()
			}
			s.logger.Warn("filesystem watcher unavailable, falling back to polling",
				logging.Error(err),
				logging.String(logging.FieldEventType, "watch_fallback"),
			)
		} else {
			watcher = w
		}
	}

	s.wg.Add(1)
	go s.pollLoop(runCtx)

	if watcher != nil {
		s.wg.Add(1)
		go s.watchLoop(runCtx, watcher)
	}

	return nil
}

// Stop terminates watching and waits for the loops to exit.
func (s *Source) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// Scan performs one synchronous pass over the drop-off directory, emitting
// events for eligible files not yet seen. Used for the initial sweep at
// startup and by one-shot processing.
func (s *Source) Scan(ctx context.Context) error {
	entries, err := os.ReadDir(s.cfg.Paths.InboxDir)
	if err != nil {
		return err
	}

	present := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !Eligible(name) {
			continue
		}
		present[name] = struct{}{}
	}

	s.mu.Lock()
	for name := range s.seen {
		if _, ok := present[name]; !ok {
			delete(s.seen, name)
		}
	}
	var fresh []string
	for name := range present {
		if _, ok := s.seen[name]; !ok {
			s.seen[name] = struct{}{}
			fresh = append(fresh, name)
		}
	}
	s.mu.Unlock()

	for _, name := range fresh {
		s.emit(ctx, name)
	}
	return nil
}

func (s *Source) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	if err := s.Scan(ctx); err != nil {
		s.logger.Error("initial drop-off scan failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "inbox_scan_failed"),
			logging.String(logging.FieldErrorHint, "check drop-off directory permissions"),
		)
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Scan(ctx); err != nil {
				s.logger.Error("drop-off scan failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "inbox_scan_failed"),
					logging.String(logging.FieldErrorHint, "check drop-off directory permissions"),
				)
			}
		}
	}
}

func (s *Source) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer s.wg.Done()
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			name := filepath.Base(event.Name)
			switch {
			case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
				s.forget(name)
			case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
				if !Eligible(name) {
					continue
				}
				if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
					continue
				}
				if s.markSeen(name) {
					s.emit(ctx, name)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("filesystem watcher error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "watch_error"),
			)
		}
	}
}

// markSeen records the name and reports whether it was newly seen.
func (s *Source) markSeen(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[name]; ok {
		return false
	}
	s.seen[name] = struct{}{}
	return true
}

func (s *Source) forget(name string) {
	s.mu.Lock()
	delete(s.seen, name)
	s.mu.Unlock()
}

func (s *Source) emit(ctx context.Context, name string) {
	evt := Event{Name: name, Path: filepath.Join(s.cfg.Paths.InboxDir, name)}
	select {
	case s.events <- evt:
	case <-ctx.Done():
	}
}

// Eligible reports whether a drop-off entry participates in session bundling.
// Completion markers and the drop-off's own README are infrastructure, not
// session payload.
func Eligible(name string) bool {
	if name == "" || name == "README.md" {
		return false
	}
	if markers.IsMarkerName(name) {
		return false
	}
	if name[0] == '.' {
		return false
	}
	return true
}
