package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"paddock/internal/bundle"
	"paddock/internal/catalog"
	"paddock/internal/config"
	"paddock/internal/dispatch"
	"paddock/internal/engine"
	"paddock/internal/inbox"
	"paddock/internal/markers"
	"paddock/internal/session"
	"paddock/internal/testsupport"
)

func newEngine(t *testing.T, cfg *config.Config, runner dispatch.CommandRunner) (*engine.Engine, *bundle.Store) {
	t.Helper()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	idx, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	if runner == nil {
		runner = func(ctx context.Context, name string, args ...string) error { return nil }
	}
	mgr := session.NewManager(cfg, nil, idx,
		session.WithDispatcher(dispatch.NewWithRunner(cfg, nil, runner)),
	)
	return engine.New(cfg, nil, store, inbox.New(cfg, nil), mgr), store
}

func TestRunOnceProcessesAllPendingBundles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	eng, store := newEngine(t, cfg, nil)
	ctx := context.Background()

	testsupport.DropFile(t, cfg.Paths.InboxDir, "2024-03-15_spa_race1_laps.csv")
	testsupport.DropFile(t, cfg.Paths.InboxDir, "2024-03-16_monza_quali_laps.csv")
	testsupport.DropFile(t, cfg.Paths.InboxDir, "pitwall-notes.txt")

	if err := eng.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	for _, key := range []string{"2024-03-15_spa_race1", "2024-03-16_monza_quali", "untagged_session"} {
		if !markers.Exists(cfg.Paths.InboxDir, key) {
			t.Errorf("expected marker for %s", key)
		}
		b, err := store.GetBySessionKey(ctx, key)
		if err != nil {
			t.Fatalf("GetBySessionKey %s: %v", key, err)
		}
		if b == nil || b.Status != bundle.StatusDone {
			t.Errorf("expected %s done, got %+v", key, b)
		}
	}
}

func TestRunOnceReportsFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Transforms.CSVConverter = "convert-telemetry"
	failing := func(ctx context.Context, name string, args ...string) error {
		return context.DeadlineExceeded
	}
	eng, store := newEngine(t, cfg, failing)
	ctx := context.Background()

	testsupport.DropFile(t, cfg.Paths.InboxDir, "2024-03-15_spa_race1_laps.csv")

	if err := eng.RunOnce(ctx); err == nil {
		t.Fatal("expected RunOnce to report the failed bundle")
	}

	b, err := store.GetBySessionKey(ctx, "2024-03-15_spa_race1")
	if err != nil {
		t.Fatalf("GetBySessionKey: %v", err)
	}
	if b == nil || b.Status != bundle.StatusFailed {
		t.Fatalf("expected failed bundle, got %+v", b)
	}
	if b.ErrorMessage == "" {
		t.Fatal("expected error message recorded")
	}
	if markers.Exists(cfg.Paths.InboxDir, "2024-03-15_spa_race1") {
		t.Fatal("expected no marker for failed bundle")
	}
}

func TestStartProcessesDroppedFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Engine.DebounceSeconds = 0
	cfg.Engine.PollInterval = 1
	eng, store := newEngine(t, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer eng.Stop()

	testsupport.DropFile(t, cfg.Paths.InboxDir, "2024-03-15_spa_race1_laps.csv")

	deadline := time.Now().Add(10 * time.Second)
	for {
		b, err := store.GetBySessionKey(ctx, "2024-03-15_spa_race1")
		if err != nil {
			t.Fatalf("GetBySessionKey: %v", err)
		}
		if b != nil && b.Status == bundle.StatusDone {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for bundle completion, state %+v", b)
		}
		time.Sleep(100 * time.Millisecond)
	}

	if !markers.Exists(cfg.Paths.InboxDir, "2024-03-15_spa_race1") {
		t.Fatal("expected completion marker")
	}
}

func TestLateArrivalDuringPassIsReprocessed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Engine.DebounceSeconds = 0
	cfg.Engine.PollInterval = 1
	cfg.Transforms.CSVConverter = "convert-telemetry"

	// The first dispatch drops a second file for the same session and stalls
	// long enough for the watcher to observe it mid-pass.
	var dropOnce sync.Once
	runner := func(ctx context.Context, name string, args ...string) error {
		dropOnce.Do(func() {
			testsupport.DropFile(t, cfg.Paths.InboxDir, "2024-03-15_spa_race1_sectors.csv")
			time.Sleep(3 * time.Second)
		})
		return nil
	}
	eng, store := newEngine(t, cfg, runner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer eng.Stop()

	testsupport.DropFile(t, cfg.Paths.InboxDir, "2024-03-15_spa_race1_laps.csv")

	rawDir := filepath.Join(cfg.Paths.SessionsDir, "2024-03-15_spa_race1", "RAW")
	deadline := time.Now().Add(20 * time.Second)
	for {
		b, err := store.GetBySessionKey(ctx, "2024-03-15_spa_race1")
		if err != nil {
			t.Fatalf("GetBySessionKey: %v", err)
		}
		if b != nil && b.Status == bundle.StatusDone &&
			fileExists(filepath.Join(rawDir, "2024-03-15_spa_race1_sectors.csv")) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for late file to be ingested, state %+v", b)
		}
		time.Sleep(100 * time.Millisecond)
	}

	if !markers.Exists(cfg.Paths.InboxDir, "2024-03-15_spa_race1") {
		t.Fatal("expected completion marker")
	}
	if fileExists(filepath.Join(cfg.Paths.InboxDir, "2024-03-15_spa_race1_sectors.csv")) {
		t.Fatal("expected late file to leave the drop-off")
	}
}

func TestStopLeavesInterruptedBundleRetryable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Engine.DebounceSeconds = 0
	cfg.Engine.PollInterval = 1
	cfg.Transforms.CSVConverter = "convert-telemetry"

	started := make(chan struct{})
	var once sync.Once
	blocking := func(ctx context.Context, name string, args ...string) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	}
	eng, store := newEngine(t, cfg, blocking)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	testsupport.DropFile(t, cfg.Paths.InboxDir, "2024-03-15_spa_race1_laps.csv")

	select {
	case <-started:
	case <-time.After(10 * time.Second):
		eng.Stop()
		t.Fatal("timed out waiting for the pass to start")
	}

	eng.Stop()

	b, err := store.GetBySessionKey(context.Background(), "2024-03-15_spa_race1")
	if err != nil {
		t.Fatalf("GetBySessionKey: %v", err)
	}
	if b == nil || b.Status != bundle.StatusAccumulating {
		t.Fatalf("expected interrupted bundle back in accumulating, got %+v", b)
	}
	if b.ErrorMessage != "" {
		t.Fatalf("shutdown must not record a failure, got %q", b.ErrorMessage)
	}
	if markers.Exists(cfg.Paths.InboxDir, "2024-03-15_spa_race1") {
		t.Fatal("expected no marker for an interrupted pass")
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestRehydrateFlipsMarkedRowsToDone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	eng, store := newEngine(t, cfg, nil)
	ctx := context.Background()

	// A pass died mid-processing for one key; another completed but the
	// daemon crashed before recording done.
	testsupport.ObserveBundle(t, store, "2024-03-15_spa_race1", time.Now().UTC())
	if err := store.MarkProcessing(ctx, "2024-03-15_spa_race1", "pass-1"); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}

	testsupport.ObserveBundle(t, store, "2024-03-16_monza_quali", time.Now().UTC())
	if err := markers.Write(cfg.Paths.InboxDir, "2024-03-16_monza_quali"); err != nil {
		t.Fatalf("markers.Write: %v", err)
	}

	if err := eng.Rehydrate(ctx); err != nil {
		t.Fatalf("Rehydrate: %v", err)
	}

	interrupted, err := store.GetBySessionKey(ctx, "2024-03-15_spa_race1")
	if err != nil {
		t.Fatalf("GetBySessionKey: %v", err)
	}
	if interrupted.Status != bundle.StatusAccumulating {
		t.Fatalf("expected interrupted pass reset, got %s", interrupted.Status)
	}

	completed, err := store.GetBySessionKey(ctx, "2024-03-16_monza_quali")
	if err != nil {
		t.Fatalf("GetBySessionKey: %v", err)
	}
	if completed.Status != bundle.StatusDone {
		t.Fatalf("expected marker-backed row done, got %s", completed.Status)
	}
}
