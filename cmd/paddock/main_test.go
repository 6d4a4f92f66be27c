package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"paddock/internal/bundle"
	"paddock/internal/catalog"
	"paddock/internal/config"
	"paddock/internal/daemon"
	"paddock/internal/dispatch"
	"paddock/internal/engine"
	"paddock/internal/inbox"
	"paddock/internal/ipc"
	"paddock/internal/session"
	"paddock/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *bundle.Store
	socketPath string
	configPath string
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	configPath := filepath.Join(filepath.Dir(cfg.Paths.CarDir), "config.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	idx, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	noop := func(ctx context.Context, name string, args ...string) error { return nil }
	mgr := session.NewManager(cfg, nil, idx,
		session.WithDispatcher(dispatch.NewWithRunner(cfg, nil, noop)),
	)
	eng := engine.New(cfg, nil, store, inbox.New(cfg, nil), mgr)
	d, err := daemon.New(cfg, store, nil, eng)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := filepath.Join(cfg.Paths.LogDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, nil)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		socketPath: socketPath,
		configPath: configPath,
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q:\n%s", substr, output)
	}
}

func TestCLIStatusAndSessions(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	testsupport.ObserveBundle(t, env.store, "2024-03-15_spa_race1", time.Now().UTC())
	testsupport.ObserveBundle(t, env.store, "2024-03-16_monza_quali", time.Now().UTC())
	if err := env.store.MarkFailed(ctx, "2024-03-16_monza_quali", "converter exited 1"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "accumulating")
	requireContains(t, out, "failed")

	out, _, err = runCLI(t, []string{"sessions"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	requireContains(t, out, "2024-03-15_spa_race1")
	requireContains(t, out, "2024-03-16_monza_quali")

	out, _, err = runCLI(t, []string{"sessions", "--status", "failed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("sessions --status failed: %v", err)
	}
	requireContains(t, out, "2024-03-16_monza_quali")
	if strings.Contains(out, "2024-03-15_spa_race1") {
		t.Fatalf("expected filter to drop accumulating row:\n%s", out)
	}
}

func TestCLIRetry(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	testsupport.ObserveBundle(t, env.store, "2024-03-15_spa_race1", time.Now().UTC())
	if err := env.store.MarkFailed(ctx, "2024-03-15_spa_race1", "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	out, _, err := runCLI(t, []string{"retry"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	requireContains(t, out, "Queued 1 bundle(s)")

	out, _, err = runCLI(t, []string{"retry"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("second retry: %v", err)
	}
	requireContains(t, out, "No failed bundles")
}

func TestCLIConfigInitAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	tmp := t.TempDir()
	target := filepath.Join(tmp, "config.toml")
	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	out, _, err = runCLI(t, []string{"config", "show"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, env.cfg.Paths.InboxDir)
}

func TestCLINewSession(t *testing.T) {
	env := setupCLITestEnv(t)

	// Auto-incremented run numbers without a tag.
	out, _, err := runCLI(t, []string{"new-session", "2024-03-15", "spa"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("new-session: %v", err)
	}
	if strings.TrimSpace(out) != "2024-03-15_spa_01" {
		t.Fatalf("unexpected key: %q", out)
	}
	out, _, err = runCLI(t, []string{"new-session", "2024-03-15", "spa"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("second new-session: %v", err)
	}
	if strings.TrimSpace(out) != "2024-03-15_spa_02" {
		t.Fatalf("unexpected second key: %q", out)
	}

	// A taken tag falls back to the alphabetic disambiguator.
	out, _, err = runCLI(t, []string{"new-session", "2024-03-15", "spa", "--tag", "quali"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("tagged new-session: %v", err)
	}
	if strings.TrimSpace(out) != "2024-03-15_spa_quali" {
		t.Fatalf("unexpected tagged key: %q", out)
	}
	out, _, err = runCLI(t, []string{"new-session", "2024-03-15", "spa", "--tag", "quali"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("repeat tagged new-session: %v", err)
	}
	if strings.TrimSpace(out) != "2024-03-15_spa_quali-a" {
		t.Fatalf("unexpected disambiguated key: %q", out)
	}

	if _, err := os.Stat(filepath.Join(env.cfg.Paths.SessionsDir, "2024-03-15_spa_quali-a")); err != nil {
		t.Fatalf("expected reserved workspace directory: %v", err)
	}

	if _, _, err := runCLI(t, []string{"new-session", "yesterday", "spa"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected malformed date to be rejected")
	}
}

func TestCLIProcessOneShot(t *testing.T) {
	env := setupCLITestEnv(t)

	testsupport.DropFile(t, env.cfg.Paths.InboxDir, "2024-03-15_spa_race1_laps.csv")

	// One-shot mode builds its own engine from the config file. The test
	// config has no transform commands, so the pass only moves and records.
	out, _, err := runCLI(t, []string{"process"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	requireContains(t, out, "Ingestion pass complete")

	rawPath := filepath.Join(env.cfg.Paths.SessionsDir, "2024-03-15_spa_race1", "RAW", "2024-03-15_spa_race1_laps.csv")
	if _, err := os.Stat(rawPath); err != nil {
		t.Fatalf("expected ingested file in RAW: %v", err)
	}
}
