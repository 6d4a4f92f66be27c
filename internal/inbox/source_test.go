package inbox_test

import (
	"context"
	"os"
	"testing"
	"time"

	"paddock/internal/inbox"
	"paddock/internal/testsupport"
)

func collectEvents(t *testing.T, src *inbox.Source, want int) []inbox.Event {
	t.Helper()

	var events []inbox.Event
	deadline := time.After(5 * time.Second)
	for len(events) < want {
		select {
		case evt := <-src.Events():
			events = append(events, evt)
		case <-deadline:
			t.Fatalf("timed out waiting for events, got %d of %d", len(events), want)
		}
	}
	return events
}

func TestScanEmitsEligibleFilesOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	testsupport.DropFile(t, cfg.Paths.InboxDir, "2024-03-15_spa_race1_laps.csv")
	testsupport.DropFile(t, cfg.Paths.InboxDir, "2024-03-15_spa_race1_track.pdf")
	testsupport.DropFile(t, cfg.Paths.InboxDir, "README.md")
	testsupport.DropFile(t, cfg.Paths.InboxDir, "2024-03-15_spa_race1.done")

	src := inbox.New(cfg, nil)
	ctx := context.Background()
	if err := src.Scan(ctx); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	events := collectEvents(t, src, 2)
	names := map[string]bool{}
	for _, evt := range events {
		names[evt.Name] = true
	}
	if !names["2024-03-15_spa_race1_laps.csv"] || !names["2024-03-15_spa_race1_track.pdf"] {
		t.Fatalf("unexpected event names %v", names)
	}

	// A second scan with no changes emits nothing.
	if err := src.Scan(ctx); err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	select {
	case evt := <-src.Events():
		t.Fatalf("unexpected duplicate event %q", evt.Name)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestScanForgetsRemovedFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	path := testsupport.DropFile(t, cfg.Paths.InboxDir, "2024-03-15_spa_race1_laps.csv")

	src := inbox.New(cfg, nil)
	ctx := context.Background()
	if err := src.Scan(ctx); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	collectEvents(t, src, 1)

	// Simulate a processing pass moving the file out, then a re-drop.
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := src.Scan(ctx); err != nil {
		t.Fatalf("Scan after remove: %v", err)
	}
	testsupport.DropFile(t, cfg.Paths.InboxDir, "2024-03-15_spa_race1_laps.csv")
	if err := src.Scan(ctx); err != nil {
		t.Fatalf("Scan after re-drop: %v", err)
	}

	events := collectEvents(t, src, 1)
	if events[0].Name != "2024-03-15_spa_race1_laps.csv" {
		t.Fatalf("unexpected event %q", events[0].Name)
	}
}

func TestStartPollingPicksUpLateDrops(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Engine.PollInterval = 1
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	src := inbox.New(cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Stop()

	testsupport.DropFile(t, cfg.Paths.InboxDir, "2024-03-15_spa_race1_laps.csv")

	events := collectEvents(t, src, 1)
	if events[0].Name != "2024-03-15_spa_race1_laps.csv" {
		t.Fatalf("unexpected event %q", events[0].Name)
	}
}

func TestEligible(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"2024-03-15_spa_race1_laps.csv", true},
		{"monza setup race.htm", true},
		{"README.md", false},
		{"2024-03-15_spa_race1.done", false},
		{"2024-03-15_spa_race1.done.done", false},
		{".hidden", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := inbox.Eligible(tc.name); got != tc.want {
			t.Errorf("Eligible(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}
