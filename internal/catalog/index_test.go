package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"paddock/internal/catalog"
)

func openIndex(t *testing.T) *catalog.Index {
	t.Helper()
	idx, err := catalog.OpenPath(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestUpsertSessionKeepsOneRow(t *testing.T) {
	idx := openIndex(t)
	ctx := context.Background()

	row := catalog.SessionRow{SessionKey: "2024-03-15_spa_race1", FileCount: 3}
	if err := idx.UpsertSession(ctx, row); err != nil {
		t.Fatalf("UpsertSession: %v", err)
	}
	row.FileCount = 5
	if err := idx.UpsertSession(ctx, row); err != nil {
		t.Fatalf("second UpsertSession: %v", err)
	}

	sessions, err := idx.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 row after double finalize, got %d", len(sessions))
	}
	if sessions[0].FileCount != 5 {
		t.Fatalf("expected refreshed file count 5, got %d", sessions[0].FileCount)
	}
	if sessions[0].Date != "2024-03-15" || sessions[0].Track != "spa" {
		t.Fatalf("expected derived date and track, got %+v", sessions[0])
	}
	if sessions[0].DisplayName == "" {
		t.Fatal("expected derived display name")
	}
}

func TestRecordAssetDeduplicates(t *testing.T) {
	idx := openIndex(t)
	ctx := context.Background()

	asset := catalog.AssetRow{
		SessionKey:  "2024-03-15_spa_race1",
		FileName:    "track_map.pdf",
		Kind:        "asset",
		ContentHash: "abc123",
	}
	if err := idx.RecordAsset(ctx, asset); err != nil {
		t.Fatalf("RecordAsset: %v", err)
	}
	if err := idx.RecordAsset(ctx, asset); err != nil {
		t.Fatalf("duplicate RecordAsset: %v", err)
	}

	assets, err := idx.Assets(ctx, "2024-03-15_spa_race1")
	if err != nil {
		t.Fatalf("Assets: %v", err)
	}
	if len(assets) != 1 {
		t.Fatalf("expected 1 asset, got %d", len(assets))
	}
}

func TestSetArchivedFlipsFlag(t *testing.T) {
	idx := openIndex(t)
	ctx := context.Background()

	key := "2024-03-15_spa_race1"
	if err := idx.UpsertSession(ctx, catalog.SessionRow{SessionKey: key, FileCount: 1}); err != nil {
		t.Fatalf("UpsertSession: %v", err)
	}
	if err := idx.SetArchived(ctx, key, true); err != nil {
		t.Fatalf("SetArchived: %v", err)
	}

	sessions, err := idx.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 || !sessions[0].Archived {
		t.Fatalf("expected archived row, got %+v", sessions)
	}
}

func TestWriteTOCRendersAllSessions(t *testing.T) {
	idx := openIndex(t)
	ctx := context.Background()

	for _, key := range []string{"2024-03-15_spa_race1", "2024-03-16_monza_quali"} {
		if err := idx.UpsertSession(ctx, catalog.SessionRow{SessionKey: key, FileCount: 2, FinalizedAt: time.Now().UTC()}); err != nil {
			t.Fatalf("UpsertSession %s: %v", key, err)
		}
	}

	tocPath := filepath.Join(t.TempDir(), "TOC.md")
	if err := idx.WriteTOC(ctx, tocPath, "GT3"); err != nil {
		t.Fatalf("WriteTOC: %v", err)
	}

	content, err := os.ReadFile(tocPath)
	if err != nil {
		t.Fatalf("read toc: %v", err)
	}
	text := string(content)
	if !strings.HasPrefix(text, "# GT3 sessions") {
		t.Fatalf("unexpected heading: %q", text[:40])
	}
	if !strings.Contains(text, "Spa") || !strings.Contains(text, "Monza") {
		t.Fatalf("expected both sessions listed:\n%s", text)
	}

	// Regenerating replaces rather than appends.
	if err := idx.WriteTOC(ctx, tocPath, "GT3"); err != nil {
		t.Fatalf("second WriteTOC: %v", err)
	}
	again, err := os.ReadFile(tocPath)
	if err != nil {
		t.Fatalf("re-read toc: %v", err)
	}
	if strings.Count(string(again), "# GT3 sessions") != 1 {
		t.Fatal("expected a single heading after regeneration")
	}
}

func TestWriteTOCEmptyIndex(t *testing.T) {
	idx := openIndex(t)
	tocPath := filepath.Join(t.TempDir(), "TOC.md")
	if err := idx.WriteTOC(context.Background(), tocPath, "GT3"); err != nil {
		t.Fatalf("WriteTOC: %v", err)
	}
	content, err := os.ReadFile(tocPath)
	if err != nil {
		t.Fatalf("read toc: %v", err)
	}
	if !strings.Contains(string(content), "No sessions ingested yet.") {
		t.Fatalf("expected empty notice:\n%s", content)
	}
}
