package markers_test

import (
	"testing"

	"paddock/internal/markers"
)

func TestWriteExistsRoundTrip(t *testing.T) {
	inbox := t.TempDir()
	key := "2025-07-04_Fuji_01"

	if markers.Exists(inbox, key) {
		t.Fatal("marker should not exist yet")
	}
	if err := markers.Write(inbox, key); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !markers.Exists(inbox, key) {
		t.Fatal("marker should exist after write")
	}

	keys, err := markers.List(inbox)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != key {
		t.Fatalf("unexpected keys: %v", keys)
	}

	if err := markers.Remove(inbox, key); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if markers.Exists(inbox, key) {
		t.Fatal("marker should be gone after remove")
	}
	if err := markers.Remove(inbox, key); err != nil {
		t.Fatalf("Remove of missing marker should be a no-op: %v", err)
	}
}

func TestIsMarkerName(t *testing.T) {
	if !markers.IsMarkerName("2025-07-04_Fuji_01.done") {
		t.Fatal("expected marker name to match")
	}
	if !markers.IsMarkerName("2025-07-04_Fuji_01.done.done") {
		t.Fatal("expected doubled suffix to match")
	}
	if markers.IsMarkerName("2025-07-04_Fuji_01_Laps.csv") {
		t.Fatal("regular file should not match")
	}
}

func TestListMissingInbox(t *testing.T) {
	keys, err := markers.List(t.TempDir() + "/nope")
	if err != nil || keys != nil {
		t.Fatalf("expected empty result for missing inbox, got %v %v", keys, err)
	}
}
