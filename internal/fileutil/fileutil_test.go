package fileutil_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"paddock/internal/fileutil"
	"paddock/internal/testsupport"
)

func TestCopyFilePreservesContent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.csv")
	dst := filepath.Join(dir, "dst.csv")
	testsupport.WriteText(t, src, "lap,time\n1,92.4\n")

	if err := fileutil.CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read dst: %v", err)
	}
	if string(got) != "lap,time\n1,92.4\n" {
		t.Fatalf("content mismatch: %q", got)
	}
}

func TestMoveFileRemovesSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.csv")
	dst := filepath.Join(dir, "dst.csv")
	testsupport.WriteText(t, src, "payload")

	if err := fileutil.MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if fileutil.Exists(src) {
		t.Fatal("expected source removed")
	}
	if !fileutil.Exists(dst) {
		t.Fatal("expected destination present")
	}
}

func TestUniquePathAvoidsCollisions(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "laps.csv")
	testsupport.WriteText(t, base, "one")

	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	first := fileutil.UniquePath(base, now)
	if first == base {
		t.Fatal("expected a different path")
	}
	if filepath.Ext(first) != ".csv" {
		t.Fatalf("expected extension preserved, got %q", first)
	}

	testsupport.WriteText(t, first, "two")
	second := fileutil.UniquePath(base, now)
	if second == first || second == base {
		t.Fatalf("expected a fresh path, got %q", second)
	}
}

func TestRemoveIfExistsIgnoresMissing(t *testing.T) {
	if err := fileutil.RemoveIfExists(filepath.Join(t.TempDir(), "absent")); err != nil {
		t.Fatalf("RemoveIfExists: %v", err)
	}
}
