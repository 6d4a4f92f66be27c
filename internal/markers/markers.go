// Package markers owns the on-disk completion sentinels. A marker file
// <session_key>.done beside the inbox is the single source of truth for
// "this session has been fully processed"; every read or write of that state
// goes through this package so a future move to an embedded store stays
// localized.
package markers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Suffix is appended to a session key to form its completion marker name.
const Suffix = ".done"

// Path returns the marker location for a session key.
func Path(inboxDir, sessionKey string) string {
	return filepath.Join(inboxDir, sessionKey+Suffix)
}

// Exists reports whether the completion marker for a session key is present.
func Exists(inboxDir, sessionKey string) bool {
	info, err := os.Stat(Path(inboxDir, sessionKey))
	return err == nil && !info.IsDir()
}

// Write records a session as fully processed. The marker carries the
// completion timestamp for operator forensics; its presence is what matters.
func Write(inboxDir, sessionKey string) error {
	contents := time.Now().UTC().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(Path(inboxDir, sessionKey), []byte(contents), 0o644); err != nil {
		return fmt.Errorf("write completion marker: %w", err)
	}
	return nil
}

// Remove deletes a session's marker, making the key eligible for a fresh
// processing pass. Missing markers are not an error.
func Remove(inboxDir, sessionKey string) error {
	err := os.Remove(Path(inboxDir, sessionKey))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove completion marker: %w", err)
	}
	return nil
}

// List returns the session keys of every marker in the inbox.
func List(inboxDir string) ([]string, error) {
	entries, err := os.ReadDir(inboxDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list inbox: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !IsMarkerName(name) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, Suffix))
	}
	return keys, nil
}

// IsMarkerName reports whether a filename is a completion marker. Doubled
// suffixes (key.done.done) from pre-fix versions of the watcher also count.
func IsMarkerName(name string) bool {
	return strings.HasSuffix(name, Suffix)
}
