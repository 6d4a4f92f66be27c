// Package provenance records where each ingested file came from and what it
// contained. Every session workspace carries an append-only intake ledger so
// a bundle can be audited after its members have been transformed or moved.
package provenance

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const ledgerName = "intake.jsonl"

// Record captures the provenance of one ingested file.
type Record struct {
	FileName     string    `json:"file_name"`
	SourcePath   string    `json:"source_path"`
	ContentHash  string    `json:"content_hash"`
	SizeBytes    int64     `json:"size_bytes"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// HashFile computes the hex-encoded SHA-256 digest of a file without loading
// it into memory.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Ledger is the per-session intake record, stored as JSON lines under the
// session workspace's DB directory.
type Ledger struct {
	path string
}

// NewLedger returns the ledger for a session workspace directory.
func NewLedger(sessionDir string) *Ledger {
	return &Ledger{path: filepath.Join(sessionDir, "DB", ledgerName)}
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// Append writes a record unless an identical (file name, content hash) pair
// is already present. Re-ingesting the same bytes under the same name is a
// no-op; a changed file under a reused name gets a fresh line.
func (l *Ledger) Append(rec Record) error {
	if rec.FileName == "" {
		return errors.New("record file name is required")
	}
	if rec.ContentHash == "" {
		return errors.New("record content hash is required")
	}

	existing, err := l.Records()
	if err != nil {
		return err
	}
	for _, prior := range existing {
		if prior.FileName == rec.FileName && prior.ContentHash == rec.ContentHash {
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// Records reads all ledger entries. A missing ledger yields an empty slice.
func (l *Ledger) Records() ([]Record, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("decode ledger line: %w", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return records, nil
}
