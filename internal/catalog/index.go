package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"paddock/internal/classify"
	"paddock/internal/config"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// ErrSchemaMismatch indicates the index schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("catalog schema version mismatch")

// SessionRow is one entry in the car-level session index.
type SessionRow struct {
	SessionKey  string
	DisplayName string
	Date        string
	Track       string
	FileCount   int
	AssetCount  int
	Archived    bool
	FinalizedAt time.Time
}

// AssetRow records one asset produced while ingesting a session.
type AssetRow struct {
	SessionKey  string
	FileName    string
	Kind        string
	ContentHash string
	RecordedAt  time.Time
}

// Index is the car-level catalog backed by SQLite.
type Index struct {
	db   *sql.DB
	path string
}

// Open connects to the car folder's catalog database, creating it on first use.
func Open(cfg *config.Config) (*Index, error) {
	return OpenPath(cfg.IndexDBPath())
}

// OpenPath opens a catalog at an explicit location.
func OpenPath(dbPath string) (*Index, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	idx := &Index{db: db, path: dbPath}
	if err := idx.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

// Close closes the underlying database connection.
func (i *Index) Close() error {
	if i == nil || i.db == nil {
		return nil
	}
	return i.db.Close()
}

func (i *Index) initSchema(ctx context.Context) error {
	var tableExists int
	err := i.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := i.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create catalog schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := i.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

// UpsertSession inserts or refreshes the index row for a session key.
// Finalizing the same key repeatedly keeps exactly one row.
func (i *Index) UpsertSession(ctx context.Context, row SessionRow) error {
	if row.SessionKey == "" {
		return errors.New("session key is required")
	}
	if row.DisplayName == "" {
		row.DisplayName = classify.DisplayName(row.SessionKey)
	}
	if row.Date == "" || row.Track == "" {
		date, track, _ := classify.SplitKey(row.SessionKey)
		if row.Date == "" {
			row.Date = date
		}
		if row.Track == "" {
			row.Track = track
		}
	}
	if row.FinalizedAt.IsZero() {
		row.FinalizedAt = time.Now().UTC()
	}

	_, err := i.db.ExecContext(
		ctx,
		`INSERT INTO sessions (
            session_key, display_name, session_date, track, file_count, asset_count, archived, finalized_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(session_key) DO UPDATE SET
            display_name = excluded.display_name,
            session_date = excluded.session_date,
            track = excluded.track,
            file_count = excluded.file_count,
            asset_count = excluded.asset_count,
            archived = excluded.archived,
            finalized_at = excluded.finalized_at`,
		row.SessionKey,
		row.DisplayName,
		nullableString(row.Date),
		nullableString(row.Track),
		row.FileCount,
		row.AssetCount,
		boolToInt(row.Archived),
		row.FinalizedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// RecordAsset stores one asset row. Re-recording an identical asset is a no-op.
func (i *Index) RecordAsset(ctx context.Context, row AssetRow) error {
	if row.SessionKey == "" || row.FileName == "" {
		return errors.New("session key and file name are required")
	}
	if row.RecordedAt.IsZero() {
		row.RecordedAt = time.Now().UTC()
	}
	_, err := i.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO assets (session_key, file_name, kind, content_hash, recorded_at)
         VALUES (?, ?, ?, ?, ?)`,
		row.SessionKey,
		row.FileName,
		row.Kind,
		nullableString(row.ContentHash),
		row.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record asset: %w", err)
	}
	return nil
}

// Assets lists the recorded assets for a session.
func (i *Index) Assets(ctx context.Context, sessionKey string) ([]AssetRow, error) {
	rows, err := i.db.QueryContext(
		ctx,
		`SELECT session_key, file_name, kind, content_hash, recorded_at
         FROM assets WHERE session_key = ? ORDER BY file_name`,
		sessionKey,
	)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []AssetRow
	for rows.Next() {
		var (
			row      AssetRow
			hash     sql.NullString
			recorded sql.NullString
		)
		if err := rows.Scan(&row.SessionKey, &row.FileName, &row.Kind, &hash, &recorded); err != nil {
			return nil, err
		}
		row.ContentHash = hash.String
		if at, err := time.Parse(time.RFC3339Nano, recorded.String); err == nil {
			row.RecordedAt = at
		}
		assets = append(assets, row)
	}
	return assets, rows.Err()
}

// Sessions lists every index row ordered by date then key.
func (i *Index) Sessions(ctx context.Context) ([]SessionRow, error) {
	rows, err := i.db.QueryContext(
		ctx,
		`SELECT session_key, display_name, session_date, track, file_count, asset_count, archived, finalized_at
         FROM sessions ORDER BY session_date DESC, session_key`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionRow
	for rows.Next() {
		var (
			row       SessionRow
			date      sql.NullString
			track     sql.NullString
			archived  int
			finalized sql.NullString
		)
		if err := rows.Scan(&row.SessionKey, &row.DisplayName, &date, &track, &row.FileCount, &row.AssetCount, &archived, &finalized); err != nil {
			return nil, err
		}
		row.Date = date.String
		row.Track = track.String
		row.Archived = archived != 0
		if at, err := time.Parse(time.RFC3339Nano, finalized.String); err == nil {
			row.FinalizedAt = at
		}
		sessions = append(sessions, row)
	}
	return sessions, rows.Err()
}

// SetArchived flips the archived flag for a session row.
func (i *Index) SetArchived(ctx context.Context, sessionKey string, archived bool) error {
	_, err := i.db.ExecContext(ctx, `UPDATE sessions SET archived = ? WHERE session_key = ?`, boolToInt(archived), sessionKey)
	if err != nil {
		return fmt.Errorf("set archived: %w", err)
	}
	return nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
