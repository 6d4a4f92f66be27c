package bundle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"paddock/internal/config"
)

// Store manages bundle persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the bundle database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "bundles.db")
	return openPath(dbPath)
}

func openPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the bundle database location.
func (s *Store) Path() string {
	return s.path
}

// Observe records that a member file was seen for a session key. A new key is
// created in the accumulating state; a done or failed key restarts as a fresh
// logical bundle (supports legitimately reusing a session id for a later
// supplemental drop).
func (s *Store) Observe(ctx context.Context, sessionKey string, now time.Time) (*Bundle, error) {
	if sessionKey == "" {
		return nil, errors.New("session key is required")
	}
	now = now.UTC()

	existing, err := s.GetBySessionKey(ctx, sessionKey)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		timestamp := now.Format(time.RFC3339Nano)
		_, err := s.db.ExecContext(
			ctx,
			`INSERT INTO bundles (
                session_key, status, file_count, first_seen_at, last_seen_at, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sessionKey,
			StatusAccumulating,
			1,
			timestamp,
			timestamp,
			timestamp,
			timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("insert bundle: %w", err)
		}
		return s.GetBySessionKey(ctx, sessionKey)
	}

	switch existing.Status {
	case StatusDone, StatusFailed:
		existing.Status = StatusAccumulating
		existing.FileCount = 1
		existing.FirstSeenAt = now
		existing.LastSeenAt = now
		existing.ErrorMessage = ""
		existing.LastPassID = ""
	default:
		existing.FileCount++
		existing.LastSeenAt = now
	}
	if err := s.Update(ctx, existing); err != nil {
		return nil, err
	}
	return s.GetBySessionKey(ctx, sessionKey)
}

// Due promotes every eligible bundle to ready and returns the full due set.
// Accumulating bundles become due once their quiet period reaches the
// debounce window; failed bundles become due again after retryAfter. Bundles
// already ready (picked up by a previous run that died before processing)
// are always included.
func (s *Store) Due(ctx context.Context, now time.Time, debounce, retryAfter time.Duration) ([]*Bundle, error) {
	now = now.UTC()
	candidates, err := s.List(ctx, StatusAccumulating, StatusReady, StatusFailed)
	if err != nil {
		return nil, err
	}

	var due []*Bundle
	for _, b := range candidates {
		switch b.Status {
		case StatusReady:
			due = append(due, b)
		case StatusAccumulating:
			if b.Quiet(now) >= debounce {
				b.Status = StatusReady
				if err := s.Update(ctx, b); err != nil {
					return nil, err
				}
				due = append(due, b)
			}
		case StatusFailed:
			if now.Sub(b.UpdatedAt) >= retryAfter {
				b.Status = StatusReady
				if err := s.Update(ctx, b); err != nil {
					return nil, err
				}
				due = append(due, b)
			}
		}
	}
	return due, nil
}

// MarkProcessing transitions a bundle to processing and stamps the pass id.
func (s *Store) MarkProcessing(ctx context.Context, sessionKey, passID string) error {
	b, err := s.GetBySessionKey(ctx, sessionKey)
	if err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("bundle %q: %w", sessionKey, sql.ErrNoRows)
	}
	b.Status = StatusProcessing
	b.LastPassID = passID
	b.ErrorMessage = ""
	return s.Update(ctx, b)
}

// MarkDone transitions a bundle to its terminal done state.
func (s *Store) MarkDone(ctx context.Context, sessionKey string) error {
	return s.finish(ctx, sessionKey, StatusDone, "")
}

// MarkFailed records a failed processing pass. The bundle stays retryable.
func (s *Store) MarkFailed(ctx context.Context, sessionKey, message string) error {
	return s.finish(ctx, sessionKey, StatusFailed, message)
}

// Complete ends a successful processing pass. The bundle becomes done only
// when no member file arrived after passStart; a late arrival sends it back
// to accumulating so the scheduler runs another pass for the new files.
func (s *Store) Complete(ctx context.Context, sessionKey string, passStart time.Time) (Status, error) {
	b, err := s.GetBySessionKey(ctx, sessionKey)
	if err != nil {
		return "", err
	}
	if b == nil {
		return "", fmt.Errorf("bundle %q: %w", sessionKey, sql.ErrNoRows)
	}
	if b.LastSeenAt.After(passStart.UTC()) {
		b.Status = StatusAccumulating
		b.ErrorMessage = ""
		b.LastPassID = ""
		if err := s.Update(ctx, b); err != nil {
			return "", err
		}
		return StatusAccumulating, nil
	}
	b.Status = StatusDone
	b.ErrorMessage = ""
	if err := s.Update(ctx, b); err != nil {
		return "", err
	}
	return StatusDone, nil
}

// MarkInterrupted returns a bundle whose pass was cut short (daemon shutdown)
// to accumulating, without a failure record, so a later run retries it.
func (s *Store) MarkInterrupted(ctx context.Context, sessionKey string) error {
	b, err := s.GetBySessionKey(ctx, sessionKey)
	if err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("bundle %q: %w", sessionKey, sql.ErrNoRows)
	}
	b.Status = StatusAccumulating
	b.ErrorMessage = ""
	b.LastPassID = ""
	return s.Update(ctx, b)
}

func (s *Store) finish(ctx context.Context, sessionKey string, status Status, message string) error {
	b, err := s.GetBySessionKey(ctx, sessionKey)
	if err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("bundle %q: %w", sessionKey, sql.ErrNoRows)
	}
	b.Status = status
	b.ErrorMessage = message
	return s.Update(ctx, b)
}

// GetBySessionKey fetches a bundle by its session key.
func (s *Store) GetBySessionKey(ctx context.Context, sessionKey string) (*Bundle, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bundleColumns+` FROM bundles WHERE session_key = ?`, sessionKey)
	b, err := scanBundle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bundle: %w", err)
	}
	return b, nil
}

// Update persists changes to an existing bundle.
func (s *Store) Update(ctx context.Context, b *Bundle) error {
	if b == nil {
		return errors.New("bundle is nil")
	}
	b.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE bundles
         SET status = ?, file_count = ?, first_seen_at = ?, last_seen_at = ?,
             error_message = ?, last_pass_id = ?, updated_at = ?
         WHERE id = ?`,
		b.Status,
		b.FileCount,
		b.FirstSeenAt.UTC().Format(time.RFC3339Nano),
		b.LastSeenAt.UTC().Format(time.RFC3339Nano),
		nullableString(b.ErrorMessage),
		nullableString(b.LastPassID),
		b.UpdatedAt.Format(time.RFC3339Nano),
		b.ID,
	)
	if err != nil {
		return fmt.Errorf("update bundle: %w", err)
	}
	return nil
}

// List returns bundles filtered by status set (or all bundles when no status
// is provided), ordered by creation time.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Bundle, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + bundleColumns + ` FROM bundles`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	defer rows.Close()

	var bundles []*Bundle
	for rows.Next() {
		b, err := scanBundle(rows)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return bundles, rows.Err()
}

// ResetStuckProcessing resets bundles left in processing (for example after a
// crash) back to accumulating so the next tick re-evaluates them.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE bundles SET status = ?, last_pass_id = NULL, updated_at = ? WHERE status IN (?, ?)`,
		StatusAccumulating,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusProcessing,
		StatusReady,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck bundles: %w", err)
	}
	return res.RowsAffected()
}

// Retry moves failed bundles (optionally a subset) back to accumulating for
// reprocessing on the next tick.
func (s *Store) Retry(ctx context.Context, sessionKeys ...string) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if len(sessionKeys) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE bundles SET status = ?, error_message = NULL, updated_at = ? WHERE status = ?`,
			StatusAccumulating,
			timestamp,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed bundles: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(sessionKeys))
	args := make([]any, 0, len(sessionKeys)+2)
	args = append(args, StatusAccumulating, timestamp)
	for _, key := range sessionKeys {
		args = append(args, key)
	}
	args = append(args, StatusFailed)
	query := `UPDATE bundles SET status = ?, error_message = NULL, updated_at = ?
        WHERE session_key IN (` + placeholders + `) AND status = ?`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected bundles: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of bundles grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM bundles GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("bundle stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates bundle state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusAccumulating:
			health.Accumulating += count
		case StatusReady:
			health.Ready += count
		case StatusProcessing:
			health.Processing += count
		case StatusDone:
			health.Done += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

// Remove deletes a bundle row by session key.
func (s *Store) Remove(ctx context.Context, sessionKey string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bundles WHERE session_key = ?`, sessionKey)
	if err != nil {
		return false, fmt.Errorf("delete bundle: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearDone removes only done bundles.
func (s *Store) ClearDone(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bundles WHERE status = ?`, StatusDone)
	if err != nil {
		return 0, fmt.Errorf("clear done: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all bundles.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bundles`)
	if err != nil {
		return 0, fmt.Errorf("clear bundles: %w", err)
	}
	return res.RowsAffected()
}

const bundleColumns = "id, session_key, status, file_count, first_seen_at, last_seen_at, error_message, last_pass_id, created_at, updated_at"

func scanBundle(scanner interface{ Scan(dest ...any) error }) (*Bundle, error) {
	var (
		id           int64
		sessionKey   string
		statusStr    string
		fileCount    int
		firstSeenRaw sql.NullString
		lastSeenRaw  sql.NullString
		errorMessage sql.NullString
		lastPassID   sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sessionKey,
		&statusStr,
		&fileCount,
		&firstSeenRaw,
		&lastSeenRaw,
		&errorMessage,
		&lastPassID,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	b := &Bundle{
		ID:           id,
		SessionKey:   sessionKey,
		Status:       Status(statusStr),
		FileCount:    fileCount,
		ErrorMessage: errorMessage.String,
		LastPassID:   lastPassID.String,
	}
	if first, err := parseTimeString(firstSeenRaw.String); err == nil {
		b.FirstSeenAt = first
	}
	if last, err := parseTimeString(lastSeenRaw.String); err == nil {
		b.LastSeenAt = last
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		b.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		b.UpdatedAt = updated
	}
	return b, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
