// Package session implements the per-bundle processing pass: move files out
// of the drop-off into the session workspace, record provenance, dispatch
// transforms, and finalize the car-level catalog.
package session

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"paddock/internal/archive"
	"paddock/internal/catalog"
	"paddock/internal/classify"
	"paddock/internal/config"
	"paddock/internal/dispatch"
	"paddock/internal/fileutil"
	"paddock/internal/inbox"
	"paddock/internal/logging"
	"paddock/internal/markers"
	"paddock/internal/provenance"
	"paddock/internal/services"
)

// workspaceAreas are created under every session directory.
var workspaceAreas = []string{"RAW", "PARQUET", "DB", "ASSETS", "REPORTS"}

// Manager executes processing passes for session bundles.
type Manager struct {
	cfg        *config.Config
	logger     *slog.Logger
	index      *catalog.Index
	dispatcher *dispatch.Dispatcher
	archiver   *archive.Archiver
}

// Option customizes a Manager, primarily for tests.
type Option func(*Manager)

// WithDispatcher substitutes the transform dispatcher.
func WithDispatcher(d *dispatch.Dispatcher) Option {
	return func(m *Manager) { m.dispatcher = d }
}

// NewManager constructs a Manager over the given catalog index.
func NewManager(cfg *config.Config, logger *slog.Logger, index *catalog.Index, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "session"),
		index:      index,
		dispatcher: dispatch.New(cfg, logger),
		archiver:   archive.New(cfg, logger),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WorkspaceDir returns the session workspace path for a key.
func (m *Manager) WorkspaceDir(sessionKey string) string {
	return filepath.Join(m.cfg.Paths.SessionsDir, sessionKey)
}

// Process runs one full pass for a session key. It is idempotent: a key whose
// completion marker exists and has no new drop-off files is a no-op, and a
// crashed pass picks up from the workspace's RAW area on retry. Any file
// failure fails the whole pass; the marker is only written after a clean
// finalize.
func (m *Manager) Process(ctx context.Context, sessionKey string) error {
	logger := logging.WithContext(services.WithSessionKey(ctx, sessionKey), m.logger)

	pending, err := m.pendingInboxFiles(sessionKey)
	if err != nil {
		return services.Wrap(services.ErrTransient, "session", "scan_inbox", sessionKey, err)
	}

	if markers.Exists(m.cfg.Paths.InboxDir, sessionKey) {
		if len(pending) == 0 {
			logger.Debug("completion marker present, nothing new to process")
			return nil
		}
		// New files for a completed key start a fresh logical bundle.
		if err := markers.Remove(m.cfg.Paths.InboxDir, sessionKey); err != nil {
			return services.Wrap(services.ErrTransient, "session", "remove_marker", sessionKey, err)
		}
		logger.Info("completion marker cleared for resurfaced session",
			logging.Int("pending_files", len(pending)),
		)
	}

	workspace := m.WorkspaceDir(sessionKey)
	for _, area := range workspaceAreas {
		if err := os.MkdirAll(filepath.Join(workspace, area), 0o755); err != nil {
			return services.Wrap(services.ErrTransient, "session", "ensure_workspace", area, err)
		}
	}

	ledger := provenance.NewLedger(workspace)
	ingested := 0

	for _, name := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		rawPath, err := m.moveIntoRaw(filepath.Join(m.cfg.Paths.InboxDir, name), workspace)
		if err != nil {
			return services.Wrap(services.ErrTransient, "session", "move_file", name, err)
		}
		if err := m.ingestFile(ctx, ledger, rawPath, workspace, sessionKey); err != nil {
			return err
		}
		ingested++
	}

	// Files already in RAW from an interrupted pass are re-dispatched; the
	// provenance ledger suppresses duplicate records.
	leftovers, err := m.rawFiles(workspace)
	if err != nil {
		return services.Wrap(services.ErrTransient, "session", "scan_raw", sessionKey, err)
	}
	for _, rawPath := range leftovers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.ingestFile(ctx, ledger, rawPath, workspace, sessionKey); err != nil {
			return err
		}
	}

	if err := m.finalize(ctx, sessionKey, workspace, ledger); err != nil {
		return err
	}

	if err := markers.Write(m.cfg.Paths.InboxDir, sessionKey); err != nil {
		return services.Wrap(services.ErrTransient, "session", "write_marker", sessionKey, err)
	}

	logger.Info("session pass complete",
		logging.Int("ingested", ingested),
		logging.Int("reprocessed", len(leftovers)),
	)
	return nil
}

// pendingInboxFiles lists eligible drop-off files classifying to sessionKey.
func (m *Manager) pendingInboxFiles(sessionKey string) ([]string, error) {
	entries, err := os.ReadDir(m.cfg.Paths.InboxDir)
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !inbox.Eligible(name) {
			continue
		}
		key, ok := classify.Classify(name)
		if !ok || key != sessionKey {
			continue
		}
		pending = append(pending, name)
	}
	return pending, nil
}

func (m *Manager) rawFiles(workspace string) ([]string, error) {
	rawDir := filepath.Join(workspace, "RAW")
	entries, err := os.ReadDir(rawDir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(rawDir, entry.Name()))
	}
	return paths, nil
}

// moveIntoRaw renames a drop-off file into the workspace RAW area. A name
// collision gets one uniqued retry so a re-dropped file with different
// content never silently overwrites the earlier capture.
func (m *Manager) moveIntoRaw(srcPath, workspace string) (string, error) {
	dst := filepath.Join(workspace, "RAW", filepath.Base(srcPath))
	if fileutil.Exists(dst) {
		srcHash, err := provenance.HashFile(srcPath)
		if err != nil {
			return "", err
		}
		dstHash, err := provenance.HashFile(dst)
		if err != nil {
			return "", err
		}
		if srcHash == dstHash {
			// Identical re-drop; discard the duplicate.
			if err := os.Remove(srcPath); err != nil {
				return "", err
			}
			return dst, nil
		}
		dst = fileutil.UniquePath(dst, time.Now())
	}
	if err := fileutil.MoveFile(srcPath, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// ingestFile hashes, records, and dispatches one file already in RAW.
func (m *Manager) ingestFile(ctx context.Context, ledger *provenance.Ledger, rawPath, workspace, sessionKey string) error {
	name := filepath.Base(rawPath)

	hash, err := provenance.HashFile(rawPath)
	if err != nil {
		return services.Wrap(services.ErrTransient, "session", "hash_file", name, err)
	}
	info, err := os.Stat(rawPath)
	if err != nil {
		return services.Wrap(services.ErrTransient, "session", "stat_file", name, err)
	}

	if err := ledger.Append(provenance.Record{
		FileName:     name,
		SourcePath:   rawPath,
		ContentHash:  hash,
		SizeBytes:    info.Size(),
		DiscoveredAt: time.Now().UTC(),
	}); err != nil {
		return services.Wrap(services.ErrTransient, "session", "record_provenance", name, err)
	}

	kind, err := m.dispatcher.Dispatch(ctx, rawPath, workspace, sessionKey)
	if err != nil {
		return err
	}

	if err := m.index.RecordAsset(ctx, catalog.AssetRow{
		SessionKey:  sessionKey,
		FileName:    name,
		Kind:        string(kind),
		ContentHash: hash,
		RecordedAt:  time.Now().UTC(),
	}); err != nil {
		return services.Wrap(services.ErrTransient, "session", "record_asset", name, err)
	}
	return nil
}

// finalize upserts the catalog row, rewrites TOC.md, and archives assets.
func (m *Manager) finalize(ctx context.Context, sessionKey, workspace string, ledger *provenance.Ledger) error {
	records, err := ledger.Records()
	if err != nil {
		return services.Wrap(services.ErrTransient, "session", "read_ledger", sessionKey, err)
	}
	assets, err := m.index.Assets(ctx, sessionKey)
	if err != nil {
		return services.Wrap(services.ErrTransient, "session", "list_assets", sessionKey, err)
	}
	assetCount := 0
	for _, a := range assets {
		if a.Kind == string(dispatch.KindAsset) {
			assetCount++
		}
	}

	archived := false
	if m.cfg.Archive.Enabled {
		zipPath, err := m.archiver.ArchiveAssets(ctx, sessionKey, workspace)
		if err != nil {
			return services.Wrap(services.ErrTransient, "session", "archive_assets", sessionKey, err)
		}
		archived = zipPath != ""
	}

	if err := m.index.UpsertSession(ctx, catalog.SessionRow{
		SessionKey:  sessionKey,
		FileCount:   len(records),
		AssetCount:  assetCount,
		Archived:    archived,
		FinalizedAt: time.Now().UTC(),
	}); err != nil {
		return services.Wrap(services.ErrTransient, "session", "upsert_session", sessionKey, err)
	}

	if err := m.index.WriteTOC(ctx, m.cfg.TOCPath(), m.cfg.CarName()); err != nil {
		return services.Wrap(services.ErrTransient, "session", "write_toc", sessionKey, err)
	}
	return nil
}
