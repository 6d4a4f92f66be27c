// Package archive compresses a session's ASSETS area into the car folder's
// ARCHIVE directory, leaving a stub note behind. RAW and REPORTS never move.
package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"paddock/internal/config"
	"paddock/internal/logging"
)

const stubName = "ARCHIVED.md"

// Archiver zips finalized session assets.
type Archiver struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New constructs an Archiver.
func New(cfg *config.Config, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Archiver{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "archive"),
	}
}

// ArchiveAssets zips the workspace's ASSETS directory into
// ARCHIVE/<session key>.zip, removes the zipped files, and drops a stub note
// pointing at the archive. Archiving an already archived session rebuilds the
// zip in place. An empty or missing ASSETS area is a no-op.
func (a *Archiver) ArchiveAssets(ctx context.Context, sessionKey, workspaceDir string) (string, error) {
	assetsDir := filepath.Join(workspaceDir, "ASSETS")
	files, err := collectFiles(assetsDir)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(a.cfg.Paths.ArchiveDir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	zipPath := filepath.Join(a.cfg.Paths.ArchiveDir, sessionKey+".zip")

	if err := writeZip(ctx, zipPath, assetsDir, files); err != nil {
		return "", err
	}

	for _, rel := range files {
		if err := os.Remove(filepath.Join(assetsDir, rel)); err != nil {
			return "", fmt.Errorf("remove archived asset %s: %w", rel, err)
		}
	}
	if err := removeEmptyDirs(assetsDir); err != nil {
		return "", err
	}

	stub := fmt.Sprintf("Assets for %s were archived to %s.\n", sessionKey, zipPath)
	if err := os.WriteFile(filepath.Join(assetsDir, stubName), []byte(stub), 0o644); err != nil {
		return "", fmt.Errorf("write archive stub: %w", err)
	}

	a.logger.Info("assets archived",
		logging.String(logging.FieldSessionKey, sessionKey),
		logging.Int("files", len(files)),
		logging.String("zip", zipPath),
	)
	return zipPath, nil
}

// collectFiles lists regular files under root as relative paths, skipping a
// stub left by a previous archive pass.
func collectFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == stubName {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("walk assets: %w", err)
	}
	return files, nil
}

func writeZip(ctx context.Context, zipPath, root string, files []string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create zip: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			_ = zw.Close()
			return err
		}
		if err := addToZip(zw, root, rel); err != nil {
			_ = zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip: %w", err)
	}
	return out.Close()
}

func addToZip(zw *zip.Writer, root, rel string) error {
	in, err := os.Open(filepath.Join(root, rel))
	if err != nil {
		return fmt.Errorf("open asset %s: %w", rel, err)
	}
	defer in.Close()

	w, err := zw.Create(filepath.ToSlash(rel))
	if err != nil {
		return fmt.Errorf("add zip entry %s: %w", rel, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("write zip entry %s: %w", rel, err)
	}
	return nil
}

// removeEmptyDirs prunes now-empty subdirectories under root, leaving root.
func removeEmptyDirs(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(root, entry.Name())
		if err := removeEmptyDirs(sub); err != nil {
			return err
		}
		remaining, err := os.ReadDir(sub)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			if err := os.Remove(sub); err != nil {
				return err
			}
		}
	}
	return nil
}
