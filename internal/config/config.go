package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the directories the engine reads and writes.
type Paths struct {
	CarDir      string `toml:"car_dir"`
	InboxDir    string `toml:"inbox_dir"`
	SessionsDir string `toml:"sessions_dir"`
	ArchiveDir  string `toml:"archive_dir"`
	LogDir      string `toml:"log_dir"`
}

// Engine contains scheduling knobs for the ingestion loop.
type Engine struct {
	DebounceSeconds    int  `toml:"debounce_seconds"`
	PollInterval       int  `toml:"poll_interval"`
	WorkerCount        int  `toml:"worker_count"`
	ErrorRetryInterval int  `toml:"error_retry_interval"`
	ForcePoll          bool `toml:"force_poll"`
}

// Transforms configures the external commands invoked per ingested file.
// Empty commands disable the corresponding transform; the file is still
// moved and recorded.
type Transforms struct {
	CSVConverter  string `toml:"csv_converter"`
	AssetHandler  string `toml:"asset_handler"`
	SetupAnalyzer string `toml:"setup_analyzer"`
	// SetupOutputDir is where the analyzer drops its JSON artifacts;
	// SetupProcessedDir is the vehicle/date-keyed area they are collected into.
	SetupOutputDir    string `toml:"setup_output_dir"`
	SetupProcessedDir string `toml:"setup_processed_dir"`
	Timeout           int    `toml:"timeout"`
}

// Archive configures session archival after finalization.
type Archive struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for paddock.
//
// Sections by subsystem:
//   - Paths: car folder layout (inbox, sessions, archive) and log directory
//   - Engine: debounce window, poll interval, worker pool sizing
//   - Transforms: external per-file commands and setup-analysis collection
//   - Archive: session archival toggle
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Engine     Engine     `toml:"engine"`
	Transforms Transforms `toml:"transforms"`
	Archive    Archive    `toml:"archive"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/paddock/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("paddock.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories required for engine operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.InboxDir, c.Paths.SessionsDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Archive.Enabled && strings.TrimSpace(c.Paths.ArchiveDir) != "" {
		if err := os.MkdirAll(c.Paths.ArchiveDir, 0o755); err != nil {
			return fmt.Errorf("create archive directory %q: %w", c.Paths.ArchiveDir, err)
		}
	}
	return nil
}

// CarName returns the vehicle identifier derived from the car directory name.
// It is passed to the setup-file analyzer and keys the processed-setups area.
func (c *Config) CarName() string {
	return filepath.Base(c.Paths.CarDir)
}

// TOCPath returns the location of the car-level table of contents.
func (c *Config) TOCPath() string {
	return filepath.Join(c.Paths.CarDir, "TOC.md")
}

// IndexDBPath returns the location of the car-level catalog database.
func (c *Config) IndexDBPath() string {
	return filepath.Join(c.Paths.CarDir, "catalog.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
