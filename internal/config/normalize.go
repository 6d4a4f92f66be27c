package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTransforms(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.CarDir, err = expandPath(c.Paths.CarDir); err != nil {
		return fmt.Errorf("paths.car_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.InboxDir) == "" {
		c.Paths.InboxDir = filepath.Join(c.Paths.CarDir, defaultInboxName)
	}
	if c.Paths.InboxDir, err = expandPath(c.Paths.InboxDir); err != nil {
		return fmt.Errorf("paths.inbox_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SessionsDir) == "" {
		c.Paths.SessionsDir = filepath.Join(c.Paths.CarDir, defaultSessionsName)
	}
	if c.Paths.SessionsDir, err = expandPath(c.Paths.SessionsDir); err != nil {
		return fmt.Errorf("paths.sessions_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
		c.Paths.ArchiveDir = filepath.Join(c.Paths.CarDir, defaultArchiveName)
	}
	if c.Paths.ArchiveDir, err = expandPath(c.Paths.ArchiveDir); err != nil {
		return fmt.Errorf("paths.archive_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTransforms() error {
	var err error
	c.Transforms.CSVConverter = strings.TrimSpace(c.Transforms.CSVConverter)
	c.Transforms.AssetHandler = strings.TrimSpace(c.Transforms.AssetHandler)
	c.Transforms.SetupAnalyzer = strings.TrimSpace(c.Transforms.SetupAnalyzer)
	if strings.TrimSpace(c.Transforms.SetupOutputDir) == "" {
		c.Transforms.SetupOutputDir = filepath.Join(c.Paths.CarDir, defaultSetupOutputName)
	}
	if c.Transforms.SetupOutputDir, err = expandPath(c.Transforms.SetupOutputDir); err != nil {
		return fmt.Errorf("transforms.setup_output_dir: %w", err)
	}
	if strings.TrimSpace(c.Transforms.SetupProcessedDir) == "" {
		c.Transforms.SetupProcessedDir = filepath.Join(c.Paths.CarDir, defaultSetupProcessedName)
	}
	if c.Transforms.SetupProcessedDir, err = expandPath(c.Transforms.SetupProcessedDir); err != nil {
		return fmt.Errorf("transforms.setup_processed_dir: %w", err)
	}
	if c.Transforms.Timeout <= 0 {
		c.Transforms.Timeout = defaultTransformTimeout
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
