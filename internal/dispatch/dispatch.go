// Package dispatch routes ingested files to their per-type transforms.
//
// Routing is by extension with one content-name exception: spreadsheet style
// setup exports (.htm, .xlsm, .xlsx) and CSVs whose name mentions "setup" go
// to the setup analyzer; other CSVs go to the telemetry converter; PDFs and
// PNGs go to the asset handler; everything else stays in RAW untouched.
// Transforms are external commands configured per deployment. An empty
// command disables its transform without failing the bundle.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"paddock/internal/classify"
	"paddock/internal/config"
	"paddock/internal/fileutil"
	"paddock/internal/logging"
	"paddock/internal/services"
)

// Kind names the transform lane a file routes to.
type Kind string

const (
	KindTelemetry Kind = "telemetry"
	KindAsset     Kind = "asset"
	KindSetup     Kind = "setup"
	KindRaw       Kind = "raw"
)

// Detect returns the transform lane for a file name.
func Detect(name string) Kind {
	lower := strings.ToLower(name)
	switch filepath.Ext(lower) {
	case ".htm", ".html", ".xlsm", ".xlsx":
		return KindSetup
	case ".csv":
		if strings.Contains(lower, "setup") {
			return KindSetup
		}
		return KindTelemetry
	case ".pdf", ".png":
		return KindAsset
	default:
		return KindRaw
	}
}

// CommandRunner executes an external command. Tests substitute a fake.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Dispatcher invokes the configured transform for each ingested file.
type Dispatcher struct {
	cfg    *config.Config
	logger *slog.Logger
	runner CommandRunner
}

// New constructs a Dispatcher using the real command runner.
func New(cfg *config.Config, logger *slog.Logger) *Dispatcher {
	return NewWithRunner(cfg, logger, nil)
}

// NewWithRunner constructs a Dispatcher with a custom command runner.
func NewWithRunner(cfg *config.Config, logger *slog.Logger, runner CommandRunner) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "dispatch"),
		runner: runner,
	}
}

// Dispatch runs the transform for one file already moved into the session's
// RAW area. workspaceDir is the session workspace root; sessionKey scopes the
// setup analysis collection area.
func (d *Dispatcher) Dispatch(ctx context.Context, rawPath, workspaceDir, sessionKey string) (Kind, error) {
	kind := Detect(filepath.Base(rawPath))

	switch kind {
	case KindTelemetry:
		if err := d.run(ctx, d.cfg.Transforms.CSVConverter, rawPath, filepath.Join(workspaceDir, "PARQUET")); err != nil {
			return kind, services.Wrap(services.ErrExternalTool, "dispatch", "csv_converter", filepath.Base(rawPath), err)
		}
	case KindAsset:
		if err := d.run(ctx, d.cfg.Transforms.AssetHandler, rawPath, filepath.Join(workspaceDir, "ASSETS")); err != nil {
			return kind, services.Wrap(services.ErrExternalTool, "dispatch", "asset_handler", filepath.Base(rawPath), err)
		}
	case KindSetup:
		if err := d.run(ctx, d.cfg.Transforms.SetupAnalyzer, rawPath, d.cfg.Transforms.SetupOutputDir); err != nil {
			return kind, services.Wrap(services.ErrExternalTool, "dispatch", "setup_analyzer", filepath.Base(rawPath), err)
		}
		if err := d.collectSetupAnalysis(rawPath, sessionKey); err != nil {
			return kind, services.Wrap(services.ErrTransient, "dispatch", "collect_setup_analysis", filepath.Base(rawPath), err)
		}
	case KindRaw:
		d.logger.Debug("no transform for file, kept in RAW",
			logging.String(logging.FieldFile, filepath.Base(rawPath)),
		)
	}

	return kind, nil
}

// run executes a configured command line with extra positional arguments.
// An empty command is a disabled transform.
func (d *Dispatcher) run(ctx context.Context, command string, extraArgs ...string) error {
	command = strings.TrimSpace(command)
	if command == "" {
		d.logger.Debug("transform command not configured, skipping")
		return nil
	}

	fields := strings.Fields(command)
	name := fields[0]
	args := append(fields[1:], extraArgs...)

	if timeout := d.cfg.Transforms.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	if d.runner != nil {
		return d.runner(ctx, name, args...)
	}

	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// collectSetupAnalysis moves the analyzer's JSON artifact into the vehicle
// and date keyed area, alongside a copy of the setup export itself. A missing
// artifact is not an error; the analyzer may legitimately produce nothing.
func (d *Dispatcher) collectSetupAnalysis(setupPath, sessionKey string) error {
	outputDir := d.cfg.Transforms.SetupOutputDir
	if outputDir == "" {
		return nil
	}

	base := filepath.Base(setupPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	artifact := filepath.Join(outputDir, stem+"_analysis.json")
	if !fileutil.Exists(artifact) {
		return nil
	}

	date, _, _ := classify.SplitKey(sessionKey)
	if date == "" {
		date = "undated"
	}
	destDir := filepath.Join(d.cfg.Transforms.SetupProcessedDir, "by_car", d.cfg.CarName(), date)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create setup area: %w", err)
	}

	if err := fileutil.MoveFile(artifact, filepath.Join(destDir, filepath.Base(artifact))); err != nil {
		return fmt.Errorf("move analysis artifact: %w", err)
	}
	if err := fileutil.CopyFile(setupPath, filepath.Join(destDir, base)); err != nil {
		return fmt.Errorf("copy setup export: %w", err)
	}
	return nil
}
