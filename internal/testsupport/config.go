package testsupport

import (
	"path/filepath"
	"testing"

	"paddock/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.CarDir = filepath.Join(base, "CAR")
	cfgVal.Paths.InboxDir = filepath.Join(base, "CAR", "DROP-OFF")
	cfgVal.Paths.SessionsDir = filepath.Join(base, "CAR", "SESSIONS")
	cfgVal.Paths.ArchiveDir = filepath.Join(base, "CAR", "ARCHIVE")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Transforms.SetupOutputDir = filepath.Join(base, "setup-out")
	cfgVal.Transforms.SetupProcessedDir = filepath.Join(base, "setup-processed")
	cfgVal.Engine.ForcePoll = true

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithDebounce overrides the quiet window in seconds on the test config.
func WithDebounce(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.DebounceSeconds = seconds
	}
}

// WithWorkers overrides the worker pool size on the test config.
func WithWorkers(count int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.WorkerCount = count
	}
}

// WithArchive toggles session archival on the test config.
func WithArchive(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Archive.Enabled = enabled
	}
}
