package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.CarDir) == "" {
		return errors.New("paths.car_dir must be set")
	}
	if c.Paths.InboxDir == c.Paths.SessionsDir {
		return errors.New("paths.inbox_dir and paths.sessions_dir must differ")
	}
	return nil
}

func (c *Config) validateEngine() error {
	if err := ensurePositiveMap(map[string]int{
		"engine.debounce_seconds":     c.Engine.DebounceSeconds,
		"engine.poll_interval":        c.Engine.PollInterval,
		"engine.worker_count":         c.Engine.WorkerCount,
		"engine.error_retry_interval": c.Engine.ErrorRetryInterval,
		"transforms.timeout":          c.Transforms.Timeout,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
