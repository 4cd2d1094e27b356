package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDrive(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateMerge(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDrive() error {
	if c.Drive.PageSize > 10000 {
		return errors.New("drive.page_size must be at most 10000")
	}
	if c.Drive.RetryMaxDelay < c.Drive.RetryInitialDelay {
		return errors.New("drive.retry_max_delay must be at least drive.retry_initial_delay")
	}
	return nil
}

func (c *Config) validateMatching() error {
	if c.Matching.AutoThreshold < 0 || c.Matching.AutoThreshold > 100 {
		return errors.New("matching.auto_threshold must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateMerge() error {
	if c.Merge.Workers < 1 {
		return errors.New("merge.workers must be at least 1")
	}
	if c.Merge.Workers > 32 {
		return errors.New("merge.workers must be at most 32")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
