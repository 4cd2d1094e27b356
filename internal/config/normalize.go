package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDrive(); err != nil {
		return err
	}
	c.normalizeHierarchy()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	stateFile := func(field *string, name, fallback string) error {
		if strings.TrimSpace(*field) == "" {
			*field = filepath.Join(c.Paths.StateDir, fallback)
			return nil
		}
		expanded, err := expandPath(*field)
		if err != nil {
			return fmt.Errorf("paths.%s: %w", name, err)
		}
		*field = expanded
		return nil
	}
	if err := stateFile(&c.Paths.HierarchyCache, "hierarchy_cache", "hierarchy_cache.json"); err != nil {
		return err
	}
	if err := stateFile(&c.Paths.ExtractionManifest, "extraction_manifest", "extraction_manifest.json"); err != nil {
		return err
	}
	if err := stateFile(&c.Paths.RenameManifest, "rename_manifest", "rename_manifest.json"); err != nil {
		return err
	}
	if err := stateFile(&c.Paths.MappingStore, "mapping_store", "agency_mappings.json"); err != nil {
		return err
	}
	return nil
}

func (c *Config) normalizeDrive() error {
	c.Drive.BaseURL = strings.TrimRight(strings.TrimSpace(c.Drive.BaseURL), "/")
	if c.Drive.RootFolderID == "" {
		if value, ok := os.LookupEnv("CURATOR_ROOT_FOLDER_ID"); ok {
			c.Drive.RootFolderID = strings.TrimSpace(value)
		}
	}
	if c.Drive.PageSize <= 0 {
		c.Drive.PageSize = defaultPageSize
	}
	if c.Drive.RequestTimeout <= 0 {
		c.Drive.RequestTimeout = defaultRequestTimeout
	}
	if c.Drive.RetryMaxAttempts <= 0 {
		c.Drive.RetryMaxAttempts = defaultRetryMaxAttempts
	}
	if c.Drive.RetryInitialDelay <= 0 {
		c.Drive.RetryInitialDelay = defaultRetryInitialDelay
	}
	if c.Drive.RetryMaxDelay <= 0 {
		c.Drive.RetryMaxDelay = defaultRetryMaxDelay
	}
	return nil
}

func (c *Config) normalizeHierarchy() {
	if c.Hierarchy.CacheMaxAgeHours <= 0 {
		c.Hierarchy.CacheMaxAgeHours = defaultCacheMaxAgeHours
	}
	if c.Hierarchy.ProgressInterval <= 0 {
		c.Hierarchy.ProgressInterval = defaultProgressInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}

// TruthyString reports whether value reads as an affirmative boolean.
// Matching is case-insensitive.
func TruthyString(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes", "y", "1", "on":
		return true
	default:
		return false
	}
}
