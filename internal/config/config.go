package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and state-file configuration.
type Paths struct {
	StateDir           string `toml:"state_dir"`
	LogDir             string `toml:"log_dir"`
	HierarchyCache     string `toml:"hierarchy_cache"`
	ExtractionManifest string `toml:"extraction_manifest"`
	RenameManifest     string `toml:"rename_manifest"`
	MappingStore       string `toml:"mapping_store"`
}

// Drive contains settings for talking to the remote drive API.
type Drive struct {
	BaseURL           string `toml:"base_url"`
	RootFolderID      string `toml:"root_folder_id"`
	PageSize          int    `toml:"page_size"`
	RequestTimeout    int    `toml:"request_timeout"`
	RetryMaxAttempts  int    `toml:"retry_max_attempts"`
	RetryInitialDelay int    `toml:"retry_initial_delay"`
	RetryMaxDelay     int    `toml:"retry_max_delay"`
}

// Hierarchy contains tree build and cache settings.
type Hierarchy struct {
	CacheMaxAgeHours int `toml:"cache_max_age_hours"`
	ProgressInterval int `toml:"progress_interval"`
}

// Matching contains agency-to-folder matching settings.
type Matching struct {
	AutoThreshold int `toml:"auto_threshold"`
}

// Merge contains duplicate-merge execution settings.
type Merge struct {
	Workers int  `toml:"workers"`
	DryRun  bool `toml:"dry_run"`
}

// Logging controls log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the root configuration for the curator CLI.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Drive     Drive     `toml:"drive"`
	Hierarchy Hierarchy `toml:"hierarchy"`
	Matching  Matching  `toml:"matching"`
	Merge     Merge     `toml:"merge"`
	Logging   Logging   `toml:"logging"`
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/curator/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. A .env file in the working
// directory is overlaid into the environment first so secrets such as
// CURATOR_ROOT_FOLDER_ID can stay out of the TOML file.
func Load(path string) (*Config, string, bool, error) {
	_ = godotenv.Load()

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

	projectPath, err := filepath.Abs("curator.toml")
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

// EnsureDirectories creates the state and log directories along with the
// parent directories of every configured state file.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, file := range []string{c.Paths.HierarchyCache, c.Paths.ExtractionManifest, c.Paths.RenameManifest, c.Paths.MappingStore} {
		if strings.TrimSpace(file) == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", filepath.Dir(file), err)
		}
	}
	return nil
}

// LockPath returns the flock path guarding single-writer access to the state directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "curator.lock")
}

// RollbackDBPath returns the sqlite database path holding rollback sessions.
func (c *Config) RollbackDBPath() string {
	return filepath.Join(c.Paths.StateDir, "rollback.db")
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
