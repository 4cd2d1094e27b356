package main

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"curator/internal/attach"
	"curator/internal/config"
	"curator/internal/drive"
	"curator/internal/hierarchy"
	"curator/internal/logging"
	"curator/internal/manifest"
	"curator/internal/mapping"
	"curator/internal/reconcile"
	"curator/internal/rollback"
)

// driveTokenEnv names the environment variable (or .env key) holding the
// drive API bearer token.
const driveTokenEnv = "CURATOR_DRIVE_TOKEN"

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// driveClient builds the retrying production client from configuration.
// Remote commands fail fast while drive.base_url is unset.
func (c *commandContext) driveClient() (drive.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Drive.BaseURL == "" {
		return nil, errors.New("drive.base_url is not configured; set it in the config file before running remote commands")
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	rest := drive.NewRESTClient(cfg.Drive.BaseURL, strings.TrimSpace(os.Getenv(driveTokenEnv)))
	return drive.NewRetrying(rest, retryPolicy(cfg), logger), nil
}

// withStore opens the rollback store for the duration of fn.
func (c *commandContext) withStore(fn func(*rollback.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := rollback.Open(cfg.RollbackDBPath())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func (c *commandContext) mappingStore() (*mapping.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return mapping.NewStore(cfg.Paths.MappingStore), nil
}

func (c *commandContext) treeBuilder(client drive.Lister) (*hierarchy.Builder, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return hierarchy.NewBuilder(client, hierarchy.NewCache(cfg.Paths.HierarchyCache), logger, hierarchy.BuilderOptions{
		RootFolderID:     cfg.Drive.RootFolderID,
		ProgressInterval: cfg.Hierarchy.ProgressInterval,
		CacheMaxAge:      time.Duration(cfg.Hierarchy.CacheMaxAgeHours) * time.Hour,
	}), nil
}

// runner assembles the full reconciliation dependency set around an open
// rollback store.
func (c *commandContext) runner(store *rollback.Store) (*reconcile.Runner, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	client, err := c.driveClient()
	if err != nil {
		return nil, err
	}
	builder, err := c.treeBuilder(client)
	if err != nil {
		return nil, err
	}

	mappings := mapping.NewStore(cfg.Paths.MappingStore)
	renames := manifest.NewRenameLedger(cfg.Paths.RenameManifest)

	return reconcile.NewRunner(reconcile.Deps{
		Config:     cfg,
		Client:     client,
		Builder:    builder,
		Store:      store,
		Mappings:   mappings,
		Matcher:    mapping.NewMatcher(nil, cfg.Matching.AutoThreshold, logger),
		Extraction: manifest.NewExtractionLedger(cfg.Paths.ExtractionManifest),
		Filer:      attach.NewFiler(client, mappings, renames, store, logger),
		Logger:     logger,
	}), nil
}
