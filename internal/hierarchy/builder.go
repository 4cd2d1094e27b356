package hierarchy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"curator/internal/drive"
	"curator/internal/logging"
)

// CacheMode controls how Build interacts with the persisted tree snapshot.
type CacheMode string

const (
	// CacheModeReadWrite uses the cache when present and fresh, otherwise
	// fetches live and persists the result.
	CacheModeReadWrite CacheMode = "read-write"
	// CacheModeRead uses the cache only and fails when it is absent.
	CacheModeRead CacheMode = "read"
	// CacheModeWrite always fetches live, then persists.
	CacheModeWrite CacheMode = "write"
	// CacheModeNone fetches live and never persists.
	CacheModeNone CacheMode = "none"
)

// ParseCacheMode validates a user-supplied cache mode string.
func ParseCacheMode(value string) (CacheMode, error) {
	switch CacheMode(value) {
	case CacheModeReadWrite, CacheModeRead, CacheModeWrite, CacheModeNone:
		return CacheMode(value), nil
	default:
		return "", fmt.Errorf("cache mode: unsupported value %q", value)
	}
}

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	RootFolderID string
	// ProgressInterval emits a progress log line every N folders walked.
	ProgressInterval int
	// CacheMaxAge bounds cache freshness for CacheModeReadWrite.
	CacheMaxAge time.Duration
}

// Builder materializes remote folder listings into Tree snapshots.
type Builder struct {
	client drive.Lister
	cache  *Cache
	logger *slog.Logger
	opts   BuilderOptions
}

// NewBuilder constructs a Builder. cache may be nil when no persistence is
// wanted; cache modes other than "none" then fail.
func NewBuilder(client drive.Lister, cache *Cache, logger *slog.Logger, opts BuilderOptions) *Builder {
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 500
	}
	if opts.CacheMaxAge <= 0 {
		opts.CacheMaxAge = 24 * time.Hour
	}
	return &Builder{
		client: client,
		cache:  cache,
		logger: logging.NewComponentLogger(logger, "hierarchy"),
		opts:   opts,
	}
}

// Build returns a tree snapshot per the requested cache mode. A failed page
// fetch aborts the whole build; no partial tree is ever returned.
func (b *Builder) Build(ctx context.Context, mode CacheMode) (*Tree, error) {
	switch mode {
	case CacheModeRead:
		if b.cache == nil {
			return nil, drive.Wrap(drive.ErrStructural, "hierarchy", "build", "cache mode read requires a configured cache", nil)
		}
		return b.cache.Load()
	case CacheModeReadWrite:
		if b.cache != nil {
			tree, err := b.cache.LoadFresh(b.opts.CacheMaxAge)
			if err == nil {
				b.logger.Debug("using cached hierarchy snapshot",
					logging.Int("folders", tree.FolderCount()),
					logging.Duration("age", time.Since(tree.BuiltAt)))
				return tree, nil
			}
			if !IsCacheMiss(err) {
				return nil, err
			}
		}
		tree, err := b.fetch(ctx)
		if err != nil {
			return nil, err
		}
		if b.cache != nil {
			if err := b.cache.Save(tree); err != nil {
				return nil, err
			}
		}
		return tree, nil
	case CacheModeWrite:
		tree, err := b.fetch(ctx)
		if err != nil {
			return nil, err
		}
		if b.cache == nil {
			return nil, drive.Wrap(drive.ErrStructural, "hierarchy", "build", "cache mode write requires a configured cache", nil)
		}
		if err := b.cache.Save(tree); err != nil {
			return nil, err
		}
		return tree, nil
	case CacheModeNone:
		return b.fetch(ctx)
	default:
		return nil, fmt.Errorf("cache mode: unsupported value %q", mode)
	}
}

// fetch walks the remote folder graph breadth-first, following continuation
// tokens until each folder's listing is exhausted.
func (b *Builder) fetch(ctx context.Context) (*Tree, error) {
	start := time.Now()
	root := &FolderNode{ID: b.opts.RootFolderID, Name: "root"}
	pending := []*FolderNode{root}
	walked := 0

	for len(pending) > 0 {
		node := pending[0]
		pending = pending[1:]

		pageToken := ""
		for {
			page, err := b.client.ListChildren(ctx, node.ID, pageToken)
			if err != nil {
				return nil, fmt.Errorf("list children of %s: %w", node.ID, err)
			}
			for _, item := range page.Items {
				if !item.IsFolder() {
					continue
				}
				child := &FolderNode{ID: item.ID, Name: item.Name, ParentID: node.ID}
				node.Children = append(node.Children, child)
				pending = append(pending, child)
			}
			if page.NextPageToken == "" {
				break
			}
			pageToken = page.NextPageToken
		}

		walked++
		if walked%b.opts.ProgressInterval == 0 {
			b.logger.Info("hierarchy walk in progress",
				logging.Int("folders_walked", walked),
				logging.Int("folders_pending", len(pending)),
				logging.Duration("elapsed", time.Since(start)))
		}
	}

	tree := NewTree(root, time.Now().UTC(), "live")
	b.logger.Info("hierarchy snapshot built",
		logging.Int("folders", tree.FolderCount()),
		logging.Duration("elapsed", time.Since(start)))
	return tree, nil
}
