package drive

import "context"

// Lister pages through the children of a folder. Pass an empty pageToken for
// the first page and the returned NextPageToken for each following page.
type Lister interface {
	ListChildren(ctx context.Context, folderID, pageToken string) (ChildPage, error)
}

// Mover reparents an item.
type Mover interface {
	MoveItem(ctx context.Context, itemID, newParentID string) error
}

// Trasher soft-deletes and restores items. Untrash support is best-effort on
// real backends; implementations that cannot restore return ErrNotFound.
type Trasher interface {
	TrashItem(ctx context.Context, itemID string) error
	UntrashItem(ctx context.Context, itemID string) error
}

// MetadataClient reads and patches item metadata. UpdateMetadata may fail
// with ErrCapacity when the patch exceeds the remote size limit; callers
// retry with patch.Minimal() on that specific error.
type MetadataClient interface {
	GetMetadata(ctx context.Context, itemID string) (Metadata, error)
	UpdateMetadata(ctx context.Context, itemID string, patch MetadataPatch) error
}

// Client is the full remote drive capability contract the engine requires.
// The concrete API client is injected by the caller; this package only
// supplies the retrying decorator and an in-memory fake.
type Client interface {
	Lister
	Mover
	Trasher
	MetadataClient
}
