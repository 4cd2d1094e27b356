package drive

import "time"

// FolderMimeType marks folder items on the remote store.
const FolderMimeType = "application/vnd.drive.folder"

// Item is one entry of a folder listing.
type Item struct {
	ID       string
	Name     string
	ParentID string
	MimeType string
}

// IsFolder reports whether the item is a folder.
func (i Item) IsFolder() bool {
	return i.MimeType == FolderMimeType
}

// ChildPage is one page of a paginated child listing. An empty NextPageToken
// means the listing is exhausted.
type ChildPage struct {
	Items         []Item
	NextPageToken string
}

// Metadata is the full metadata record of a single item.
type Metadata struct {
	ID           string
	Name         string
	ParentIDs    []string
	MimeType     string
	Size         int64
	ModifiedTime time.Time
	Description  string
	Trashed      bool
}

// MetadataPatch carries the mutable metadata fields. Nil fields are left
// untouched by UpdateMetadata.
type MetadataPatch struct {
	Name        *string
	Description *string
}

// Minimal strips the patch down to the fields a size-limited remote will
// always accept. Used as the fallback when UpdateMetadata reports a
// capacity error for the full patch.
func (p MetadataPatch) Minimal() MetadataPatch {
	return MetadataPatch{Name: p.Name}
}
