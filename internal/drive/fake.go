package drive

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Fake is an in-memory drive used by tests and by packages that need a
// deterministic remote. It implements Client with real move/trash semantics
// and supports fault injection for transient and capacity failures.
type Fake struct {
	mu       sync.Mutex
	items    map[string]*fakeItem
	rootID   string
	pageSize int
	nextID   int

	// descLimit caps Description length for UpdateMetadata; 0 means no cap.
	descLimit int
	// failures maps "operation:itemID" to a count of injected transient
	// failures remaining.
	failures map[string]int
}

type fakeItem struct {
	id          string
	name        string
	parentID    string
	mimeType    string
	description string
	trashed     bool
	modified    time.Time
}

// NewFake builds an empty fake drive with a root folder.
func NewFake(rootID string) *Fake {
	f := &Fake{
		items:    make(map[string]*fakeItem),
		rootID:   rootID,
		pageSize: 100,
		failures: make(map[string]int),
	}
	f.items[rootID] = &fakeItem{id: rootID, name: "root", mimeType: FolderMimeType}
	return f
}

// RootID returns the id of the fake root folder.
func (f *Fake) RootID() string { return f.rootID }

// SetPageSize overrides the listing page size (default 100).
func (f *Fake) SetPageSize(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n > 0 {
		f.pageSize = n
	}
}

// SetDescriptionLimit makes UpdateMetadata reject descriptions longer than
// limit with ErrCapacity.
func (f *Fake) SetDescriptionLimit(limit int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.descLimit = limit
}

// FailNext injects count transient failures for the given operation and item.
// Operation names match the Client method in snake case ("list_children",
// "move_item", ...). An empty itemID applies to every item.
func (f *Fake) FailNext(operation, itemID string, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[operation+":"+itemID] = count
}

// AddFolder creates a folder under parentID and returns its id.
func (f *Fake) AddFolder(parentID, name string) string {
	return f.add(parentID, name, FolderMimeType)
}

// AddFile creates a file under parentID and returns its id.
func (f *Fake) AddFile(parentID, name string) string {
	return f.add(parentID, name, "application/octet-stream")
}

func (f *Fake) add(parentID, name, mimeType string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("item-%04d", f.nextID)
	f.items[id] = &fakeItem{
		id:       id,
		name:     name,
		parentID: parentID,
		mimeType: mimeType,
		modified: time.Now().UTC(),
	}
	return id
}

// ChildIDs returns the ids of live (non-trashed) children of folderID,
// sorted by name then id for deterministic assertions.
func (f *Fake) ChildIDs(folderID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	children := f.liveChildren(folderID)
	ids := make([]string, 0, len(children))
	for _, child := range children {
		ids = append(ids, child.id)
	}
	return ids
}

// Trashed reports whether itemID exists and is in the trash.
func (f *Fake) Trashed(itemID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemID]
	return ok && item.trashed
}

// ParentOf returns the current parent id of itemID, or "" if absent.
func (f *Fake) ParentOf(itemID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item, ok := f.items[itemID]; ok {
		return item.parentID
	}
	return ""
}

func (f *Fake) ListChildren(ctx context.Context, folderID, pageToken string) (ChildPage, error) {
	if err := ctx.Err(); err != nil {
		return ChildPage{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.consumeFailure("list_children", folderID); err != nil {
		return ChildPage{}, err
	}
	folder, ok := f.items[folderID]
	if !ok || folder.trashed {
		return ChildPage{}, Wrap(ErrNotFound, "fake", "list_children", "folder "+folderID, nil)
	}
	if folder.mimeType != FolderMimeType {
		return ChildPage{}, Wrap(ErrStructural, "fake", "list_children", folderID+" is not a folder", nil)
	}

	children := f.liveChildren(folderID)

	start := 0
	if pageToken != "" {
		if _, err := fmt.Sscanf(pageToken, "page-%d", &start); err != nil {
			return ChildPage{}, Wrap(ErrStructural, "fake", "list_children", "bad page token "+pageToken, nil)
		}
	}
	if start >= len(children) {
		return ChildPage{}, nil
	}

	end := start + f.pageSize
	if end > len(children) {
		end = len(children)
	}

	page := ChildPage{Items: make([]Item, 0, end-start)}
	for _, child := range children[start:end] {
		page.Items = append(page.Items, Item{
			ID:       child.id,
			Name:     child.name,
			ParentID: child.parentID,
			MimeType: child.mimeType,
		})
	}
	if end < len(children) {
		page.NextPageToken = fmt.Sprintf("page-%d", end)
	}
	return page, nil
}

func (f *Fake) MoveItem(ctx context.Context, itemID, newParentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.consumeFailure("move_item", itemID); err != nil {
		return err
	}
	item, ok := f.items[itemID]
	if !ok || item.trashed {
		return Wrap(ErrNotFound, "fake", "move_item", "item "+itemID, nil)
	}
	parent, ok := f.items[newParentID]
	if !ok || parent.trashed {
		return Wrap(ErrNotFound, "fake", "move_item", "parent "+newParentID, nil)
	}
	if parent.mimeType != FolderMimeType {
		return Wrap(ErrStructural, "fake", "move_item", newParentID+" is not a folder", nil)
	}
	item.parentID = newParentID
	item.modified = time.Now().UTC()
	return nil
}

func (f *Fake) TrashItem(ctx context.Context, itemID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.consumeFailure("trash_item", itemID); err != nil {
		return err
	}
	item, ok := f.items[itemID]
	if !ok {
		return Wrap(ErrNotFound, "fake", "trash_item", "item "+itemID, nil)
	}
	item.trashed = true
	return nil
}

func (f *Fake) UntrashItem(ctx context.Context, itemID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.consumeFailure("untrash_item", itemID); err != nil {
		return err
	}
	item, ok := f.items[itemID]
	if !ok {
		return Wrap(ErrNotFound, "fake", "untrash_item", "item "+itemID, nil)
	}
	item.trashed = false
	return nil
}

func (f *Fake) GetMetadata(ctx context.Context, itemID string) (Metadata, error) {
	if err := ctx.Err(); err != nil {
		return Metadata{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.consumeFailure("get_metadata", itemID); err != nil {
		return Metadata{}, err
	}
	item, ok := f.items[itemID]
	if !ok {
		return Metadata{}, Wrap(ErrNotFound, "fake", "get_metadata", "item "+itemID, nil)
	}
	meta := Metadata{
		ID:           item.id,
		Name:         item.name,
		MimeType:     item.mimeType,
		ModifiedTime: item.modified,
		Description:  item.description,
		Trashed:      item.trashed,
	}
	if item.parentID != "" {
		meta.ParentIDs = []string{item.parentID}
	}
	return meta, nil
}

func (f *Fake) UpdateMetadata(ctx context.Context, itemID string, patch MetadataPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.consumeFailure("update_metadata", itemID); err != nil {
		return err
	}
	item, ok := f.items[itemID]
	if !ok {
		return Wrap(ErrNotFound, "fake", "update_metadata", "item "+itemID, nil)
	}
	if patch.Description != nil && f.descLimit > 0 && len(*patch.Description) > f.descLimit {
		return Wrap(ErrCapacity, "fake", "update_metadata", "description too long", nil)
	}
	if patch.Name != nil {
		item.name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		item.description = *patch.Description
	}
	item.modified = time.Now().UTC()
	return nil
}

func (f *Fake) liveChildren(folderID string) []*fakeItem {
	var children []*fakeItem
	for _, item := range f.items {
		if item.parentID == folderID && !item.trashed {
			children = append(children, item)
		}
	}
	sort.Slice(children, func(i, j int) bool {
		if children[i].name != children[j].name {
			return children[i].name < children[j].name
		}
		return children[i].id < children[j].id
	})
	return children
}

func (f *Fake) consumeFailure(operation, itemID string) error {
	for _, key := range []string{operation + ":" + itemID, operation + ":"} {
		if remaining, ok := f.failures[key]; ok && remaining > 0 {
			f.failures[key] = remaining - 1
			return Wrap(ErrTransient, "fake", operation, "injected failure", nil)
		}
	}
	return nil
}
