package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"curator/internal/drive"
)

const documentVersion = 1

// Entry is one keyed unit of completed work.
type Entry interface {
	// EntryID uniquely identifies the entry for rollback-by-id removal.
	EntryID() string
	// NaturalKey groups entries for dedup-on-replace: AddEntries removes
	// every existing entry sharing a new entry's natural key before
	// appending.
	NaturalKey() string
}

// Document is the persisted manifest shape.
type Document[E Entry] struct {
	Version     int       `json:"version"`
	LastUpdated time.Time `json:"lastUpdated"`
	Entries     []E       `json:"entries"`
}

// Ledger is a JSON-backed keyed record log. It is the single source of truth
// for "has this unit of work already been done"; batch operations consult it
// before re-doing work.
type Ledger[E Entry] struct {
	path string
	mu   sync.Mutex
}

// NewLedger returns a ledger persisted at path.
func NewLedger[E Entry](path string) *Ledger[E] {
	return &Ledger[E]{path: path}
}

// Path returns the backing file location.
func (l *Ledger[E]) Path() string {
	return l.path
}

// Load reads the persisted manifest. An absent file yields an empty,
// versioned manifest and no error; a corrupt file is a structural error.
func (l *Ledger[E]) Load() (Document[E], error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

func (l *Ledger[E]) load() (Document[E], error) {
	empty := Document[E]{Version: documentVersion}

	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return empty, nil
		}
		return empty, fmt.Errorf("read manifest: %w", err)
	}

	var doc Document[E]
	if err := json.Unmarshal(data, &doc); err != nil {
		return empty, drive.Wrap(drive.ErrStructural, "manifest", "load", l.path, err)
	}
	if doc.Version == 0 {
		doc.Version = documentVersion
	}
	return doc, nil
}

// Save persists the manifest atomically, refreshing LastUpdated. A crash
// between calls never leaves a partially written file behind.
func (l *Ledger[E]) Save(doc Document[E]) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.save(doc)
}

func (l *Ledger[E]) save(doc Document[E]) error {
	doc.Version = documentVersion
	doc.LastUpdated = time.Now().UTC()
	if doc.Entries == nil {
		doc.Entries = []E{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".manifest-*")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close manifest: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

// AddEntries records newEntries, superseding any existing entries that share
// a natural key with them, then persists the whole manifest. Existing entry
// order is preserved; new entries land at the tail.
func (l *Ledger[E]) AddEntries(newEntries []E) (Document[E], error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load()
	if err != nil {
		return doc, err
	}

	superseded := make(map[string]struct{}, len(newEntries))
	for _, entry := range newEntries {
		superseded[entry.NaturalKey()] = struct{}{}
	}

	kept := make([]E, 0, len(doc.Entries)+len(newEntries))
	for _, entry := range doc.Entries {
		if _, gone := superseded[entry.NaturalKey()]; gone {
			continue
		}
		kept = append(kept, entry)
	}
	kept = append(kept, newEntries...)
	doc.Entries = kept

	if err := l.save(doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// RemoveEntries deletes entries by id and persists. Unknown ids are ignored.
func (l *Ledger[E]) RemoveEntries(ids []string) (Document[E], error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load()
	if err != nil {
		return doc, err
	}

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	kept := doc.Entries[:0]
	for _, entry := range doc.Entries {
		if _, gone := drop[entry.EntryID()]; gone {
			continue
		}
		kept = append(kept, entry)
	}
	doc.Entries = kept

	if err := l.save(doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// HasKey reports whether any persisted entry carries the given natural key.
func (l *Ledger[E]) HasKey(key string) (bool, error) {
	doc, err := l.Load()
	if err != nil {
		return false, err
	}
	for _, entry := range doc.Entries {
		if entry.NaturalKey() == key {
			return true, nil
		}
	}
	return false, nil
}
