package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"curator/internal/drive"
)

// MatchType classifies how an agency was bound to a folder.
type MatchType string

const (
	// MatchExact is a normalized exact name match.
	MatchExact MatchType = "exact"
	// MatchAuto cleared the similarity threshold without an exact match.
	MatchAuto MatchType = "auto"
	// MatchManual fell below threshold and awaits human review.
	MatchManual MatchType = "manual"
	// MatchDelete marks an agency a reviewer decided has no destination.
	MatchDelete MatchType = "delete"
	// MatchCreate marks an agency whose folder must be created.
	MatchCreate MatchType = "create"
)

// Mapping binds one agency name to a destination folder with the evidence
// behind the decision.
type Mapping struct {
	AgencyName string     `json:"-"`
	FolderID   string     `json:"folderId"`
	FolderName string     `json:"folderName"`
	Confidence int        `json:"confidence"`
	MatchType  MatchType  `json:"matchType"`
	Reasoning  string     `json:"reasoning"`
	MatchedAt  time.Time  `json:"matchedAt"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty"`
	SkippedAt  *time.Time `json:"skippedAt,omitempty"`
}

// Accepted reports whether the mapping can be acted on without human input.
func (m Mapping) Accepted() bool {
	switch m.MatchType {
	case MatchExact, MatchAuto:
		return true
	case MatchManual:
		return m.ReviewedAt != nil && m.SkippedAt == nil
	default:
		return false
	}
}

// reviewed reports whether a human has touched this mapping.
func (m Mapping) reviewed() bool {
	return m.ReviewedAt != nil || m.SkippedAt != nil
}

// Store is the durable agency mapping store, a single JSON object keyed by
// agency name. Human review decisions are preserved across runs: a recomputed
// match never overwrites a reviewed or skipped entry.
type Store struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewStore returns a store persisted at path.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Get returns the mapping for name, or nil when none exists.
func (s *Store) Get(name string) (*Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byName, err := s.load()
	if err != nil {
		return nil, err
	}
	mapping, ok := byName[name]
	if !ok {
		return nil, nil
	}
	mapping.AgencyName = name
	return &mapping, nil
}

// Set records a computed mapping. If the agency already carries a reviewed or
// skipped entry the call is a no-op and the existing mapping is returned with
// updated=false; the caller records a skip rather than treating it as an
// error.
func (s *Store) Set(name string, mapping Mapping) (Mapping, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byName, err := s.load()
	if err != nil {
		return Mapping{}, false, err
	}

	if existing, ok := byName[name]; ok && existing.reviewed() {
		existing.AgencyName = name
		return existing, false, nil
	}

	if mapping.MatchedAt.IsZero() {
		mapping.MatchedAt = s.now().UTC()
	}
	stored := mapping
	stored.AgencyName = ""
	byName[name] = stored

	if err := s.save(byName); err != nil {
		return Mapping{}, false, err
	}
	mapping.AgencyName = name
	return mapping, true, nil
}

// MarkReviewed stamps a human approval on an existing mapping, optionally
// rebinding it to a different folder. An empty folderID keeps the current
// binding.
func (s *Store) MarkReviewed(name, folderID, folderName string) (Mapping, error) {
	return s.update(name, func(mapping *Mapping) {
		if folderID != "" {
			mapping.FolderID = folderID
			mapping.FolderName = folderName
		}
		now := s.now().UTC()
		mapping.ReviewedAt = &now
		mapping.SkippedAt = nil
	})
}

// MarkSkipped stamps a human skip on an existing mapping.
func (s *Store) MarkSkipped(name string) (Mapping, error) {
	return s.update(name, func(mapping *Mapping) {
		now := s.now().UTC()
		mapping.SkippedAt = &now
	})
}

func (s *Store) update(name string, apply func(*Mapping)) (Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byName, err := s.load()
	if err != nil {
		return Mapping{}, err
	}
	mapping, ok := byName[name]
	if !ok {
		return Mapping{}, fmt.Errorf("no mapping for agency %q", name)
	}
	apply(&mapping)
	byName[name] = mapping

	if err := s.save(byName); err != nil {
		return Mapping{}, err
	}
	mapping.AgencyName = name
	return mapping, nil
}

// Remove deletes the mapping for name. Removing an absent name is not an
// error.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byName, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := byName[name]; !ok {
		return nil
	}
	delete(byName, name)
	return s.save(byName)
}

// Unmapped filters names down to those with no stored mapping, preserving
// input order.
func (s *Store) Unmapped(names []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byName, err := s.load()
	if err != nil {
		return nil, err
	}
	var unmapped []string
	for _, name := range names {
		if _, ok := byName[name]; !ok {
			unmapped = append(unmapped, name)
		}
	}
	return unmapped, nil
}

// PendingReview returns the manual mappings still awaiting a human decision,
// not-yet-skipped entries first, then by descending confidence within each
// group. Exact and auto matches never appear here.
func (s *Store) PendingReview() ([]Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byName, err := s.load()
	if err != nil {
		return nil, err
	}
	var pending []Mapping
	for name, mapping := range byName {
		if mapping.MatchType != MatchManual || mapping.ReviewedAt != nil {
			continue
		}
		mapping.AgencyName = name
		pending = append(pending, mapping)
	}
	sort.Slice(pending, func(i, j int) bool {
		iSkipped := pending[i].SkippedAt != nil
		jSkipped := pending[j].SkippedAt != nil
		if iSkipped != jSkipped {
			return !iSkipped
		}
		if pending[i].Confidence != pending[j].Confidence {
			return pending[i].Confidence > pending[j].Confidence
		}
		return pending[i].AgencyName < pending[j].AgencyName
	})
	return pending, nil
}

// All returns every mapping sorted by agency name.
func (s *Store) All() ([]Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byName, err := s.load()
	if err != nil {
		return nil, err
	}
	all := make([]Mapping, 0, len(byName))
	for name, mapping := range byName {
		mapping.AgencyName = name
		all = append(all, mapping)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].AgencyName < all[j].AgencyName })
	return all, nil
}

func (s *Store) load() (map[string]Mapping, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]Mapping{}, nil
		}
		return nil, fmt.Errorf("read mapping store: %w", err)
	}
	var byName map[string]Mapping
	if err := json.Unmarshal(data, &byName); err != nil {
		return nil, drive.Wrap(drive.ErrStructural, "mapping", "load", s.path, err)
	}
	if byName == nil {
		byName = map[string]Mapping{}
	}
	return byName, nil
}

func (s *Store) save(byName map[string]Mapping) error {
	data, err := json.MarshalIndent(byName, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal mapping store: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create mapping store directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".mappings-*")
	if err != nil {
		return fmt.Errorf("create temp mapping store: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write mapping store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close mapping store: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace mapping store: %w", err)
	}
	return nil
}
