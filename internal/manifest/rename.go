package manifest

import "time"

// RenameEntry records one file renamed into its canonical attachment name.
type RenameEntry struct {
	FileID         string    `json:"fileId"`
	OriginalName   string    `json:"originalName"`
	NewName        string    `json:"newName"`
	AgencyName     string    `json:"agencyName"`
	DeterminedYear string    `json:"determinedYear"`
	RenamedAt      time.Time `json:"renamedAt"`
}

// EntryID identifies the renamed file.
func (e RenameEntry) EntryID() string { return e.FileID }

// NaturalKey is the file id: renaming the same file again replaces its
// previous record.
func (e RenameEntry) NaturalKey() string { return e.FileID }

// RenameLedger persists rename records.
type RenameLedger = Ledger[RenameEntry]

// NewRenameLedger returns the rename ledger persisted at path.
func NewRenameLedger(path string) *RenameLedger {
	return NewLedger[RenameEntry](path)
}

// RenamedFileIDs returns the set of files the document covers.
func RenamedFileIDs(doc Document[RenameEntry]) map[string]struct{} {
	ids := make(map[string]struct{}, len(doc.Entries))
	for _, entry := range doc.Entries {
		ids[entry.FileID] = struct{}{}
	}
	return ids
}
