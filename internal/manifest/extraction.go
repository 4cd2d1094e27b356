package manifest

import "time"

// ExtractionEntry records one attachment pulled out of a source archive.
type ExtractionEntry struct {
	FileID            string    `json:"fileId"`
	FileName          string    `json:"fileName"`
	AgencyName        string    `json:"agencyName"`
	DeterminedYear    string    `json:"determinedYear"`
	SourceZipFileID   string    `json:"sourceZipFileId"`
	SourceZipFileName string    `json:"sourceZipFileName"`
	ZipPath           string    `json:"zipPath"`
	FromNestedZip     bool      `json:"fromNestedZip"`
	ExtractedAt       time.Time `json:"extractedAt"`
}

// EntryID identifies the extracted file itself.
func (e ExtractionEntry) EntryID() string { return e.FileID }

// NaturalKey groups entries by the archive they came from. Re-extracting an
// archive supersedes every entry from its previous extraction.
func (e ExtractionEntry) NaturalKey() string { return e.SourceZipFileID }

// ExtractionLedger persists extraction records.
type ExtractionLedger = Ledger[ExtractionEntry]

// NewExtractionLedger returns the extraction ledger persisted at path.
func NewExtractionLedger(path string) *ExtractionLedger {
	return NewLedger[ExtractionEntry](path)
}

// ExtractedZipIDs returns the set of archives the document covers.
func ExtractedZipIDs(doc Document[ExtractionEntry]) map[string]struct{} {
	ids := make(map[string]struct{}, len(doc.Entries))
	for _, entry := range doc.Entries {
		ids[entry.SourceZipFileID] = struct{}{}
	}
	return ids
}

// EntriesByAgency groups extraction records by agency name.
func EntriesByAgency(doc Document[ExtractionEntry]) map[string][]ExtractionEntry {
	byAgency := make(map[string][]ExtractionEntry)
	for _, entry := range doc.Entries {
		byAgency[entry.AgencyName] = append(byAgency[entry.AgencyName], entry)
	}
	return byAgency
}

// AgencyNames returns the distinct agency names in first-seen order.
func AgencyNames(doc Document[ExtractionEntry]) []string {
	seen := make(map[string]struct{}, len(doc.Entries))
	var names []string
	for _, entry := range doc.Entries {
		if _, ok := seen[entry.AgencyName]; ok {
			continue
		}
		seen[entry.AgencyName] = struct{}{}
		names = append(names, entry.AgencyName)
	}
	return names
}
