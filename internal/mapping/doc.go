// Package mapping binds external agency names to destination folders.
//
// The Matcher produces confidence-scored match records; the Store persists
// them keyed by agency name and protects human review decisions, so a
// recomputed match on a later run never silently overwrites a reviewed or
// skipped entry.
package mapping
