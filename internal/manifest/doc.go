// Package manifest persists the durable work ledgers that make batch runs
// resumable. Each ledger is a single JSON document rewritten atomically on
// every change; entries are keyed so that re-running a unit of work replaces
// its earlier records instead of duplicating them.
package manifest
