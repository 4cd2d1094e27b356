// Package attach files migrated attachments into the reconciled folder
// tree. The rename ledger makes the pass idempotent: a record already
// ledgered is never filed twice, and records whose agency has no accepted
// mapping are counted and deferred rather than failed.
package attach
