// Command curator reconciles a remote cloud-drive folder hierarchy and
// files migrated attachments into it: it merges duplicate folders under a
// durable rollback session, maps agency names onto the deduplicated tree
// with confidence scoring, and keeps every batch mutation idempotent
// through persisted manifest ledgers.
package main
