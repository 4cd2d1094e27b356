// Package reconcile orchestrates a full reconciliation run: snapshot the
// remote hierarchy, merge duplicate folders over three passes, map agencies
// onto the deduplicated tree, and file attachments, all under one durable
// rollback session and a state-directory lock.
package reconcile
