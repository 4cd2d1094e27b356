// Package hierarchy builds immutable snapshots of the remote folder tree.
//
// The builder pages through the drive listing API breadth-first, emitting
// progress as it walks, and can persist snapshots as a JSON cache artifact
// with explicit cache modes (read-write, read, write, none). Trees are
// rebuilt after every mutating pass instead of patched, so stale-structure
// bugs cannot direct later merges at deleted nodes.
package hierarchy
