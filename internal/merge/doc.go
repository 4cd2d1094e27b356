// Package merge executes duplicate-folder merges against the remote drive.
//
// Every move and trash is mirrored into the active rollback session before
// the next mutation is issued, so a mid-group failure always leaves a log
// accurate enough to reverse. Independent groups run on a bounded worker
// pool; mutations within a group stay sequential relative to the shared
// target.
package merge
