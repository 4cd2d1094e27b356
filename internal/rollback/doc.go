// Package rollback persists durable sessions of compensating actions and
// replays them in reverse order against the remote drive.
//
// Sessions survive process restarts in a SQLite database so a crash between
// merge steps can be recovered on next startup. Replay is resumable: each
// reversed operation is flagged as it lands, and a partially failed rollback
// leaves the session active with an accurate pending list.
package rollback
