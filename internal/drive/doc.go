// Package drive defines the remote drive capability contract the
// reconciliation engine depends on, the error taxonomy shared by every
// component, a retrying decorator that applies per-call timeouts and capped
// exponential backoff, and an in-memory fake for tests.
//
// The real API client is an external collaborator injected by the caller;
// nothing in this repository speaks the wire protocol.
package drive
