// Package types defines the stowage entities (items, containers, positions),
// the request and response shapes exchanged with callers, the Store and
// AuditLog interfaces implemented by persistence backends, and the standard
// error values for the stowage engine.
package types
