// Package progress defines the lifecycle events emitted while a document is
// paginated and the sinks that consume them.
//
// Emitters are called synchronously from worker goroutines, so sinks must be
// safe for concurrent use and must not block on slow I/O.
package progress
