// Package store defines the run ledger records and the interface that persists
// them. Implementations live in other packages; this package must not import
// database drivers or concrete clients.
package store
