// Package storage defines the row-level adapter contract used by the entity
// store and constructs the bundled backends.
//
// Two backends ship with the package. The SQL backend runs on bun and
// supports sqlite, postgres and mysql; it builds every statement from table
// and column identifiers, so no Go models need to be registered. The memory
// backend keeps rows in process and is used by tests and the examples.
//
//	adapter, err := storage.Open(storage.Config{
//		Driver: storage.DriverSQLite,
//		DSN:    "file:blog.db?cache=shared",
//	})
//
// Filters are equality conjunctions. Values are normalized before they are
// compared, so 5, int64(5) and uint8(5) select the same rows.
package storage
