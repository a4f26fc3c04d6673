// Package storage provides journal.Storage backends: an in-memory map and
// a SQLite database reachable through either the pure Go driver
// (modernc.org/sqlite, registered as "sqlite") or the cgo driver
// (github.com/mattn/go-sqlite3, registered as "sqlite3").
package storage
