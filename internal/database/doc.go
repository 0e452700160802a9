// Package database stores scan reports and beacon hits in SQLite.
//
// The store is a single file (modernc.org/sqlite, no cgo) under the XDG
// data directory. Reports are kept as their JSON document together with a
// few indexed columns for listing history.
package database
