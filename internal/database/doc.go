// Package database provides the SQLite-backed subscription cache.
//
// SourceCache keeps the last body, ETag and Last-Modified value of every
// subscription URL so the fetch client can issue conditional requests.
// It uses modernc.org/sqlite, a pure Go driver, so the binary stays free
// of cgo.
package database
