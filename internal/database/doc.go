// Package database provides the SQLite-backed persistent thumbnail store.
//
// Each media file path has at most one row holding its JPEG-encoded
// thumbnail and the fingerprint of the file it was built from. A lookup
// with a different fingerprint is treated as stale and removes the row.
// The thumbnail size is recorded in a metadata table; opening the store
// with another size empties it.
//
// The database uses WAL mode for concurrent reads while the cache writer
// goroutine saves new thumbnails.
package database
