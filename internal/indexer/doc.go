// Package indexer scans the media directory for images and videos.
//
// Scans walk the tree with a small pool of workers that classify each file
// by extension and compute its identity (path plus a fingerprint of size
// and modification time). The result replaces an in-memory file list.
// Files whose identity changed or that disappeared since the previous scan
// are reported to an Invalidator so that their cached thumbnails are
// dropped.
//
// The Indexer is the media source of the background video thumbnail search
// and supplies the file list for bulk thumbnail builds. Hidden files and
// directories (prefixed with '.') are skipped.
package indexer
