// Package mediatypes provides shared type definitions and utilities for media
// file handling across the image pipeline.
//
// This package exists as a dependency-free foundation that can be imported by
// other packages without creating import cycles. It contains the extension
// based image/video classification used to route load requests, and the
// FileIdentity type used as the thumbnail cache key.
package mediatypes
