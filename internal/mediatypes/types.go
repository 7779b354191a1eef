package mediatypes

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// FileType represents the type of a media file.
type FileType string

const (
	// FileTypeImage represents a still image file.
	FileTypeImage FileType = "image"
	// FileTypeVideo represents a video file.
	FileTypeVideo FileType = "video"
	// FileTypeOther represents an unknown or unsupported file type.
	FileTypeOther FileType = "other"
)

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
	".heic": true,
	".heif": true,
	".avif": true,
}

// VideoExtensions maps file extensions to whether they are video formats.
// Classification is purely extension based; the decoder decides later
// whether it can actually read the file.
var VideoExtensions = map[string]bool{
	".3gp":  true,
	".3g2":  true,
	".asf":  true,
	".asx":  true,
	".avi":  true,
	".flc":  true,
	".fli":  true,
	".flv":  true,
	".m4v":  true,
	".mkv":  true,
	".mng":  true,
	".moov": true,
	".mov":  true,
	".mp4":  true,
	".mpeg": true,
	".mpg":  true,
	".mts":  true,
	".ogg":  true,
	".ogm":  true,
	".ogv":  true,
	".qt":   true,
	".qtvr": true,
	".rm":   true,
	".rv":   true,
	".webm": true,
	".wmp":  true,
	".wmv":  true,
}

// GetFileType returns the FileType for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns FileTypeOther if the extension is not recognized.
func GetFileType(ext string) FileType {
	if VideoExtensions[ext] {
		return FileTypeVideo
	}
	if ImageExtensions[ext] {
		return FileTypeImage
	}
	return FileTypeOther
}

// Classify returns the FileType of path based on its extension.
func Classify(path string) FileType {
	return GetFileType(strings.ToLower(filepath.Ext(path)))
}

// IsVideo reports whether path has a video extension.
func IsVideo(path string) bool {
	return Classify(path) == FileTypeVideo
}

// IsMediaFile returns true if the extension represents a supported media file.
func IsMediaFile(ext string) bool {
	return GetFileType(ext) != FileTypeOther
}

// FileIdentity is the canonical cache key of a media file: its path plus a
// fingerprint of the size and modification time. Editing a file changes the
// fingerprint, so stale cache entries simply stop matching.
type FileIdentity struct {
	Path        string
	Fingerprint uint64
}

// NewFileIdentity builds the identity of path from its stat result.
func NewFileIdentity(path string, info os.FileInfo) FileIdentity {
	return FileIdentity{
		Path:        path,
		Fingerprint: Fingerprint(path, info.Size(), info.ModTime().UnixNano()),
	}
}

// Fingerprint hashes the change-detection attributes of a file.
func Fingerprint(path string, size, modTimeNano int64) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(path)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(strconv.FormatInt(size, 10))
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(strconv.FormatInt(modTimeNano, 10))
	return d.Sum64()
}

// IsZero reports whether the identity has not been resolved yet.
func (id FileIdentity) IsZero() bool {
	return id.Path == "" && id.Fingerprint == 0
}

func (id FileIdentity) String() string {
	return id.Path + "#" + strconv.FormatUint(id.Fingerprint, 16)
}
