package mediatypes

import (
	"path/filepath"
	"strings"
)

// FileKind classifies an entry in the dataset tree.
type FileKind string

const (
	// KindFolder represents a directory.
	KindFolder FileKind = "folder"
	// KindImage represents an image file eligible for annotation.
	KindImage FileKind = "image"
	// KindVideo represents a video file.
	KindVideo FileKind = "video"
	// KindLabel represents a YOLO label text file.
	KindLabel FileKind = "label"
	// KindOther represents an unknown or unsupported file type.
	KindOther FileKind = "other"
)

// ImageExtensions maps file extensions to whether they are supported image
// formats. These are the files an annotation task enumerates.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
}

// VideoExtensions maps file extensions to whether they are supported video
// formats. Videos live in dataset trees and pass through the trash, but are
// never annotated.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".ts":   true,
}

// Classify returns the FileKind for a file path based on its extension.
// Directories must be classified by the caller via KindFolder.
func Classify(path string) FileKind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ImageExtensions[ext]:
		return KindImage
	case VideoExtensions[ext]:
		return KindVideo
	case ext == ".txt":
		return KindLabel
	default:
		return KindOther
	}
}

// IsImage reports whether path has a supported image extension.
func IsImage(path string) bool {
	return ImageExtensions[strings.ToLower(filepath.Ext(path))]
}
