package constants

import (
	"mime"
	"strings"
)

// AllowedExtensions holds the default image extensions accepted for note ingestion.
var AllowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"webp": {},
	"heic": {},
	"heif": {},
	"gif":  {},
}

// DefaultIncludeGlobs are the doublestar patterns used when scanning or watching an inbox.
var DefaultIncludeGlobs = []string{"**/*.{jpg,jpeg,png,webp,heic,heif,gif,JPG,JPEG,PNG}"}

// FallbackMIME is used when neither the extension nor the content identifies the image.
const FallbackMIME = "application/octet-stream"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsImageExt reports whether ext (with or without the dot) is an accepted image extension.
func IsImageExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// MIMEForExt maps an image extension to its MIME type, or "" when unknown.
func MIMEForExt(ext string) string {
	ext = NormalizeExt(ext)
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "heic":
		return "image/heic"
	case "heif":
		return "image/heif"
	case "gif":
		return "image/gif"
	}
	if ext == "" {
		return ""
	}
	return mime.TypeByExtension("." + ext)
}
