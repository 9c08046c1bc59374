package ingest

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxFileSize is the ceiling applied to every source.
const MaxFileSize = 20 * 1024 * 1024

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// allowedContentTypes maps each accepted content type to the extension used
// when a source carries no usable one.
var allowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// IsAllowedExtension reports whether ext (with or without a leading dot) is accepted.
func IsAllowedExtension(ext string) bool {
	return allowedExtensions[normalizeExtension(ext)]
}

// IsAllowedContentType reports whether a content type is accepted. Parameters
// such as charset are ignored.
func IsAllowedContentType(contentType string) bool {
	_, ok := allowedContentTypes[baseContentType(contentType)]
	return ok
}

func baseContentType(contentType string) string {
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// DisplayName derives the display name of an asset from the original file
// name: the base name without extension.
func DisplayName(originalName string) string {
	base := path.Base(strings.ReplaceAll(originalName, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// StoragePath returns "<prefix>/<date>_<token><ext>". The token is 16 random
// hex characters.
func StoragePath(prefix, ext string, now time.Time) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return fmt.Sprintf("%s/%s_%s%s",
		strings.Trim(prefix, "/"),
		now.Format("2006-01-02"),
		token,
		normalizeExtension(ext))
}

// AspectRatio is width/height rounded to two decimals.
func AspectRatio(width, height int) float64 {
	if height == 0 {
		return 0
	}
	ratio := float64(width) / float64(height)
	return float64(int64(ratio*100+0.5)) / 100
}
