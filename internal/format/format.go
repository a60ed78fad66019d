// Package format maps the representation selectors accepted by the API
// (MIME types, bare extensions, Accept header values) onto canonical MIME types.
package format

import (
	"slices"
	"strings"
)

// Structured is the canonical selector for the JSON record of an image.
const Structured = "application/json"

var aliases = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"jpe":  "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"webp": "image/webp",
	"json": Structured,

	"image/jpg":      "image/jpeg",
	"image/pjpeg":    "image/jpeg",
	"image/x-png":    "image/png",
	"image/x-bmp":    "image/bmp",
	"image/x-ms-bmp": "image/bmp",
	"text/json":      Structured,
}

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/bmp":  ".bmp",
	"image/tiff": ".tiff",
	"image/webp": ".webp",
}

// Normalize returns the canonical MIME type for a selector.
// "GIF", ".gif", "gif" and "image/gif" all normalize to "image/gif".
// Media type parameters (";q=0.9") are dropped. Unknown values are returned
// lower-cased so that two unknown spellings of the same token still compare equal.
func Normalize(selector string) string {
	s := strings.ToLower(strings.TrimSpace(selector))
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	s = strings.TrimPrefix(s, ".")
	if canonical, ok := aliases[s]; ok {
		return canonical
	}
	return s
}

// IsStructured reports whether the selector asks for the JSON record instead of bytes.
// An empty selector and "*/*" also select the record.
func IsStructured(selector string) bool {
	s := Normalize(selector)
	return s == "" || s == "*/*" || s == Structured
}

// Extension returns the file extension (with dot) used for derived files of the given format.
func Extension(selector string) (string, bool) {
	ext, ok := extensions[Normalize(selector)]
	return ext, ok
}

// Extensions returns every extension used for derived files, sorted.
func Extensions() []string {
	exts := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Supported reports whether the format can be requested as a conversion target.
func Supported(selector string) bool {
	_, ok := Extension(selector)
	return ok
}

// FromAccept picks the first media range of an Accept header that is either the
// structured record or a known image format.
func FromAccept(accept string) string {
	for _, part := range strings.Split(accept, ",") {
		s := Normalize(part)
		if s == Structured || Supported(s) {
			return s
		}
	}
	return ""
}
