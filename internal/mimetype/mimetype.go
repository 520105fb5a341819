// Package mimetype derives content types from entry paths. Resolution is
// extension driven, never content-sniffed, so the same path always maps
// to the same type.
package mimetype

import "strings"

// Default is the fallback type for anything unmatched.
const Default = "application/octet-stream"

type rule struct {
	suffix string
	mime   string
}

// Ordered rule lists; first match wins. The read-side list additionally
// treats anything under the article namespace as HTML regardless of
// extension, which the write-side list must not do: at creation time the
// path has not been namespaced yet.
var readRules = []rule{
	{".html", "text/html"},
	{".htm", "text/html"},
	{".png", "image/png"},
	{".jpg", "image/jpeg"},
	{".jpeg", "image/jpeg"},
	{".css", "text/css"},
	{".js", "application/javascript"},
	{".pdf", "application/pdf"},
	{".zip", "application/zip"},
	{".mp4", "video/mp4"},
	{".webm", "video/webm"},
	{".ogg", "video/ogg"},
}

var writeRules = []rule{
	{".html", "text/html"},
	{".htm", "text/html"},
	{".png", "image/png"},
	{".jpg", "image/jpeg"},
	{".jpeg", "image/jpeg"},
	{".css", "text/css"},
	{".js", "application/javascript"},
}

// Resolve classifies an existing entry path.
func Resolve(path string) string {
	if strings.HasPrefix(path, "A/") {
		return "text/html"
	}
	return match(readRules, path)
}

// ResolveForWrite assigns a type to a file being packaged into a new
// archive.
func ResolveForWrite(path string) string {
	return match(writeRules, path)
}

// Extensions match case-insensitively so a packaged PHOTO.PNG resolves
// the same way on the read side as the namespace inference treated it
// on the write side.
func match(rules []rule, path string) string {
	lower := strings.ToLower(path)
	for _, r := range rules {
		if strings.HasSuffix(lower, r.suffix) {
			return r.mime
		}
	}
	return Default
}

// Subtype returns the part of a MIME type after the slash, used as a
// file extension when extracting ("png" for "image/png"). Types without
// a slash are returned unchanged.
func Subtype(mime string) string {
	if i := strings.LastIndex(mime, "/"); i >= 0 {
		return mime[i+1:]
	}
	return mime
}
