package mimetype_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ossyrian/zimkit/internal/mimetype"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		// article namespace wins over extension
		{"A/page", "text/html"},
		{"A/picture.png", "text/html"},
		{"I/page.html", "text/html"},
		{"I/page.htm", "text/html"},
		{"I/logo.png", "image/png"},
		{"I/photo.jpg", "image/jpeg"},
		{"I/photo.jpeg", "image/jpeg"},
		{"S/site.css", "text/css"},
		{"S/app.js", "application/javascript"},
		{"F/doc.pdf", "application/pdf"},
		{"F/bundle.zip", "application/zip"},
		{"V/clip.mp4", "video/mp4"},
		{"V/clip.webm", "video/webm"},
		{"V/clip.ogg", "video/ogg"},
		{"F/unknown.xyz", "application/octet-stream"},
		{"X/noext", "application/octet-stream"},
		// extension matching ignores case
		{"I/LOGO.PNG", "image/png"},
		{"I/Photo.JpG", "image/jpeg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mimetype.Resolve(tt.path), "path %q", tt.path)
	}
}

func TestResolveForWrite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"home.html", "text/html"},
		{"home.htm", "text/html"},
		{"logo.png", "image/png"},
		{"photo.jpg", "image/jpeg"},
		{"photo.jpeg", "image/jpeg"},
		{"site.css", "text/css"},
		{"app.js", "application/javascript"},
		// write-side list has no pdf/zip/video rules
		{"doc.pdf", "application/octet-stream"},
		{"clip.mp4", "application/octet-stream"},
		// and no article-prefix rule
		{"A/page", "application/octet-stream"},
		// extension matching ignores case, as namespace inference does
		{"PHOTO.PNG", "image/png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mimetype.ResolveForWrite(tt.path), "path %q", tt.path)
	}
}

func TestSubtype(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "png", mimetype.Subtype("image/png"))
	assert.Equal(t, "octet-stream", mimetype.Subtype("application/octet-stream"))
	assert.Equal(t, "plain", mimetype.Subtype("text/plain"))
	assert.Equal(t, "weird", mimetype.Subtype("weird"))
}
