// Package extract writes matching archive entries out to a mirrored
// directory tree, filtered by namespace selector and mimetype prefix.
package extract

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ossyrian/zimkit/internal/mimetype"
	"github.com/ossyrian/zimkit/internal/namespace"
	"github.com/ossyrian/zimkit/internal/zim"
)

// sanitizeSegment replaces filesystem-hostile characters in one path
// segment with underscores. Separators between segments are handled by
// sanitizePath, so "/" never appears inside a segment.
func sanitizeSegment(seg string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '\\', '|', '?', '*':
			return '_'
		}
		return r
	}, seg)
}

// sanitizePath sanitizes every segment of an entry path while keeping
// the path's own "/" separators as directory boundaries in the output
// tree.
func sanitizePath(path string) string {
	segs := strings.Split(path, "/")
	for i, seg := range segs {
		segs[i] = sanitizeSegment(seg)
	}
	return strings.Join(segs, "/")
}

// binaryOutput reports whether entries matched under this mimetype
// prefix are written as raw bytes rather than lossily-decoded text.
func binaryOutput(mimePrefix string) bool {
	for _, media := range []string{"image", "video", "application/octet-stream"} {
		if strings.Contains(mimePrefix, media) {
			return true
		}
	}
	return false
}

// Extract walks every entry of the archive and writes those matching
// both the namespace selector and the mimetype prefix into outputDir.
// The prefix matches loosely: "image/" catches image/png and image/jpeg
// alike. Per-entry problems are warned about and skipped; the run only
// fails on filesystem errors that would lose output. Returns the number
// of files written.
func Extract(a *zim.Archive, outputDir string, sel namespace.Selector, mimePrefix string) (int, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	logger := slog.With("output_dir", outputDir, "mimetype", mimePrefix)
	asBinary := binaryOutput(mimePrefix)
	written := 0

	for i := 0; i < a.EntryCount(); i++ {
		entry := a.EntryAt(i)
		if entry.Path == "" {
			logger.Warn("entry has an empty path, skipping", "index", i)
			continue
		}

		mime := mimetype.Resolve(entry.Path)
		if !sel.Matches(entry.Namespace()) || !strings.HasPrefix(mime, mimePrefix) {
			continue
		}

		content, err := entry.Content()
		if err != nil {
			logger.Warn("failed to read entry content, skipping", "path", entry.Path, "error", err)
			continue
		}

		rel := sanitizePath(entry.Path) + "." + mimetype.Subtype(mime)
		outPath := filepath.Join(outputDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return written, fmt.Errorf("failed to create directory for %s: %w", outPath, err)
		}

		if !asBinary && !utf8.Valid(content) {
			logger.Warn("entry content is not valid UTF-8, replacing bad sequences", "path", entry.Path)
			content = []byte(strings.ToValidUTF8(string(content), string(utf8.RuneError)))
		}
		if err := os.WriteFile(outPath, content, 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", outPath, err)
		}

		written++
		logger.Debug("extracted entry", "path", entry.Path, "file", outPath)
	}

	logger.Info("extraction finished", "files", written)
	return written, nil
}
