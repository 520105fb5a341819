// Package reader implements the text, title, and path operations over an
// open archive: body-text extraction for a namespace, title listings,
// path listings, and retrieval of caller-selected articles.
package reader

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ossyrian/zimkit/internal/zim"
)

// ErrEmptyResult reports that an operation which must produce at least
// one result produced none. Distinct from a successful empty output.
var ErrEmptyResult = errors.New("no results found")

var (
	bodyRe = regexp.MustCompile(`(?is)<body.*?>(.*?)</body>`)
	tagRe  = regexp.MustCompile(`<[^<]+?>`)
)

// decode converts entry bytes to a string, replacing invalid UTF-8
// sequences. Corrupt individual entries are expected in large archives,
// so this warns and carries on rather than failing.
func decode(path string, b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	slog.Warn("entry content is not valid UTF-8, replacing bad sequences", "path", path)
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}

// stripTags removes all tag markup from an HTML fragment.
func stripTags(s string) string {
	return tagRe.ReplaceAllString(s, "")
}

// ExtractText yields the cleaned body text of every entry under the
// given namespace code. Entries whose content has no recognizable
// <body> region are skipped entirely.
func ExtractText(a *zim.Archive, nsCode string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for e := range a.Entries() {
			if !strings.HasPrefix(e.Path, nsCode) {
				continue
			}
			content, err := e.Content()
			if err != nil {
				slog.Warn("failed to read entry content, skipping", "path", e.Path, "error", err)
				continue
			}
			m := bodyRe.FindStringSubmatch(decode(e.Path, content))
			if m == nil {
				continue
			}
			if !yield(stripTags(m[1])) {
				return
			}
		}
	}
}

// PathTitle pairs an entry path with its display title.
type PathTitle struct {
	Path  string
	Title string
}

// Titles returns (path, title) for every entry under the namespace code.
func Titles(a *zim.Archive, nsCode string) []PathTitle {
	var results []PathTitle
	for e := range a.Entries() {
		if strings.HasPrefix(e.Path, nsCode) {
			results = append(results, PathTitle{Path: e.Path, Title: e.Title})
		}
	}
	return results
}

// ListPaths returns every entry path, or every path under a namespace
// code when one is given. An empty code lists the whole archive.
func ListPaths(a *zim.Archive, nsCode string) []string {
	var paths []string
	for p := range a.Paths() {
		if nsCode == "" || strings.HasPrefix(p, nsCode) {
			paths = append(paths, p)
		}
	}
	return paths
}

// Article is one retrieved entry with its markup stripped.
type Article struct {
	Title string
	Text  string
}

// FetchSelected looks up each requested path in order, duplicates
// included, and returns the cleaned text of those found. Paths absent
// from the archive are skipped. Unlike ExtractText, an entry without a
// <body> region is not dropped; its whole document is stripped instead.
func FetchSelected(a *zim.Archive, urls []string) []Article {
	var articles []Article
	for _, url := range urls {
		e, err := a.EntryByPath(url)
		if err != nil {
			slog.Debug("selected path not in archive, skipping", "path", url)
			continue
		}
		content, err := e.Content()
		if err != nil {
			slog.Warn("failed to read entry content, skipping", "path", url, "error", err)
			continue
		}
		doc := decode(e.Path, content)

		var text string
		if m := bodyRe.FindStringSubmatch(doc); m != nil {
			text = stripTags(m[1])
		} else {
			text = stripTags(doc)
		}
		articles = append(articles, Article{Title: e.Title, Text: text})
	}
	return articles
}

// SaveText writes the extracted body text of a namespace to a file, one
// blank line between entries.
func SaveText(a *zim.Archive, nsCode, outputFile string) error {
	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	for text := range ExtractText(a, nsCode) {
		if _, err := fmt.Fprintf(f, "%s\n\n", text); err != nil {
			return fmt.Errorf("failed to write text: %w", err)
		}
	}
	return nil
}

// SaveTitles writes a title/URL report for a namespace. A namespace with
// no entries at all is ErrEmptyResult, not an empty file.
func SaveTitles(a *zim.Archive, nsCode, outputFile string) error {
	results := Titles(a, nsCode)
	if len(results) == 0 {
		return fmt.Errorf("%w: no titles under namespace %q", ErrEmptyResult, nsCode)
	}

	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	for _, r := range results {
		if _, err := fmt.Fprintf(f, "Title: %s\nURL: %s\n\n", r.Title, r.Path); err != nil {
			return fmt.Errorf("failed to write titles: %w", err)
		}
	}
	return nil
}

// SaveArticles writes the selected articles as a titled report.
func SaveArticles(a *zim.Archive, urls []string, outputFile string) error {
	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	for _, art := range FetchSelected(a, urls) {
		if _, err := fmt.Fprintf(f, "Title: %s\n\n%s\n\n", art.Title, art.Text); err != nil {
			return fmt.Errorf("failed to write article: %w", err)
		}
	}
	return nil
}
