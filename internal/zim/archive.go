// Package zim implements the ZPK1 archive container: a namespaced,
// titled collection of compressed content entries with metadata, a
// designated landing entry, and an optional title index.
//
// The container is deliberately simple: a fixed header, a blob section
// of per-entry zstd frames, and a TOC at the end of the file. Readers
// load the TOC once and materialize entry content lazily.
package zim

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"maps"
	"os"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

var (
	// ErrInvalidArchive reports that a file is not a readable archive:
	// wrong magic, unsupported version, or a truncated/corrupt TOC.
	ErrInvalidArchive = errors.New("not a valid archive")

	// ErrNotFound reports that a requested entry path is absent.
	ErrNotFound = errors.New("entry not found")
)

// Archive is a read-only handle on an existing archive file.
type Archive struct {
	f          *os.File
	dec        *zstd.Decoder
	hdr        header
	language   string
	mainPath   string
	meta       map[string]string
	entries    []Entry
	byPath     map[string]int
	titleIndex []int
}

// Entry is one addressable unit inside an archive. Fields come from the
// TOC; content is read and decompressed on demand via Content.
type Entry struct {
	Path         string
	Title        string
	Mimetype     string
	FrontArticle bool

	a          *Archive
	offset     uint64
	storedSize uint64
	rawSize    uint64
}

// Namespace returns the entry's single-character namespace code, or ""
// for an empty path.
func (e Entry) Namespace() string {
	if e.Path == "" {
		return ""
	}
	return string(e.Path[0])
}

// Content reads and decompresses the entry's bytes.
func (e Entry) Content() ([]byte, error) {
	stored := make([]byte, e.storedSize)
	if n, err := e.a.f.ReadAt(stored, int64(e.offset)); err != nil && !(errors.Is(err, io.EOF) && n == len(stored)) {
		return nil, fmt.Errorf("failed to read content of %s: %w", e.Path, err)
	}
	raw, err := e.a.dec.DecodeAll(stored, make([]byte, 0, e.rawSize))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress content of %s: %w", e.Path, err)
	}
	return raw, nil
}

// Open opens an existing archive for random-access reads. It fails with
// an error wrapping ErrInvalidArchive if the file is not a valid
// archive, and with the underlying fs error if it cannot be opened.
func Open(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive at %s: %w", path, err)
	}

	a, err := load(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

func load(f *os.File) (*Archive, error) {
	a := &Archive{f: f}

	if err := a.hdr.read(f); err != nil {
		if errors.Is(err, ErrInvalidArchive) {
			return nil, err
		}
		// short files surface as read failures
		return nil, fmt.Errorf("%w: %s", ErrInvalidArchive, err)
	}

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}
	if a.hdr.TOCOffset < headerSize || int64(a.hdr.TOCOffset) > fi.Size() {
		return nil, fmt.Errorf("%w: TOC offset %d out of bounds", ErrInvalidArchive, a.hdr.TOCOffset)
	}

	tocBytes := make([]byte, fi.Size()-int64(a.hdr.TOCOffset))
	if n, err := f.ReadAt(tocBytes, int64(a.hdr.TOCOffset)); err != nil && !(errors.Is(err, io.EOF) && n == len(tocBytes)) {
		return nil, fmt.Errorf("%w: failed to read TOC: %s", ErrInvalidArchive, err)
	}
	if err := a.parseTOC(bytes.NewReader(tocBytes)); err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize decompressor: %w", err)
	}
	a.dec = dec

	return a, nil
}

func (a *Archive) parseTOC(r *bytes.Reader) error {
	var err error
	if a.language, err = readString(r); err != nil {
		return err
	}
	if a.mainPath, err = readString(r); err != nil {
		return err
	}

	metaCount, err := readCount(r, "metadata")
	if err != nil {
		return err
	}
	a.meta = make(map[string]string, metaCount)
	for range metaCount {
		k, err := readString(r)
		if err != nil {
			return err
		}
		v, err := readString(r)
		if err != nil {
			return err
		}
		a.meta[k] = v
	}

	entryCount, err := readCount(r, "entry")
	if err != nil {
		return err
	}
	a.entries = make([]Entry, 0, entryCount)
	a.byPath = make(map[string]int, entryCount)
	for i := range entryCount {
		var te tocEntry
		if err := te.read(r); err != nil {
			return err
		}
		a.entries = append(a.entries, Entry{
			Path:         te.Path,
			Title:        te.Title,
			Mimetype:     te.Mimetype,
			FrontArticle: te.Flags&entryFlagFront != 0,
			a:            a,
			offset:       te.Offset,
			storedSize:   te.StoredSize,
			rawSize:      te.RawSize,
		})
		a.byPath[te.Path] = i
	}

	if a.hdr.Flags&flagTitleIndex != 0 {
		idxCount, err := readCount(r, "title index")
		if err != nil {
			return err
		}
		a.titleIndex = make([]int, 0, idxCount)
		for range idxCount {
			idx, err := readUvarintChecked(r, "title index entry")
			if err != nil {
				return err
			}
			if idx >= uint64(len(a.entries)) {
				return fmt.Errorf("%w: title index references entry %d of %d", ErrInvalidArchive, idx, len(a.entries))
			}
			a.titleIndex = append(a.titleIndex, int(idx))
		}
	}

	return nil
}

func readCount(r *bytes.Reader, what string) (int, error) {
	n, err := readUvarintChecked(r, what+" count")
	if err != nil {
		return 0, err
	}
	if n > uint64(r.Len()) {
		// every record is at least one byte
		return 0, fmt.Errorf("%w: %s count %d exceeds TOC", ErrInvalidArchive, what, n)
	}
	return int(n), nil
}

func readUvarintChecked(r *bytes.Reader, what string) (uint64, error) {
	v, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read %s: %s", ErrInvalidArchive, what, err)
	}
	return v, nil
}

// Close releases the archive handle.
func (a *Archive) Close() error {
	a.dec.Close()
	return a.f.Close()
}

// EntryCount returns the number of entries in the archive.
func (a *Archive) EntryCount() int {
	return len(a.entries)
}

// EntryAt returns the entry at a 0-based index. An out-of-range index is
// a programming error and panics.
func (a *Archive) EntryAt(i int) Entry {
	return a.entries[i]
}

// EntryByPath looks an entry up by its full namespaced path.
func (a *Archive) EntryByPath(path string) (Entry, error) {
	i, ok := a.byPath[path]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return a.entries[i], nil
}

// Entries iterates all entries in archive order.
func (a *Archive) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range a.entries {
			if !yield(e) {
				return
			}
		}
	}
}

// Paths iterates all entry paths in archive order.
func (a *Archive) Paths() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, e := range a.entries {
			if !yield(e.Path) {
				return
			}
		}
	}
}

// MainPath returns the archive's landing entry path, which may be empty.
func (a *Archive) MainPath() string {
	return a.mainPath
}

// Language returns the index language code the archive was created with.
func (a *Archive) Language() string {
	return a.language
}

// Metadata returns a copy of the archive's metadata pairs.
func (a *Archive) Metadata() map[string]string {
	return maps.Clone(a.meta)
}

// HasTitleIndex reports whether the archive carries a title index.
func (a *Archive) HasTitleIndex() bool {
	return a.hdr.Flags&flagTitleIndex != 0
}

// Suggest returns front articles whose title starts with prefix, in
// title order. Without a title index it returns nil.
func (a *Archive) Suggest(prefix string) []Entry {
	if a.titleIndex == nil {
		return nil
	}
	start := sort.Search(len(a.titleIndex), func(i int) bool {
		return a.entries[a.titleIndex[i]].Title >= prefix
	})
	var out []Entry
	for _, idx := range a.titleIndex[start:] {
		if !strings.HasPrefix(a.entries[idx].Title, prefix) {
			break
		}
		out = append(out, a.entries[idx])
	}
	return out
}
