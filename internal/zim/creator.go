package zim

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/klauspost/compress/zstd"
)

// CreateOptions configure a new archive.
type CreateOptions struct {
	// Indexing enables the title index over front articles.
	Indexing bool
	// Language is the index language code attached to the archive,
	// e.g. "eng". Stored even when indexing is disabled.
	Language string
}

// Creator writes a brand-new archive. Items are compressed and appended
// as they are added; the TOC is written by Finalize, which also patches
// the header with the TOC offset. A Creator that is closed without being
// finalized leaves an unusable file behind for the caller to discard.
type Creator struct {
	f         *os.File
	enc       *zstd.Encoder
	opts      CreateOptions
	logger    *slog.Logger
	offset    uint64
	entries   []tocEntry
	seen      map[string]struct{}
	meta      []metaPair
	mainPath  string
	finalized bool
}

type metaPair struct {
	key   string
	value string
}

// Create opens path for writing and stages the fixed header. The file is
// truncated if it already exists; callers wanting crash-safe replacement
// stage into a temporary path and rename afterwards.
func Create(path string, opts CreateOptions) (*Creator, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive at %s: %w", path, err)
	}

	h := header{Magic: Magic, Version: FormatVersion}
	if err := h.write(f); err != nil {
		f.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to initialize compressor: %w", err)
	}

	return &Creator{
		f:      f,
		enc:    enc,
		opts:   opts,
		logger: slog.With("archive", path),
		offset: headerSize,
		seen:   map[string]struct{}{},
	}, nil
}

// AddItem compresses and appends one item. Paths must be unique within
// the archive.
func (c *Creator) AddItem(it Item) error {
	path := it.Path()
	if path == "" {
		return fmt.Errorf("item has an empty path")
	}
	if _, dup := c.seen[path]; dup {
		return fmt.Errorf("duplicate entry path %q", path)
	}

	raw, err := it.Content()
	if err != nil {
		return fmt.Errorf("failed to load content for %s: %w", path, err)
	}

	compressed := c.enc.EncodeAll(raw, nil)
	if _, err := c.f.Write(compressed); err != nil {
		return fmt.Errorf("failed to write content for %s: %w", path, err)
	}

	var flags uint8
	if it.Hints().FrontArticle {
		flags |= entryFlagFront
	}

	c.entries = append(c.entries, tocEntry{
		Path:       path,
		Title:      it.Title(),
		Mimetype:   it.Mimetype(),
		Flags:      flags,
		Offset:     c.offset,
		StoredSize: uint64(len(compressed)),
		RawSize:    uint64(len(raw)),
	})
	c.seen[path] = struct{}{}
	c.offset += uint64(len(compressed))

	c.logger.Debug("added item",
		"path", path,
		"mimetype", it.Mimetype(),
		"raw_size", len(raw),
		"stored_size", len(compressed),
	)

	return nil
}

// SetMainPath designates the archive's landing entry.
func (c *Creator) SetMainPath(path string) {
	c.mainPath = path
}

// AddMetadata attaches one key/value pair. Pairs are stored in insertion
// order; a repeated key overwrites the earlier value.
func (c *Creator) AddMetadata(key, value string) {
	for i := range c.meta {
		if c.meta[i].key == key {
			c.meta[i].value = value
			return
		}
	}
	c.meta = append(c.meta, metaPair{key: key, value: value})
}

// Finalize writes the TOC, patches the header, and closes the file. The
// Creator is unusable afterwards.
func (c *Creator) Finalize() error {
	if c.finalized {
		return fmt.Errorf("archive already finalized")
	}

	h := header{Magic: Magic, Version: FormatVersion, TOCOffset: c.offset}
	if c.opts.Indexing {
		h.Flags |= flagTitleIndex
	}

	buf := new(bytes.Buffer)
	writeString(buf, c.opts.Language)
	writeString(buf, c.mainPath)
	writeUvarint(buf, uint64(len(c.meta)))
	for _, m := range c.meta {
		writeString(buf, m.key)
		writeString(buf, m.value)
	}
	writeUvarint(buf, uint64(len(c.entries)))
	for i := range c.entries {
		c.entries[i].write(buf)
	}
	if c.opts.Indexing {
		c.writeTitleIndex(buf)
	}

	if _, err := c.f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write TOC: %w", err)
	}
	if _, err := c.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to header: %w", err)
	}
	if err := h.write(c.f); err != nil {
		return err
	}
	if err := c.f.Sync(); err != nil {
		return fmt.Errorf("failed to sync archive: %w", err)
	}
	if err := c.f.Close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}
	c.finalized = true
	c.enc.Close()

	c.logger.Info("archive finalized",
		"entries", len(c.entries),
		"indexed", c.opts.Indexing,
		"size", c.offset+uint64(buf.Len()),
	)

	return nil
}

// writeTitleIndex appends the title-ordered index of front articles.
// Ties keep insertion order so the index is deterministic.
func (c *Creator) writeTitleIndex(buf *bytes.Buffer) {
	var front []int
	for i := range c.entries {
		if c.entries[i].Flags&entryFlagFront != 0 {
			front = append(front, i)
		}
	}
	sort.SliceStable(front, func(a, b int) bool {
		return c.entries[front[a]].Title < c.entries[front[b]].Title
	})
	writeUvarint(buf, uint64(len(front)))
	for _, idx := range front {
		writeUvarint(buf, uint64(idx))
	}
}

// Close releases the Creator without finalizing. Safe to call after
// Finalize, in which case it does nothing.
func (c *Creator) Close() error {
	if c.finalized {
		return nil
	}
	c.enc.Close()
	return c.f.Close()
}
