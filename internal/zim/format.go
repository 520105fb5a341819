package zim

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Magic identifies a ZPK1 container. The first four bytes of every
// archive must match it exactly.
var Magic = [4]byte{'Z', 'P', 'K', '1'}

// FormatVersion is the container revision this package reads and writes.
const FormatVersion uint16 = 1

// headerSize is the fixed byte length of the file header:
// magic(4) + version(2) + flags(2) + toc offset(8).
const headerSize = 16

// Header flag bits.
const (
	// flagTitleIndex indicates the TOC carries a title-ordered index of
	// front articles, built when indexing was enabled at creation time.
	flagTitleIndex uint16 = 1 << 0
)

// header is the fixed-size file header. The TOC offset is written as a
// placeholder at creation time and patched during finalize.
type header struct {
	Magic     [4]byte
	Version   uint16
	Flags     uint16
	TOCOffset uint64
}

func (h *header) write(w io.Writer) error {
	if _, err := w.Write(h.Magic[:]); err != nil {
		return fmt.Errorf("failed to write magic: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, h.Version); err != nil {
		return fmt.Errorf("failed to write version: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, h.Flags); err != nil {
		return fmt.Errorf("failed to write flags: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, h.TOCOffset); err != nil {
		return fmt.Errorf("failed to write TOC offset: %w", err)
	}
	return nil
}

func (h *header) read(r io.Reader) error {
	if _, err := io.ReadFull(r, h.Magic[:]); err != nil {
		return fmt.Errorf("failed to read magic: %w", err)
	}
	if h.Magic != Magic {
		return fmt.Errorf("%w: magic %q", ErrInvalidArchive, h.Magic)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.Version); err != nil {
		return fmt.Errorf("failed to read version: %w", err)
	}
	if h.Version != FormatVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidArchive, h.Version)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.Flags); err != nil {
		return fmt.Errorf("failed to read flags: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.TOCOffset); err != nil {
		return fmt.Errorf("failed to read TOC offset: %w", err)
	}
	return nil
}

// Entry flag bits in TOC records.
const (
	entryFlagFront uint8 = 1 << 0
)

// tocEntry is one TOC record describing a stored item. Content lives in
// the blob section at Offset, zstd-compressed to StoredSize bytes.
type tocEntry struct {
	Path       string
	Title      string
	Mimetype   string
	Flags      uint8
	Offset     uint64
	StoredSize uint64
	RawSize    uint64
}

// Strings are uvarint-length-prefixed UTF-8. The TOC is always decoded
// from an in-memory buffer, so readers take a *bytes.Reader.

func writeString(buf *bytes.Buffer, s string) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(s)))
	buf.Write(tmp[:n])
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", fmt.Errorf("failed to read string length: %w", err)
	}
	if n > uint64(r.Len()) {
		return "", fmt.Errorf("%w: string length %d exceeds TOC", ErrInvalidArchive, n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("failed to read string: %w", err)
	}
	return string(b), nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func (e *tocEntry) write(buf *bytes.Buffer) {
	writeString(buf, e.Path)
	writeString(buf, e.Title)
	writeString(buf, e.Mimetype)
	buf.WriteByte(e.Flags)
	writeUvarint(buf, e.Offset)
	writeUvarint(buf, e.StoredSize)
	writeUvarint(buf, e.RawSize)
}

func (e *tocEntry) read(r *bytes.Reader) error {
	var err error
	if e.Path, err = readString(r); err != nil {
		return fmt.Errorf("failed to read entry path: %w", err)
	}
	if e.Title, err = readString(r); err != nil {
		return fmt.Errorf("failed to read entry title: %w", err)
	}
	if e.Mimetype, err = readString(r); err != nil {
		return fmt.Errorf("failed to read entry mimetype: %w", err)
	}
	if e.Flags, err = r.ReadByte(); err != nil {
		return fmt.Errorf("failed to read entry flags: %w", err)
	}
	if e.Offset, err = binary.ReadUvarint(r); err != nil {
		return fmt.Errorf("failed to read entry offset: %w", err)
	}
	if e.StoredSize, err = binary.ReadUvarint(r); err != nil {
		return fmt.Errorf("failed to read entry stored size: %w", err)
	}
	if e.RawSize, err = binary.ReadUvarint(r); err != nil {
		return fmt.Errorf("failed to read entry raw size: %w", err)
	}
	return nil
}
