package zim

import (
	"fmt"
	"os"
)

// Hints carry indexing guidance for an item being added to an archive.
type Hints struct {
	// FrontArticle marks the item as primary navigable content. Front
	// articles are the ones listed in the title index.
	FrontArticle bool
}

// Item is the capability set a Creator needs from anything it stores:
// where the content lives in the archive, how it is titled and typed,
// and how to materialize its bytes.
type Item interface {
	Path() string
	Title() string
	Mimetype() string
	Content() ([]byte, error)
	Hints() Hints
}

// StringItem is an Item backed by in-memory content.
type StringItem struct {
	path     string
	title    string
	mimetype string
	content  string
	hints    Hints
}

// NewStringItem builds an in-memory item.
func NewStringItem(path, title, mimetype, content string, hints Hints) *StringItem {
	return &StringItem{path: path, title: title, mimetype: mimetype, content: content, hints: hints}
}

func (it *StringItem) Path() string     { return it.path }
func (it *StringItem) Title() string    { return it.title }
func (it *StringItem) Mimetype() string { return it.mimetype }
func (it *StringItem) Hints() Hints     { return it.hints }

func (it *StringItem) Content() ([]byte, error) {
	return []byte(it.content), nil
}

// FileItem is an Item whose content is read from the filesystem when the
// archive is staged, not when the item is declared.
type FileItem struct {
	path     string
	title    string
	mimetype string
	filePath string
	hints    Hints
}

// NewFileItem builds a file-backed item reading from filePath.
func NewFileItem(path, title, mimetype, filePath string, hints Hints) *FileItem {
	return &FileItem{path: path, title: title, mimetype: mimetype, filePath: filePath, hints: hints}
}

func (it *FileItem) Path() string     { return it.path }
func (it *FileItem) Title() string    { return it.title }
func (it *FileItem) Mimetype() string { return it.mimetype }
func (it *FileItem) Hints() Hints     { return it.hints }

func (it *FileItem) Content() ([]byte, error) {
	b, err := os.ReadFile(it.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read item source %s: %w", it.filePath, err)
	}
	return b, nil
}
