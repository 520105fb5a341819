// Package build assembles brand-new archives, either from an in-memory
// plan or from a directory walk, behind a temp-file + backup + rename
// protocol that never loses a pre-existing output file.
package build

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ossyrian/zimkit/internal/mimetype"
	"github.com/ossyrian/zimkit/internal/zim"
)

// Phase names the stage of a build at which a failure occurred.
type Phase string

const (
	// PhaseStage covers writing the new archive to the temp path.
	PhaseStage Phase = "stage"
	// PhaseSwap covers moving the old file aside and the temp file in.
	PhaseSwap Phase = "swap"
	// PhaseCommit covers removing the backup after a successful swap.
	PhaseCommit Phase = "commit"
)

// Error is a build failure with enough context to reconstruct the
// on-disk state: which phase failed and which path was involved. After
// a swap or commit failure a .backup file may remain next to the
// output; that is a recoverable state, not a silent one.
type Error struct {
	Phase Phase
	Path  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("build failed during %s at %s: %v", e.Phase, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// retryDelay is how long to wait before the single retry of a rename
// that failed with a permission error (typically a transient file lock
// held by another process). Package var so tests can shorten it.
var retryDelay = 2 * time.Second

// rename is swapped out in tests to inject rename failures; permission
// errors cannot be provoked through the real filesystem when running
// as root.
var rename = os.Rename

// Record is one article to be written into a new archive.
type Record struct {
	Title   string
	Path    string
	Content string
}

// Plan is a complete description of an archive to build. It is consumed
// exactly once by Build and never mutated.
type Plan struct {
	Records  []Record
	MainPath string
	Metadata map[string]string
}

// Options configure archive creation.
type Options struct {
	// Language is the full-text index language, e.g. "eng".
	Language string
	// Indexing enables index construction for front articles.
	Indexing bool
}

// DefaultOptions are the standard creation settings: an English
// full-text index.
func DefaultOptions() Options {
	return Options{Language: "eng", Indexing: true}
}

// DefaultMetadata is the metadata set attached when the caller supplies
// none of its own.
func DefaultMetadata() map[string]string {
	return map[string]string{
		"creator":     "zimkit",
		"description": "Created with zimkit",
		"name":        "zimkit-archive",
		"publisher":   "You",
		"title":       "zimkit archive",
		"language":    "eng",
		"date":        time.Now().Format("2006-01-02"),
	}
}

var titleCaser = cases.Title(language.English)

// Build stages a new archive at outputPath+".tmp", swaps it into place
// (renaming any pre-existing output to outputPath+".backup" first), and
// removes the backup on success. Any leftover temp file is removed on
// every exit path. A staging failure leaves the pre-existing output
// untouched.
//
// Concurrent builds against the same outputPath are not safe; callers
// must serialize them.
func Build(outputPath string, plan Plan, opts Options) (err error) {
	tmpPath := outputPath + ".tmp"
	backupPath := outputPath + ".backup"
	logger := slog.With("output", outputPath)

	defer func() {
		if _, statErr := os.Stat(tmpPath); statErr == nil {
			if rmErr := os.Remove(tmpPath); rmErr != nil {
				logger.Warn("failed to remove temp file", "path", tmpPath, "error", rmErr)
			}
		}
	}()

	if err := stage(tmpPath, plan, opts, logger); err != nil {
		return &Error{Phase: PhaseStage, Path: tmpPath, Err: err}
	}

	if _, statErr := os.Stat(outputPath); statErr == nil {
		if err := renameWithRetry(outputPath, backupPath, logger); err != nil {
			return &Error{Phase: PhaseSwap, Path: backupPath, Err: err}
		}
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		// the original survives as the backup; report, do not hide
		return &Error{Phase: PhaseSwap, Path: outputPath, Err: err}
	}

	logger.Info("archive created", "entries", len(plan.Records))

	if _, statErr := os.Stat(backupPath); statErr == nil {
		if err := os.Remove(backupPath); err != nil {
			return &Error{Phase: PhaseCommit, Path: backupPath, Err: err}
		}
	}

	return nil
}

// stage writes the complete new archive to tmpPath.
func stage(tmpPath string, plan Plan, opts Options, logger *slog.Logger) error {
	c, err := zim.Create(tmpPath, zim.CreateOptions{Indexing: opts.Indexing, Language: opts.Language})
	if err != nil {
		return err
	}
	defer c.Close()

	for _, rec := range plan.Records {
		logger.Debug("processing article", "title", rec.Title, "path", rec.Path)
		item := zim.NewStringItem(
			rec.Path,
			rec.Title,
			mimetype.ResolveForWrite(rec.Path),
			rec.Content,
			zim.Hints{FrontArticle: true},
		)
		if err := c.AddItem(item); err != nil {
			return err
		}
	}

	c.SetMainPath(plan.MainPath)

	metadata := plan.Metadata
	if metadata == nil {
		metadata = DefaultMetadata()
	}
	for _, key := range sortedKeys(metadata) {
		c.AddMetadata(titleCaser.String(key), metadata[key])
	}

	return c.Finalize()
}

// renameWithRetry renames from→to, retrying exactly once after a short
// delay when the failure looks like a transient permission problem.
func renameWithRetry(from, to string, logger *slog.Logger) error {
	err := rename(from, to)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrPermission) {
		return err
	}

	logger.Warn("permission denied while renaming existing file, retrying", "from", from, "to", to)
	time.Sleep(retryDelay)
	return rename(from, to)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// inferNamespace maps a file name to the namespace its content belongs
// in when packaging a directory.
func inferNamespace(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return "A"
	case ".png", ".jpg", ".jpeg":
		return "I"
	case ".css", ".js":
		return "S"
	case ".pdf":
		return "F"
	case ".mp4", ".webm", ".ogg":
		return "V"
	default:
		return "F"
	}
}

// PlanFromDirectory walks inputDir and derives one record per regular
// file: namespace inferred from the extension, archive path
// "<namespace>/<relative path>" with forward slashes, content read as
// best-effort UTF-8 text, and the base name minus extension as title.
func PlanFromDirectory(inputDir, mainPath string) (Plan, error) {
	plan := Plan{MainPath: mainPath}

	err := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(inputDir, path)
		if err != nil {
			return err
		}

		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		content := string(b)
		if !utf8.ValidString(content) {
			slog.Warn("file content is not valid UTF-8, replacing bad sequences", "path", path)
			content = strings.ToValidUTF8(content, string(utf8.RuneError))
		}

		name := d.Name()
		plan.Records = append(plan.Records, Record{
			Title:   strings.TrimSuffix(name, filepath.Ext(name)),
			Path:    inferNamespace(name) + "/" + filepath.ToSlash(rel),
			Content: content,
		})
		return nil
	})
	if err != nil {
		return Plan{}, fmt.Errorf("failed to walk %s: %w", inputDir, err)
	}

	return plan, nil
}

// BuildFromDirectory packages every file under inputDir into a new
// archive at outputPath with mainPath as the landing entry.
func BuildFromDirectory(outputPath, mainPath, inputDir string, opts Options) error {
	plan, err := PlanFromDirectory(inputDir, mainPath)
	if err != nil {
		return err
	}
	return Build(outputPath, plan, opts)
}
