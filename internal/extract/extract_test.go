package extract_test

import (
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossyrian/zimkit/internal/extract"
	"github.com/ossyrian/zimkit/internal/namespace"
	"github.com/ossyrian/zimkit/internal/zim"
)

func openArchive(t *testing.T, items ...zim.Item) *zim.Archive {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.zpk")
	c, err := zim.Create(path, zim.CreateOptions{Language: "eng"})
	require.NoError(t, err)
	defer c.Close()
	for _, it := range items {
		require.NoError(t, c.AddItem(it))
	}
	require.NoError(t, c.Finalize())

	a, err := zim.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestExtractMimetypeFilter(t *testing.T) {
	t.Parallel()

	a := openArchive(t,
		zim.NewStringItem("A/a.html", "a", "text/html", "<html></html>", zim.Hints{}),
		zim.NewStringItem("I/b.png", "b", "image/png", "png-bytes", zim.Hints{}),
		zim.NewStringItem("I/c.jpg", "c", "image/jpeg", "jpg-bytes", zim.Hints{}),
	)

	dir := t.TempDir()
	n, err := extract.Extract(a, dir, namespace.All(), "image/")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// subtype appended as extension, original path kept as tree
	assert.FileExists(t, filepath.Join(dir, "I", "b.png.png"))
	assert.FileExists(t, filepath.Join(dir, "I", "c.jpg.jpeg"))
	assert.NoFileExists(t, filepath.Join(dir, "A", "a.html.html"))

	b, err := os.ReadFile(filepath.Join(dir, "I", "b.png.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(b))
}

func TestExtractNamespaceSelector(t *testing.T) {
	t.Parallel()

	a := openArchive(t,
		zim.NewStringItem("A/a.html", "a", "text/html", "<html>a</html>", zim.Hints{}),
		zim.NewStringItem("S/page.html", "s", "text/html", "<html>s</html>", zim.Hints{}),
		zim.NewStringItem("Z/page.html", "z", "text/html", "<html>z</html>", zim.Hints{}),
	)

	t.Run("exact", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		n, err := extract.Extract(a, dir, namespace.Exact("A"), "text/html")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.FileExists(t, filepath.Join(dir, "A", "a.html.html"))
	})

	t.Run("unknown", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		n, err := extract.Extract(a, dir, namespace.Unknown(), "text/html")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.FileExists(t, filepath.Join(dir, "Z", "page.html.html"))
	})

	t.Run("all", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		n, err := extract.Extract(a, dir, namespace.All(), "text/html")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})
}

func TestExtractSanitization(t *testing.T) {
	t.Parallel()

	a := openArchive(t,
		zim.NewStringItem(`A/a:b?c.html`, "odd", "text/html", "<html>x</html>", zim.Hints{}),
		zim.NewStringItem("A/sub/dir/page.html", "deep", "text/html", "<html>y</html>", zim.Hints{}),
	)

	dir := t.TempDir()
	n, err := extract.Extract(a, dir, namespace.All(), "text/html")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// hostile characters collapse to underscores within a segment
	assert.FileExists(t, filepath.Join(dir, "A", "a_b_c.html.html"))
	// embedded separators survive as directory boundaries
	assert.FileExists(t, filepath.Join(dir, "A", "sub", "dir", "page.html.html"))
}

func TestExtractCreatesOutputDir(t *testing.T) {
	t.Parallel()

	a := openArchive(t,
		zim.NewStringItem("I/b.png", "b", "image/png", "png", zim.Hints{}))

	dir := filepath.Join(t.TempDir(), "deep", "nested", "out")
	n, err := extract.Extract(a, dir, namespace.All(), "image/")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.FileExists(t, filepath.Join(dir, "I", "b.png.png"))
}

func TestExtractLossyTextOutput(t *testing.T) {
	t.Parallel()

	a := openArchive(t,
		zim.NewStringItem("A/bad.html", "bad", "text/html", "ok \xff\xfe bytes", zim.Hints{}))

	dir := t.TempDir()
	n, err := extract.Extract(a, dir, namespace.All(), "text/html")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	b, err := os.ReadFile(filepath.Join(dir, "A", "bad.html.html"))
	require.NoError(t, err)
	assert.True(t, utf8.Valid(b))
	assert.Contains(t, string(b), "ok ")
}
