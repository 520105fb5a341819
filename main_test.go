package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossyrian/zimkit/internal/namespace"
	"github.com/ossyrian/zimkit/internal/zim"
)

func openTestArchive(t *testing.T) *zim.Archive {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.zpk")
	c, err := zim.Create(path, zim.CreateOptions{Language: "eng"})
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.AddItem(zim.NewStringItem("A/a.html", "a", "text/html", "x", zim.Hints{})))
	require.NoError(t, c.AddItem(zim.NewStringItem("Z/strange", "z", "application/octet-stream", "y", zim.Hints{})))
	require.NoError(t, c.Finalize())

	a, err := zim.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNamespaceCode(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t)

	code, err := namespaceCode(a, "all")
	require.NoError(t, err)
	assert.Equal(t, "", code)

	code, err = namespaceCode(a, " a ")
	require.NoError(t, err)
	assert.Equal(t, "A", code)

	code, err = namespaceCode(a, "z")
	require.NoError(t, err)
	assert.Equal(t, "Z", code)

	_, err = namespaceCode(a, "Q")
	assert.ErrorIs(t, err, namespace.ErrInvalidSelector)
}

func TestNamespaceCodeRejectsUnknownPlainly(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t)

	_, err := namespaceCode(a, "UNKNOWN")
	require.Error(t, err)
	// UNKNOWN resolved fine as a selector; the refusal is about this
	// operation needing a single prefix, not about an invalid selection
	assert.NotErrorIs(t, err, namespace.ErrInvalidSelector)
	assert.Contains(t, err.Error(), "UNKNOWN is only valid for extract")
}
