package rotator_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringlog/ringlog/internal/rotator"
)

func TestWriteAccumulatesSizeWithoutRotating(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	r, err := rotator.New(rotator.Config{Path: path, MaxSize: 1024})
	require.NoError(t, err)

	defer r.Close()

	n, err := r.Write([]byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.EqualValues(t, 6, r.Size())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteRotatesPastMaxSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	r, err := rotator.New(rotator.Config{Path: path, MaxSize: 10})
	require.NoError(t, err)

	defer r.Close()

	_, err = r.Write([]byte("0123456789")) // exactly fills, does not itself rotate
	require.NoError(t, err)

	_, err = r.Write([]byte("x")) // crosses the threshold, rotates first
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	assert.Contains(t, names, "app.log")
	assert.Contains(t, names, "app1.log")
}

func TestZeroMaxSizeAlwaysRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	r, err := rotator.New(rotator.Config{Path: path, MaxSize: 0})
	require.NoError(t, err)

	defer r.Close()

	_, err = r.Write([]byte("a"))
	require.NoError(t, err)

	_, err = r.Write([]byte("b"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	// Both writes rotate first: the empty app.log created by New becomes
	// app1.log, the file holding "a" becomes app2.log, and app.log holds "b".
	assert.Len(t, entries, 3)
}

func TestRotatedNameSkipsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	// Pre-create app1.log so rotation must skip to app2.log.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app1.log"), []byte("stale"), 0o644))

	r, err := rotator.New(rotator.Config{Path: path, MaxSize: 1})
	require.NoError(t, err)

	defer r.Close()

	// shouldRotate checks the accumulated size, so the first write (from
	// size 0) lands before rotating; the second write, now that size has
	// reached MaxSize, rotates first.
	_, err = r.Write([]byte("x"))
	require.NoError(t, err)

	_, err = r.Write([]byte("y"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "app2.log"))
	assert.NoError(t, err)
}

func TestOnRotateCallbackReceivesRotatedPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	var got string

	r, err := rotator.New(rotator.Config{
		Path:     path,
		MaxSize:  1,
		OnRotate: func(p string) { got = p },
	})
	require.NoError(t, err)

	defer r.Close()

	_, err = r.Write([]byte("x"))
	require.NoError(t, err)

	_, err = r.Write([]byte("y"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "app1.log"), got)
}

func TestDotfileWithNoExtensionKeepsWholeNameAsBase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".hidden")

	r, err := rotator.New(rotator.Config{Path: path, MaxSize: 1})
	require.NoError(t, err)

	defer r.Close()

	_, err = r.Write([]byte("x"))
	require.NoError(t, err)

	_, err = r.Write([]byte("y"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, ".hidden1"))
	assert.NoError(t, err)
}
