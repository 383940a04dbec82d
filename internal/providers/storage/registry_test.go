package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDisabledSlot(t *testing.T) {
	for _, dsn := range []string{"", "  ", "none", "NONE"} {
		b, err := Open(dsn, Options{})
		assert.NoError(t, err)
		assert.Nil(t, b)
	}
}

func TestOpenErrors(t *testing.T) {
	_, err := Open("no-scheme", Options{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Open("carrier-pigeon://loft", Options{})
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestOpenResolvesAgainstDataDir(t *testing.T) {
	dir := t.TempDir()
	opts := Options{DataDir: dir}

	b, err := Open("file://local.json", opts)
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.Set(context.Background(), "k", []byte(`1`)))
	assert.FileExists(t, filepath.Join(dir, "local.json"))

	sq, err := Open("sqlite://nested/doc.db?_pragma=busy_timeout(1000)", opts)
	require.NoError(t, err)
	defer sq.Close()
	assert.Equal(t, "sqlite", sq.Name())
	assert.FileExists(t, filepath.Join(dir, "nested", "doc.db"))
}

func TestRegisterCustomScheme(t *testing.T) {
	Register("Test-Mem", func(_ string, opts Options) (Backend, error) {
		return NewMemory(opts), nil
	})

	assert.Contains(t, Schemes(), "test-mem")
	b, err := Open("TEST-MEM://", Options{})
	require.NoError(t, err)
	assert.Equal(t, "memory", b.Name())
}

func TestResolve(t *testing.T) {
	path, query := resolve("a/b.db?x=1", Options{DataDir: "/data"})
	assert.Equal(t, filepath.Join("/data", "a/b.db"), path)
	assert.Equal(t, "x=1", query)

	path, _ = resolve("/abs/b.db", Options{DataDir: "/data"})
	assert.Equal(t, "/abs/b.db", path)
}
