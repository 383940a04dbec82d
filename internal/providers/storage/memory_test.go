package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQuota(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(Options{QuotaBytes: 16})

	require.NoError(t, m.Set(ctx, "a", []byte(`"12345"`)))
	assert.ErrorIs(t, m.Set(ctx, "b", []byte(`"1234567890"`)), ErrQuotaExceeded)

	// Overwriting only counts the difference
	require.NoError(t, m.Set(ctx, "a", []byte(`"123"`)))

	require.NoError(t, m.Delete(ctx, "a"))
	assert.NoError(t, m.Set(ctx, "b", []byte(`"1234567890"`)))
}

func TestMemoryClearKeepsForeignKeys(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(Options{KeyPrefix: "textnexus-"})
	m.store.data["other-app"] = `1`

	require.NoError(t, m.Set(ctx, "workspaces", []byte(`[]`)))
	require.NoError(t, m.Clear(ctx))

	assert.Equal(t, `1`, m.store.data["other-app"])
	_, err := m.Get(ctx, "workspaces")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "local.json")

	f, err := NewFile(path, Options{KeyPrefix: "textnexus-"})
	require.NoError(t, err)
	require.NoError(t, f.Set(ctx, "workspaces", []byte(`[{"id":"w1"}]`)))
	require.NoError(t, f.Close())

	raw := map[string]string{}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, sonic.Unmarshal(data, &raw))
	assert.Equal(t, `[{"id":"w1"}]`, raw["textnexus-workspaces"])

	reopened, err := NewFile(path, Options{KeyPrefix: "textnexus-"})
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "workspaces")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"w1"}]`, string(got))
}

func TestFileQuotaLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	f, err := NewFile(filepath.Join(t.TempDir(), "local.json"), Options{QuotaBytes: 12})
	require.NoError(t, err)

	require.NoError(t, f.Set(ctx, "k", []byte(`"v"`)))
	assert.ErrorIs(t, f.Set(ctx, "k", []byte(`"far too long"`)), ErrQuotaExceeded)

	got, err := f.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `"v"`, string(got))
}

func TestFileRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFile(path, Options{})
	assert.Error(t, err)
}
