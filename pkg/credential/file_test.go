package credential

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terravista/authkit/pkg/errors"
)

func requireKey(data map[string]any) error {
	if s, _ := data["key"].(string); s == "" {
		return errors.NewDataIntegrityError("key is required", nil)
	}
	return nil
}

func TestNilDataIsNeverLoaded(t *testing.T) {
	t.Parallel()

	f := NewFile(nil, "", nil)
	assert.False(t, f.IsLoaded())
	assert.Error(t, f.Check())
}

func TestSetDataRejectsNil(t *testing.T) {
	t.Parallel()

	f := NewFile(nil, "", nil)
	err := f.SetData(nil)
	require.Error(t, err)
	assert.True(t, errors.IsDataIntegrity(err))
	assert.False(t, f.IsLoaded())
}

func TestEmptyDataIsValid(t *testing.T) {
	t.Parallel()

	// nil means "never loaded"; {} is real, explicitly valid data.
	f := NewFile(nil, "", nil)
	require.NoError(t, f.SetData(map[string]any{}))
	assert.True(t, f.IsLoaded())
	assert.NoError(t, f.Check())
}

func TestSetDataValidatesBeforeMutating(t *testing.T) {
	t.Parallel()

	f := NewFile(nil, "", requireKey)
	require.NoError(t, f.SetData(map[string]any{"key": "original"}))

	err := f.SetData(map[string]any{"other": "thing"})
	require.Error(t, err)
	assert.True(t, errors.IsDataIntegrity(err))
	assert.Equal(t, "original", f.Data()["key"])
}

func TestSetDataCopiesTheMap(t *testing.T) {
	t.Parallel()

	f := NewFile(nil, "", nil)
	source := map[string]any{"key": "value"}
	require.NoError(t, f.SetData(source))

	source["key"] = "mutated"
	assert.Equal(t, "value", f.Data()["key"])
}

func TestUpdateDataMerges(t *testing.T) {
	t.Parallel()

	f := NewFile(nil, "", requireKey)
	require.NoError(t, f.SetData(map[string]any{"key": "k", "extra": "e"}))

	require.NoError(t, f.UpdateData(map[string]any{"extra": "updated"}))
	assert.Equal(t, "k", f.Data()["key"])
	assert.Equal(t, "updated", f.Data()["extra"])

	// An update that breaks the contract leaves everything as it was.
	err := f.UpdateData(map[string]any{"key": ""})
	require.Error(t, err)
	assert.Equal(t, "k", f.Data()["key"])
	assert.Equal(t, "updated", f.Data()["extra"])
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "cred.json")
	saved := NewFile(nil, path, requireKey)
	require.NoError(t, saved.SetData(map[string]any{
		"key":    "k",
		"number": float64(42),
	}))
	require.NoError(t, saved.Save())

	loaded := NewFile(nil, path, requireKey)
	require.NoError(t, loaded.Load())
	assert.Equal(t, saved.Data(), loaded.Data())
}

func TestSaveWritesOwnerOnlyPermissions(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}

	path := filepath.Join(t.TempDir(), "cred.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"key":"old"}`), 0644))

	f := NewFile(nil, path, requireKey)
	require.NoError(t, f.SetData(map[string]any{"key": "new"}))
	require.NoError(t, f.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSaveOmitsNullFields(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cred.json")
	f := NewFile(nil, path, requireKey)
	require.NoError(t, f.SetData(map[string]any{
		"key":      "k",
		"optional": nil,
	}))
	require.NoError(t, f.Save())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.NotContains(t, onDisk, "optional")
	assert.Equal(t, "k", onDisk["key"])
}

func TestSaveRejectsInvalidData(t *testing.T) {
	t.Parallel()

	f := NewFile(nil, filepath.Join(t.TempDir(), "cred.json"), requireKey)
	err := f.Save()
	require.Error(t, err)
	assert.NoFileExists(t, f.Path())
}

func TestLoadFailureKeepsMemoryState(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cred.json")
	f := NewFile(nil, path, requireKey)
	require.NoError(t, f.SetData(map[string]any{"key": "held"}))

	// Unreadable file
	require.Error(t, f.Load())
	assert.Equal(t, "held", f.Data()["key"])

	// Unparseable file
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0600))
	require.Error(t, f.Load())
	assert.Equal(t, "held", f.Data()["key"])

	// Parseable but contract-violating file
	require.NoError(t, os.WriteFile(path, []byte(`{"key":""}`), 0600))
	err := f.Load()
	require.Error(t, err)
	assert.True(t, errors.IsDataIntegrity(err))
	assert.Equal(t, "held", f.Data()["key"])
}

func TestLoadRejectsJSONNull(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cred.json")
	require.NoError(t, os.WriteFile(path, []byte("null"), 0600))

	f := NewFile(nil, path, nil)
	err := f.Load()
	require.Error(t, err)
	assert.True(t, errors.IsDataIntegrity(err))
}

func TestInMemoryLoadSaveAreNoOps(t *testing.T) {
	t.Parallel()

	f := NewFile(nil, "", nil)
	require.NoError(t, f.SetData(map[string]any{"key": "mem"}))
	assert.NoError(t, f.Load())
	assert.NoError(t, f.Save())
	assert.Equal(t, "mem", f.Data()["key"])
}

func TestLazyLoadLoadsOnlyOnce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cred.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"key":"disk"}`), 0600))

	f := NewFile(nil, path, requireKey)
	require.NoError(t, f.LazyLoad())
	assert.Equal(t, "disk", f.Data()["key"])

	// A second lazy load does not clobber in-memory changes.
	require.NoError(t, f.UpdateData(map[string]any{"key": "memory"}))
	require.NoError(t, f.LazyLoad())
	assert.Equal(t, "memory", f.Data()["key"])
}

func TestLazyReloadPicksUpNewerFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cred.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"key":"first"}`), 0600))

	f := NewFile(nil, path, requireKey)
	require.NoError(t, f.LazyLoad())
	assert.Equal(t, "first", f.Data()["key"])

	// Same mtime: no reload.
	require.NoError(t, f.LazyReload())
	assert.Equal(t, "first", f.Data()["key"])

	// Another process rewrites the file with a newer timestamp.
	require.NoError(t, os.WriteFile(path, []byte(`{"key":"second"}`), 0600))
	future := time.Now().Add(5 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	require.NoError(t, f.LazyReload())
	assert.Equal(t, "second", f.Data()["key"])
}

func TestLazyGetString(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cred.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"key":"k","n":7}`), 0600))

	f := NewFile(nil, path, requireKey)
	assert.Equal(t, "k", f.LazyGetString("key"))
	assert.Empty(t, f.LazyGetString("missing"))
	assert.Empty(t, f.LazyGetString("n"))
}

func TestIsSopsPath(t *testing.T) {
	t.Parallel()

	assert.True(t, isSopsPath("/home/user/.planet/token.sops.json"))
	assert.False(t, isSopsPath("/home/user/.planet/token.json"))
	assert.False(t, isSopsPath("token.sops.yaml"))
}
