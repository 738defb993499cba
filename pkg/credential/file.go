// Package credential implements file-backed credential storage. The on-disk
// file is the source of truth shared across processes; the in-memory copy is
// a cache with explicit load and reload steps.
package credential

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/terravista/authkit/pkg/errors"
	"github.com/terravista/authkit/pkg/logger"
)

// CheckDataFunc validates a credential document before it is accepted.
// Implementations receive a non-nil map and should return a data integrity
// error describing the first violated requirement.
type CheckDataFunc func(data map[string]any) error

// File is a JSON document optionally backed by a file, with a validation
// contract enforced before any mutation is accepted.
//
// A nil data map means the object has been constructed but never loaded;
// an empty map is explicitly valid data. Once data has been set, whether by
// SetData or by loading from disk, it may only be replaced by valid data.
// A File with no path is a valid in-memory-only object: Load and Save become
// no-ops so callers need not special-case memory-only operation.
//
// File is not safe for concurrent use. Cross-process sharing is coordinated
// through the backing file alone, see LazyReload.
type File struct {
	path      string
	data      map[string]any
	loadTime  int64
	checkData CheckDataFunc
}

// NewFile constructs a File over the given literal data (may be nil for
// load-on-demand use) and backing path (may be empty for in-memory use).
// Literal data is not validated at construction; validation applies to
// mutations and loads.
func NewFile(data map[string]any, path string, checkData CheckDataFunc) *File {
	f := &File{
		path:      path,
		data:      data,
		checkData: checkData,
	}
	if data != nil {
		f.loadTime = time.Now().Unix()
	}
	return f
}

// Path returns the currently configured backing file path. Empty means
// in-memory only.
func (f *File) Path() string {
	return f.path
}

// SetPath sets the backing file path for subsequent loads and saves.
func (f *File) SetPath(path string) {
	f.path = path
}

// Data returns the current in-memory data without consulting storage.
func (f *File) Data() map[string]any {
	return f.data
}

// IsLoaded reports whether data has ever been set or loaded.
func (f *File) IsLoaded() bool {
	return f.data != nil
}

// Check runs the validation contract against the current in-memory data.
func (f *File) Check() error {
	return f.check(f.data)
}

func (f *File) check(data map[string]any) error {
	if data == nil {
		return errors.NewDataIntegrityError(
			fmt.Sprintf("nil is not valid data for credential backed by file %q", f.path), nil)
	}
	if f.checkData != nil {
		if err := f.checkData(data); err != nil {
			return err
		}
	}
	return nil
}

// SetData replaces the in-memory data. The data is validated first; invalid
// data is rejected and the prior state is left unchanged.
func (f *File) SetData(data map[string]any) error {
	if err := f.check(data); err != nil {
		return err
	}
	copied := make(map[string]any, len(data))
	for k, v := range data {
		copied[k] = v
	}
	f.data = copied
	f.loadTime = time.Now().Unix()
	return nil
}

// UpdateData applies a sparse update to the current data. Updates that would
// produce an invalid document are rejected, leaving the prior state unchanged.
func (f *File) UpdateData(sparse map[string]any) error {
	merged := make(map[string]any, len(f.data)+len(sparse))
	for k, v := range f.data {
		merged[k] = v
	}
	for k, v := range sparse {
		merged[k] = v
	}
	return f.SetData(merged)
}

// Load forces a read from the backing file. Invalid or unreadable data never
// corrupts the currently held in-memory state. Without a path this is a
// no-op to allow in-memory operation.
func (f *File) Load() error {
	if f.path == "" {
		return nil
	}

	var newData map[string]any
	var err error
	if isSopsPath(f.path) {
		newData, err = readJSONSops(f.path)
	} else {
		newData, err = readJSON(f.path)
	}
	if err != nil {
		return err
	}

	if err := f.check(newData); err != nil {
		return err
	}

	f.data = newData
	f.loadTime = time.Now().Unix()
	return nil
}

// LazyLoad loads from the backing file only if data has never been set.
func (f *File) LazyLoad() error {
	if f.IsLoaded() {
		return nil
	}
	return f.Load()
}

// LazyReload reloads from the backing file if the file appears newer than
// the in-memory copy. Another process may have refreshed the credential.
func (f *File) LazyReload() error {
	if !f.IsLoaded() {
		return f.Load()
	}
	if f.path == "" {
		return nil
	}
	info, err := os.Stat(f.path)
	if err != nil {
		return errors.NewDataIntegrityError(
			fmt.Sprintf("failed to stat credential file %q", f.path), err)
	}
	if info.ModTime().Unix() > f.loadTime {
		return f.Load()
	}
	return nil
}

// LazyGet lazily loads the data and returns the named field, or nil.
func (f *File) LazyGet(field string) any {
	if err := f.LazyLoad(); err != nil {
		logger.Warnf("Failed to load credential data for field %q: %v", field, err)
		return nil
	}
	if f.data == nil {
		return nil
	}
	return f.data[field]
}

// LazyGetString lazily loads the data and returns the named field as a
// string. Missing or non-string fields yield the empty string.
func (f *File) LazyGetString(field string) string {
	s, _ := f.LazyGet(field).(string)
	return s
}

// Save validates and writes the data to the backing file with owner-only
// permissions, omitting null fields. Without a path this silently succeeds
// to allow in-memory operation.
func (f *File) Save() error {
	if err := f.check(f.data); err != nil {
		return err
	}

	if f.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return errors.NewDataIntegrityError(
			fmt.Sprintf("failed to create directory for credential file %q", f.path), err)
	}

	var err error
	if isSopsPath(f.path) {
		err = writeJSONSops(f.path, f.data)
	} else {
		err = writeJSON(f.path, f.data)
	}
	if err != nil {
		return err
	}

	f.loadTime = time.Now().Unix()
	return nil
}

func readJSON(path string) (map[string]any, error) {
	logger.Debugf("Loading JSON data from file %s", path)
	raw, err := os.ReadFile(path) // #nosec G304 - credential path is chosen by the caller
	if err != nil {
		return nil, errors.NewDataIntegrityError(
			fmt.Sprintf("failed to read credential file %q", path), err)
	}
	return decodeJSON(path, raw)
}

func readJSONSops(path string) (map[string]any, error) {
	logger.Debugf("Loading JSON data from SOPS encrypted file %s", path)
	raw, err := exec.Command("sops", "-d", path).Output() // #nosec G204 - fixed binary name
	if err != nil {
		return nil, errors.NewDataIntegrityError(
			fmt.Sprintf("failed to decrypt credential file %q", path), err)
	}
	return decodeJSON(path, raw)
}

func decodeJSON(path string, raw []byte) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.NewDataIntegrityError(
			fmt.Sprintf("credential file %q is not valid JSON", path), err)
	}
	if data == nil {
		return nil, errors.NewDataIntegrityError(
			fmt.Sprintf("credential file %q holds a JSON null", path), nil)
	}
	return data, nil
}

func writeJSON(path string, data map[string]any) error {
	logger.Debugf("Writing JSON data to file %s", path)
	noNulls := make(map[string]any, len(data))
	for k, v := range data {
		if v != nil {
			noNulls[k] = v
		}
	}
	raw, err := json.MarshalIndent(noNulls, "", "  ")
	if err != nil {
		return errors.NewDataIntegrityError("failed to encode credential data", err)
	}
	if err := os.WriteFile(path, raw, 0600); err != nil {
		return errors.NewDataIntegrityError(
			fmt.Sprintf("failed to write credential file %q", path), err)
	}
	// WriteFile only applies the mode to new files. Force owner-only
	// permissions on pre-existing files too.
	if err := os.Chmod(path, 0600); err != nil {
		return errors.NewDataIntegrityError(
			fmt.Sprintf("failed to set permissions on credential file %q", path), err)
	}
	return nil
}

func writeJSONSops(path string, data map[string]any) error {
	logger.Debugf("Writing JSON data to SOPS encrypted file %s", path)
	// sops cannot encrypt from stdin into a file in one step; write the
	// plaintext then encrypt in place.
	if err := writeJSON(path, data); err != nil {
		return err
	}
	cmd := exec.Command("sops", "-e", "--input-type", "json", "--output-type", "json", "-i", path) // #nosec G204
	if err := cmd.Run(); err != nil {
		return errors.NewDataIntegrityError(
			fmt.Sprintf("failed to encrypt credential file %q", path), err)
	}
	return nil
}

// isSopsPath reports whether the path selects field-level SOPS encryption.
// Only the ".sops.json" suffix is supported.
func isSopsPath(path string) bool {
	return strings.HasSuffix(path, ".sops.json")
}
