// Package manifest provides the persistent JSON-backed catalog of owned
// items and their downloadable files.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	version "github.com/hashicorp/go-version"

	"github.com/glorpus-work/shelfkeep/pkg/errors"
	"github.com/glorpus-work/shelfkeep/pkg/fsutil"
	"github.com/glorpus-work/shelfkeep/pkg/model"
)

// FormatVersion is the manifest format written by this build. Manifests with
// a newer major version are rejected on load.
const FormatVersion = "1.0"

const initialItemCapacity = 64

// Manifest is the full collection of known items. Items keep their insertion
// order so queries and display are deterministic; identifiers are unique.
type Manifest struct {
	FormatVersion string        `json:"format_version"`
	Items         []*model.Item `json:"items"`

	rwMutex sync.RWMutex
}

// Entry is one (Item, FileRecord) pair produced by Query.
type Entry struct {
	Item *model.Item
	File *model.FileRecord
}

// New creates an empty manifest with the current format version.
func New() *Manifest {
	return &Manifest{
		FormatVersion: FormatVersion,
		Items:         make([]*model.Item, 0, initialItemCapacity),
	}
}

// Load reads a manifest from path. A missing file yields an empty manifest;
// a file that cannot be parsed fails with ErrCorruptManifest, which is fatal
// to the invoking run.
func Load(path string) (*Manifest, error) {
	if path == "" {
		return nil, fmt.Errorf("manifest path cannot be empty: %w", errors.ErrInvalidPath)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read manifest %s", path)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(errors.ErrCorruptManifest, "%s: %v", path, err)
	}
	if err := checkFormatVersion(m.FormatVersion); err != nil {
		return nil, err
	}

	return &m, nil
}

// checkFormatVersion rejects manifests written by a newer major format.
func checkFormatVersion(v string) error {
	if v == "" {
		return errors.Wrap(errors.ErrCorruptManifest, "missing format version")
	}
	got, err := version.NewVersion(v)
	if err != nil {
		return errors.Wrapf(errors.ErrCorruptManifest, "bad format version %q: %v", v, err)
	}
	supported := version.Must(version.NewVersion(FormatVersion))
	if got.Segments()[0] > supported.Segments()[0] {
		return errors.Wrapf(errors.ErrManifestVersion, "manifest format %s, this build supports %s", v, FormatVersion)
	}
	return nil
}

// Save writes the manifest to path via a sibling temporary file and an atomic
// replace, so a reader never observes a half-written manifest.
func (m *Manifest) Save(path string) (err error) {
	if path == "" {
		return fmt.Errorf("manifest path cannot be empty: %w", errors.ErrInvalidPath)
	}

	m.rwMutex.RLock()
	data, err := json.MarshalIndent(m, "", "  ")
	m.rwMutex.RUnlock()
	if err != nil {
		return errors.Wrap(err, "failed to marshal manifest")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, fsutil.DirModeDefault); err != nil {
		return errors.Wrapf(err, "failed to create manifest directory %s", dir)
	}

	tmpFile, err := os.CreateTemp(dir, "manifest-*.tmp")
	if err != nil {
		return errors.Wrapf(err, "failed to create temporary file in %s", dir)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return errors.Wrap(err, "failed to write manifest")
	}
	if err = tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return errors.Wrap(err, "failed to sync manifest")
	}
	if err = tmpFile.Close(); err != nil {
		return errors.Wrap(err, "failed to close manifest")
	}
	if err = os.Chmod(tmpPath, fsutil.FileModeDefault); err != nil {
		return errors.Wrap(err, "failed to set manifest permissions")
	}

	if err = os.Rename(tmpPath, path); err != nil {
		return errors.Wrapf(err, "failed to replace manifest %s", path)
	}
	return nil
}

// Find returns the item with the given identifier, or nil.
func (m *Manifest) Find(id string) *model.Item {
	m.rwMutex.RLock()
	defer m.rwMutex.RUnlock()

	return m.find(id)
}

func (m *Manifest) find(id string) *model.Item {
	for _, item := range m.Items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// Has reports whether the manifest contains the given identifier.
func (m *Manifest) Has(id string) bool {
	return m.Find(id) != nil
}

// Upsert replaces any existing item with the same identifier wholesale,
// including its file records, preserving the item's position. Unknown
// identifiers are appended.
func (m *Manifest) Upsert(item *model.Item) {
	m.rwMutex.Lock()
	defer m.rwMutex.Unlock()

	for i := range m.Items {
		if m.Items[i].ID == item.ID {
			m.Items[i] = item
			return
		}
	}
	m.Items = append(m.Items, item)
}

// Len returns the number of items in the manifest.
func (m *Manifest) Len() int {
	m.rwMutex.RLock()
	defer m.rwMutex.RUnlock()

	return len(m.Items)
}

// Query returns all (item, file) pairs matching the filter, in manifest
// insertion order. When the filter names a single item identifier that the
// manifest does not contain, it fails with ErrUnknownItem.
func (m *Manifest) Query(filter model.FileFilter) ([]Entry, error) {
	m.rwMutex.RLock()
	defer m.rwMutex.RUnlock()

	if filter.ItemID != "" && m.find(filter.ItemID) == nil {
		return nil, errors.Wrapf(errors.ErrUnknownItem, "%s is not in the manifest", filter.ItemID)
	}

	entries := make([]Entry, 0, len(m.Items))
	for _, item := range m.Items {
		if !filter.MatchItem(item) {
			continue
		}
		for _, file := range item.Files {
			if filter.MatchFile(file) {
				entries = append(entries, Entry{Item: item, File: file})
			}
		}
	}
	return entries, nil
}
