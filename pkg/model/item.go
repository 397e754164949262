// Package model provides the data structures shared by the manifest store,
// the sync engine, the download pipeline and the verifier.
package model

import "time"

// FileKind classifies a downloadable artifact.
type FileKind string

// Supported file kinds.
const (
	FileKindInstaller    FileKind = "installer"
	FileKindExtra        FileKind = "extra"
	FileKindPatch        FileKind = "patch"
	FileKindLanguagePack FileKind = "language-pack"
)

// IsExtra reports whether the kind is bonus material rather than a game file.
func (k FileKind) IsExtra() bool {
	return k == FileKindExtra
}

// FileRecord describes one downloadable artifact belonging to an Item. The
// size, checksum and URL fields are authoritative copies of the catalog's
// last report and are overwritten wholesale on re-sync.
type FileRecord struct {
	Name     string   `json:"name"`
	URL      string   `json:"url"`
	Size     int64    `json:"size"`
	Checksum string   `json:"checksum,omitempty"` // hex-encoded MD5 as published by the catalog
	Kind     FileKind `json:"kind"`
	OS       string   `json:"os,omitempty"`
	Language string   `json:"language,omitempty"`
	Updated  bool     `json:"updated,omitempty"` // informational flag carried over from the catalog
}

// MatchOS checks if this file matches one of the given operating systems.
// Files without an OS tag (typically extras) match any OS.
func (f *FileRecord) MatchOS(oses []string) bool {
	if len(oses) == 0 || f.OS == "" {
		return true
	}
	for _, os := range oses {
		if f.OS == os {
			return true
		}
	}
	return false
}

// MatchLanguage checks if this file matches one of the given languages.
// Files without a language tag match any language.
func (f *FileRecord) MatchLanguage(langs []string) bool {
	if len(langs) == 0 || f.Language == "" {
		return true
	}
	for _, lang := range langs {
		if f.Language == lang {
			return true
		}
	}
	return false
}

// MatchKind checks if this file matches one of the given kinds.
func (f *FileRecord) MatchKind(kinds []FileKind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, kind := range kinds {
		if f.Kind == kind {
			return true
		}
	}
	return false
}

// Item represents one catalog-level product owned by the user.
type Item struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Notes      string        `json:"notes,omitempty"`
	Serial     string        `json:"serial,omitempty"`
	LastSynced time.Time     `json:"last_synced"`
	Files      []*FileRecord `json:"files"`
}

// FindFile returns the file record with the given name, or nil.
func (it *Item) FindFile(name string) *FileRecord {
	for _, f := range it.Files {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Listing is one entry of a catalog enumeration: the item identifier plus the
// flag the remote service sets when the item changed since it was last seen.
type Listing struct {
	ID      string `json:"id"`
	Updated bool   `json:"updated"`
}
