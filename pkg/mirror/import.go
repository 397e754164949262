// Package mirror moves already-downloaded files between directory trees: it
// imports loose files into the canonical layout by checksum match and backs
// the canonical tree up into a second location.
package mirror

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/glorpus-work/shelfkeep/internal/logger"
	"github.com/glorpus-work/shelfkeep/pkg/download"
	"github.com/glorpus-work/shelfkeep/pkg/errors"
	"github.com/glorpus-work/shelfkeep/pkg/fsutil"
	"github.com/glorpus-work/shelfkeep/pkg/manifest"
	"github.com/glorpus-work/shelfkeep/pkg/model"
)

// ImportSummary reports what an import run did.
type ImportSummary struct {
	Scanned int
	Matched int
	Copied  int
	Skipped int
}

// Importer recovers manifest-known files from an arbitrary directory tree by
// hashing every file and matching the digests against the manifest.
type Importer struct {
	manifest *manifest.Manifest
}

// NewImporter creates an importer over the given manifest.
func NewImporter(m *manifest.Manifest) *Importer {
	return &Importer{manifest: m}
}

// Run hashes every regular file under srcDir and copies each manifest match
// into its canonical place under destRoot. Files whose destination already
// holds identical content are skipped.
func (i *Importer) Run(ctx context.Context, srcDir, destRoot string) (*ImportSummary, error) {
	index, err := i.checksumIndex()
	if err != nil {
		return nil, err
	}

	summary := &ImportSummary{}
	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		summary.Scanned++
		sum, err := fsutil.MD5File(path)
		if err != nil {
			logger.Warn("failed to hash file, skipping", logger.Fields{"path": path, "error": err.Error()})
			return nil
		}

		entry, ok := index[sum]
		if !ok {
			return nil
		}
		summary.Matched++

		dest := download.TargetPath(destRoot, entry.Item, entry.File)
		if sameContent(dest, sum) {
			logger.Debug("destination already has identical content", logger.Fields{"path": dest})
			summary.Skipped++
			return nil
		}

		logger.Info("importing matched file", logger.Fields{
			"source": path,
			"dest":   dest,
			"item":   entry.Item.ID,
		})
		if err := os.MkdirAll(filepath.Dir(dest), fsutil.DirModeDefault); err != nil {
			return errors.Wrapf(err, "failed to create directory for %s", dest)
		}
		if err := fsutil.Copy(path, dest); err != nil {
			return err
		}
		summary.Copied++
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return summary, nil
}

// checksumIndex maps every known checksum to its manifest entry.
func (i *Importer) checksumIndex() (map[string]manifest.Entry, error) {
	entries, err := i.manifest.Query(model.FileFilter{})
	if err != nil {
		return nil, err
	}
	index := make(map[string]manifest.Entry, len(entries))
	for _, entry := range entries {
		if entry.File.Checksum == "" {
			continue
		}
		index[entry.File.Checksum] = entry
	}
	return index, nil
}

// sameContent reports whether the file at path exists and hashes to sum.
func sameContent(path, sum string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	existing, err := fsutil.MD5File(path)
	return err == nil && existing == sum
}
