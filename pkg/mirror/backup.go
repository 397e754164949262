package mirror

import (
	"context"
	"os"
	"path/filepath"

	"github.com/glorpus-work/shelfkeep/internal/logger"
	"github.com/glorpus-work/shelfkeep/pkg/download"
	"github.com/glorpus-work/shelfkeep/pkg/errors"
	"github.com/glorpus-work/shelfkeep/pkg/fsutil"
	"github.com/glorpus-work/shelfkeep/pkg/manifest"
	"github.com/glorpus-work/shelfkeep/pkg/model"
)

// BackupSummary reports what a backup run did.
type BackupSummary struct {
	Examined int
	Copied   int
	Skipped  int
}

// Backupper incrementally copies manifest-known files from one directory
// tree to another. Only files whose size matches the manifest are copied,
// and only when the destination is absent or has a different size.
type Backupper struct {
	manifest *manifest.Manifest
}

// NewBackupper creates a backupper over the given manifest.
func NewBackupper(m *manifest.Manifest) *Backupper {
	return &Backupper{manifest: m}
}

// Run mirrors the canonical tree at srcRoot into destRoot. When any file of
// an item was copied, its sidecar files are copied along.
func (b *Backupper) Run(ctx context.Context, srcRoot, destRoot string) (*BackupSummary, error) {
	entries, err := b.manifest.Query(model.FileFilter{})
	if err != nil {
		return nil, err
	}

	summary := &BackupSummary{}
	touched := make(map[string]bool)

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		src := download.TargetPath(srcRoot, entry.Item, entry.File)
		st, err := os.Stat(src)
		if err != nil {
			continue // not downloaded yet
		}
		summary.Examined++

		if st.Size() != entry.File.Size {
			logger.Warn("source file has unexpected size, skipping", logger.Fields{
				"path":     src,
				"expected": entry.File.Size,
				"actual":   st.Size(),
			})
			summary.Skipped++
			continue
		}

		dest := download.TargetPath(destRoot, entry.Item, entry.File)
		if upToDate(dest, entry.File.Size) {
			summary.Skipped++
			continue
		}

		logger.Info("backing up file", logger.Fields{"source": src, "dest": dest})
		if err := os.MkdirAll(filepath.Dir(dest), fsutil.DirModeDefault); err != nil {
			return nil, errors.Wrapf(err, "failed to create directory for %s", dest)
		}
		if err := fsutil.Copy(src, dest); err != nil {
			return nil, err
		}
		summary.Copied++
		touched[entry.Item.ID] = true
	}

	// Carry the sidecar files of every touched item along.
	for _, item := range itemsByID(entries, touched) {
		srcDir := download.ItemDir(srcRoot, item)
		destDir := download.ItemDir(destRoot, item)
		for _, name := range []string{download.InfoFilename, download.SerialFilename} {
			sidecar := filepath.Join(srcDir, name)
			if _, err := os.Stat(sidecar); err != nil {
				continue
			}
			if err := fsutil.Copy(sidecar, filepath.Join(destDir, name)); err != nil {
				return nil, err
			}
		}
	}

	return summary, nil
}

// upToDate reports whether dest exists with the expected size.
func upToDate(dest string, size int64) bool {
	st, err := os.Stat(dest)
	return err == nil && st.Size() == size
}

// itemsByID returns the distinct items of the touched set, in entry order.
func itemsByID(entries []manifest.Entry, touched map[string]bool) []*model.Item {
	var items []*model.Item
	seen := make(map[string]bool)
	for _, entry := range entries {
		if !touched[entry.Item.ID] || seen[entry.Item.ID] {
			continue
		}
		seen[entry.Item.ID] = true
		items = append(items, entry.Item)
	}
	return items
}
