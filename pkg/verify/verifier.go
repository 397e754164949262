// Package verify independently re-checks downloaded files against the
// checksums, sizes and archive integrity the manifest declares. It reads the
// manifest and the filesystem and never mutates the manifest.
package verify

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"

	"github.com/glorpus-work/shelfkeep/internal/logger"
	"github.com/glorpus-work/shelfkeep/pkg/download"
	"github.com/glorpus-work/shelfkeep/pkg/errors"
	"github.com/glorpus-work/shelfkeep/pkg/fsutil"
	"github.com/glorpus-work/shelfkeep/pkg/manifest"
	"github.com/glorpus-work/shelfkeep/pkg/model"
)

// Checks selects which dimensions get re-verified; each is independently
// toggleable.
type Checks struct {
	Checksum bool
	Size     bool
	Archive  bool
}

// Disposition decides what happens to files that fail verification.
type Disposition string

// Dispositions.
const (
	DispositionReport Disposition = "report"
	DispositionDelete Disposition = "delete"
)

// Report is the outcome of one verification run.
type Report struct {
	Records []model.VerificationRecord
	// Items maps item id to its aggregate status, ItemOrder preserves
	// manifest order for display.
	Items     map[string]model.ItemStatus
	ItemOrder []string

	Checked int
	Passed  int
	Failed  int
	Missing int
	Deleted int
}

// Verifier re-checks on-disk files under a root directory.
type Verifier struct {
	manifest    *manifest.Manifest
	root        string
	checks      Checks
	disposition Disposition
}

// New creates a verifier for the given manifest and download root.
func New(m *manifest.Manifest, root string, checks Checks, disposition Disposition) *Verifier {
	if disposition == "" {
		disposition = DispositionReport
	}
	return &Verifier{manifest: m, root: root, checks: checks, disposition: disposition}
}

// Run verifies every manifest file record against the live filesystem. Files
// whose target path is absent are reported as missing, distinct from failed.
// With the delete disposition, failing files are removed from disk.
func (v *Verifier) Run(ctx context.Context) (*Report, error) {
	entries, err := v.manifest.Query(model.FileFilter{})
	if err != nil {
		return nil, err
	}

	report := &Report{Items: make(map[string]model.ItemStatus)}
	perItem := make(map[string][]model.VerificationRecord)

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record := v.checkFile(ctx, entry)
		report.Checked++

		if record.Missing {
			report.Missing++
			logger.Warn("missing file", logger.Fields{"item": entry.Item.ID, "file": entry.File.Name})
		} else if record.Failed() {
			report.Failed++
			if v.disposition == DispositionDelete {
				if err := os.Remove(record.Path); err != nil {
					logger.Error("failed to delete failing file", logger.Fields{"path": record.Path, "error": err.Error()})
				} else {
					record.Deleted = true
					report.Deleted++
					logger.Info("deleted failing file", logger.Fields{"path": record.Path})
				}
			}
		} else {
			report.Passed++
		}

		if _, seen := perItem[entry.Item.ID]; !seen {
			report.ItemOrder = append(report.ItemOrder, entry.Item.ID)
		}
		perItem[entry.Item.ID] = append(perItem[entry.Item.ID], record)
		report.Records = append(report.Records, record)
	}

	for _, id := range report.ItemOrder {
		report.Items[id] = aggregate(perItem[id])
	}
	return report, nil
}

// checkFile runs the requested checks against one file record.
func (v *Verifier) checkFile(ctx context.Context, entry manifest.Entry) model.VerificationRecord {
	record := model.VerificationRecord{
		ItemID:   entry.Item.ID,
		FileName: entry.File.Name,
		Path:     download.TargetPath(v.root, entry.Item, entry.File),
		Results:  make(map[model.CheckKind]bool),
	}

	st, err := os.Stat(record.Path)
	if err != nil {
		record.Missing = true
		return record
	}

	if v.checks.Size {
		record.Results[model.CheckSize] = st.Size() == entry.File.Size
	}

	if v.checks.Checksum && entry.File.Checksum != "" {
		sum, err := fsutil.MD5File(record.Path)
		record.Results[model.CheckChecksum] = err == nil && strings.EqualFold(sum, entry.File.Checksum)
	}

	if v.checks.Archive && isArchive(entry.File.Name) {
		record.Results[model.CheckArchive] = scanArchive(ctx, record.Path) == nil
	}

	return record
}

// archiveExtensions lists the formats subject to the internal consistency
// scan.
var archiveExtensions = []string{".zip", ".tar", ".tar.gz", ".tgz", ".tar.bz2", ".7z", ".rar"}

func isArchive(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// scanArchive walks every entry of the archive and reads it to completion,
// so CRC and decompression failures surface instead of merely opening the
// file.
func scanArchive(ctx context.Context, path string) error {
	fsys, err := archives.FileSystem(ctx, path, nil)
	if err != nil {
		return errors.Wrapf(errors.ErrArchiveCorrupt, "%s: %v", filepath.Base(path), err)
	}
	if closer, ok := fsys.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	err = fs.WalkDir(fsys, ".", func(entryPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		f, err := fsys.Open(entryPath)
		if err != nil {
			return err
		}
		_, err = io.Copy(io.Discard, f)
		_ = f.Close()
		return err
	})
	if err != nil {
		return errors.Wrapf(errors.ErrArchiveCorrupt, "%s: %v", filepath.Base(path), err)
	}
	return nil
}

// aggregate folds one item's records into its summary status. A failing file
// outranks a missing one.
func aggregate(records []model.VerificationRecord) model.ItemStatus {
	status := model.ItemAllPassed
	for _, r := range records {
		if r.Failed() {
			return model.ItemSomeFailed
		}
		if r.Missing {
			status = model.ItemSomeMissing
		}
	}
	return status
}
