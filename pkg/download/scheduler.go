// Package download turns manifest entries into download tasks and executes
// them as resumable, retrying HTTP transfers.
package download

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/glorpus-work/shelfkeep/internal/logger"
	"github.com/glorpus-work/shelfkeep/pkg/manifest"
	"github.com/glorpus-work/shelfkeep/pkg/model"
)

// extrasSubdir is where bonus material lands inside an item directory.
const extrasSubdir = "extras"

// Filters select which manifest entries are scheduled.
type Filters struct {
	OSes       []string
	Languages  []string
	ItemID     string
	SkipGames  bool // exclude installers, patches and language packs
	SkipExtras bool // exclude bonus material
}

// Scheduler produces an ordered, finite sequence of download tasks from the
// manifest. It reads the manifest and the filesystem, never the network.
type Scheduler struct {
	manifest   *manifest.Manifest
	root       string
	startDelay time.Duration
}

// NewScheduler creates a scheduler producing tasks under the given root
// directory.
func NewScheduler(m *manifest.Manifest, root string) *Scheduler {
	return &Scheduler{manifest: m, root: root}
}

// WithStartDelay makes Schedule wait once before producing its first task,
// for scheduled off-peak runs.
func (s *Scheduler) WithStartDelay(d time.Duration) *Scheduler {
	s.startDelay = d
	return s
}

// Schedule returns one task per selected file record, in manifest insertion
// order. Files already present on disk with the declared size are marked
// TaskSkipped so re-runs are idempotent without network calls.
func (s *Scheduler) Schedule(ctx context.Context, filters Filters) ([]*model.DownloadTask, error) {
	if s.startDelay > 0 {
		logger.Info("waiting before starting downloads", logger.Fields{"delay": s.startDelay.String()})
		timer := time.NewTimer(s.startDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if filters.SkipGames && filters.SkipExtras {
		logger.Warn("both game files and extras excluded, nothing to schedule")
		return nil, nil
	}

	filter := model.FileFilter{
		OSes:      filters.OSes,
		Languages: filters.Languages,
		ItemID:    filters.ItemID,
		Kinds:     filters.kinds(),
	}
	entries, err := s.manifest.Query(filter)
	if err != nil {
		return nil, err
	}

	tasks := make([]*model.DownloadTask, 0, len(entries))
	for _, entry := range entries {
		task := &model.DownloadTask{
			Item:       entry.Item,
			File:       entry.File,
			TargetPath: TargetPath(s.root, entry.Item, entry.File),
			State:      model.TaskPending,
		}
		if satisfied(task.TargetPath, entry.File.Size) {
			task.State = model.TaskSkipped
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// kinds translates the skip toggles into a kind set; an empty set means all.
func (f Filters) kinds() []model.FileKind {
	if !f.SkipGames && !f.SkipExtras {
		return nil
	}
	var kinds []model.FileKind
	if !f.SkipGames {
		kinds = append(kinds, model.FileKindInstaller, model.FileKindPatch, model.FileKindLanguagePack)
	}
	if !f.SkipExtras {
		kinds = append(kinds, model.FileKindExtra)
	}
	return kinds
}

// satisfied reports whether the target already exists with the declared
// size. Presence is always re-checked on the filesystem, never inferred.
func satisfied(path string, declaredSize int64) bool {
	st, err := os.Stat(path)
	return err == nil && declaredSize > 0 && st.Size() == declaredSize
}

// TargetPath derives the deterministic destination of a file record so
// repeated runs address the same path. Extras live in their own
// subdirectory.
func TargetPath(root string, item *model.Item, file *model.FileRecord) string {
	if file.Kind.IsExtra() {
		return filepath.Join(root, item.ID, extrasSubdir, file.Name)
	}
	return filepath.Join(root, item.ID, file.Name)
}

// ItemDir returns the directory holding an item's files and sidecars.
func ItemDir(root string, item *model.Item) string {
	return filepath.Join(root, item.ID)
}
