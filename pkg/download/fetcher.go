package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/glorpus-work/shelfkeep/internal/logger"
	"github.com/glorpus-work/shelfkeep/pkg/errors"
	"github.com/glorpus-work/shelfkeep/pkg/fsutil"
	"github.com/glorpus-work/shelfkeep/pkg/model"
)

// partSuffix marks an in-flight transfer; the final name only ever appears
// after a completed, size-checked rename.
const partSuffix = ".part"

// Default fetcher tuning.
const (
	DefaultRetries = 3
	DefaultBackoff = 5 * time.Second
)

// PostDownloadHook is invoked after a task completes and its sidecars are
// written. A hook error fails the task.
type PostDownloadHook func(task *model.DownloadTask) error

// FetcherOptions configure a Fetcher.
type FetcherOptions struct {
	Timeout   time.Duration
	UserAgent string
	Retries   int           // transient-failure attempt ceiling beyond the first try
	Backoff   time.Duration // base delay between attempts, doubled per attempt
	DryRun    bool
	Hook      PostDownloadHook
}

// Fetcher executes one download task at a time: a resumable HTTP transfer to
// a temporary path, a size check, and an atomic rename into place.
type Fetcher struct {
	client    *http.Client
	userAgent string
	retries   int
	backoff   time.Duration
	dryRun    bool
	hook      PostDownloadHook
}

// NewFetcher creates a fetcher with the given options.
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = "shelfkeep/1.0"
	}
	if opts.Retries <= 0 {
		opts.Retries = DefaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	return &Fetcher{
		client:    &http.Client{Timeout: opts.Timeout},
		userAgent: opts.UserAgent,
		retries:   opts.Retries,
		backoff:   opts.Backoff,
		dryRun:    opts.DryRun,
		hook:      opts.Hook,
	}
}

// Fetch executes one task to a terminal state. Transient errors are retried
// with exponential backoff up to the attempt ceiling; a failing task never
// prevents subsequent tasks from running, so the returned error is
// informational for the caller's summary.
func (f *Fetcher) Fetch(ctx context.Context, task *model.DownloadTask) error {
	if task.State == model.TaskSkipped {
		logger.Debug("already satisfied", logger.Fields{"file": task.File.Name})
		return nil
	}

	if f.dryRun {
		logger.Info("dry-run: would download", logger.Fields{
			"item": task.Item.ID,
			"file": task.File.Name,
			"size": task.File.Size,
		})
		return nil
	}

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			delay := f.backoff << (attempt - 1)
			logger.Warn("retrying download", logger.Fields{"file": task.File.Name, "attempt": attempt, "delay": delay.String()})
			if err := sleep(ctx, delay); err != nil {
				return f.fail(task, err)
			}
		}

		task.State = model.TaskInProgress
		err := f.transfer(ctx, task)
		if err == nil {
			return f.finalize(task)
		}
		if !errors.Is(err, errors.ErrTransientNetwork) {
			return f.fail(task, err)
		}
		task.State = model.TaskPending
		lastErr = err
	}

	return f.fail(task, errors.Wrapf(errors.ErrFetchFailed, "%s: retries exhausted: %v", task.File.Name, lastErr))
}

// transfer performs one HTTP attempt against the task's temporary path,
// resuming a truncated partial file via a range request when one exists.
func (f *Fetcher) transfer(ctx context.Context, task *model.DownloadTask) error {
	tmpPath := task.TargetPath + partSuffix
	if err := os.MkdirAll(filepath.Dir(tmpPath), fsutil.DirModeDefault); err != nil {
		return errors.Wrap(err, "could not create item directory")
	}

	offset := partialSize(tmpPath)
	if task.File.Size > 0 && offset >= task.File.Size {
		// Stale oversized partial, start over.
		offset = 0
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.File.URL, http.NoBody)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return errors.Wrapf(errors.ErrTransientNetwork, "%v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusPartialContent:
		// Server honors the range, append to the partial.
	case resp.StatusCode == http.StatusOK:
		// Full body, restart from the beginning.
		offset = 0
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		// The partial no longer lines up with the remote file.
		_ = os.Remove(tmpPath)
		return errors.Wrapf(errors.ErrTransientNetwork, "range no longer satisfiable for %s", task.File.Name)
	case resp.StatusCode >= 500:
		return errors.Wrapf(errors.ErrTransientNetwork, "status code %d", resp.StatusCode)
	default:
		return fmt.Errorf("unexpected status code: %d: %w", resp.StatusCode, errors.ErrFetchFailed)
	}

	written, err := writeBody(tmpPath, offset, resp.Body)
	if err != nil {
		return errors.Wrapf(errors.ErrTransientNetwork, "interrupted while writing %s: %v", task.File.Name, err)
	}

	if task.File.Size > 0 && written != task.File.Size {
		if written > task.File.Size {
			_ = os.Remove(tmpPath)
		}
		return errors.Wrapf(errors.ErrSizeMismatch, "%s: got %d bytes, manifest declares %d", task.File.Name, written, task.File.Size)
	}
	return nil
}

// finalize renames the completed temporary file into place and writes the
// item sidecars.
func (f *Fetcher) finalize(task *model.DownloadTask) error {
	tmpPath := task.TargetPath + partSuffix
	if err := fsutil.Move(tmpPath, task.TargetPath); err != nil {
		return f.fail(task, errors.Wrap(err, "could not finalize file"))
	}
	if err := os.Chmod(task.TargetPath, fsutil.FileModeDefault); err != nil {
		return f.fail(task, errors.Wrap(err, "could not set permissions"))
	}

	itemDir := itemDirFor(task)
	if err := WriteInfoFile(itemDir, task.Item); err != nil {
		return f.fail(task, err)
	}
	if err := WriteSerialFile(itemDir, task.Item); err != nil {
		return f.fail(task, err)
	}

	if f.hook != nil {
		if err := f.hook(task); err != nil {
			return f.fail(task, errors.Wrap(err, "post-download hook failed"))
		}
	}

	task.State = model.TaskCompleted
	logger.Success("downloaded", logger.Fields{"item": task.Item.ID, "file": task.File.Name})
	return nil
}

func (f *Fetcher) fail(task *model.DownloadTask, err error) error {
	task.State = model.TaskFailedFatal
	task.Err = err
	logger.Error("download failed", logger.Fields{"item": task.Item.ID, "file": task.File.Name, "error": err.Error()})
	return err
}

// partialSize returns the size of an existing partial file, or zero.
func partialSize(tmpPath string) int64 {
	st, err := os.Stat(tmpPath)
	if err != nil {
		return 0
	}
	return st.Size()
}

// writeBody appends body to the file at tmpPath starting at offset and
// returns the resulting file size.
func writeBody(tmpPath string, offset int64, body io.Reader) (int64, error) {
	out, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY, fsutil.FileModeDefault)
	if err != nil {
		return 0, err
	}

	if err := out.Truncate(offset); err != nil {
		_ = out.Close()
		return 0, err
	}
	if _, err := out.Seek(offset, io.SeekStart); err != nil {
		_ = out.Close()
		return 0, err
	}

	n, copyErr := io.Copy(out, body)
	if err := out.Sync(); err != nil && copyErr == nil {
		copyErr = err
	}
	if err := out.Close(); err != nil && copyErr == nil {
		copyErr = err
	}
	return offset + n, copyErr
}

// itemDirFor locates the sidecar directory of a task's item; extras live one
// level below it.
func itemDirFor(task *model.DownloadTask) string {
	dir := filepath.Dir(task.TargetPath)
	if task.File.Kind.IsExtra() {
		return filepath.Dir(dir)
	}
	return dir
}

// sleep waits for d or until the context is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
