package download

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/shelfkeep/pkg/errors"
	"github.com/glorpus-work/shelfkeep/pkg/model"
)

func testTask(t *testing.T, url string, content string) *model.DownloadTask {
	t.Helper()
	root := t.TempDir()
	item := &model.Item{ID: "a", Title: "A", Serial: "AAAA-1111"}
	file := &model.FileRecord{
		Name: "setup.exe",
		URL:  url,
		Size: int64(len(content)),
		Kind: model.FileKindInstaller,
		OS:   "windows",
	}
	item.Files = []*model.FileRecord{file}
	return &model.DownloadTask{
		Item:       item,
		File:       file,
		TargetPath: TargetPath(root, item, file),
		State:      model.TaskPending,
	}
}

func quickFetcher(opts FetcherOptions) *Fetcher {
	if opts.Retries == 0 {
		opts.Retries = 2
	}
	if opts.Backoff == 0 {
		opts.Backoff = time.Millisecond
	}
	return NewFetcher(opts)
}

func TestFetchSuccess(t *testing.T) {
	const content = "installer payload"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(content))
	}))
	defer srv.Close()

	task := testTask(t, srv.URL, content)
	require.NoError(t, quickFetcher(FetcherOptions{}).Fetch(context.Background(), task))

	assert.Equal(t, model.TaskCompleted, task.State)
	data, err := os.ReadFile(task.TargetPath)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))

	t.Run("no partial file remains", func(t *testing.T) {
		assert.NoFileExists(t, task.TargetPath+partSuffix)
	})

	t.Run("sidecars written", func(t *testing.T) {
		itemDir := filepath.Dir(task.TargetPath)
		info, err := os.ReadFile(filepath.Join(itemDir, InfoFilename))
		require.NoError(t, err)
		assert.Contains(t, string(info), "-- A --")
		assert.Contains(t, string(info), "[setup.exe]")

		serial, err := os.ReadFile(filepath.Join(itemDir, SerialFilename))
		require.NoError(t, err)
		assert.Equal(t, "AAAA-1111\n", string(serial))
	})
}

func TestFetchResumesPartial(t *testing.T) {
	const content = "0123456789abcdef"
	var sawRange atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rangeHdr := r.Header.Get("Range")
		sawRange.Store(rangeHdr)
		if !strings.HasPrefix(rangeHdr, "bytes=") {
			t.Errorf("expected a range request, got %q", rangeHdr)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		offset, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(rangeHdr, "bytes="), "-"))
		require.NoError(t, err)
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, len(content)-1, len(content)))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte(content[offset:]))
	}))
	defer srv.Close()

	task := testTask(t, srv.URL, content)
	// Simulate an interrupted earlier transfer.
	require.NoError(t, os.MkdirAll(filepath.Dir(task.TargetPath), 0o755))
	require.NoError(t, os.WriteFile(task.TargetPath+partSuffix, []byte(content[:6]), 0o644))

	require.NoError(t, quickFetcher(FetcherOptions{}).Fetch(context.Background(), task))

	assert.Equal(t, "bytes=6-", sawRange.Load())
	data, err := os.ReadFile(task.TargetPath)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestFetchRestartsOnFullResponse(t *testing.T) {
	const content = "fresh full body"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Server ignores the range and replies 200 with the whole file.
		_, _ = w.Write([]byte(content))
	}))
	defer srv.Close()

	task := testTask(t, srv.URL, content)
	require.NoError(t, os.MkdirAll(filepath.Dir(task.TargetPath), 0o755))
	require.NoError(t, os.WriteFile(task.TargetPath+partSuffix, []byte("stale-prefix"), 0o644))

	require.NoError(t, quickFetcher(FetcherOptions{}).Fetch(context.Background(), task))

	data, err := os.ReadFile(task.TargetPath)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestFetchSizeMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("short"))
	}))
	defer srv.Close()

	task := testTask(t, srv.URL, "a much longer declared content")
	err := quickFetcher(FetcherOptions{}).Fetch(context.Background(), task)

	require.ErrorIs(t, err, errors.ErrSizeMismatch)
	assert.Equal(t, model.TaskFailedFatal, task.State)
	assert.NoFileExists(t, task.TargetPath)
}

func TestFetchRetryBoundedness(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	task := testTask(t, srv.URL, "content")
	err := quickFetcher(FetcherOptions{Retries: 2, Backoff: time.Millisecond}).Fetch(context.Background(), task)

	require.ErrorIs(t, err, errors.ErrFetchFailed)
	assert.Equal(t, model.TaskFailedFatal, task.State)
	assert.Equal(t, int32(3), requests.Load(), "1 attempt + 2 retries")
}

func TestFetchPermanentErrorFailsFast(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	task := testTask(t, srv.URL, "content")
	err := quickFetcher(FetcherOptions{}).Fetch(context.Background(), task)

	require.Error(t, err)
	assert.Equal(t, int32(1), requests.Load(), "4xx must not be retried")
}

func TestFetchDryRun(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	task := testTask(t, srv.URL, "content")
	require.NoError(t, quickFetcher(FetcherOptions{DryRun: true}).Fetch(context.Background(), task))

	assert.Equal(t, int32(0), requests.Load())
	assert.NoFileExists(t, task.TargetPath)
	assert.NoFileExists(t, task.TargetPath+partSuffix)
}

func TestFetchSkippedTaskIssuesNoRequests(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	task := testTask(t, srv.URL, "content")
	task.State = model.TaskSkipped

	require.NoError(t, quickFetcher(FetcherOptions{}).Fetch(context.Background(), task))
	assert.Equal(t, int32(0), requests.Load())
	assert.Equal(t, model.TaskSkipped, task.State)
}

func TestFetchRunsPostDownloadHook(t *testing.T) {
	const content = "payload"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(content))
	}))
	defer srv.Close()

	t.Run("hook receives the completed task", func(t *testing.T) {
		var got *model.DownloadTask
		task := testTask(t, srv.URL, content)
		f := quickFetcher(FetcherOptions{Hook: func(tk *model.DownloadTask) error {
			got = tk
			return nil
		}})

		require.NoError(t, f.Fetch(context.Background(), task))
		require.NotNil(t, got)
		assert.Equal(t, task.TargetPath, got.TargetPath)
	})

	t.Run("hook error fails the task", func(t *testing.T) {
		task := testTask(t, srv.URL, content)
		f := quickFetcher(FetcherOptions{Hook: func(*model.DownloadTask) error {
			return fmt.Errorf("hook exploded")
		}})

		err := f.Fetch(context.Background(), task)
		require.Error(t, err)
		assert.Equal(t, model.TaskFailedFatal, task.State)
	})
}
