package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/glorpus-work/shelfkeep/pkg/catalog/mocks"
	"github.com/glorpus-work/shelfkeep/pkg/errors"
	"github.com/glorpus-work/shelfkeep/pkg/manifest"
	"github.com/glorpus-work/shelfkeep/pkg/model"
)

var fixedClock = func() time.Time { return time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC) }

func detail(id string) *model.Item {
	return &model.Item{
		ID:    id,
		Title: "Title of " + id,
		Files: []*model.FileRecord{
			{Name: id + ".exe", URL: "https://dl.example.com/" + id + ".exe", Size: 100, Kind: model.FileKindInstaller, OS: "windows", Language: "en"},
		},
	}
}

func newEngine(t *testing.T, client *mocks.MockClient) (*Engine, string) {
	t.Helper()
	m := manifest.New()
	path := filepath.Join(t.TempDir(), "manifest.json")
	engine := New(client, m).WithRetryPolicy(2, time.Millisecond).WithClock(fixedClock)
	return engine, path
}

func TestRunPolicyAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	client.EXPECT().Enumerate(gomock.Any()).Return([]model.Listing{{ID: "a"}, {ID: "b"}}, nil)
	client.EXPECT().FetchDetail(gomock.Any(), "a").Return(detail("a"), nil)
	client.EXPECT().FetchDetail(gomock.Any(), "b").Return(detail("b"), nil)

	engine, path := newEngine(t, client)
	summary, err := engine.Run(context.Background(), Options{Policy: PolicyAll, ManifestPath: path})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Enumerated)
	assert.Equal(t, 2, summary.Fetched)
	assert.Equal(t, 0, summary.Failed)

	loaded, err := manifest.Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())
	assert.True(t, loaded.Items[0].LastSynced.Equal(fixedClock()))
}

func TestRunIdempotentMerge(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	client.EXPECT().Enumerate(gomock.Any()).Return([]model.Listing{{ID: "a"}}, nil).Times(2)
	client.EXPECT().FetchDetail(gomock.Any(), "a").Return(detail("a"), nil).Times(2)

	engine, path := newEngine(t, client)

	_, err := engine.Run(context.Background(), Options{Policy: PolicyAll, ManifestPath: path})
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = engine.Run(context.Background(), Options{Policy: PolicyAll, ManifestPath: path})
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second, "merging the same snapshot twice must produce an identical manifest")
}

func TestRunPolicySkipKnown(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	client.EXPECT().Enumerate(gomock.Any()).Return([]model.Listing{{ID: "known"}, {ID: "fresh"}}, nil)
	// No FetchDetail for "known" even though it is still enumerated.
	client.EXPECT().FetchDetail(gomock.Any(), "fresh").Return(detail("fresh"), nil)

	engine, path := newEngine(t, client)
	engine.manifest.Upsert(detail("known"))

	summary, err := engine.Run(context.Background(), Options{Policy: PolicySkipKnown, ManifestPath: path})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Fetched)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 2, engine.manifest.Len())
}

func TestRunPolicyUpdatedOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	client.EXPECT().Enumerate(gomock.Any()).Return([]model.Listing{{ID: "stale"}, {ID: "touched", Updated: true}}, nil)
	client.EXPECT().FetchDetail(gomock.Any(), "touched").Return(detail("touched"), nil)

	engine, path := newEngine(t, client)
	summary, err := engine.Run(context.Background(), Options{Policy: PolicyUpdatedOnly, ManifestPath: path})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Fetched)
	assert.Equal(t, 1, summary.Skipped)
}

func TestRunPolicySingleID(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		client := mocks.NewMockClient(ctrl)

		client.EXPECT().Enumerate(gomock.Any()).Return([]model.Listing{{ID: "a"}, {ID: "b"}}, nil)
		client.EXPECT().FetchDetail(gomock.Any(), "b").Return(detail("b"), nil)

		engine, path := newEngine(t, client)
		summary, err := engine.Run(context.Background(), Options{Policy: PolicySingleID, ItemID: "b", ManifestPath: path})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Fetched)
	})

	t.Run("absent", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		client := mocks.NewMockClient(ctrl)

		client.EXPECT().Enumerate(gomock.Any()).Return([]model.Listing{{ID: "a"}}, nil)

		engine, path := newEngine(t, client)
		_, err := engine.Run(context.Background(), Options{Policy: PolicySingleID, ItemID: "zzz", ManifestPath: path})
		assert.ErrorIs(t, err, errors.ErrUnknownItem)
	})
}

func TestRunRetriesTransientThenSucceeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	client.EXPECT().Enumerate(gomock.Any()).Return([]model.Listing{{ID: "flaky"}}, nil)
	gomock.InOrder(
		client.EXPECT().FetchDetail(gomock.Any(), "flaky").Return(nil, errors.ErrTransientNetwork),
		client.EXPECT().FetchDetail(gomock.Any(), "flaky").Return(detail("flaky"), nil),
	)

	engine, path := newEngine(t, client)
	summary, err := engine.Run(context.Background(), Options{Policy: PolicyAll, ManifestPath: path})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Fetched)
}

func TestRunIsolatesExhaustedItem(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	client.EXPECT().Enumerate(gomock.Any()).Return([]model.Listing{{ID: "bad"}, {ID: "good"}}, nil)
	// 1 initial attempt + 2 retries, all transient.
	client.EXPECT().FetchDetail(gomock.Any(), "bad").Return(nil, errors.ErrTransientNetwork).Times(3)
	client.EXPECT().FetchDetail(gomock.Any(), "good").Return(detail("good"), nil)

	engine, path := newEngine(t, client)
	summary, err := engine.Run(context.Background(), Options{Policy: PolicyAll, ManifestPath: path})
	require.NoError(t, err, "one bad item must not abort the sync")

	assert.Equal(t, 1, summary.Fetched)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, []string{"bad"}, summary.FailedIDs)

	// The manifest was still persisted once.
	loaded, err := manifest.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
}

func TestRunAuthExpiredAborts(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	client.EXPECT().Enumerate(gomock.Any()).Return([]model.Listing{{ID: "a"}, {ID: "b"}}, nil)
	client.EXPECT().FetchDetail(gomock.Any(), "a").Return(nil, errors.ErrAuthExpired)

	engine, path := newEngine(t, client)
	_, err := engine.Run(context.Background(), Options{Policy: PolicyAll, ManifestPath: path})
	require.ErrorIs(t, err, errors.ErrAuthExpired)

	assert.NoFileExists(t, path, "an aborted run must not write the manifest")
}

func TestRunEnumerationFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	client.EXPECT().Enumerate(gomock.Any()).Return(nil, errors.ErrTransientNetwork)

	engine, path := newEngine(t, client)
	_, err := engine.Run(context.Background(), Options{Policy: PolicyAll, ManifestPath: path})
	require.Error(t, err)
	assert.NoFileExists(t, path)
}

func TestRunUnknownPolicy(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	client.EXPECT().Enumerate(gomock.Any()).Return([]model.Listing{{ID: "a"}}, nil)

	engine, path := newEngine(t, client)
	_, err := engine.Run(context.Background(), Options{Policy: "sometimes", ManifestPath: path})
	assert.ErrorIs(t, err, errors.ErrConfigValidation)
}

func TestRunFileSelection(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	item := &model.Item{
		ID:    "a",
		Title: "Title of a",
		Files: []*model.FileRecord{
			{Name: "setup.exe", Size: 100, Kind: model.FileKindInstaller, OS: "windows", Language: "en"},
			{Name: "setup.sh", Size: 100, Kind: model.FileKindInstaller, OS: "linux", Language: "en"},
			{Name: "setup_fr.exe", Size: 100, Kind: model.FileKindInstaller, OS: "windows", Language: "fr"},
			{Name: "art.zip", Size: 100, Kind: model.FileKindExtra},
		},
	}
	client.EXPECT().Enumerate(gomock.Any()).Return([]model.Listing{{ID: "a"}}, nil)
	client.EXPECT().FetchDetail(gomock.Any(), "a").Return(item, nil)

	engine, path := newEngine(t, client)
	_, err := engine.Run(context.Background(), Options{
		Policy:       PolicyAll,
		ManifestPath: path,
		OSes:         []string{"windows"},
		Languages:    []string{"en"},
	})
	require.NoError(t, err)

	loaded, err := manifest.Load(path)
	require.NoError(t, err)
	stored := loaded.Find("a")
	require.NotNil(t, stored)
	require.Len(t, stored.Files, 2)
	assert.Equal(t, "setup.exe", stored.Files[0].Name)
	// Untagged extras survive any selection.
	assert.Equal(t, "art.zip", stored.Files[1].Name)
}
