package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/shelfkeep/pkg/auth"
	"github.com/glorpus-work/shelfkeep/pkg/errors"
	"github.com/glorpus-work/shelfkeep/pkg/model"
)

func newClientFor(t *testing.T, srv *httptest.Server) *HTTPClient {
	t.Helper()
	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return NewHTTPClient(base, auth.SessionAuth{Token: "tok"}, 5*time.Second, 0)
}

func TestEnumerate(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/items", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"alpha","updated":false},{"id":"beta","updated":true}]`))
	}))
	defer srv.Close()

	listings, err := newClientFor(t, srv).Enumerate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	require.Len(t, listings, 2)
	assert.Equal(t, model.Listing{ID: "alpha", Updated: false}, listings[0])
	assert.Equal(t, model.Listing{ID: "beta", Updated: true}, listings[1])
}

func TestFetchDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/items/alpha", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "alpha",
			"title": "Alpha",
			"serial": "AAAA-1111",
			"files": [
				{"name":"setup.exe","url":"https://dl.example.com/setup.exe","size":42,"checksum":"aa","kind":"installer","os":"windows","language":"en"},
				{"name":"art.zip","url":"https://dl.example.com/art.zip","size":7,"kind":"extra"}
			]
		}`))
	}))
	defer srv.Close()

	item, err := newClientFor(t, srv).FetchDetail(context.Background(), "alpha")
	require.NoError(t, err)

	assert.Equal(t, "alpha", item.ID)
	assert.Equal(t, "Alpha", item.Title)
	assert.Equal(t, "AAAA-1111", item.Serial)
	require.Len(t, item.Files, 2)
	assert.Equal(t, model.FileKindInstaller, item.Files[0].Kind)
	assert.Equal(t, int64(42), item.Files[0].Size)
	assert.Equal(t, model.FileKindExtra, item.Files[1].Kind)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    error
	}{
		{"unauthorized means expired session", http.StatusUnauthorized, errors.ErrAuthExpired},
		{"forbidden means expired session", http.StatusForbidden, errors.ErrAuthExpired},
		{"server error is transient", http.StatusBadGateway, errors.ErrTransientNetwork},
		{"service unavailable is transient", http.StatusServiceUnavailable, errors.ErrTransientNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer srv.Close()

			_, err := newClientFor(t, srv).Enumerate(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("not found is permanent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := newClientFor(t, srv).FetchDetail(context.Background(), "nope")
		require.Error(t, err)
		assert.NotErrorIs(t, err, errors.ErrTransientNetwork)
		assert.NotErrorIs(t, err, errors.ErrAuthExpired)
	})

	t.Run("connection failure is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close() // refuse connections

		_, err := newClientFor(t, srv).Enumerate(context.Background())
		assert.ErrorIs(t, err, errors.ErrTransientNetwork)
	})
}

func TestRateLimiterHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	// One request per hour: the second Wait cannot be satisfied in time.
	client := NewHTTPClient(base, auth.NoAuth{}, time.Second, 1.0/3600)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Enumerate(ctx)
	require.NoError(t, err)
	_, err = client.Enumerate(ctx)
	assert.Error(t, err)
}
