// Package catalog implements the HTTP client for the remote catalog service.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/glorpus-work/shelfkeep/pkg/auth"
	"github.com/glorpus-work/shelfkeep/pkg/errors"
	"github.com/glorpus-work/shelfkeep/pkg/model"
)

const defaultUserAgent = "shelfkeep/1.0"

// HTTPClient talks to the catalog's JSON endpoints. All requests share one
// rate limiter because the remote service enforces informal rate limits.
type HTTPClient struct {
	client    *http.Client
	baseURL   *url.URL
	auth      auth.Authenticator
	limiter   *rate.Limiter
	userAgent string
}

// NewHTTPClient creates a catalog client. requestsPerSecond caps the request
// rate; values <= 0 disable the limiter.
func NewHTTPClient(baseURL *url.URL, authenticator auth.Authenticator, timeout time.Duration, requestsPerSecond float64) *HTTPClient {
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	if authenticator == nil {
		authenticator = auth.NoAuth{}
	}
	return &HTTPClient{
		client:    &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		auth:      authenticator,
		limiter:   limiter,
		userAgent: defaultUserAgent,
	}
}

// listingPayload is the wire form of one enumeration entry.
type listingPayload struct {
	ID      string `json:"id"`
	Updated bool   `json:"updated"`
}

// itemPayload is the wire form of one item detail record.
type itemPayload struct {
	ID     string        `json:"id"`
	Title  string        `json:"title"`
	Notes  string        `json:"notes"`
	Serial string        `json:"serial"`
	Files  []filePayload `json:"files"`
}

type filePayload struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
	Kind     string `json:"kind"`
	OS       string `json:"os"`
	Language string `json:"language"`
	Updated  bool   `json:"updated"`
}

// Enumerate lists all owned item identifiers in catalog order.
func (hc *HTTPClient) Enumerate(ctx context.Context) ([]model.Listing, error) {
	var payload []listingPayload
	if err := hc.getJSON(ctx, "items", &payload); err != nil {
		return nil, errors.Wrap(err, "failed to enumerate catalog")
	}

	listings := make([]model.Listing, 0, len(payload))
	for _, l := range payload {
		listings = append(listings, model.Listing{ID: l.ID, Updated: l.Updated})
	}
	return listings, nil
}

// FetchDetail fetches one item's full detail record.
func (hc *HTTPClient) FetchDetail(ctx context.Context, id string) (*model.Item, error) {
	var payload itemPayload
	if err := hc.getJSON(ctx, "items/"+id, &payload); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch detail for %s", id)
	}
	if payload.ID == "" {
		payload.ID = id
	}

	item := &model.Item{
		ID:     payload.ID,
		Title:  payload.Title,
		Notes:  payload.Notes,
		Serial: payload.Serial,
		Files:  make([]*model.FileRecord, 0, len(payload.Files)),
	}
	for _, f := range payload.Files {
		item.Files = append(item.Files, &model.FileRecord{
			Name:     f.Name,
			URL:      f.URL,
			Size:     f.Size,
			Checksum: f.Checksum,
			Kind:     model.FileKind(f.Kind),
			OS:       f.OS,
			Language: f.Language,
			Updated:  f.Updated,
		})
	}
	return item, nil
}

// getJSON performs one rate-limited, authenticated GET and decodes the JSON
// response into out.
func (hc *HTTPClient) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	if hc.limiter != nil {
		if err := hc.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	reqURL, err := buildURL(hc.baseURL, endpoint)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", hc.userAgent)
	req.Header.Set("Accept", "application/json")
	if err := hc.auth.Apply(req); err != nil {
		return errors.Wrap(err, "failed to apply authentication")
	}

	resp, err := hc.client.Do(req)
	if err != nil {
		// Timeouts and connection failures are retryable.
		return errors.Wrapf(errors.ErrTransientNetwork, "%v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response body")
	}
	return nil
}

// classifyStatus maps HTTP status codes to the error taxonomy: 401/403 mean
// the session is gone, 5xx is retryable, any other non-200 is permanent.
func classifyStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return errors.ErrAuthExpired
	case code >= 500:
		return errors.Wrapf(errors.ErrTransientNetwork, "status code %d", code)
	default:
		return fmt.Errorf("unexpected status code: %d", code)
	}
}

func buildURL(base *url.URL, endpoint string) (string, error) {
	if base == nil {
		return "", fmt.Errorf("catalog base URL is not configured: %w", errors.ErrInvalidPath)
	}
	joined := *base
	path, err := url.JoinPath(base.Path, endpoint)
	if err != nil {
		return "", errors.Wrap(err, "failed to build catalog URL")
	}
	joined.Path = path
	return joined.String(), nil
}
