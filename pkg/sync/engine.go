// Package sync drives one run of catalog synchronization: enumerate the
// remote catalog, fetch item details according to a merge policy, and merge
// them into the local manifest.
package sync

import (
	"context"
	"time"

	"github.com/glorpus-work/shelfkeep/internal/logger"
	"github.com/glorpus-work/shelfkeep/pkg/catalog"
	"github.com/glorpus-work/shelfkeep/pkg/errors"
	"github.com/glorpus-work/shelfkeep/pkg/manifest"
	"github.com/glorpus-work/shelfkeep/pkg/model"
)

// Policy selects which enumerated items get their detail record re-fetched.
type Policy string

// Merge policies.
const (
	// PolicyAll re-fetches every enumerated item.
	PolicyAll Policy = "all"
	// PolicySkipKnown fetches only identifiers absent from the manifest.
	PolicySkipKnown Policy = "skip-known"
	// PolicyUpdatedOnly fetches only items the enumeration flags as updated.
	PolicyUpdatedOnly Policy = "updated-only"
	// PolicySingleID fetches exactly one identifier.
	PolicySingleID Policy = "single-id"
)

// DefaultRetries is the detail-fetch attempt ceiling beyond the first try.
const DefaultRetries = 3

// DefaultBackoff is the base delay between detail-fetch retries; it doubles
// per attempt.
const DefaultBackoff = 5 * time.Second

// Engine merges remote catalog state into a manifest. It is the only writer
// of catalog metadata.
type Engine struct {
	client   catalog.Client
	manifest *manifest.Manifest
	retries  int
	backoff  time.Duration
	now      func() time.Time
}

// Options configure one sync run.
type Options struct {
	Policy       Policy
	ItemID       string // required for PolicySingleID
	ManifestPath string

	// OSes and Languages, when non-empty, restrict which file records enter
	// the manifest. Empty sets keep everything.
	OSes      []string
	Languages []string
}

// Summary reports what one sync run did.
type Summary struct {
	Enumerated int
	Fetched    int
	Skipped    int
	Failed     int
	FailedIDs  []string
}

// New creates a sync engine over the given client and manifest.
func New(client catalog.Client, m *manifest.Manifest) *Engine {
	return &Engine{
		client:   client,
		manifest: m,
		retries:  DefaultRetries,
		backoff:  DefaultBackoff,
		now:      time.Now,
	}
}

// WithRetryPolicy overrides the retry ceiling and backoff base.
func (e *Engine) WithRetryPolicy(retries int, backoff time.Duration) *Engine {
	e.retries = retries
	e.backoff = backoff
	return e
}

// WithClock overrides the clock used for the per-item LastSynced marker.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Run enumerates the catalog once, fetches the detail record of every item
// the policy selects, upserts the results and persists the manifest exactly
// once at the end. A failing item is skipped; it never aborts the run. An
// expired session or a failing enumeration aborts without touching the
// manifest file.
func (e *Engine) Run(ctx context.Context, opts Options) (*Summary, error) {
	listings, err := e.client.Enumerate(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "catalog enumeration failed")
	}
	logger.Info("catalog enumerated", logger.Fields{"items": len(listings)})

	selected, err := e.selectListings(listings, opts)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Enumerated: len(listings),
		Skipped:    len(listings) - len(selected),
	}

	for _, listing := range selected {
		item, err := e.fetchWithRetry(ctx, listing.ID)
		if err != nil {
			if isFatal(err) {
				return nil, err
			}
			logger.Warn("skipping item after failed fetch", logger.Fields{"id": listing.ID, "error": err.Error()})
			summary.Failed++
			summary.FailedIDs = append(summary.FailedIDs, listing.ID)
			continue
		}

		item.Files = selectFiles(item.Files, opts)
		item.LastSynced = e.now()
		e.manifest.Upsert(item)
		summary.Fetched++
		logger.Debug("item merged", logger.Fields{"id": item.ID, "files": len(item.Files)})
	}

	if err := e.manifest.Save(opts.ManifestPath); err != nil {
		return nil, errors.Wrap(err, "failed to persist manifest")
	}
	return summary, nil
}

// selectListings applies the merge policy to the enumeration, preserving
// catalog order.
func (e *Engine) selectListings(listings []model.Listing, opts Options) ([]model.Listing, error) {
	switch opts.Policy {
	case PolicyAll, "":
		return listings, nil
	case PolicySkipKnown:
		selected := make([]model.Listing, 0, len(listings))
		for _, l := range listings {
			if !e.manifest.Has(l.ID) {
				selected = append(selected, l)
			}
		}
		return selected, nil
	case PolicyUpdatedOnly:
		selected := make([]model.Listing, 0, len(listings))
		for _, l := range listings {
			if l.Updated {
				selected = append(selected, l)
			}
		}
		return selected, nil
	case PolicySingleID:
		for _, l := range listings {
			if l.ID == opts.ItemID {
				return []model.Listing{l}, nil
			}
		}
		return nil, errors.Wrapf(errors.ErrUnknownItem, "%s is not in the catalog enumeration", opts.ItemID)
	default:
		return nil, errors.Wrapf(errors.ErrConfigValidation, "unknown merge policy %q", opts.Policy)
	}
}

// selectFiles drops file records outside the configured OS and language
// sets. Extras carry no OS or language tag, so they always survive.
func selectFiles(files []*model.FileRecord, opts Options) []*model.FileRecord {
	if len(opts.OSes) == 0 && len(opts.Languages) == 0 {
		return files
	}
	selected := make([]*model.FileRecord, 0, len(files))
	for _, f := range files {
		if f.MatchOS(opts.OSes) && f.MatchLanguage(opts.Languages) {
			selected = append(selected, f)
		}
	}
	return selected
}

// fetchWithRetry fetches one detail record, retrying transient failures with
// exponential backoff up to the attempt ceiling.
func (e *Engine) fetchWithRetry(ctx context.Context, id string) (*model.Item, error) {
	var lastErr error
	for attempt := 0; attempt <= e.retries; attempt++ {
		if attempt > 0 {
			delay := e.backoff << (attempt - 1)
			logger.Debug("retrying detail fetch", logger.Fields{"id": id, "attempt": attempt, "delay": delay.String()})
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		item, err := e.client.FetchDetail(ctx, id)
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, errors.ErrTransientNetwork) {
			return nil, err
		}
		lastErr = err
	}
	return nil, errors.Wrapf(lastErr, "giving up on %s after %d retries", id, e.retries)
}

// isFatal reports whether an error must abort the whole run instead of
// skipping one item.
func isFatal(err error) bool {
	return errors.Is(err, errors.ErrAuthExpired) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
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
