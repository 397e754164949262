//go:generate mockgen -destination=mocks/catalog.go -package=mocks . Client
package catalog

import (
	"context"

	"github.com/glorpus-work/shelfkeep/pkg/model"
)

// Client defines the interface the sync engine consumes to talk to the
// remote catalog.
type Client interface {
	// Enumerate lists all item identifiers owned by the authenticated user,
	// in catalog order, together with the remote updated flag.
	// It fails with errors.ErrAuthExpired or errors.ErrTransientNetwork.
	Enumerate(ctx context.Context) ([]model.Listing, error)

	// FetchDetail fetches one item's full detail record (title, files,
	// serial) given its identifier.
	FetchDetail(ctx context.Context, id string) (*model.Item, error)
}
