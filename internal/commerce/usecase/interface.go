// Package usecase maps commerce use cases onto marketing API calls and onto dispatch jobs.
package usecase

import (
	"context"

	"github.com/allisson/klaviyo-relay/internal/commerce/domain"
	dispatchDomain "github.com/allisson/klaviyo-relay/internal/dispatch/domain"
)

// MarketingClient defines the marketing API operations used by the actions.
type MarketingClient interface {
	Identify(ctx context.Context, customer domain.Customer) error
	Track(ctx context.Context, event domain.Event) error
	TrackOnce(ctx context.Context, event domain.Event) error
	UpsertCatalogItem(ctx context.Context, product domain.Product) error
	DeleteCatalogItem(ctx context.Context, productID string) (bool, error)
	BulkUpsertCatalog(ctx context.Context, products []domain.Product) domain.BulkResult
	DeleteProfile(ctx context.Context, email string) (bool, error)
	AddToList(ctx context.Context, listID, email string) (bool, error)
	RemoveFromList(ctx context.Context, listID, email string) (bool, error)
}

// JobEnqueuer stores units of work on the dispatch queue.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, kind dispatchDomain.JobKind, payload any) (*dispatchDomain.Job, error)
}

// RelayUseCase turns commerce facts received at ingress into dispatch jobs.
// Every method returns once the work is queued; remote outcomes are only visible in logs.
type RelayUseCase interface {
	TrackEvent(ctx context.Context, event domain.Event) (*dispatchDomain.Job, error)
	// TrackEventOnce rejects an event without a unique id before anything is queued.
	TrackEventOnce(ctx context.Context, event domain.Event) (*dispatchDomain.Job, error)
	ProductViewed(ctx context.Context, product domain.Product, customer *domain.Customer) (*dispatchDomain.Job, error)
	// OrderPlaced queues an identify job and a "Placed Order" track job. Their completion order is not guaranteed.
	OrderPlaced(ctx context.Context, order domain.Order, customer domain.Customer) ([]*dispatchDomain.Job, error)
	SyncCatalog(ctx context.Context, products []domain.Product) (*dispatchDomain.Job, error)
	SyncProduct(ctx context.Context, product domain.Product) (*dispatchDomain.Job, error)
	DeleteCatalogItem(ctx context.Context, productID string) (*dispatchDomain.Job, error)
	DeleteProfile(ctx context.Context, email string) (*dispatchDomain.Job, error)
	AddToList(ctx context.Context, listID, email string) (*dispatchDomain.Job, error)
	RemoveFromList(ctx context.Context, listID, email string) (*dispatchDomain.Job, error)
}
