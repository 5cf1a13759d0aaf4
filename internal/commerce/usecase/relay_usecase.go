package usecase

import (
	"context"
	"strings"

	"github.com/allisson/klaviyo-relay/internal/commerce/domain"
	dispatchDomain "github.com/allisson/klaviyo-relay/internal/dispatch/domain"
)

// relayUseCase implements RelayUseCase on top of the dispatch queue.
type relayUseCase struct {
	enqueuer JobEnqueuer
}

// NewRelayUseCase creates a new RelayUseCase.
func NewRelayUseCase(enqueuer JobEnqueuer) RelayUseCase {
	return &relayUseCase{enqueuer: enqueuer}
}

func (r *relayUseCase) TrackEvent(ctx context.Context, event domain.Event) (*dispatchDomain.Job, error) {
	return r.enqueuer.Enqueue(ctx, dispatchDomain.KindTrack, event)
}

func (r *relayUseCase) TrackEventOnce(ctx context.Context, event domain.Event) (*dispatchDomain.Job, error) {
	if err := event.RequireUniqueID(); err != nil {
		return nil, err
	}
	return r.enqueuer.Enqueue(ctx, dispatchDomain.KindTrackOnce, event)
}

func (r *relayUseCase) ProductViewed(
	ctx context.Context,
	product domain.Product,
	customer *domain.Customer,
) (*dispatchDomain.Job, error) {
	event, err := product.ViewedProductEvent(customer)
	if err != nil {
		return nil, err
	}
	return r.enqueuer.Enqueue(ctx, dispatchDomain.KindTrack, event)
}

func (r *relayUseCase) OrderPlaced(
	ctx context.Context,
	order domain.Order,
	customer domain.Customer,
) ([]*dispatchDomain.Job, error) {
	customer, err := domain.NewCustomer(customer)
	if err != nil {
		return nil, err
	}
	event, err := order.PlacedOrderEvent(customer)
	if err != nil {
		return nil, err
	}

	identifyJob, err := r.enqueuer.Enqueue(ctx, dispatchDomain.KindIdentify, customer)
	if err != nil {
		return nil, err
	}
	trackJob, err := r.enqueuer.Enqueue(ctx, dispatchDomain.KindTrack, event)
	if err != nil {
		return []*dispatchDomain.Job{identifyJob}, err
	}

	return []*dispatchDomain.Job{identifyJob, trackJob}, nil
}

func (r *relayUseCase) SyncCatalog(ctx context.Context, products []domain.Product) (*dispatchDomain.Job, error) {
	if len(products) == 0 {
		return nil, domain.ErrEmptyCatalog
	}
	return r.enqueuer.Enqueue(ctx, dispatchDomain.KindSyncCatalog, CatalogPayload{Products: products})
}

func (r *relayUseCase) SyncProduct(ctx context.Context, product domain.Product) (*dispatchDomain.Job, error) {
	return r.enqueuer.Enqueue(ctx, dispatchDomain.KindSyncProduct, product)
}

func (r *relayUseCase) DeleteCatalogItem(ctx context.Context, productID string) (*dispatchDomain.Job, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, domain.ErrProductIDRequired
	}
	return r.enqueuer.Enqueue(ctx, dispatchDomain.KindDeleteCatalogItem, CatalogItemPayload{ProductID: productID})
}

func (r *relayUseCase) DeleteProfile(ctx context.Context, email string) (*dispatchDomain.Job, error) {
	customer, err := domain.NewCustomer(domain.Customer{Email: email})
	if err != nil {
		return nil, err
	}
	return r.enqueuer.Enqueue(ctx, dispatchDomain.KindDeleteProfile, ProfilePayload{Email: customer.Email})
}

func (r *relayUseCase) AddToList(ctx context.Context, listID, email string) (*dispatchDomain.Job, error) {
	payload, err := newListMembershipPayload(listID, email)
	if err != nil {
		return nil, err
	}
	return r.enqueuer.Enqueue(ctx, dispatchDomain.KindAddToList, payload)
}

func (r *relayUseCase) RemoveFromList(ctx context.Context, listID, email string) (*dispatchDomain.Job, error) {
	payload, err := newListMembershipPayload(listID, email)
	if err != nil {
		return nil, err
	}
	return r.enqueuer.Enqueue(ctx, dispatchDomain.KindRemoveFromList, payload)
}
