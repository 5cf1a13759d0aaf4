package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/allisson/klaviyo-relay/internal/commerce/domain"
	dispatchDomain "github.com/allisson/klaviyo-relay/internal/dispatch/domain"
	apperrors "github.com/allisson/klaviyo-relay/internal/errors"
)

// Actions groups the actions executed by dispatch jobs.
type Actions struct {
	Identify *IdentifyCustomerUseCase
	Track    *TrackEventUseCase
	Catalog  *SyncCatalogUseCase
	Profile  *ProfileUseCase
}

// NewActions builds every action on top of client.
func NewActions(client MarketingClient, logger *slog.Logger) Actions {
	return Actions{
		Identify: NewIdentifyCustomerUseCase(client),
		Track:    NewTrackEventUseCase(client),
		Catalog:  NewSyncCatalogUseCase(client, logger),
		Profile:  NewProfileUseCase(client),
	}
}

// NewJobHandlers maps every job kind to the action that executes it.
// A payload that cannot be decoded fails the job without retry.
// A profile that does not exist completes the job.
func NewJobHandlers(actions Actions, logger *slog.Logger) map[dispatchDomain.JobKind]dispatchDomain.Handler {
	return map[dispatchDomain.JobKind]dispatchDomain.Handler{
		dispatchDomain.KindIdentify: func(ctx context.Context, payload json.RawMessage) error {
			customer, err := decodePayload[domain.Customer](dispatchDomain.KindIdentify, payload)
			if err != nil {
				return err
			}
			return actions.Identify.Execute(ctx, customer)
		},
		dispatchDomain.KindTrack: func(ctx context.Context, payload json.RawMessage) error {
			event, err := decodePayload[domain.Event](dispatchDomain.KindTrack, payload)
			if err != nil {
				return err
			}
			return actions.Track.Execute(ctx, event)
		},
		dispatchDomain.KindTrackOnce: func(ctx context.Context, payload json.RawMessage) error {
			event, err := decodePayload[domain.Event](dispatchDomain.KindTrackOnce, payload)
			if err != nil {
				return err
			}
			return actions.Track.ExecuteOnce(ctx, event)
		},
		dispatchDomain.KindSyncProduct: func(ctx context.Context, payload json.RawMessage) error {
			product, err := decodePayload[domain.Product](dispatchDomain.KindSyncProduct, payload)
			if err != nil {
				return err
			}
			return actions.Catalog.SyncSingle(ctx, product)
		},
		dispatchDomain.KindSyncCatalog: func(ctx context.Context, payload json.RawMessage) error {
			catalog, err := decodePayload[CatalogPayload](dispatchDomain.KindSyncCatalog, payload)
			if err != nil {
				return err
			}
			result := actions.Catalog.SyncBulk(ctx, catalog.Products)
			for _, itemErr := range result.Errors {
				logger.Warn("catalog item sync failed",
					slog.String("product_id", itemErr.ProductID),
					slog.String("error", itemErr.Error),
				)
			}
			return nil
		},
		dispatchDomain.KindDeleteCatalogItem: func(ctx context.Context, payload json.RawMessage) error {
			item, err := decodePayload[CatalogItemPayload](dispatchDomain.KindDeleteCatalogItem, payload)
			if err != nil {
				return err
			}
			_, err = actions.Catalog.Delete(ctx, item.ProductID)
			return err
		},
		dispatchDomain.KindDeleteProfile: func(ctx context.Context, payload json.RawMessage) error {
			profile, err := decodePayload[ProfilePayload](dispatchDomain.KindDeleteProfile, payload)
			if err != nil {
				return err
			}
			_, err = actions.Profile.DeleteProfile(ctx, profile.Email)
			return err
		},
		dispatchDomain.KindAddToList: func(ctx context.Context, payload json.RawMessage) error {
			membership, err := decodePayload[ListMembershipPayload](dispatchDomain.KindAddToList, payload)
			if err != nil {
				return err
			}
			_, err = actions.Profile.AddToList(ctx, membership.ListID, membership.Email)
			return err
		},
		dispatchDomain.KindRemoveFromList: func(ctx context.Context, payload json.RawMessage) error {
			membership, err := decodePayload[ListMembershipPayload](dispatchDomain.KindRemoveFromList, payload)
			if err != nil {
				return err
			}
			_, err = actions.Profile.RemoveFromList(ctx, membership.ListID, membership.Email)
			return err
		},
	}
}

func decodePayload[T any](kind dispatchDomain.JobKind, payload json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Sprintf("decode %s payload: %v", kind, err))
	}
	return v, nil
}
