package usecase

import (
	"strings"

	"github.com/allisson/klaviyo-relay/internal/commerce/domain"
)

// CatalogPayload is the job payload of a bulk catalog sync.
type CatalogPayload struct {
	Products []domain.Product `json:"products"`
}

// IdentifyingFields implements dispatchDomain.Identifiable.
func (p CatalogPayload) IdentifyingFields() map[string]any {
	ids := make([]string, 0, len(p.Products))
	for _, product := range p.Products {
		ids = append(ids, product.ID)
	}
	return map[string]any{"product_ids": ids}
}

// CatalogItemPayload is the job payload of a catalog item deletion.
type CatalogItemPayload struct {
	ProductID string `json:"product_id"`
}

// IdentifyingFields implements dispatchDomain.Identifiable.
func (p CatalogItemPayload) IdentifyingFields() map[string]any {
	return map[string]any{"product_id": p.ProductID}
}

// ProfilePayload is the job payload of a profile deletion.
type ProfilePayload struct {
	Email string `json:"email"`
}

// IdentifyingFields implements dispatchDomain.Identifiable.
func (p ProfilePayload) IdentifyingFields() map[string]any {
	return map[string]any{"email": p.Email}
}

// ListMembershipPayload is the job payload of a list subscription change.
type ListMembershipPayload struct {
	ListID string `json:"list_id"`
	Email  string `json:"email"`
}

// IdentifyingFields implements dispatchDomain.Identifiable.
func (p ListMembershipPayload) IdentifyingFields() map[string]any {
	return map[string]any{"list_id": p.ListID, "email": p.Email}
}

func newListMembershipPayload(listID, email string) (ListMembershipPayload, error) {
	listID = strings.TrimSpace(listID)
	if listID == "" {
		return ListMembershipPayload{}, domain.ErrListIDRequired
	}
	customer, err := domain.NewCustomer(domain.Customer{Email: email})
	if err != nil {
		return ListMembershipPayload{}, err
	}
	return ListMembershipPayload{ListID: listID, Email: customer.Email}, nil
}
