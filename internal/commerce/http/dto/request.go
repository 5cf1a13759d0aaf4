// Package dto provides data transfer objects for the ingress API.
package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	validation "github.com/jellydator/validation"
	"github.com/shopspring/decimal"

	"github.com/allisson/klaviyo-relay/internal/commerce/domain"
	customValidation "github.com/allisson/klaviyo-relay/internal/validation"
)

// MaxCatalogSyncProducts bounds a single bulk catalog sync request.
const MaxCatalogSyncProducts = 100

// CustomerRequest describes the shopper attached to an event or order.
type CustomerRequest struct {
	Email        string         `json:"email"`
	FirstName    string         `json:"first_name"`
	LastName     string         `json:"last_name"`
	PhoneNumber  string         `json:"phone_number"`
	Title        string         `json:"title"`
	Organization string         `json:"organization"`
	Properties   map[string]any `json:"properties"`
}

// Validate checks if the customer is valid.
func (r CustomerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, customValidation.Email),
		validation.Field(&r.FirstName, validation.Length(0, 255)),
		validation.Field(&r.LastName, validation.Length(0, 255)),
		validation.Field(&r.PhoneNumber, validation.Length(0, 50)),
		validation.Field(&r.Title, validation.Length(0, 255)),
		validation.Field(&r.Organization, validation.Length(0, 255)),
	)
}

// ToDomain converts the request into a normalized Customer.
func (r CustomerRequest) ToDomain() (domain.Customer, error) {
	return domain.NewCustomer(domain.Customer{
		Email:        r.Email,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		PhoneNumber:  r.PhoneNumber,
		Title:        r.Title,
		Organization: r.Organization,
		Properties:   r.Properties,
	})
}

func optionalCustomer(r *CustomerRequest) (*domain.Customer, error) {
	if r == nil {
		return nil, nil
	}
	customer, err := r.ToDomain()
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// TrackEventRequest contains a custom behavioral event.
type TrackEventRequest struct {
	Event      string           `json:"event"`
	Properties map[string]any   `json:"properties"`
	Customer   *CustomerRequest `json:"customer"`
	Time       *time.Time       `json:"time"`
	UniqueID   string           `json:"unique_id"`
}

// Validate checks if the track event request is valid.
func (r *TrackEventRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Event, validation.Required, customValidation.NotBlank, validation.Length(1, 255)),
		validation.Field(&r.Properties, validation.NotNil),
		validation.Field(&r.Customer),
		validation.Field(&r.UniqueID, validation.Length(0, 255)),
	)
}

// ToDomain converts the request into an Event. A missing time means now.
func (r *TrackEventRequest) ToDomain() (domain.Event, error) {
	customer, err := optionalCustomer(r.Customer)
	if err != nil {
		return domain.Event{}, err
	}

	event, err := domain.NewEvent(r.Event, r.Properties, customer)
	if err != nil {
		return domain.Event{}, err
	}
	if r.Time != nil {
		event = event.WithTime(*r.Time)
	}
	return event.WithUniqueID(r.UniqueID), nil
}

// ProductRequest describes a catalog product in the storefront's field names.
type ProductRequest struct {
	ProductID        ID             `json:"product_id"`
	ProductName      string         `json:"product_name"`
	Price            json.Number    `json:"price"`
	Currency         string         `json:"currency"`
	ProductURL       string         `json:"product_url"`
	ImageURL         string         `json:"image_url"`
	Description      string         `json:"description"`
	Categories       []string       `json:"categories"`
	SKU              string         `json:"sku"`
	CustomAttributes map[string]any `json:"custom_attributes"`
}

// Validate checks if the product is valid.
func (r ProductRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProductID, validation.Required, customValidation.NotBlank),
		validation.Field(&r.ProductName, validation.Required, customValidation.NotBlank, validation.Length(1, 255)),
		validation.Field(&r.Price, validation.Required, customValidation.Amount),
		validation.Field(&r.Currency, customValidation.CurrencyCode),
		validation.Field(&r.ProductURL, customValidation.URL, validation.Length(0, 2048)),
		validation.Field(&r.ImageURL, customValidation.URL, validation.Length(0, 2048)),
		validation.Field(&r.Description, validation.Length(0, 1000)),
		validation.Field(&r.Categories, validation.Each(validation.Length(0, 255))),
		validation.Field(&r.SKU, validation.Length(0, 255)),
	)
}

// ToDomain converts the request into a normalized Product.
func (r ProductRequest) ToDomain() (domain.Product, error) {
	price, err := parseAmount(r.Price)
	if err != nil {
		return domain.Product{}, err
	}

	return domain.NewProduct(domain.Product{
		ID:               r.ProductID.String(),
		Title:            r.ProductName,
		Price:            price,
		Currency:         r.Currency,
		URL:              r.ProductURL,
		ImageURL:         r.ImageURL,
		Description:      r.Description,
		Categories:       r.Categories,
		SKU:              r.SKU,
		CustomAttributes: r.CustomAttributes,
	})
}

// ProductViewRequest is a product page view, optionally by a known customer.
// Currency is mandatory here, unlike catalog syncs.
type ProductViewRequest struct {
	ProductRequest
	Customer *CustomerRequest `json:"customer"`
}

// Validate checks if the product view request is valid.
func (r *ProductViewRequest) Validate() error {
	if err := r.ProductRequest.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(r,
		validation.Field(&r.ProductRequest.Currency, validation.Required),
		validation.Field(&r.Customer),
	)
}

// ToDomain converts the request into the viewed product and its optional viewer.
func (r *ProductViewRequest) ToDomain() (domain.Product, *domain.Customer, error) {
	product, err := r.ProductRequest.ToDomain()
	if err != nil {
		return domain.Product{}, nil, err
	}
	customer, err := optionalCustomer(r.Customer)
	if err != nil {
		return domain.Product{}, nil, err
	}
	return product, customer, nil
}

// OrderItemRequest is one order line.
type OrderItemRequest struct {
	ProductID   ID          `json:"product_id"`
	ProductName string      `json:"product_name"`
	Quantity    int         `json:"quantity"`
	Price       json.Number `json:"price"`
	SKU         string      `json:"sku"`
}

// Validate checks if the order line is valid.
func (r OrderItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProductID, validation.Required, customValidation.NotBlank),
		validation.Field(&r.ProductName, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Quantity, validation.Required, validation.Min(1)),
		validation.Field(&r.Price, validation.Required, customValidation.Amount),
		validation.Field(&r.SKU, validation.Length(0, 255)),
	)
}

// AddressRequest is a postal address. Address1 and Address2 are joined into one street line.
type AddressRequest struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Company    string `json:"company"`
	Address1   string `json:"address1"`
	Address2   string `json:"address2"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

// Validate checks if the address is valid.
func (r AddressRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Length(0, 255)),
		validation.Field(&r.LastName, validation.Length(0, 255)),
		validation.Field(&r.Company, validation.Length(0, 255)),
		validation.Field(&r.Address1, validation.Length(0, 255)),
		validation.Field(&r.Address2, validation.Length(0, 255)),
		validation.Field(&r.City, validation.Length(0, 255)),
		validation.Field(&r.Region, validation.Length(0, 255)),
		validation.Field(&r.PostalCode, validation.Length(0, 20)),
		validation.Field(&r.Country, validation.Length(0, 255)),
		validation.Field(&r.Phone, validation.Length(0, 50)),
	)
}

func (r *AddressRequest) toDomain() *domain.Address {
	if r == nil {
		return nil
	}

	var street []string
	for _, line := range []string{r.Address1, r.Address2} {
		if line = strings.TrimSpace(line); line != "" {
			street = append(street, line)
		}
	}

	return &domain.Address{
		FirstName:  strings.TrimSpace(r.FirstName),
		LastName:   strings.TrimSpace(r.LastName),
		Company:    strings.TrimSpace(r.Company),
		Street:     strings.Join(street, ", "),
		City:       strings.TrimSpace(r.City),
		PostalCode: strings.TrimSpace(r.PostalCode),
		Region:     strings.TrimSpace(r.Region),
		Country:    strings.TrimSpace(r.Country),
		Phone:      strings.TrimSpace(r.Phone),
	}
}

// OrderRequest is a completed purchase with the buying customer.
type OrderRequest struct {
	OrderID         ID                 `json:"order_id"`
	OrderNumber     string             `json:"order_number"`
	Total           json.Number        `json:"total"`
	Currency        string             `json:"currency"`
	Items           []OrderItemRequest `json:"items"`
	Subtotal        *json.Number       `json:"subtotal"`
	Tax             *json.Number       `json:"tax"`
	Shipping        *json.Number       `json:"shipping"`
	Discount        *json.Number       `json:"discount"`
	BillingAddress  *AddressRequest    `json:"billing_address"`
	ShippingAddress *AddressRequest    `json:"shipping_address"`
	Customer        *CustomerRequest   `json:"customer"`
	Status          string             `json:"status"`
}

// Validate checks if the order request is valid.
func (r *OrderRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.OrderID, validation.Required, customValidation.NotBlank),
		validation.Field(&r.OrderNumber, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Total, validation.Required, customValidation.Amount),
		validation.Field(&r.Currency, validation.Required, customValidation.CurrencyCode),
		validation.Field(&r.Items, validation.Required, validation.Length(1, 0)),
		validation.Field(&r.Subtotal, customValidation.Amount),
		validation.Field(&r.Tax, customValidation.Amount),
		validation.Field(&r.Shipping, customValidation.Amount),
		validation.Field(&r.Discount, customValidation.Amount),
		validation.Field(&r.BillingAddress),
		validation.Field(&r.ShippingAddress),
		validation.Field(&r.Customer, validation.Required),
		validation.Field(&r.Status, validation.Length(0, 50)),
	)
}

// ToDomain converts the request into an Order and its buyer.
func (r *OrderRequest) ToDomain() (domain.Order, domain.Customer, error) {
	if r.Customer == nil {
		return domain.Order{}, domain.Customer{}, domain.ErrEmailRequired
	}
	customer, err := r.Customer.ToDomain()
	if err != nil {
		return domain.Order{}, domain.Customer{}, err
	}

	total, err := parseAmount(r.Total)
	if err != nil {
		return domain.Order{}, domain.Customer{}, err
	}

	order := domain.Order{
		OrderID:         r.OrderID.String(),
		OrderNumber:     r.OrderNumber,
		Total:           total,
		Currency:        r.Currency,
		Status:          r.Status,
		BillingAddress:  r.BillingAddress.toDomain(),
		ShippingAddress: r.ShippingAddress.toDomain(),
	}

	for _, field := range []struct {
		src *json.Number
		dst *decimal.NullDecimal
	}{
		{r.Subtotal, &order.Subtotal},
		{r.Tax, &order.Tax},
		{r.Shipping, &order.Shipping},
		{r.Discount, &order.Discount},
	} {
		if field.src == nil || *field.src == "" {
			continue
		}
		amount, err := parseAmount(*field.src)
		if err != nil {
			return domain.Order{}, domain.Customer{}, err
		}
		*field.dst = decimal.NewNullDecimal(amount)
	}

	for _, item := range r.Items {
		price, err := parseAmount(item.Price)
		if err != nil {
			return domain.Order{}, domain.Customer{}, err
		}
		order.Items = append(order.Items, domain.OrderLineItem{
			ProductID:   item.ProductID.String(),
			ProductName: strings.TrimSpace(item.ProductName),
			Quantity:    item.Quantity,
			Price:       price,
			SKU:         strings.TrimSpace(item.SKU),
		})
	}

	order, err = domain.NewOrder(order)
	if err != nil {
		return domain.Order{}, domain.Customer{}, err
	}
	return order, customer, nil
}

// CatalogSyncRequest is a bulk catalog upsert.
type CatalogSyncRequest struct {
	Products []ProductRequest `json:"products"`
}

// Validate checks if the catalog sync request is valid.
func (r *CatalogSyncRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Products,
			validation.Required,
			validation.Length(1, MaxCatalogSyncProducts),
		),
	)
}

// ToDomain converts every product, failing on the first invalid one.
func (r *CatalogSyncRequest) ToDomain() ([]domain.Product, error) {
	products := make([]domain.Product, 0, len(r.Products))
	for i, p := range r.Products {
		product, err := p.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", i, err)
		}
		products = append(products, product)
	}
	return products, nil
}

// EmailRequest addresses a profile by email.
type EmailRequest struct {
	Email string `json:"email"`
}

// Validate checks if the email request is valid.
func (r *EmailRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required, customValidation.Email),
	)
}

func parseAmount(n json.Number) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(n.String()))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", domain.ErrInvalidAmount, n.String())
	}
	return d, nil
}
