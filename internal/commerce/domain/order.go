package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// DefaultCurrency applies when an order or product carries no currency.
	DefaultCurrency = "EUR"

	// DefaultOrderStatus applies when an order carries no status.
	DefaultOrderStatus = "completed"

	// PlacedOrderMetric is the metric name tracked for a placed order.
	PlacedOrderMetric = "Placed Order"
)

// OrderLineItem is one purchased product within an Order.
type OrderLineItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	SKU         string          `json:"sku,omitempty"`
}

func (i OrderLineItem) properties() map[string]any {
	props := map[string]any{
		"product_id": i.ProductID,
		"quantity":   i.Quantity,
		"price":      float(i.Price),
	}
	if i.ProductName != "" {
		props["product_name"] = i.ProductName
	}
	if i.SKU != "" {
		props["sku"] = i.SKU
	}
	return props
}

// Address is a postal address attached to an order.
type Address struct {
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Company    string `json:"company,omitempty"`
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Region     string `json:"region,omitempty"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

func (a Address) properties() map[string]any {
	fields := map[string]string{
		"first_name":  a.FirstName,
		"last_name":   a.LastName,
		"company":     a.Company,
		"street":      a.Street,
		"city":        a.City,
		"postal_code": a.PostalCode,
		"region":      a.Region,
		"country":     a.Country,
		"phone":       a.Phone,
	}
	props := make(map[string]any, len(fields))
	for k, v := range fields {
		if v != "" {
			props[k] = v
		}
	}
	return props
}

// Order is a completed purchase. It is relayed only as "Placed Order" event properties.
type Order struct {
	OrderID         string              `json:"order_id"`
	OrderNumber     string              `json:"order_number,omitempty"`
	Total           decimal.Decimal     `json:"total"`
	Currency        string              `json:"currency"`
	Items           []OrderLineItem     `json:"items,omitempty"`
	Subtotal        decimal.NullDecimal `json:"subtotal"`
	Tax             decimal.NullDecimal `json:"tax"`
	Shipping        decimal.NullDecimal `json:"shipping"`
	Discount        decimal.NullDecimal `json:"discount"`
	BillingAddress  *Address            `json:"billing_address,omitempty"`
	ShippingAddress *Address            `json:"shipping_address,omitempty"`
	Status          string              `json:"status"`
}

// NewOrder returns a normalized copy of o with currency and status defaults applied.
func NewOrder(o Order) (Order, error) {
	o.OrderID = strings.TrimSpace(o.OrderID)
	if o.OrderID == "" {
		return Order{}, ErrOrderIDRequired
	}
	if o.Total.IsNegative() {
		return Order{}, fmt.Errorf("%w: total must not be negative", ErrInvalidAmount)
	}

	o.OrderNumber = strings.TrimSpace(o.OrderNumber)
	o.Currency = strings.ToUpper(strings.TrimSpace(o.Currency))
	if o.Currency == "" {
		o.Currency = DefaultCurrency
	}
	o.Status = strings.TrimSpace(o.Status)
	if o.Status == "" {
		o.Status = DefaultOrderStatus
	}

	if len(o.Items) > 0 {
		items := make([]OrderLineItem, len(o.Items))
		copy(items, o.Items)
		o.Items = items
	} else {
		o.Items = nil
	}
	if o.BillingAddress != nil {
		addr := *o.BillingAddress
		o.BillingAddress = &addr
	}
	if o.ShippingAddress != nil {
		addr := *o.ShippingAddress
		o.ShippingAddress = &addr
	}

	return o, nil
}

// OrderFromMap builds an Order from a raw property bag.
func OrderFromMap(data map[string]any) (Order, error) {
	total, err := decimalValue(data["total"])
	if err != nil {
		return Order{}, fmt.Errorf("%w: total: %v", ErrInvalidAmount, err)
	}

	order := Order{
		OrderID:     stringValue(data["order_id"]),
		OrderNumber: stringValue(data["order_number"]),
		Total:       total,
		Currency:    stringValue(data["currency"]),
		Status:      stringValue(data["status"]),
	}

	for _, field := range []struct {
		key string
		dst *decimal.NullDecimal
	}{
		{"subtotal", &order.Subtotal},
		{"tax", &order.Tax},
		{"shipping", &order.Shipping},
		{"discount", &order.Discount},
	} {
		if *field.dst, err = optionalDecimal(data, field.key); err != nil {
			return Order{}, err
		}
	}

	if rawItems, ok := data["items"].([]any); ok {
		for _, raw := range rawItems {
			item := mapValue(raw)
			if item == nil {
				continue
			}
			price, err := decimalValue(item["price"])
			if err != nil {
				return Order{}, fmt.Errorf("%w: item price: %v", ErrInvalidAmount, err)
			}
			order.Items = append(order.Items, OrderLineItem{
				ProductID:   stringValue(item["product_id"]),
				ProductName: stringValue(item["product_name"]),
				Quantity:    intValue(item["quantity"]),
				Price:       price,
				SKU:         stringValue(item["sku"]),
			})
		}
	}

	order.BillingAddress = addressFromMap(mapValue(data["billing_address"]))
	order.ShippingAddress = addressFromMap(mapValue(data["shipping_address"]))

	return NewOrder(order)
}

func addressFromMap(data map[string]any) *Address {
	if data == nil {
		return nil
	}
	return &Address{
		FirstName:  stringValue(data["first_name"]),
		LastName:   stringValue(data["last_name"]),
		Company:    stringValue(data["company"]),
		Street:     stringValue(data["street"]),
		City:       stringValue(data["city"]),
		PostalCode: stringValue(data["postal_code"]),
		Region:     stringValue(data["region"]),
		Country:    stringValue(data["country"]),
		Phone:      stringValue(data["phone"]),
	}
}

// EventProperties derives the "Placed Order" property bag. Absent values are dropped.
func (o Order) EventProperties() map[string]any {
	props := map[string]any{
		"order_id":   o.OrderID,
		"value":      float(o.Total),
		"currency":   o.Currency,
		"item_count": len(o.Items),
		"status":     o.Status,
	}
	if o.OrderNumber != "" {
		props["order_number"] = o.OrderNumber
	}

	for key, amount := range map[string]decimal.NullDecimal{
		"subtotal": o.Subtotal,
		"tax":      o.Tax,
		"shipping": o.Shipping,
		"discount": o.Discount,
	} {
		if amount.Valid {
			props[key] = float(amount.Decimal)
		}
	}

	if len(o.Items) > 0 {
		items := make([]map[string]any, 0, len(o.Items))
		for _, item := range o.Items {
			items = append(items, item.properties())
		}
		props["items"] = items
	}

	if o.BillingAddress != nil {
		if addr := o.BillingAddress.properties(); len(addr) > 0 {
			props["billing_address"] = addr
		}
	}
	if o.ShippingAddress != nil {
		if addr := o.ShippingAddress.properties(); len(addr) > 0 {
			props["shipping_address"] = addr
		}
	}

	return props
}

// PlacedOrderEvent returns the event tracked for o on behalf of customer.
func (o Order) PlacedOrderEvent(customer Customer) (Event, error) {
	event, err := NewEvent(PlacedOrderMetric, o.EventProperties(), &customer)
	if err != nil {
		return Event{}, err
	}
	return event, nil
}
