// Package orders models the slice of the store platform's order data
// that the bridge reads and mutates: a read-only projection for the
// export feed and the shipment records the webhook updates. Persistence
// belongs to the host platform; Store is the seam, and MemoryStore is
// the standalone implementation.
package orders

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates no order matches the lookup.
var ErrNotFound = errors.New("order not found")

// Status is the order's payment/fulfillment status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusCancelled  Status = "cancelled"
)

// ShippingStatus is the order's shipping progress.
type ShippingStatus string

const (
	ShippingNotYetShipped ShippingStatus = "not_yet_shipped"
	ShippingShipped       ShippingStatus = "shipped"
)

// TaxDisplay selects whether amounts shown to this customer include tax.
type TaxDisplay string

const (
	TaxIncluded TaxDisplay = "including_tax"
	TaxExcluded TaxDisplay = "excluding_tax"
)

// Address is a billing or shipping address.
type Address struct {
	FirstName  string
	LastName   string
	Company    string
	Phone      string
	Address1   string
	Address2   string
	City       string
	State      string
	PostalCode string
	Country    string // ISO 3166-1 alpha-2
}

// Item is one order line item.
type Item struct {
	ID               int64
	ProductID        int64
	SKU              string
	Name             string
	Quantity         int
	ShipEnabled      bool
	UnitPriceInclTax decimal.Decimal
	UnitPriceExclTax decimal.Decimal
	// Weight is the per-unit item weight in the store's primary unit.
	Weight float64
}

// ShipmentItem ties a shipment to an order line item.
type ShipmentItem struct {
	OrderItemID int64
	Quantity    int
}

// Shipment is a physical package record tied to an order.
type Shipment struct {
	ID             int64
	OrderID        int64
	TrackingNumber string
	CreatedAt      time.Time
	ShippedAt      time.Time
	TotalWeight    float64
	Items          []ShipmentItem
}

// Order is the order projection the bridge works with.
type Order struct {
	ID              int64
	Number          uuid.UUID // external order number
	CreatedAt       time.Time
	Status          Status
	ShippingStatus  ShippingStatus
	ShippingMethod  string
	Total           decimal.Decimal
	ShippingInclTax decimal.Decimal
	ShippingExclTax decimal.Decimal
	TaxDisplay      TaxDisplay
	CustomerEmail   string
	Billing         Address
	Shipping        Address
	Items           []Item
	Shipments       []Shipment
}

// ShippedQuantity returns how many units of the given line item are
// already attached to shipments.
func (o *Order) ShippedQuantity(itemID int64) int {
	var shipped int
	for _, shipment := range o.Shipments {
		for _, si := range shipment.Items {
			if si.OrderItemID == itemID {
				shipped += si.Quantity
			}
		}
	}
	return shipped
}

// UnshippedQuantity returns how many units of the given line item still
// need a shipment.
func (o *Order) UnshippedQuantity(item Item) int {
	remaining := item.Quantity - o.ShippedQuantity(item.ID)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SearchQuery narrows a feed export to a creation-date window and a
// page of results.
type SearchQuery struct {
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	PageIndex   int
	PageSize    int
}

// Store is the order persistence seam toward the host platform.
type Store interface {
	// ByNumber returns the order with the given external number, or
	// ErrNotFound.
	ByNumber(ctx context.Context, number uuid.UUID) (*Order, error)

	// Search returns one page of orders created inside the window,
	// oldest first.
	Search(ctx context.Context, q SearchQuery) ([]*Order, error)

	// Update persists order mutations, including shipment records.
	Update(ctx context.Context, order *Order) error
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[int64]*Order
	nextID int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[int64]*Order)}
}

// Put inserts or replaces an order.
func (s *MemoryStore) Put(order *Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[order.ID] = cloneOrder(order)
}

// ByNumber implements Store.
func (s *MemoryStore) ByNumber(ctx context.Context, number uuid.UUID) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, order := range s.byID {
		if order.Number == number {
			return cloneOrder(order), nil
		}
	}
	return nil, ErrNotFound
}

// Search implements Store.
func (s *MemoryStore) Search(ctx context.Context, q SearchQuery) ([]*Order, error) {
	s.mu.RLock()
	matched := make([]*Order, 0, len(s.byID))
	for _, order := range s.byID {
		if q.CreatedFrom != nil && order.CreatedAt.Before(*q.CreatedFrom) {
			continue
		}
		if q.CreatedTo != nil && order.CreatedAt.After(*q.CreatedTo) {
			continue
		}
		matched = append(matched, cloneOrder(order))
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	if q.PageSize <= 0 {
		return matched, nil
	}
	start := q.PageIndex * q.PageSize
	if start >= len(matched) {
		return []*Order{}, nil
	}
	end := start + q.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

// Update implements Store. New shipment records (ID zero) are assigned
// identifiers on write.
func (s *MemoryStore) Update(ctx context.Context, order *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[order.ID]; !ok {
		return ErrNotFound
	}
	clone := cloneOrder(order)
	for i := range clone.Shipments {
		if clone.Shipments[i].ID == 0 {
			s.nextID++
			clone.Shipments[i].ID = s.nextID
		}
	}
	s.byID[order.ID] = clone
	return nil
}

func cloneOrder(order *Order) *Order {
	clone := *order
	clone.Items = append([]Item(nil), order.Items...)
	clone.Shipments = make([]Shipment, len(order.Shipments))
	for i, shipment := range order.Shipments {
		clone.Shipments[i] = shipment
		clone.Shipments[i].Items = append([]ShipmentItem(nil), shipment.Items...)
	}
	return &clone
}

// Ensure MemoryStore implements Store interface
var _ Store = (*MemoryStore)(nil)
