// Package feed serializes pending orders into the XML document the
// ShipStation custom-store integration polls.
package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/shipstation/internal/orders"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// DateFormat is the timestamp layout the ShipStation poller expects
// (MM/dd/yyyy HH:mm).
const DateFormat = "01/02/2006 15:04"

// MaxPageSize bounds the number of orders per feed document. The
// caller's page size is overridden, not just capped; the poller pages
// through the window 200 orders at a time.
const MaxPageSize = 200

// Exporter renders pages of orders as the feed XML document.
type Exporter struct {
	store  orders.Store
	logger *otelzap.Logger
	now    func() time.Time
}

// NewExporter creates an exporter over the given order store.
func NewExporter(store orders.Store, logger *otelzap.Logger) *Exporter {
	return &Exporter{store: store, logger: logger, now: time.Now}
}

// NewExporterWithClock creates an exporter with an injected clock, for
// deterministic LastModified values in tests.
func NewExporterWithClock(store orders.Store, logger *otelzap.Logger, now func() time.Time) *Exporter {
	return &Exporter{store: store, logger: logger, now: now}
}

// ============================================================================
// XML document schema (element names and nesting are the external contract)
// ============================================================================

type ordersDoc struct {
	XMLName xml.Name   `xml:"Orders"`
	Orders  []orderDoc `xml:"Order"`
}

type orderDoc struct {
	OrderID        int64       `xml:"OrderID"`
	OrderNumber    string      `xml:"OrderNumber"`
	OrderDate      string      `xml:"OrderDate"`
	OrderStatus    string      `xml:"OrderStatus"`
	LastModified   string      `xml:"LastModified"`
	OrderTotal     string      `xml:"OrderTotal"`
	ShippingAmount string      `xml:"ShippingAmount"`
	Customer       customerDoc `xml:"Customer"`
	Items          itemsDoc    `xml:"Items"`
}

type customerDoc struct {
	CustomerCode string    `xml:"CustomerCode"`
	BillTo       billToDoc `xml:"BillTo"`
	ShipTo       shipToDoc `xml:"ShipTo"`
}

// billToDoc deliberately omits the street address fields; the feed
// contract only carries name, company, and phone for billing.
type billToDoc struct {
	Name    string `xml:"Name"`
	Company string `xml:"Company"`
	Phone   string `xml:"Phone"`
}

type shipToDoc struct {
	Name       string `xml:"Name"`
	Company    string `xml:"Company"`
	Phone      string `xml:"Phone"`
	Address1   string `xml:"Address1"`
	Address2   string `xml:"Address2"`
	City       string `xml:"City"`
	State      string `xml:"State"`
	PostalCode string `xml:"PostalCode"`
	Country    string `xml:"Country"`
}

type itemsDoc struct {
	Items []itemDoc `xml:"Item"`
}

type itemDoc struct {
	SKU       string `xml:"SKU"`
	Name      string `xml:"Name"`
	Quantity  int    `xml:"Quantity"`
	UnitPrice string `xml:"UnitPrice"`
}

// Export renders one page of orders created inside the optional date
// window and returns the document plus the number of orders it holds.
// The page size is fixed at MaxPageSize regardless of the caller's
// input.
func (e *Exporter) Export(ctx context.Context, startDate, endDate *time.Time, pageIndex, pageSize int) ([]byte, int, error) {
	page, err := e.store.Search(ctx, orders.SearchQuery{
		CreatedFrom: startDate,
		CreatedTo:   endDate,
		PageIndex:   pageIndex,
		PageSize:    MaxPageSize,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("searching orders: %w", err)
	}

	doc := ordersDoc{Orders: make([]orderDoc, 0, len(page))}
	for _, order := range page {
		doc.Orders = append(doc.Orders, e.orderToDoc(order))
	}

	e.logger.Info("Exporting order feed",
		zap.Int("page_index", pageIndex),
		zap.Int("orders", len(doc.Orders)),
	)

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, 0, fmt.Errorf("marshaling feed: %w", err)
	}
	return append([]byte(xml.Header), out...), len(doc.Orders), nil
}

func (e *Exporter) orderToDoc(order *orders.Order) orderDoc {
	return orderDoc{
		OrderID:        order.ID,
		OrderNumber:    order.Number.String(),
		OrderDate:      order.CreatedAt.Format(DateFormat),
		OrderStatus:    exportStatus(order.Status),
		LastModified:   e.now().Format(DateFormat),
		OrderTotal:     money(order.Total),
		ShippingAmount: money(shippingAmount(order)),
		Customer: customerDoc{
			CustomerCode: order.CustomerEmail,
			BillTo: billToDoc{
				Name:    fullName(order.Billing),
				Company: order.Billing.Company,
				Phone:   order.Billing.Phone,
			},
			ShipTo: shipToDoc{
				Name:       fullName(order.Shipping),
				Company:    order.Shipping.Company,
				Phone:      order.Shipping.Phone,
				Address1:   order.Shipping.Address1,
				Address2:   order.Shipping.Address2,
				City:       order.Shipping.City,
				State:      order.Shipping.State,
				PostalCode: order.Shipping.PostalCode,
				Country:    order.Shipping.Country,
			},
		},
		Items: itemsDoc{Items: exportItems(order)},
	}
}

func exportItems(order *orders.Order) []itemDoc {
	items := make([]itemDoc, 0, len(order.Items))
	for _, item := range order.Items {
		if !item.ShipEnabled {
			continue
		}

		sku := item.SKU
		if sku == "" {
			sku = fmt.Sprintf("%d", item.ProductID)
		}

		price := item.UnitPriceExclTax
		if order.TaxDisplay == orders.TaxIncluded {
			price = item.UnitPriceInclTax
		}

		items = append(items, itemDoc{
			SKU:       sku,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: money(price),
		})
	}
	return items
}

// exportStatus maps the store's order status onto the fixed vocabulary
// the ShipStation feed understands.
func exportStatus(status orders.Status) string {
	switch status {
	case orders.StatusPending:
		return "unpaid"
	case orders.StatusProcessing:
		return "paid"
	case orders.StatusComplete:
		return "shipped"
	case orders.StatusCancelled:
		return "cancelled"
	default:
		return "on_hold"
	}
}

// money renders an amount without dropping trailing zeros: a 5.00
// shipping charge must serialize as "5.00", not "5".
func money(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

func shippingAmount(order *orders.Order) decimal.Decimal {
	if order.TaxDisplay == orders.TaxIncluded {
		return order.ShippingInclTax
	}
	return order.ShippingExclTax
}

func fullName(addr orders.Address) string {
	return fmt.Sprintf("%s %s", addr.FirstName, addr.LastName)
}
