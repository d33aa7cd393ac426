// Package shipments applies ship-notify webhook deliveries to order
// shipment records.
package shipments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/shipstation/internal/orders"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Updater marks orders shipped from webhook notifications.
//
// The webhook caller is fire-and-forget: Apply never surfaces an error
// to it. Unknown order numbers are silent no-ops and every other
// failure is logged and swallowed.
type Updater struct {
	store  orders.Store
	logger *otelzap.Logger
	now    func() time.Time
}

// NewUpdater creates an updater over the given order store.
func NewUpdater(store orders.Store, logger *otelzap.Logger) *Updater {
	return &Updater{store: store, logger: logger, now: time.Now}
}

// NewUpdaterWithClock creates an updater with an injected clock for
// deterministic shipment timestamps in tests.
func NewUpdaterWithClock(store orders.Store, logger *otelzap.Logger, now func() time.Time) *Updater {
	return &Updater{store: store, logger: logger, now: now}
}

// Apply records the tracking number for the order, creating its first
// shipment if none exists, and marks the order shipped.
func (u *Updater) Apply(ctx context.Context, orderNumber uuid.UUID, carrierCode, serviceCode, trackingNumber string) {
	if err := u.apply(ctx, orderNumber, carrierCode, serviceCode, trackingNumber); err != nil {
		u.logger.Error("Applying shipment update failed",
			zap.String("order_number", orderNumber.String()),
			zap.String("tracking_number", trackingNumber),
			zap.Error(err),
		)
	}
}

func (u *Updater) apply(ctx context.Context, orderNumber uuid.UUID, carrierCode, serviceCode, trackingNumber string) error {
	order, err := u.store.ByNumber(ctx, orderNumber)
	if errors.Is(err, orders.ErrNotFound) {
		// Not our order; the webhook fans out across stores.
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up order: %w", err)
	}

	if len(order.Shipments) == 0 {
		order.Shipments = append(order.Shipments, u.buildShipment(order, trackingNumber))
	} else {
		// Subsequent notifications only refresh the tracking number;
		// no new shipment lines are created.
		order.Shipments[0].TrackingNumber = trackingNumber
	}

	order.ShippingStatus = orders.ShippingShipped
	if serviceCode != "" {
		order.ShippingMethod = serviceCode
	} else {
		order.ShippingMethod = carrierCode
	}

	if err := u.store.Update(ctx, order); err != nil {
		return fmt.Errorf("persisting order: %w", err)
	}

	u.logger.Info("Order marked shipped",
		zap.Int64("order_id", order.ID),
		zap.String("shipping_method", order.ShippingMethod),
		zap.String("tracking_number", trackingNumber),
	)
	return nil
}

// buildShipment creates the order's first shipment: one line per
// shippable item that still has unshipped quantity remaining, with the
// weights summed into the shipment total.
func (u *Updater) buildShipment(order *orders.Order, trackingNumber string) orders.Shipment {
	now := u.now().UTC()
	shipment := orders.Shipment{
		OrderID:        order.ID,
		TrackingNumber: trackingNumber,
		CreatedAt:      now,
		ShippedAt:      now,
	}

	for _, item := range order.Items {
		if !item.ShipEnabled {
			continue
		}
		if order.UnshippedQuantity(item) <= 0 {
			continue
		}

		shipment.TotalWeight += item.Weight * float64(item.Quantity)
		shipment.Items = append(shipment.Items, orders.ShipmentItem{
			OrderItemID: item.ID,
			Quantity:    item.Quantity,
		})
	}

	return shipment
}
