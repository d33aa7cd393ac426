package shipments_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipstation/internal/orders"
	"github.com/tournevent/shipstation/internal/shipments"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

var shippedAt = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func newTestUpdater(store orders.Store) *shipments.Updater {
	logger := otelzap.New(zap.NewNop())
	return shipments.NewUpdaterWithClock(store, logger, func() time.Time { return shippedAt })
}

func shippableOrder() *orders.Order {
	return &orders.Order{
		ID:             7,
		Number:         uuid.MustParse("07b2e2a2-9a5e-4d2f-8c39-2a1f6f5a9be1"),
		ShippingStatus: orders.ShippingNotYetShipped,
		Items: []orders.Item{
			{ID: 1, Name: "Widget", Quantity: 2, ShipEnabled: true, Weight: 0.5},
			{ID: 2, Name: "Gadget", Quantity: 1, ShipEnabled: true, Weight: 2},
			{ID: 3, Name: "Gift wrapping", Quantity: 1, ShipEnabled: false},
		},
	}
}

func TestApply_CreatesFirstShipment(t *testing.T) {
	store := orders.NewMemoryStore()
	order := shippableOrder()
	store.Put(order)

	newTestUpdater(store).Apply(context.Background(), order.Number, "fedex", "fedex_ground", "TRACK-001")

	got, err := store.ByNumber(context.Background(), order.Number)
	require.NoError(t, err)
	assert.Equal(t, orders.ShippingShipped, got.ShippingStatus)
	assert.Equal(t, "fedex_ground", got.ShippingMethod)

	require.Len(t, got.Shipments, 1)
	shipment := got.Shipments[0]
	assert.NotZero(t, shipment.ID)
	assert.Equal(t, "TRACK-001", shipment.TrackingNumber)
	assert.Equal(t, shippedAt, shipment.CreatedAt)
	assert.Equal(t, shippedAt, shipment.ShippedAt)
	assert.InDelta(t, 3.0, shipment.TotalWeight, 1e-9) // 2x0.5 + 1x2

	// One line per shippable item; the non-shippable line is excluded.
	require.Len(t, shipment.Items, 2)
	assert.Equal(t, int64(1), shipment.Items[0].OrderItemID)
	assert.Equal(t, 2, shipment.Items[0].Quantity)
	assert.Equal(t, int64(2), shipment.Items[1].OrderItemID)
	assert.Equal(t, 1, shipment.Items[1].Quantity)
}

func TestApply_SecondNotificationOnlyUpdatesTracking(t *testing.T) {
	store := orders.NewMemoryStore()
	order := shippableOrder()
	store.Put(order)
	updater := newTestUpdater(store)
	ctx := context.Background()

	updater.Apply(ctx, order.Number, "fedex", "fedex_ground", "TRACK-001")
	updater.Apply(ctx, order.Number, "fedex", "fedex_ground", "TRACK-002")

	got, err := store.ByNumber(ctx, order.Number)
	require.NoError(t, err)
	require.Len(t, got.Shipments, 1)
	assert.Equal(t, "TRACK-002", got.Shipments[0].TrackingNumber)
	assert.Len(t, got.Shipments[0].Items, 2)
}

func TestApply_UnknownOrderIsNoOp(t *testing.T) {
	store := orders.NewMemoryStore()
	order := shippableOrder()
	store.Put(order)

	newTestUpdater(store).Apply(context.Background(), uuid.New(), "fedex", "fedex_ground", "TRACK-001")

	got, err := store.ByNumber(context.Background(), order.Number)
	require.NoError(t, err)
	assert.Equal(t, orders.ShippingNotYetShipped, got.ShippingStatus)
	assert.Empty(t, got.Shipments)
}

func TestApply_FallsBackToCarrierCode(t *testing.T) {
	store := orders.NewMemoryStore()
	order := shippableOrder()
	store.Put(order)

	newTestUpdater(store).Apply(context.Background(), order.Number, "fedex", "", "TRACK-001")

	got, err := store.ByNumber(context.Background(), order.Number)
	require.NoError(t, err)
	assert.Equal(t, "fedex", got.ShippingMethod)
}

func TestApply_ZeroQuantityLinesGetNoShipmentLine(t *testing.T) {
	store := orders.NewMemoryStore()
	order := shippableOrder()
	order.Items[1].Quantity = 0
	store.Put(order)
	ctx := context.Background()

	newTestUpdater(store).Apply(ctx, order.Number, "fedex", "fedex_ground", "TRACK-001")

	got, err := store.ByNumber(ctx, order.Number)
	require.NoError(t, err)
	require.Len(t, got.Shipments, 1)
	require.Len(t, got.Shipments[0].Items, 1)
	assert.Equal(t, int64(1), got.Shipments[0].Items[0].OrderItemID)
}
