package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestOutboxEntryKeepsEventIdentity(t *testing.T) {
	orderID := uuid.New()
	event := NewOrderStockRejectedIntegrationEvent(orderID, []OrderStockItem{
		{ProductID: 1, HasStock: false},
		{ProductID: 2, HasStock: true},
	})

	entry, err := NewOutboxEntry(event, uuid.New(), time.Now())
	require.NoError(t, err)
	require.Equal(t, event.ID, entry.EventID)
	require.Equal(t, OrderStockRejectedEvent, entry.TypeName)
	require.Equal(t, OutboxStateNotPublished, entry.State)

	var decoded OrderStockRejectedIntegrationEvent
	require.NoError(t, json.Unmarshal(entry.Payload, &decoded))
	require.Equal(t, event.ID, decoded.ID)
	require.Equal(t, orderID, decoded.OrderID)
	require.Equal(t, []int{1}, decoded.RejectedProductIDs())
}

func TestEventPayloadFieldNames(t *testing.T) {
	event := NewShipmentCancelledIntegrationEvent(uuid.New(), uuid.New(), 5, []OrderItemUnits{{ProductID: 9, Units: 4}})

	raw, err := json.Marshal(event)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))

	for _, key := range []string{"id", "occurredAt", "type", "shipmentId", "orderId", "returnWarehouseId", "orderItems"} {
		require.Contains(t, fields, key)
	}

	items := fields["orderItems"].([]any)
	require.Equal(t, map[string]any{"productId": float64(9), "units": float64(4)}, items[0])
}
