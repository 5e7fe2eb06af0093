package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is anything that can be written to the outbox and published on the bus.
type Event interface {
	EventID() uuid.UUID
	EventType() string
	OccurredOn() time.Time
}

// IntegrationEvent carries the identity every consumer deduplicates on. The id
// is generated once and survives serialization, storage and redelivery.
type IntegrationEvent struct {
	ID         uuid.UUID `json:"id"`
	OccurredAt time.Time `json:"occurredAt"`
	Type       string    `json:"type"`
}

func NewIntegrationEvent(typeName string) IntegrationEvent {
	return IntegrationEvent{
		ID:         uuid.New(),
		OccurredAt: time.Now().UTC(),
		Type:       typeName,
	}
}

func (e IntegrationEvent) EventID() uuid.UUID {
	return e.ID
}

func (e IntegrationEvent) EventType() string {
	return e.Type
}

func (e IntegrationEvent) OccurredOn() time.Time {
	return e.OccurredAt
}

const (
	GracePeriodConfirmedEvent                   = "GracePeriodConfirmedIntegrationEvent"
	OrderStatusChangedToSubmittedEvent          = "OrderStatusChangedToSubmittedIntegrationEvent"
	OrderStatusChangedToAwaitingValidationEvent = "OrderStatusChangedToAwaitingValidationIntegrationEvent"
	OrderStockConfirmedEvent                    = "OrderStockConfirmedIntegrationEvent"
	OrderStockRejectedEvent                     = "OrderStockRejectedIntegrationEvent"
	OrderStatusChangedToStockConfirmedEvent     = "OrderStatusChangedToStockConfirmedIntegrationEvent"
	OrderPaymentSucceededEvent                  = "OrderPaymentSucceededIntegrationEvent"
	OrderPaymentFailedEvent                     = "OrderPaymentFailedIntegrationEvent"
	OrderStatusChangedToPaidEvent               = "OrderStatusChangedToPaidIntegrationEvent"
	OrderStatusChangedToShippedEvent            = "OrderStatusChangedToShippedIntegrationEvent"
	OrderStatusChangedToCancelledEvent          = "OrderStatusChangedToCancelledIntegrationEvent"
	ShipmentCreatedEvent                        = "ShipmentCreatedIntegrationEvent"
	ShipmentStatusChangedEvent                  = "ShipmentStatusChangedIntegrationEvent"
	ShipmentCancelledEvent                      = "ShipmentCancelledIntegrationEvent"
)

type OrderItemUnits struct {
	ProductID int `json:"productId"`
	Units     int `json:"units"`
}

type OrderStockItem struct {
	ProductID int  `json:"productId"`
	HasStock  bool `json:"hasStock"`
}

type GracePeriodConfirmedIntegrationEvent struct {
	IntegrationEvent
	OrderID uuid.UUID `json:"orderId"`
}

func NewGracePeriodConfirmedIntegrationEvent(orderID uuid.UUID) *GracePeriodConfirmedIntegrationEvent {
	return &GracePeriodConfirmedIntegrationEvent{
		IntegrationEvent: NewIntegrationEvent(GracePeriodConfirmedEvent),
		OrderID:          orderID,
	}
}

// OrderStatusChangedIntegrationEvent is the shared shape of the
// OrderStatusChangedTo* events that carry no extra data.
type OrderStatusChangedIntegrationEvent struct {
	IntegrationEvent
	OrderID     uuid.UUID `json:"orderId"`
	BuyerID     string    `json:"buyerId"`
	OrderStatus string    `json:"orderStatus"`
}

func NewOrderStatusChangedIntegrationEvent(typeName string, orderID uuid.UUID, buyerID string, status OrderStatus) *OrderStatusChangedIntegrationEvent {
	return &OrderStatusChangedIntegrationEvent{
		IntegrationEvent: NewIntegrationEvent(typeName),
		OrderID:          orderID,
		BuyerID:          buyerID,
		OrderStatus:      status.String(),
	}
}

type OrderStatusChangedToAwaitingValidationIntegrationEvent struct {
	IntegrationEvent
	OrderID     uuid.UUID        `json:"orderId"`
	BuyerID     string           `json:"buyerId"`
	OrderStatus string           `json:"orderStatus"`
	OrderItems  []OrderItemUnits `json:"orderItems"`
}

func NewOrderStatusChangedToAwaitingValidationIntegrationEvent(
	orderID uuid.UUID,
	buyerID string,
	items []OrderItemUnits,
) *OrderStatusChangedToAwaitingValidationIntegrationEvent {
	return &OrderStatusChangedToAwaitingValidationIntegrationEvent{
		IntegrationEvent: NewIntegrationEvent(OrderStatusChangedToAwaitingValidationEvent),
		OrderID:          orderID,
		BuyerID:          buyerID,
		OrderStatus:      OrderStatusAwaitingValidation.String(),
		OrderItems:       items,
	}
}

type OrderStockConfirmedIntegrationEvent struct {
	IntegrationEvent
	OrderID uuid.UUID `json:"orderId"`
}

func NewOrderStockConfirmedIntegrationEvent(orderID uuid.UUID) *OrderStockConfirmedIntegrationEvent {
	return &OrderStockConfirmedIntegrationEvent{
		IntegrationEvent: NewIntegrationEvent(OrderStockConfirmedEvent),
		OrderID:          orderID,
	}
}

type OrderStockRejectedIntegrationEvent struct {
	IntegrationEvent
	OrderID         uuid.UUID        `json:"orderId"`
	OrderStockItems []OrderStockItem `json:"orderStockItems"`
}

func NewOrderStockRejectedIntegrationEvent(orderID uuid.UUID, items []OrderStockItem) *OrderStockRejectedIntegrationEvent {
	return &OrderStockRejectedIntegrationEvent{
		IntegrationEvent: NewIntegrationEvent(OrderStockRejectedEvent),
		OrderID:          orderID,
		OrderStockItems:  items,
	}
}

// RejectedProductIDs lists the products reported without stock.
func (e *OrderStockRejectedIntegrationEvent) RejectedProductIDs() []int {
	ids := make([]int, 0, len(e.OrderStockItems))
	for _, item := range e.OrderStockItems {
		if !item.HasStock {
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}

type OrderPaymentIntegrationEvent struct {
	IntegrationEvent
	OrderID uuid.UUID `json:"orderId"`
}

func NewOrderPaymentSucceededIntegrationEvent(orderID uuid.UUID) *OrderPaymentIntegrationEvent {
	return &OrderPaymentIntegrationEvent{
		IntegrationEvent: NewIntegrationEvent(OrderPaymentSucceededEvent),
		OrderID:          orderID,
	}
}

func NewOrderPaymentFailedIntegrationEvent(orderID uuid.UUID) *OrderPaymentIntegrationEvent {
	return &OrderPaymentIntegrationEvent{
		IntegrationEvent: NewIntegrationEvent(OrderPaymentFailedEvent),
		OrderID:          orderID,
	}
}

type OrderStatusChangedToPaidIntegrationEvent struct {
	IntegrationEvent
	OrderID         uuid.UUID        `json:"orderId"`
	BuyerID         string           `json:"buyerId"`
	OrderStatus     string           `json:"orderStatus"`
	OrderItems      []OrderItemUnits `json:"orderItems"`
	CustomerAddress Address          `json:"customerAddress"`
}

func NewOrderStatusChangedToPaidIntegrationEvent(
	orderID uuid.UUID,
	buyerID string,
	items []OrderItemUnits,
	address Address,
) *OrderStatusChangedToPaidIntegrationEvent {
	return &OrderStatusChangedToPaidIntegrationEvent{
		IntegrationEvent: NewIntegrationEvent(OrderStatusChangedToPaidEvent),
		OrderID:          orderID,
		BuyerID:          buyerID,
		OrderStatus:      OrderStatusPaid.String(),
		OrderItems:       items,
		CustomerAddress:  address,
	}
}

type OrderStatusChangedToCancelledIntegrationEvent struct {
	IntegrationEvent
	OrderID            uuid.UUID `json:"orderId"`
	BuyerID            string    `json:"buyerId"`
	OrderStatus        string    `json:"orderStatus"`
	Reason             string    `json:"reason"`
	RejectedProductIDs []int     `json:"rejectedProductIds,omitempty"`
}

func NewOrderStatusChangedToCancelledIntegrationEvent(
	orderID uuid.UUID,
	buyerID string,
	reason string,
	rejected []int,
) *OrderStatusChangedToCancelledIntegrationEvent {
	return &OrderStatusChangedToCancelledIntegrationEvent{
		IntegrationEvent:   NewIntegrationEvent(OrderStatusChangedToCancelledEvent),
		OrderID:            orderID,
		BuyerID:            buyerID,
		OrderStatus:        OrderStatusCancelled.String(),
		Reason:             reason,
		RejectedProductIDs: rejected,
	}
}

type ShipmentCreatedIntegrationEvent struct {
	IntegrationEvent
	ShipmentID        uuid.UUID `json:"shipmentId"`
	OrderID           uuid.UUID `json:"orderId"`
	RouteWarehouseIDs []int     `json:"routeWarehouseIds"`
	CustomerAddress   Address   `json:"customerAddress"`
}

func NewShipmentCreatedIntegrationEvent(
	shipmentID, orderID uuid.UUID,
	route []int,
	address Address,
) *ShipmentCreatedIntegrationEvent {
	return &ShipmentCreatedIntegrationEvent{
		IntegrationEvent:  NewIntegrationEvent(ShipmentCreatedEvent),
		ShipmentID:        shipmentID,
		OrderID:           orderID,
		RouteWarehouseIDs: route,
		CustomerAddress:   address,
	}
}

type ShipmentStatusChangedIntegrationEvent struct {
	IntegrationEvent
	ShipmentID  uuid.UUID `json:"shipmentId"`
	OrderID     uuid.UUID `json:"orderId"`
	Status      string    `json:"status"`
	ShipperName string    `json:"shipperName,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewShipmentStatusChangedIntegrationEvent(
	shipmentID, orderID uuid.UUID,
	status ShipmentStatus,
	shipperName string,
	at time.Time,
) *ShipmentStatusChangedIntegrationEvent {
	return &ShipmentStatusChangedIntegrationEvent{
		IntegrationEvent: NewIntegrationEvent(ShipmentStatusChangedEvent),
		ShipmentID:       shipmentID,
		OrderID:          orderID,
		Status:           status.String(),
		ShipperName:      shipperName,
		Timestamp:        at,
	}
}

type ShipmentCancelledIntegrationEvent struct {
	IntegrationEvent
	ShipmentID        uuid.UUID        `json:"shipmentId"`
	OrderID           uuid.UUID        `json:"orderId"`
	ReturnWarehouseID int              `json:"returnWarehouseId"`
	OrderItems        []OrderItemUnits `json:"orderItems"`
}

func NewShipmentCancelledIntegrationEvent(
	shipmentID, orderID uuid.UUID,
	returnWarehouseID int,
	items []OrderItemUnits,
) *ShipmentCancelledIntegrationEvent {
	return &ShipmentCancelledIntegrationEvent{
		IntegrationEvent:  NewIntegrationEvent(ShipmentCancelledEvent),
		ShipmentID:        shipmentID,
		OrderID:           orderID,
		ReturnWarehouseID: returnWarehouseID,
		OrderItems:        items,
	}
}
