package order

import (
	"context"

	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/internal/eventbus"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

// Handlers moves orders forward on events from the grace period poller,
// catalog, payment and shipping.
type Handlers struct {
	log       logger.Logger
	processor *Processor
}

func NewHandlers(log logger.Logger, processor *Processor) *Handlers {
	return &Handlers{log: log, processor: processor}
}

func (h *Handlers) Register(bus *eventbus.Bus) {
	eventbus.SubscribeTyped(bus, models.GracePeriodConfirmedEvent, h.HandleGracePeriodConfirmed)
	eventbus.SubscribeTyped(bus, models.OrderStockConfirmedEvent, h.HandleStockConfirmed)
	eventbus.SubscribeTyped(bus, models.OrderStockRejectedEvent, h.HandleStockRejected)
	eventbus.SubscribeTyped(bus, models.OrderPaymentSucceededEvent, h.HandlePaymentSucceeded)
	eventbus.SubscribeTyped(bus, models.OrderPaymentFailedEvent, h.HandlePaymentFailed)
	eventbus.SubscribeTyped(bus, models.ShipmentCreatedEvent, h.HandleShipmentCreated)
	eventbus.SubscribeTyped(bus, models.ShipmentStatusChangedEvent, h.HandleShipmentStatusChanged)
	eventbus.SubscribeTyped(bus, models.ShipmentCancelledEvent, h.HandleShipmentCancelled)
}

func (h *Handlers) HandleGracePeriodConfirmed(ctx context.Context, e *models.GracePeriodConfirmedIntegrationEvent) error {
	const op = "services.order.Handlers.HandleGracePeriodConfirmed"

	return h.apply(ctx, op, e.IntegrationEvent, e.OrderID, (*models.Order).SetAwaitingValidation)
}

func (h *Handlers) HandleStockConfirmed(ctx context.Context, e *models.OrderStockConfirmedIntegrationEvent) error {
	const op = "services.order.Handlers.HandleStockConfirmed"

	return h.apply(ctx, op, e.IntegrationEvent, e.OrderID, (*models.Order).SetStockConfirmed)
}

func (h *Handlers) HandleStockRejected(ctx context.Context, e *models.OrderStockRejectedIntegrationEvent) error {
	const op = "services.order.Handlers.HandleStockRejected"

	rejected := e.RejectedProductIDs()

	return h.apply(ctx, op, e.IntegrationEvent, e.OrderID, func(order *models.Order) error {
		return order.SetCancelledWhenStockIsRejected(rejected)
	})
}

func (h *Handlers) HandlePaymentSucceeded(ctx context.Context, e *models.OrderPaymentIntegrationEvent) error {
	const op = "services.order.Handlers.HandlePaymentSucceeded"

	return h.apply(ctx, op, e.IntegrationEvent, e.OrderID, (*models.Order).SetPaid)
}

func (h *Handlers) HandlePaymentFailed(ctx context.Context, e *models.OrderPaymentIntegrationEvent) error {
	const op = "services.order.Handlers.HandlePaymentFailed"

	return h.apply(ctx, op, e.IntegrationEvent, e.OrderID, (*models.Order).SetCancelledWhenPaymentFailed)
}

func (h *Handlers) HandleShipmentCreated(ctx context.Context, e *models.ShipmentCreatedIntegrationEvent) error {
	const op = "services.order.Handlers.HandleShipmentCreated"

	shipmentID := e.ShipmentID

	return h.apply(ctx, op, e.IntegrationEvent, e.OrderID, func(order *models.Order) error {
		return order.AttachShipment(shipmentID)
	})
}

// HandleShipmentStatusChanged completes the order once its shipment is
// delivered. Intermediate shipment statuses do not affect the order.
func (h *Handlers) HandleShipmentStatusChanged(ctx context.Context, e *models.ShipmentStatusChangedIntegrationEvent) error {
	const op = "services.order.Handlers.HandleShipmentStatusChanged"

	if e.Status != models.ShipmentStatusDelivered.String() {
		return nil
	}

	return h.apply(ctx, op, e.IntegrationEvent, e.OrderID, (*models.Order).SetShipped)
}

func (h *Handlers) HandleShipmentCancelled(ctx context.Context, e *models.ShipmentCancelledIntegrationEvent) error {
	const op = "services.order.Handlers.HandleShipmentCancelled"

	return h.apply(ctx, op, e.IntegrationEvent, e.OrderID, (*models.Order).SetCancelledWhenShipmentCancelled)
}

// apply uses the event id as the request id: a redelivered event is
// suppressed by the idempotency guard.
func (h *Handlers) apply(ctx context.Context, op string, event models.IntegrationEvent, orderID uuid.UUID, transition Transition) error {
	_, err := h.processor.Apply(ctx, event.ID, event.Type, orderID, transition)

	return eventbus.Settle(ctx, h.log, op, event.ID.String(), err)
}
