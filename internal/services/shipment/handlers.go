package shipment

import (
	"context"

	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/internal/eventbus"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

func (s *Service) Register(bus *eventbus.Bus) {
	eventbus.SubscribeTyped(bus, models.OrderStatusChangedToPaidEvent, s.HandleOrderPaid)
	eventbus.SubscribeTyped(bus, models.OrderStatusChangedToCancelledEvent, s.HandleOrderCancelled)
}

// HandleOrderPaid creates the shipment of a paid order. A second shipment
// for the same order is rejected and the event acknowledged.
func (s *Service) HandleOrderPaid(ctx context.Context, e *models.OrderStatusChangedToPaidIntegrationEvent) error {
	const op = "services.shipment.Service.HandleOrderPaid"

	err := s.createForOrder(ctx, e)
	if err == nil {
		s.log.InfoContext(ctx, op, logger.String("order_id", e.OrderID.String()))
	}

	return eventbus.Settle(ctx, s.log, op, e.ID.String(), err)
}

func (s *Service) HandleOrderCancelled(ctx context.Context, e *models.OrderStatusChangedToCancelledIntegrationEvent) error {
	const op = "services.shipment.Service.HandleOrderCancelled"

	return eventbus.Settle(ctx, s.log, op, e.ID.String(), s.cancelForOrder(ctx, e))
}
