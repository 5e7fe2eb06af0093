// Package payment simulates the payment gateway. Every order that reaches
// StockConfirmed gets the same configured outcome.
package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/internal/eventbus"
	"github.com/tumbleweedd/eshop_saga/internal/idempotency"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

type unitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) ([]models.Event, error)) error
}

type guard interface {
	TryBegin(ctx context.Context, requestID uuid.UUID, name string) (idempotency.Result, error)
}

type PaymentService struct {
	log     logger.Logger
	uow     unitOfWork
	guard   guard
	succeed bool
}

func New(log logger.Logger, uow unitOfWork, guard guard, succeed bool) *PaymentService {
	return &PaymentService{
		log:     log,
		uow:     uow,
		guard:   guard,
		succeed: succeed,
	}
}

func (s *PaymentService) Register(bus *eventbus.Bus) {
	eventbus.SubscribeTyped(bus, models.OrderStatusChangedToStockConfirmedEvent, s.HandleStockConfirmed)
}

func (s *PaymentService) HandleStockConfirmed(ctx context.Context, e *models.OrderStatusChangedIntegrationEvent) error {
	const op = "services.payment.PaymentService.HandleStockConfirmed"

	err := s.uow.WithTx(ctx, func(ctx context.Context) ([]models.Event, error) {
		result, err := s.guard.TryBegin(ctx, e.ID, e.Type)
		if err != nil || result == idempotency.AlreadyProcessed {
			return nil, err
		}

		if !s.succeed {
			s.log.WarnContext(ctx, op, logger.String("order_id", e.OrderID.String()), logger.String("msg", "payment failed"))
			return []models.Event{models.NewOrderPaymentFailedIntegrationEvent(e.OrderID)}, nil
		}

		s.log.InfoContext(ctx, op, logger.String("order_id", e.OrderID.String()), logger.String("msg", "payment succeeded"))
		return []models.Event{models.NewOrderPaymentSucceededIntegrationEvent(e.OrderID)}, nil
	})

	return eventbus.Settle(ctx, s.log, op, e.ID.String(), err)
}
