// Package catalog answers the ordering stock check.
package catalog

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

type stockReader interface {
	AvailableStock(ctx context.Context, productIDs []int) (map[int]int, error)
}

type StockConfirmationService struct {
	log   logger.Logger
	uow   unitOfWork
	guard guard
	stock stockReader
}

func New(log logger.Logger, uow unitOfWork, guard guard, stock stockReader) *StockConfirmationService {
	return &StockConfirmationService{
		log:   log,
		uow:   uow,
		guard: guard,
		stock: stock,
	}
}

func (s *StockConfirmationService) Register(bus *eventbus.Bus) {
	eventbus.SubscribeTyped(bus, models.OrderStatusChangedToAwaitingValidationEvent, s.HandleAwaitingValidation)
}

// HandleAwaitingValidation checks every order line against the available
// stock and answers with OrderStockConfirmed when all lines are covered,
// otherwise with OrderStockRejected listing the lines that are short. Stock
// is only read, never reserved.
func (s *StockConfirmationService) HandleAwaitingValidation(
	ctx context.Context,
	e *models.OrderStatusChangedToAwaitingValidationIntegrationEvent,
) error {
	const op = "services.catalog.StockConfirmationService.HandleAwaitingValidation"

	err := s.uow.WithTx(ctx, func(ctx context.Context) ([]models.Event, error) {
		result, err := s.guard.TryBegin(ctx, e.ID, e.Type)
		if err != nil || result == idempotency.AlreadyProcessed {
			return nil, err
		}

		productIDs := make([]int, 0, len(e.OrderItems))
		for _, item := range e.OrderItems {
			productIDs = append(productIDs, item.ProductID)
		}

		available, err := s.stock.AvailableStock(ctx, productIDs)
		if err != nil {
			return nil, err
		}

		rejected := CheckStock(e.OrderItems, available)

		if len(rejected) == 0 {
			s.log.InfoContext(ctx, op, logger.String("order_id", e.OrderID.String()), logger.String("msg", "stock confirmed"))
			return []models.Event{models.NewOrderStockConfirmedIntegrationEvent(e.OrderID)}, nil
		}

		s.log.InfoContext(ctx, op, logger.String("order_id", e.OrderID.String()), logger.String("msg", "stock rejected"))
		return []models.Event{models.NewOrderStockRejectedIntegrationEvent(e.OrderID, rejected)}, nil
	})

	return eventbus.Settle(ctx, s.log, op, e.ID.String(), err)
}

// CheckStock returns the lines that available does not cover, in order
// line order. An empty result confirms the order.
func CheckStock(lines []models.OrderItemUnits, available map[int]int) []models.OrderStockItem {
	var rejected []models.OrderStockItem

	for _, line := range lines {
		if available[line.ProductID] < line.Units {
			rejected = append(rejected, models.OrderStockItem{ProductID: line.ProductID, HasStock: false})
		}
	}

	return rejected
}
