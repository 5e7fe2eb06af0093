package create

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/internal/idempotency"
	orderService "github.com/tumbleweedd/eshop_saga/internal/services/order"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

const commandName = "CreateOrder"

type Command struct {
	BuyerID     string
	Items       []models.OrderItem
	Address     models.Address
	PaymentInfo models.PaymentInfo
}

type unitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) ([]models.Event, error)) error
}

type guard interface {
	TryBegin(ctx context.Context, requestID uuid.UUID, name string) (idempotency.Result, error)
}

type orderCreator interface {
	Create(ctx context.Context, order *models.Order) error
}

type orderCache interface {
	Add(key uuid.UUID, value models.OrderSnapshot) (evicted bool)
}

type OrderCreationService struct {
	log   logger.Logger
	uow   unitOfWork
	guard guard
	cache orderCache

	orderCreator orderCreator
	now          func() time.Time
}

func New(log logger.Logger, uow unitOfWork, guard guard, orderCreator orderCreator, cache orderCache) *OrderCreationService {
	return &OrderCreationService{
		log:          log,
		uow:          uow,
		guard:        guard,
		cache:        cache,
		orderCreator: orderCreator,
		now:          time.Now,
	}
}

// Create stores a Submitted order. A repeated requestID returns
// AlreadyProcessed and a nil id.
func (os *OrderCreationService) Create(ctx context.Context, requestID uuid.UUID, cmd Command) (uuid.UUID, idempotency.Result, error) {
	const op = "services.order.Create"

	var order *models.Order
	result := idempotency.Accepted

	err := os.uow.WithTx(ctx, func(ctx context.Context) ([]models.Event, error) {
		var err error
		if result, err = os.guard.TryBegin(ctx, requestID, commandName); err != nil {
			return nil, err
		}

		if result == idempotency.AlreadyProcessed {
			return nil, nil
		}

		order, err = models.NewOrder(cmd.BuyerID, cmd.Items, cmd.Address, cmd.PaymentInfo, os.now())
		if err != nil {
			return nil, err
		}

		if err = os.orderCreator.Create(ctx, order); err != nil {
			return nil, err
		}

		return orderService.IntegrationEvents(order), nil
	})
	if err != nil {
		return uuid.Nil, idempotency.Accepted, fmt.Errorf("%s: %w", op, err)
	}

	if result == idempotency.AlreadyProcessed {
		return uuid.Nil, result, nil
	}

	_ = os.cache.Add(order.ID(), order.Snapshot())

	os.log.InfoContext(ctx, op, logger.String("order_id", order.ID().String()))

	return order.ID(), result, nil
}
