package ship

import (
	"context"

	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/internal/idempotency"
	orderService "github.com/tumbleweedd/eshop_saga/internal/services/order"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

const commandName = "ShipOrder"

type processor interface {
	Apply(ctx context.Context, requestID uuid.UUID, name string, orderID uuid.UUID, transition orderService.Transition) (idempotency.Result, error)
}

// OrderShippingService is the operator path Paid -> Shipped for orders that
// are not tracked through the shipping service.
type OrderShippingService struct {
	log       logger.Logger
	processor processor
}

func New(log logger.Logger, processor processor) *OrderShippingService {
	return &OrderShippingService{
		log:       log,
		processor: processor,
	}
}

func (os *OrderShippingService) Ship(ctx context.Context, requestID, orderUUID uuid.UUID) (idempotency.Result, error) {
	const op = "services.order.Ship"

	result, err := os.processor.Apply(ctx, requestID, commandName, orderUUID, (*models.Order).SetShipped)
	if err != nil {
		os.log.Warn(op, logger.String("order_id", orderUUID.String()), logger.Err(err))
		return result, err
	}

	return result, nil
}
