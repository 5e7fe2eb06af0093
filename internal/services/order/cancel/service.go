package cancel

import (
	"context"

	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/internal/idempotency"
	orderService "github.com/tumbleweedd/eshop_saga/internal/services/order"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

const commandName = "CancelOrder"

type processor interface {
	Apply(ctx context.Context, requestID uuid.UUID, name string, orderID uuid.UUID, transition orderService.Transition) (idempotency.Result, error)
}

type OrderCancellationService struct {
	log       logger.Logger
	processor processor
}

func New(log logger.Logger, processor processor) *OrderCancellationService {
	return &OrderCancellationService{
		log:       log,
		processor: processor,
	}
}

// Cancel is rejected once the order is terminal or a shipment was created
// for it; shipping owns the order from then on.
func (os *OrderCancellationService) Cancel(ctx context.Context, requestID, orderUUID uuid.UUID) (idempotency.Result, error) {
	const op = "services.order.Cancel"

	result, err := os.processor.Apply(ctx, requestID, commandName, orderUUID, (*models.Order).Cancel)
	if err != nil {
		os.log.Warn(op, logger.String("order_id", orderUUID.String()), logger.Err(err))
		return result, err
	}

	return result, nil
}
