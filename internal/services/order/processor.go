// Package order holds the ordering side of the saga: the unit of work every
// order transition goes through and the handlers for events from the other
// services.
package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/internal/idempotency"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

type unitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) ([]models.Event, error)) error
}

type guard interface {
	TryBegin(ctx context.Context, requestID uuid.UUID, name string) (idempotency.Result, error)
}

type orderRepository interface {
	Order(ctx context.Context, orderUUID uuid.UUID) (*models.Order, error)
	Update(ctx context.Context, order *models.Order) error
}

type cacheInvalidator interface {
	Remove(key uuid.UUID) (present bool)
}

// Transition mutates a loaded order. It returns the aggregate's error when
// the change is not allowed.
type Transition func(order *models.Order) error

type Processor struct {
	log   logger.Logger
	uow   unitOfWork
	guard guard
	repo  orderRepository
	cache cacheInvalidator
}

func NewProcessor(log logger.Logger, uow unitOfWork, guard guard, repo orderRepository, cache cacheInvalidator) *Processor {
	return &Processor{
		log:   log,
		uow:   uow,
		guard: guard,
		repo:  repo,
		cache: cache,
	}
}

// Apply runs transition against the order in one local transaction: the
// idempotency record, the new status and the outgoing events commit or roll
// back together. A repeated (requestID, name) is a no-op.
func (p *Processor) Apply(
	ctx context.Context,
	requestID uuid.UUID,
	name string,
	orderID uuid.UUID,
	transition Transition,
) (idempotency.Result, error) {
	const op = "services.order.Processor.Apply"

	result := idempotency.Accepted

	err := p.uow.WithTx(ctx, func(ctx context.Context) ([]models.Event, error) {
		var err error
		if result, err = p.guard.TryBegin(ctx, requestID, name); err != nil {
			return nil, err
		}

		if result == idempotency.AlreadyProcessed {
			return nil, nil
		}

		order, err := p.repo.Order(ctx, orderID)
		if err != nil {
			return nil, err
		}

		if err = transition(order); err != nil {
			return nil, err
		}

		if err = p.repo.Update(ctx, order); err != nil {
			return nil, err
		}

		return IntegrationEvents(order), nil
	})
	if err != nil {
		return idempotency.Accepted, fmt.Errorf("%s: %s %s: %w", op, name, orderID, err)
	}

	if result == idempotency.Accepted {
		p.cache.Remove(orderID)

		p.log.InfoContext(ctx, op,
			logger.String("order_id", orderID.String()),
			logger.String("name", name),
		)
	}

	return result, nil
}
