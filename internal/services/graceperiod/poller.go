// Package graceperiod confirms orders whose buyer cancellation window has
// passed. It runs against the ordering database and writes its events
// through its own outbox rows.
package graceperiod

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/internal/metrics"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

type orderFinder interface {
	SubmittedBefore(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error)
}

type unitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) ([]models.Event, error)) error
}

type Config struct {
	GracePeriod  time.Duration
	PollInterval time.Duration
	BatchSize    int
}

type Poller struct {
	log    logger.Logger
	cfg    Config
	orders orderFinder
	uow    unitOfWork
	now    func() time.Time
}

func New(log logger.Logger, cfg Config, orders orderFinder, uow unitOfWork) *Poller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	return &Poller{
		log:    log,
		cfg:    cfg,
		orders: orders,
		uow:    uow,
		now:    time.Now,
	}
}

// Tick queues a GracePeriodConfirmed event for every order still Submitted
// after the grace period. Each order gets its own transaction. An order
// picked up again before ordering handled the first event gets a second
// event, which ordering rejects as a stale transition.
func (p *Poller) Tick(ctx context.Context) error {
	const op = "graceperiod.Poller.Tick"

	ids, err := p.orders.SubmittedBefore(ctx, p.now().Add(-p.cfg.GracePeriod).UTC(), p.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("%s: find orders: %w", op, err)
	}

	var errs []error
	for _, id := range ids {
		orderID := id

		err = p.uow.WithTx(ctx, func(context.Context) ([]models.Event, error) {
			return []models.Event{models.NewGracePeriodConfirmedIntegrationEvent(orderID)}, nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("order %s: %w", orderID, err))
			continue
		}

		metrics.GracePeriodPromotions.Inc()

		p.log.InfoContext(ctx, op, logger.String("order_id", orderID.String()))
	}

	if err = errors.Join(errs...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Run ticks until ctx is cancelled. Tick errors are logged and the next tick
// tries again.
func (p *Poller) Run(ctx context.Context) error {
	const op = "graceperiod.Poller.Run"

	p.log.Info(op,
		logger.String("msg", "starting grace period poller"),
		logger.Duration("grace_period", p.cfg.GracePeriod),
		logger.Duration("interval", p.cfg.PollInterval),
	)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info(op, logger.String("msg", "stopping grace period poller"))
			return nil
		case <-ticker.C:
			if err := p.Tick(context.WithoutCancel(ctx)); err != nil {
				p.log.Error(op, logger.Err(err))
			}
		}
	}
}
