// Package idempotency makes command and event handlers safe to run more than
// once for the same request id.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/database"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/internal/metrics"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

type Result int

const (
	Accepted Result = iota
	AlreadyProcessed
)

func (r Result) String() string {
	if r == AlreadyProcessed {
		return "AlreadyProcessed"
	}
	return "Accepted"
}

type store interface {
	TryInsert(ctx context.Context, record models.IdempotencyRecord) (bool, error)
}

type Guard struct {
	log       logger.Logger
	store     store
	txManager database.TxManager
	now       func() time.Time
}

func New(log logger.Logger, store store, txManager database.TxManager) *Guard {
	return &Guard{
		log:       log,
		store:     store,
		txManager: txManager,
		now:       time.Now,
	}
}

// TryBegin records (requestID, name). ctx must carry the transaction of the
// side effect: if that transaction rolls back the record goes with it and a
// retry is accepted again.
//
// The key is the pair, not the request id alone: the same requestID reused
// under a different name is accepted again. Event handlers pass the event id
// and event type, so one event delivered to two handlers of a service is
// processed once per handler.
func (g *Guard) TryBegin(ctx context.Context, requestID uuid.UUID, name string) (Result, error) {
	const op = "idempotency.Guard.TryBegin"

	inserted, err := g.store.TryInsert(ctx, models.IdempotencyRecord{
		RequestID:  requestID,
		Name:       name,
		ReceivedAt: g.now().UTC(),
	})
	if err != nil {
		return Accepted, fmt.Errorf("%s: %w", op, err)
	}

	if !inserted {
		metrics.DuplicatesSuppressed.WithLabelValues(name).Inc()

		g.log.InfoContext(ctx, op,
			logger.String("msg", "duplicate request suppressed"),
			logger.String("request_id", requestID.String()),
			logger.String("name", name),
		)

		return AlreadyProcessed, nil
	}

	return Accepted, nil
}

// Execute runs fn exactly once per (requestID, name) in its own transaction.
// A duplicate returns AlreadyProcessed without calling fn.
func (g *Guard) Execute(ctx context.Context, requestID uuid.UUID, name string, fn func(ctx context.Context) error) (Result, error) {
	result := Accepted

	err := g.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if result, err = g.TryBegin(ctx, requestID, name); err != nil {
			return err
		}

		if result == AlreadyProcessed {
			return nil
		}

		return fn(ctx)
	})
	if err != nil {
		return Accepted, err
	}

	return result, nil
}
