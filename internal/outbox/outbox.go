// Package outbox writes integration events in the same local transaction as
// the business change that caused them and publishes them after commit.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/database"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

//go:generate mockgen -source=outbox.go -destination=mocks/mock_outbox.go -package=mocks

// Store persists outbox entries. Append must use the transaction carried by
// ctx; the Mark* methods are single-row updates that can be repeated safely.
type Store interface {
	Append(ctx context.Context, entry models.OutboxEntry) error
	FetchPending(ctx context.Context, transactionID uuid.UUID) ([]models.OutboxEntry, error)
	FetchRetryable(ctx context.Context, staleBefore time.Time, limit int) ([]models.OutboxEntry, error)
	// MarkInProgress claims the entry and reports whether this caller got it.
	// NotPublished, PublishedFailed and InProgress rows last attempted before
	// staleBefore can be claimed.
	MarkInProgress(ctx context.Context, eventID uuid.UUID, staleBefore time.Time) (bool, error)
	MarkPublished(ctx context.Context, eventID uuid.UUID) error
	MarkFailed(ctx context.Context, eventID uuid.UUID) error
}

// Publisher sends a stored payload to the event bus.
type Publisher interface {
	PublishRaw(ctx context.Context, eventID, typeName string, payload []byte) error
}

type transactionPublisher interface {
	PublishTransaction(ctx context.Context, transactionID uuid.UUID) error
}

// Writer is the unit-of-work entry point for services that emit events.
type Writer struct {
	log       logger.Logger
	txManager database.TxManager
	store     Store
	relay     transactionPublisher
	now       func() time.Time
}

func NewWriter(log logger.Logger, txManager database.TxManager, store Store, relay transactionPublisher) *Writer {
	return &Writer{
		log:       log,
		txManager: txManager,
		store:     store,
		relay:     relay,
		now:       time.Now,
	}
}

// Append stores event as part of transactionID. ctx must carry the
// transaction of the business change.
func (w *Writer) Append(ctx context.Context, transactionID uuid.UUID, event models.Event) error {
	const op = "outbox.Writer.Append"

	entry, err := models.NewOutboxEntry(event, transactionID, w.now().UTC())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = w.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// WithTx runs fn in one local transaction and appends the events it returns
// before committing. After a successful commit the events are published
// right away; a publish failure is only logged because the sweep retries it.
func (w *Writer) WithTx(ctx context.Context, fn func(ctx context.Context) ([]models.Event, error)) error {
	const op = "outbox.Writer.WithTx"

	transactionID := uuid.New()
	appended := 0

	err := w.txManager.WithTx(ctx, func(ctx context.Context) error {
		events, err := fn(ctx)
		if err != nil {
			return err
		}

		for _, event := range events {
			if err = w.Append(ctx, transactionID, event); err != nil {
				return err
			}
		}
		appended = len(events)

		return nil
	})
	if err != nil {
		return err
	}

	if appended == 0 || w.relay == nil {
		return nil
	}

	if err = w.relay.PublishTransaction(ctx, transactionID); err != nil {
		w.log.WarnContext(ctx, op,
			logger.String("transaction_id", transactionID.String()),
			logger.Err(err),
		)
	}

	return nil
}
