package outbox

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

type RelayConfig struct {
	SweepInterval     time.Duration
	BatchSize         int
	InProgressTimeout time.Duration
	PublishTimeout    time.Duration
}

type Relay struct {
	log       logger.Logger
	store     Store
	publisher Publisher
	cfg       RelayConfig
	now       func() time.Time
}

func NewRelay(log logger.Logger, store Store, publisher Publisher, cfg RelayConfig) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.InProgressTimeout <= 0 {
		cfg.InProgressTimeout = time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Second
	}

	return &Relay{
		log:       log,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

// PublishTransaction publishes the NotPublished entries of one committed unit
// of work in creation order.
func (r *Relay) PublishTransaction(ctx context.Context, transactionID uuid.UUID) error {
	const op = "outbox.Relay.PublishTransaction"

	entries, err := r.store.FetchPending(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("%s: fetch pending: %w", op, err)
	}

	if err = r.publishGroup(ctx, entries); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Sweep retries everything left behind by failed publishes or crashed relays.
// Entries are grouped per transaction; a failure stops its own group only.
func (r *Relay) Sweep(ctx context.Context) error {
	const op = "outbox.Relay.Sweep"

	started := r.now()
	defer func() {
		metrics.OutboxSweepDuration.Observe(time.Since(started).Seconds())
	}()

	entries, err := r.store.FetchRetryable(ctx, r.staleBefore(), r.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("%s: fetch retryable: %w", op, err)
	}

	if len(entries) == 0 {
		return nil
	}

	r.log.DebugContext(ctx, op, logger.Int("entries", len(entries)))

	var errs []error
	for _, group := range groupByTransaction(entries) {
		if err = r.publishGroup(ctx, group); err != nil {
			errs = append(errs, err)
		}
	}

	if err = errors.Join(errs...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Run sweeps on every tick until ctx is cancelled. A tick that already
// started is allowed to finish.
func (r *Relay) Run(ctx context.Context) error {
	const op = "outbox.Relay.Run"

	r.log.Info(op,
		logger.String("msg", "starting outbox relay"),
		logger.Duration("interval", r.cfg.SweepInterval),
		logger.Int("batch_size", r.cfg.BatchSize),
	)

	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		if err := r.Sweep(context.WithoutCancel(ctx)); err != nil {
			r.log.Error(op, logger.Err(err))
		}

		select {
		case <-ctx.Done():
			r.log.Info(op, logger.String("msg", "stopping outbox relay"))
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Relay) publishGroup(ctx context.Context, entries []models.OutboxEntry) error {
	const op = "outbox.Relay.publishGroup"

	for _, entry := range entries {
		claimed, err := r.store.MarkInProgress(ctx, entry.EventID, r.staleBefore())
		if err != nil {
			return fmt.Errorf("%s: claim %s: %w", op, entry.EventID, err)
		}

		if !claimed {
			// Another relay owns this entry; publishing the rest of the
			// transaction now could overtake it.
			r.log.DebugContext(ctx, op, logger.String("event_id", entry.EventID.String()))
			return nil
		}

		if err = r.publish(ctx, entry); err != nil {
			metrics.OutboxPublished.WithLabelValues(entry.TypeName, metrics.OutcomeFailure).Inc()

			r.log.WarnContext(ctx, op,
				logger.String("event_id", entry.EventID.String()),
				logger.String("type", entry.TypeName),
				logger.Err(err),
			)

			if markErr := r.store.MarkFailed(ctx, entry.EventID); markErr != nil {
				err = errors.Join(err, fmt.Errorf("mark failed: %w", markErr))
			}

			return fmt.Errorf("%s: publish %s: %w", op, entry.EventID, err)
		}

		metrics.OutboxPublished.WithLabelValues(entry.TypeName, metrics.OutcomeSuccess).Inc()

		if err = r.store.MarkPublished(ctx, entry.EventID); err != nil {
			// The event is out; leaving it InProgress only causes a
			// duplicate publish once it goes stale.
			return fmt.Errorf("%s: mark published %s: %w", op, entry.EventID, err)
		}
	}

	return nil
}

func (r *Relay) publish(ctx context.Context, entry models.OutboxEntry) error {
	if r.cfg.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.PublishTimeout)
		defer cancel()
	}

	return r.publisher.PublishRaw(ctx, entry.EventID.String(), entry.TypeName, entry.Payload)
}

func (r *Relay) staleBefore() time.Time {
	return r.now().Add(-r.cfg.InProgressTimeout).UTC()
}

// groupByTransaction keeps the relative order of entries and of groups.
func groupByTransaction(entries []models.OutboxEntry) [][]models.OutboxEntry {
	index := make(map[uuid.UUID]int)
	var groups [][]models.OutboxEntry

	for _, entry := range entries {
		i, ok := index[entry.TransactionID]
		if !ok {
			i = len(groups)
			index[entry.TransactionID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], entry)
	}

	return groups
}
