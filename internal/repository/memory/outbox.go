package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	internalErrors "github.com/tumbleweedd/eshop_saga/internal/lib/errors"
)

type OutboxStore struct {
	store *Store
	now   func() time.Time
}

func NewOutboxStore(store *Store) *OutboxStore {
	return &OutboxStore{store: store, now: time.Now}
}

func (r *OutboxStore) Append(ctx context.Context, entry models.OutboxEntry) error {
	return r.store.write(ctx, func(st *state) error {
		for _, existing := range st.outbox {
			if existing.EventID == entry.EventID {
				return fmt.Errorf("outbox entry %s already exists", entry.EventID)
			}
		}

		st.outbox = append(st.outbox, entry)
		return nil
	})
}

func (r *OutboxStore) FetchPending(ctx context.Context, transactionID uuid.UUID) ([]models.OutboxEntry, error) {
	var entries []models.OutboxEntry

	err := r.store.read(ctx, func(st *state) error {
		for _, entry := range st.outbox {
			if entry.TransactionID == transactionID && entry.State == models.OutboxStateNotPublished {
				entries = append(entries, entry)
			}
		}
		return nil
	})

	return entries, err
}

func (r *OutboxStore) FetchRetryable(ctx context.Context, staleBefore time.Time, limit int) ([]models.OutboxEntry, error) {
	var entries []models.OutboxEntry

	err := r.store.read(ctx, func(st *state) error {
		busy := make(map[uuid.UUID]bool)
		for _, entry := range st.outbox {
			if entry.State == models.OutboxStateInProgress && !stale(entry, staleBefore) {
				busy[entry.TransactionID] = true
			}
		}

		for _, entry := range st.outbox {
			if len(entries) >= limit {
				break
			}
			if busy[entry.TransactionID] {
				continue
			}
			if retryable(entry, staleBefore) {
				entries = append(entries, entry)
			}
		}
		return nil
	})

	return entries, err
}

func (r *OutboxStore) MarkInProgress(ctx context.Context, eventID uuid.UUID, staleBefore time.Time) (bool, error) {
	claimed := false

	err := r.update(ctx, eventID, func(entry *models.OutboxEntry) {
		if !retryable(*entry, staleBefore) {
			return
		}

		now := r.now().UTC()
		entry.State = models.OutboxStateInProgress
		entry.TimesSent++
		entry.LastAttemptAt = &now
		claimed = true
	})

	return claimed, err
}

func (r *OutboxStore) MarkPublished(ctx context.Context, eventID uuid.UUID) error {
	return r.update(ctx, eventID, func(entry *models.OutboxEntry) {
		entry.State = models.OutboxStatePublished
	})
}

func (r *OutboxStore) MarkFailed(ctx context.Context, eventID uuid.UUID) error {
	return r.update(ctx, eventID, func(entry *models.OutboxEntry) {
		if entry.State == models.OutboxStateInProgress {
			entry.State = models.OutboxStatePublishedFailed
		}
	})
}

// Entries returns every stored entry in creation order.
func (r *OutboxStore) Entries(ctx context.Context) []models.OutboxEntry {
	var entries []models.OutboxEntry

	_ = r.store.read(ctx, func(st *state) error {
		entries = append(entries, st.outbox...)
		return nil
	})

	return entries
}

func (r *OutboxStore) update(ctx context.Context, eventID uuid.UUID, fn func(entry *models.OutboxEntry)) error {
	return r.store.write(ctx, func(st *state) error {
		for i := range st.outbox {
			if st.outbox[i].EventID != eventID {
				continue
			}

			if st.outbox[i].State == models.OutboxStatePublished {
				return nil
			}

			fn(&st.outbox[i])
			return nil
		}

		return fmt.Errorf("%s: %w", eventID, internalErrors.ErrOutboxEntryNotFound)
	})
}

func retryable(entry models.OutboxEntry, staleBefore time.Time) bool {
	switch entry.State {
	case models.OutboxStateNotPublished, models.OutboxStatePublishedFailed:
		return true
	case models.OutboxStateInProgress:
		return stale(entry, staleBefore)
	default:
		return false
	}
}

func stale(entry models.OutboxEntry, staleBefore time.Time) bool {
	return entry.LastAttemptAt == nil || entry.LastAttemptAt.Before(staleBefore)
}
