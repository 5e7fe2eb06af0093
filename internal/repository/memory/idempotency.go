package memory

import (
	"context"

	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
)

type IdempotencyStore struct {
	store *Store
}

func NewIdempotencyStore(store *Store) *IdempotencyStore {
	return &IdempotencyStore{store: store}
}

func (r *IdempotencyStore) TryInsert(ctx context.Context, record models.IdempotencyRecord) (bool, error) {
	inserted := false

	err := r.store.write(ctx, func(st *state) error {
		key := idempotencyKey{requestID: record.RequestID, name: record.Name}
		if _, ok := st.idempotency[key]; ok {
			return nil
		}

		st.idempotency[key] = record
		inserted = true
		return nil
	})

	return inserted, err
}
