package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	internalErrors "github.com/tumbleweedd/eshop_saga/internal/lib/errors"
)

type OrderRepository struct {
	store *Store
}

func NewOrderRepository(store *Store) *OrderRepository {
	return &OrderRepository{store: store}
}

func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.orders[order.ID()]; ok {
			return fmt.Errorf("order %s already exists", order.ID())
		}

		st.orders[order.ID()] = order.Snapshot()
		return nil
	})
}

func (r *OrderRepository) Update(ctx context.Context, order *models.Order) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.orders[order.ID()]; !ok {
			return internalErrors.ErrOrderNotFound
		}

		st.orders[order.ID()] = order.Snapshot()
		return nil
	})
}

func (r *OrderRepository) Order(ctx context.Context, orderUUID uuid.UUID) (*models.Order, error) {
	var order *models.Order

	err := r.store.read(ctx, func(st *state) error {
		snapshot, ok := st.orders[orderUUID]
		if !ok {
			return internalErrors.ErrOrderNotFound
		}

		order = models.RestoreOrder(snapshot)
		return nil
	})

	return order, err
}

func (r *OrderRepository) OrdersByUUIDs(ctx context.Context, UUIDs []uuid.UUID) (map[uuid.UUID]models.OrderSnapshot, error) {
	orders := make(map[uuid.UUID]models.OrderSnapshot, len(UUIDs))

	err := r.store.read(ctx, func(st *state) error {
		for _, id := range UUIDs {
			if snapshot, ok := st.orders[id]; ok {
				orders[id] = snapshot
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(orders) == 0 {
		return nil, internalErrors.ErrOrderNotFound
	}

	return orders, nil
}

func (r *OrderRepository) SubmittedBefore(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error) {
	var snapshots []models.OrderSnapshot

	err := r.store.read(ctx, func(st *state) error {
		for _, snapshot := range st.orders {
			if snapshot.Status == models.OrderStatusSubmitted && snapshot.CreatedAt.Before(before) {
				snapshots = append(snapshots, snapshot)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.Before(snapshots[j].CreatedAt)
	})

	ids := make([]uuid.UUID, 0, len(snapshots))
	for _, snapshot := range snapshots {
		if limit > 0 && len(ids) >= limit {
			break
		}
		ids = append(ids, snapshot.ID)
	}

	return ids, nil
}
