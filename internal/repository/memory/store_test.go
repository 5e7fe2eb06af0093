package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	internalErrors "github.com/tumbleweedd/eshop_saga/internal/lib/errors"
)

func newTestOrder(t *testing.T) *models.Order {
	t.Helper()

	order, err := models.NewOrder("buyer", []models.OrderItem{{ProductID: 1, UnitPrice: 100, Units: 2}},
		models.Address{City: "Berlin"}, models.PaymentInfo{}, time.Now())
	require.NoError(t, err)

	return order
}

func TestWithTxRollsBackEveryWrite(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	orders := NewOrderRepository(store)
	outbox := NewOutboxStore(store)
	order := newTestOrder(t)
	errBoom := errors.New("boom")

	err := store.WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, orders.Create(ctx, order))

		entry, err := models.NewOutboxEntry(models.NewGracePeriodConfirmedIntegrationEvent(order.ID()), uuid.New(), time.Now())
		require.NoError(t, err)
		require.NoError(t, outbox.Append(ctx, entry))

		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	_, err = orders.Order(ctx, order.ID())
	require.ErrorIs(t, err, internalErrors.ErrOrderNotFound)
	require.Empty(t, outbox.Entries(ctx))
}

func TestWithTxCommitsAndJoinsNested(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	orders := NewOrderRepository(store)
	order := newTestOrder(t)

	err := store.WithTx(ctx, func(ctx context.Context) error {
		return store.WithTx(ctx, func(ctx context.Context) error {
			return orders.Create(ctx, order)
		})
	})
	require.NoError(t, err)

	got, err := orders.Order(ctx, order.ID())
	require.NoError(t, err)
	require.Equal(t, order.Snapshot(), got.Snapshot())
}

func TestIdempotencyTryInsert(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore(NewStore())
	requestID := uuid.New()

	inserted, err := store.TryInsert(ctx, models.IdempotencyRecord{RequestID: requestID, Name: "a"})
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = store.TryInsert(ctx, models.IdempotencyRecord{RequestID: requestID, Name: "a"})
	require.NoError(t, err)
	require.False(t, inserted)

	inserted, err = store.TryInsert(ctx, models.IdempotencyRecord{RequestID: requestID, Name: "b"})
	require.NoError(t, err)
	require.True(t, inserted)
}

func TestOutboxClaimAndPublish(t *testing.T) {
	ctx := context.Background()
	outbox := NewOutboxStore(NewStore())
	transactionID := uuid.New()

	entry, err := models.NewOutboxEntry(models.NewGracePeriodConfirmedIntegrationEvent(uuid.New()), transactionID, time.Now())
	require.NoError(t, err)
	require.NoError(t, outbox.Append(ctx, entry))
	require.Error(t, outbox.Append(ctx, entry))

	pending, err := outbox.FetchPending(ctx, transactionID)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	staleBefore := time.Now().Add(-time.Minute)

	claimed, err := outbox.MarkInProgress(ctx, entry.EventID, staleBefore)
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = outbox.MarkInProgress(ctx, entry.EventID, staleBefore)
	require.NoError(t, err)
	require.False(t, claimed, "a fresh in-progress entry belongs to its claimer")

	retryable, err := outbox.FetchRetryable(ctx, staleBefore, 10)
	require.NoError(t, err)
	require.Empty(t, retryable)

	require.NoError(t, outbox.MarkPublished(ctx, entry.EventID))
	require.NoError(t, outbox.MarkFailed(ctx, entry.EventID))

	entries := outbox.Entries(ctx)
	require.Len(t, entries, 1)
	require.Equal(t, models.OutboxStatePublished, entries[0].State)
	require.Equal(t, 1, entries[0].TimesSent)

	require.ErrorIs(t, outbox.MarkPublished(ctx, uuid.New()), internalErrors.ErrOutboxEntryNotFound)
}

func TestFetchRetryableSkipsBusyTransactions(t *testing.T) {
	ctx := context.Background()
	outbox := NewOutboxStore(NewStore())
	busy, idle := uuid.New(), uuid.New()

	var busyFirst models.OutboxEntry
	for i, transactionID := range []uuid.UUID{busy, busy, idle} {
		entry, err := models.NewOutboxEntry(models.NewGracePeriodConfirmedIntegrationEvent(uuid.New()), transactionID, time.Now())
		require.NoError(t, err)
		require.NoError(t, outbox.Append(ctx, entry))
		if i == 0 {
			busyFirst = entry
		}
	}

	staleBefore := time.Now().Add(-time.Minute)
	claimed, err := outbox.MarkInProgress(ctx, busyFirst.EventID, staleBefore)
	require.NoError(t, err)
	require.True(t, claimed)

	entries, err := outbox.FetchRetryable(ctx, staleBefore, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, idle, entries[0].TransactionID)

	// Once the claim is older than the timeout the whole group is retryable.
	entries, err = outbox.FetchRetryable(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
}

func TestShipmentRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewShipmentRepository(NewStore())
	orderID := uuid.New()

	shipment, err := models.NewShipment(orderID, []int{1, 2}, nil, models.Address{}, time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, shipment))

	other, err := models.NewShipment(orderID, []int{1}, nil, models.Address{}, time.Now())
	require.NoError(t, err)
	require.ErrorIs(t, repo.Create(ctx, other), internalErrors.ErrShipmentAlreadyExists)

	require.NoError(t, shipment.Claim("s-1", "Sam", time.Now()))
	require.NoError(t, repo.Update(ctx, shipment))

	got, err := repo.ShipmentByOrder(ctx, orderID)
	require.NoError(t, err)
	require.Equal(t, models.ShipmentStatusShipperAssigned, got.Status())
	require.Len(t, got.History(), 2)

	require.Error(t, repo.Update(ctx, models.RestoreShipment(func() models.ShipmentSnapshot {
		s := got.Snapshot()
		s.History = s.History[:1]
		return s
	}())))

	_, err = repo.Shipment(ctx, uuid.New())
	require.ErrorIs(t, err, internalErrors.ErrShipmentNotFound)
}

func TestWarehouseRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewWarehouseRepository(NewStore())

	_, err := repo.Warehouse(ctx, 1)
	require.ErrorIs(t, err, internalErrors.ErrWarehouseNotFound)

	require.NoError(t, repo.SaveWarehouse(ctx, models.Warehouse{ID: 1, Name: "north"}))
	require.NoError(t, repo.SaveWarehouse(ctx, models.Warehouse{ID: 2, Name: "south"}))

	inventory, err := repo.Inventory(ctx, 1, 10)
	require.NoError(t, err)
	require.Zero(t, inventory.Quantity)

	require.NoError(t, repo.SaveInventory(ctx, models.WarehouseInventory{WarehouseID: 1, CatalogItemID: 10, Quantity: 3}))
	require.NoError(t, repo.SaveInventory(ctx, models.WarehouseInventory{WarehouseID: 2, CatalogItemID: 10, Quantity: 4}))
	require.ErrorIs(t, repo.SaveInventory(ctx, models.WarehouseInventory{WarehouseID: 2, CatalogItemID: 11, Quantity: -1}),
		internalErrors.ErrInsufficientStock)

	stock, err := repo.AvailableStock(ctx, []int{10, 11})
	require.NoError(t, err)
	require.Equal(t, map[int]int{10: 7, 11: 0}, stock)
}

func TestSubmittedBefore(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(NewStore())

	old := newTestOrder(t)
	require.NoError(t, repo.Create(ctx, old))

	validated := newTestOrder(t)
	require.NoError(t, validated.SetAwaitingValidation())
	require.NoError(t, repo.Create(ctx, validated))

	ids, err := repo.SubmittedBefore(ctx, time.Now().Add(time.Second), 10)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{old.ID()}, ids)

	ids, err = repo.SubmittedBefore(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Empty(t, ids)
}
