package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/internal/idempotency"
	"github.com/tumbleweedd/eshop_saga/internal/outbox"
	"github.com/tumbleweedd/eshop_saga/internal/repository"
	"github.com/tumbleweedd/eshop_saga/internal/repository/memory"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

func TestCheckStock(t *testing.T) {
	tCases := []struct {
		name         string
		lines        []models.OrderItemUnits
		available    map[int]int
		wantRejected []models.OrderStockItem
	}{
		{
			name:      "all_covered",
			lines:     []models.OrderItemUnits{{ProductID: 1, Units: 2}, {ProductID: 2, Units: 1}},
			available: map[int]int{1: 2, 2: 10},
		},
		{
			name:         "one_short",
			lines:        []models.OrderItemUnits{{ProductID: 1, Units: 3}, {ProductID: 2, Units: 1}},
			available:    map[int]int{1: 2, 2: 10},
			wantRejected: []models.OrderStockItem{{ProductID: 1, HasStock: false}},
		},
		{
			name:         "every_short_line_listed",
			lines:        []models.OrderItemUnits{{ProductID: 1, Units: 1}, {ProductID: 2, Units: 1}},
			available:    map[int]int{},
			wantRejected: []models.OrderStockItem{{ProductID: 1, HasStock: false}, {ProductID: 2, HasStock: false}},
		},
	}

	for _, tCase := range tCases {
		t.Run(tCase.name, func(t *testing.T) {
			require.Equal(t, tCase.wantRejected, CheckStock(tCase.lines, tCase.available))
		})
	}
}

type fixture struct {
	repo    *repository.Repository
	service *StockConfirmationService
}

func newFixture(t *testing.T, stock map[int]int) *fixture {
	t.Helper()

	ctx := context.Background()
	log := logger.NewDiscard()
	repo := repository.NewMemory()

	require.NoError(t, repo.Warehouses.SaveWarehouse(ctx, models.Warehouse{ID: 1, Name: "main"}))
	for productID, quantity := range stock {
		require.NoError(t, repo.Warehouses.SaveInventory(ctx, models.WarehouseInventory{
			WarehouseID:   1,
			CatalogItemID: productID,
			Quantity:      quantity,
			LastUpdated:   time.Now(),
		}))
	}

	return &fixture{
		repo: repo,
		service: New(log,
			outbox.NewWriter(log, repo.TxManager, repo.Outbox, nil),
			idempotency.New(log, repo.Idempotency, repo.TxManager),
			repo.Warehouses,
		),
	}
}

func (f *fixture) entries(t *testing.T) []models.OutboxEntry {
	t.Helper()
	return f.repo.Outbox.(*memory.OutboxStore).Entries(context.Background())
}

func TestHandleAwaitingValidation(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.New()

	t.Run("confirmed", func(t *testing.T) {
		f := newFixture(t, map[int]int{1: 5})

		event := models.NewOrderStatusChangedToAwaitingValidationIntegrationEvent(orderID, "buyer-1",
			[]models.OrderItemUnits{{ProductID: 1, Units: 5}})
		require.NoError(t, f.service.HandleAwaitingValidation(ctx, event))

		entries := f.entries(t)
		require.Len(t, entries, 1)
		require.Equal(t, models.OrderStockConfirmedEvent, entries[0].TypeName)
	})

	t.Run("rejected", func(t *testing.T) {
		f := newFixture(t, map[int]int{1: 5, 2: 1})

		event := models.NewOrderStatusChangedToAwaitingValidationIntegrationEvent(orderID, "buyer-1",
			[]models.OrderItemUnits{{ProductID: 1, Units: 5}, {ProductID: 2, Units: 2}, {ProductID: 3, Units: 1}})
		require.NoError(t, f.service.HandleAwaitingValidation(ctx, event))

		entries := f.entries(t)
		require.Len(t, entries, 1)
		require.Equal(t, models.OrderStockRejectedEvent, entries[0].TypeName)

		var rejected models.OrderStockRejectedIntegrationEvent
		require.NoError(t, json.Unmarshal(entries[0].Payload, &rejected))
		require.Equal(t, orderID, rejected.OrderID)
		require.Equal(t, []int{2, 3}, rejected.RejectedProductIDs())
		require.Len(t, rejected.OrderStockItems, 2)
	})

	t.Run("rejection_lists_short_items_only", func(t *testing.T) {
		f := newFixture(t, map[int]int{1: 3, 2: 10})

		event := models.NewOrderStatusChangedToAwaitingValidationIntegrationEvent(orderID, "buyer-1",
			[]models.OrderItemUnits{{ProductID: 1, Units: 5}, {ProductID: 2, Units: 2}})
		require.NoError(t, f.service.HandleAwaitingValidation(ctx, event))

		entries := f.entries(t)
		require.Len(t, entries, 1)
		require.Equal(t, models.OrderStockRejectedEvent, entries[0].TypeName)

		var rejected models.OrderStockRejectedIntegrationEvent
		require.NoError(t, json.Unmarshal(entries[0].Payload, &rejected))
		require.Equal(t, []models.OrderStockItem{{ProductID: 1, HasStock: false}}, rejected.OrderStockItems)
	})

	t.Run("redelivery_suppressed", func(t *testing.T) {
		f := newFixture(t, map[int]int{1: 5})

		event := models.NewOrderStatusChangedToAwaitingValidationIntegrationEvent(orderID, "buyer-1",
			[]models.OrderItemUnits{{ProductID: 1, Units: 1}})
		require.NoError(t, f.service.HandleAwaitingValidation(ctx, event))
		require.NoError(t, f.service.HandleAwaitingValidation(ctx, event))

		require.Len(t, f.entries(t), 1)
	})
}

type brokenStock struct{}

func (brokenStock) AvailableStock(context.Context, []int) (map[int]int, error) {
	return nil, errors.New("connection reset")
}

func TestHandleAwaitingValidationInfrastructureError(t *testing.T) {
	ctx := context.Background()
	log := logger.NewDiscard()
	repo := repository.NewMemory()

	service := New(log,
		outbox.NewWriter(log, repo.TxManager, repo.Outbox, nil),
		idempotency.New(log, repo.Idempotency, repo.TxManager),
		brokenStock{},
	)

	event := models.NewOrderStatusChangedToAwaitingValidationIntegrationEvent(uuid.New(), "buyer-1",
		[]models.OrderItemUnits{{ProductID: 1, Units: 1}})
	require.Error(t, service.HandleAwaitingValidation(ctx, event))

	// the idempotency record rolled back, so the redelivery is processed
	service.stock = repo.Warehouses
	require.NoError(t, service.HandleAwaitingValidation(ctx, event))
	require.Len(t, repo.Outbox.(*memory.OutboxStore).Entries(ctx), 1)
}
