package ship

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tumbleweedd/eshop_saga/internal/cache_impl"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/internal/idempotency"
	internalErrors "github.com/tumbleweedd/eshop_saga/internal/lib/errors"
	"github.com/tumbleweedd/eshop_saga/internal/outbox"
	"github.com/tumbleweedd/eshop_saga/internal/repository"
	"github.com/tumbleweedd/eshop_saga/internal/repository/memory"
	orderService "github.com/tumbleweedd/eshop_saga/internal/services/order"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

func TestShip(t *testing.T) {
	paid := func(t *testing.T, order *models.Order) {
		require.NoError(t, order.SetAwaitingValidation())
		require.NoError(t, order.SetStockConfirmed())
		require.NoError(t, order.SetPaid())
	}

	tCases := []struct {
		name        string
		prepare     func(t *testing.T, order *models.Order)
		wantErr     error
		want        models.OrderStatus
		wantEntries int
	}{
		{
			name:        "paid",
			prepare:     paid,
			want:        models.OrderStatusShipped,
			wantEntries: 1,
		},
		{
			name: "stock_confirmed",
			prepare: func(t *testing.T, order *models.Order) {
				require.NoError(t, order.SetAwaitingValidation())
				require.NoError(t, order.SetStockConfirmed())
			},
			wantErr: internalErrors.ErrInvalidStatusTransition,
			want:    models.OrderStatusStockConfirmed,
		},
		{
			name: "cancelled",
			prepare: func(t *testing.T, order *models.Order) {
				require.NoError(t, order.Cancel())
			},
			wantErr: internalErrors.ErrInvalidStatusTransition,
			want:    models.OrderStatusCancelled,
		},
	}

	for _, tCase := range tCases {
		t.Run(tCase.name, func(t *testing.T) {
			ctx := context.Background()
			log := logger.NewDiscard()
			repo := repository.NewMemory()

			order, err := models.NewOrder("buyer-1", []models.OrderItem{{ProductID: 1, Units: 1}},
				models.Address{}, models.PaymentInfo{}, time.Now())
			require.NoError(t, err)
			tCase.prepare(t, order)
			require.NoError(t, repo.Orders.Create(ctx, order))

			processor := orderService.NewProcessor(log,
				outbox.NewWriter(log, repo.TxManager, repo.Outbox, nil),
				idempotency.New(log, repo.Idempotency, repo.TxManager),
				repo.Orders,
				cache_impl.NewOrderCache(1, time.Minute, log),
			)
			service := New(log, processor)
			requestID := uuid.New()

			result, err := service.Ship(ctx, requestID, order.ID())
			if tCase.wantErr != nil {
				require.ErrorIs(t, err, tCase.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, idempotency.Accepted, result)

				result, err = service.Ship(ctx, requestID, order.ID())
				require.NoError(t, err)
				require.Equal(t, idempotency.AlreadyProcessed, result)
			}

			stored, err := repo.Orders.Order(ctx, order.ID())
			require.NoError(t, err)
			require.Equal(t, tCase.want, stored.Status())

			entries := repo.Outbox.(*memory.OutboxStore).Entries(ctx)
			require.Len(t, entries, tCase.wantEntries)
			if tCase.wantEntries > 0 {
				require.Equal(t, models.OrderStatusChangedToShippedEvent, entries[0].TypeName)
			}
		})
	}
}
