package graceperiod

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/internal/outbox"
	"github.com/tumbleweedd/eshop_saga/internal/repository"
	"github.com/tumbleweedd/eshop_saga/internal/repository/memory"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
	"go.uber.org/goleak"
)

func TestTickConfirmsExpiredOrders(t *testing.T) {
	ctx := context.Background()
	log := logger.NewDiscard()
	repo := repository.NewMemory()
	now := time.Now()

	expired, err := models.NewOrder("buyer-1", []models.OrderItem{{ProductID: 1, Units: 1}}, models.Address{}, models.PaymentInfo{}, now.Add(-2*time.Minute))
	require.NoError(t, err)
	fresh, err := models.NewOrder("buyer-2", []models.OrderItem{{ProductID: 1, Units: 1}}, models.Address{}, models.PaymentInfo{}, now)
	require.NoError(t, err)
	validated, err := models.NewOrder("buyer-3", []models.OrderItem{{ProductID: 1, Units: 1}}, models.Address{}, models.PaymentInfo{}, now.Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, validated.SetAwaitingValidation())

	for _, order := range []*models.Order{expired, fresh, validated} {
		require.NoError(t, repo.Orders.Create(ctx, order))
	}

	poller := New(log, Config{GracePeriod: time.Minute}, repo.Orders, outbox.NewWriter(log, repo.TxManager, repo.Outbox, nil))
	poller.now = func() time.Time { return now }

	require.NoError(t, poller.Tick(ctx))

	entries := repo.Outbox.(*memory.OutboxStore).Entries(ctx)
	require.Len(t, entries, 1)
	require.Equal(t, models.GracePeriodConfirmedEvent, entries[0].TypeName)

	var event models.GracePeriodConfirmedIntegrationEvent
	require.NoError(t, json.Unmarshal(entries[0].Payload, &event))
	require.Equal(t, expired.ID(), event.OrderID)
	require.Equal(t, entries[0].EventID, event.ID)
}

type failingFinder struct {
	calls atomic.Int32
}

func (f *failingFinder) SubmittedBefore(context.Context, time.Time, int) ([]uuid.UUID, error) {
	f.calls.Add(1)
	return nil, errors.New("connection refused")
}

func TestRunSurvivesTickErrorsAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	log := logger.NewDiscard()
	repo := repository.NewMemory()
	finder := &failingFinder{}

	poller := New(log, Config{GracePeriod: time.Minute, PollInterval: 5 * time.Millisecond}, finder,
		outbox.NewWriter(log, repo.TxManager, repo.Outbox, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- poller.Run(ctx) }()

	require.Eventually(t, func() bool { return finder.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
