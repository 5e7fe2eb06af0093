package shipment

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	internalErrors "github.com/tumbleweedd/eshop_saga/internal/lib/errors"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

func newRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return New(logger.NewDiscard(), sqlx.NewDb(db, "postgres")), mock
}

func newShipment(t *testing.T) *models.Shipment {
	t.Helper()

	shipment, err := models.NewShipment(uuid.New(), []int{1, 2},
		[]models.OrderItemUnits{{ProductID: 5, Units: 2}}, models.Address{City: "Lyon"}, time.Now())
	require.NoError(t, err)

	return shipment
}

func TestCreate(t *testing.T) {
	tCases := []struct {
		name         string
		mockBehavior func(mock sqlmock.Sqlmock)
		wantErr      error
	}{
		{
			name: "ok",
			mockBehavior: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "shipment"`)).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "shipment_waypoint"`)).WillReturnResult(sqlmock.NewResult(0, 2))
				mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (shipment_uuid, seq) DO NOTHING`)).WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "second_shipment_for_order",
			mockBehavior: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "shipment"`)).WillReturnError(&pq.Error{Code: uniqueViolation})
			},
			wantErr: internalErrors.ErrShipmentAlreadyExists,
		},
	}

	for _, tCase := range tCases {
		t.Run(tCase.name, func(t *testing.T) {
			repo, mock := newRepository(t)
			tCase.mockBehavior(mock)

			err := repo.Create(context.Background(), newShipment(t))
			if tCase.wantErr != nil {
				require.ErrorIs(t, err, tCase.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpdateAppendsHistory(t *testing.T) {
	repo, mock := newRepository(t)
	shipment := newShipment(t)
	require.NoError(t, shipment.Claim("s-1", "Sam", time.Now()))

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "shipment" SET shipper_id = $1`)).
		WithArgs("s-1", "Sam", int(models.ShipmentStatusShipperAssigned), -1, shipment.ID()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "shipment_waypoint"`)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "shipment_status_history" (shipment_uuid, seq, status, at, warehouse_id, notes) VALUES ($1, $2, $3, $4, $5, $6),($7, $8, $9, $10, $11, $12)`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), shipment))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShipmentByOrder(t *testing.T) {
	repo, mock := newRepository(t)

	shipmentID, orderID := uuid.New(), uuid.New()
	createdAt := time.Now().UTC()
	origin := 1

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "shipment" s WHERE s.order_uuid = $1`)).
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows([]string{
			"uuid", "order_uuid", "shipper_id", "shipper_name", "status", "current_waypoint", "items", "address", "created_at",
		}).AddRow(shipmentID.String(), orderID.String(), "s-1", "Sam", int(models.ShipmentStatusPickedUpFromWarehouse), 0,
			[]byte(`[{"productId":5,"units":2}]`), []byte(`{"city":"Lyon"}`), createdAt))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "shipment_waypoint"`)).
		WillReturnRows(sqlmock.NewRows([]string{"sequence", "warehouse_id", "arrived_at", "departed_at"}).
			AddRow(0, 1, createdAt, nil).
			AddRow(1, 2, nil, nil))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "shipment_status_history"`)).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "status", "at", "warehouse_id", "notes"}).
			AddRow(0, int(models.ShipmentStatusCreated), createdAt, nil, "").
			AddRow(1, int(models.ShipmentStatusShipperAssigned), createdAt, nil, "").
			AddRow(2, int(models.ShipmentStatusPickedUpFromWarehouse), createdAt, origin, ""))

	shipment, err := repo.ShipmentByOrder(context.Background(), orderID)
	require.NoError(t, err)

	require.Equal(t, shipmentID, shipment.ID())
	require.Equal(t, models.ShipmentStatusPickedUpFromWarehouse, shipment.Status())
	require.Equal(t, []int{1, 2}, shipment.Route())
	require.Equal(t, 1, shipment.ReturnWarehouseID())
	require.Equal(t, []models.OrderItemUnits{{ProductID: 5, Units: 2}}, shipment.Items())
	require.Equal(t, "Lyon", shipment.Address().City)
	require.Len(t, shipment.History(), 3)
	require.Equal(t, &origin, shipment.History()[2].WarehouseID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShipmentNotFound(t *testing.T) {
	repo, mock := newRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "shipment" s WHERE s.uuid = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"uuid"}))

	_, err := repo.Shipment(context.Background(), uuid.New())
	require.ErrorIs(t, err, internalErrors.ErrShipmentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
