package warehouse

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/tumbleweedd/eshop_saga/internal/database"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	internalErrors "github.com/tumbleweedd/eshop_saga/internal/lib/errors"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

func newRepository(t *testing.T) (*Repository, *sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sqlxDB := sqlx.NewDb(db, "postgres")

	return New(logger.NewDiscard(), sqlxDB), sqlxDB, mock
}

func TestWarehouse(t *testing.T) {
	tCases := []struct {
		name    string
		rows    *sqlmock.Rows
		want    models.Warehouse
		wantErr error
	}{
		{
			name: "found",
			rows: sqlmock.NewRows([]string{"id", "name", "location"}).AddRow(3, "north", "Oslo"),
			want: models.Warehouse{ID: 3, Name: "north", Location: "Oslo"},
		},
		{
			name:    "missing",
			rows:    sqlmock.NewRows([]string{"id", "name", "location"}),
			wantErr: internalErrors.ErrWarehouseNotFound,
		},
	}

	for _, tCase := range tCases {
		t.Run(tCase.name, func(t *testing.T) {
			repo, _, mock := newRepository(t)

			mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, location FROM "warehouse" WHERE id = $1`)).
				WithArgs(3).
				WillReturnRows(tCase.rows)

			got, err := repo.Warehouse(context.Background(), 3)
			if tCase.wantErr != nil {
				require.ErrorIs(t, err, tCase.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, tCase.want, got)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestInventoryReadModifyWrite(t *testing.T) {
	repo, db, mock := newRepository(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (warehouse_id, catalog_item_id) DO NOTHING`)).
		WithArgs(1, 10, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE warehouse_id = $1 AND catalog_item_id = $2 FOR UPDATE`)).
		WithArgs(1, 10).
		WillReturnRows(sqlmock.NewRows([]string{"warehouse_id", "catalog_item_id", "quantity", "last_updated"}).
			AddRow(1, 10, 4, now))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "warehouse_inventory"`)).
		WithArgs(1, 10, 9, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := database.NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
		inventory, err := repo.Inventory(ctx, 1, 10)
		if err != nil {
			return err
		}

		if err = inventory.Add(5, now); err != nil {
			return err
		}

		return repo.SaveInventory(ctx, inventory)
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// A first restock of an item creates the row before locking it, so a
// concurrent restock waits on the lock and adds on top of the first one.
func TestInventoryFirstStockLocksCreatedRow(t *testing.T) {
	repo, db, mock := newRepository(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`VALUES ($1, $2, 0, $3)`)+`\s+`+regexp.QuoteMeta(`ON CONFLICT (warehouse_id, catalog_item_id) DO NOTHING`)).
		WithArgs(5, 9, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE warehouse_id = $1 AND catalog_item_id = $2 FOR UPDATE`)).
		WithArgs(5, 9).
		WillReturnRows(sqlmock.NewRows([]string{"warehouse_id", "catalog_item_id", "quantity", "last_updated"}).
			AddRow(5, 9, 0, now))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "warehouse_inventory"`)).
		WithArgs(5, 9, 4, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := database.NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
		inventory, err := repo.Inventory(ctx, 5, 9)
		if err != nil {
			return err
		}

		if err = inventory.Add(4, now); err != nil {
			return err
		}

		return repo.SaveInventory(ctx, inventory)
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryNeverStocked(t *testing.T) {
	repo, _, mock := newRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "warehouse_inventory"`)).
		WillReturnRows(sqlmock.NewRows([]string{"warehouse_id", "catalog_item_id", "quantity", "last_updated"}))

	inventory, err := repo.Inventory(context.Background(), 2, 20)
	require.NoError(t, err)
	require.Equal(t, models.WarehouseInventory{WarehouseID: 2, CatalogItemID: 20}, inventory)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveInventoryRejectsNegativeQuantity(t *testing.T) {
	repo, _, mock := newRepository(t)

	err := repo.SaveInventory(context.Background(), models.WarehouseInventory{WarehouseID: 1, CatalogItemID: 1, Quantity: -1})
	require.ErrorIs(t, err, internalErrors.ErrInsufficientStock)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailableStock(t *testing.T) {
	repo, _, mock := newRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE catalog_item_id = ANY($1) GROUP BY catalog_item_id`)).
		WillReturnRows(sqlmock.NewRows([]string{"catalog_item_id", "quantity"}).AddRow(1, 12))

	stock, err := repo.AvailableStock(context.Background(), []int{1, 2})
	require.NoError(t, err)
	require.Equal(t, map[int]int{1: 12, 2: 0}, stock)
	require.NoError(t, mock.ExpectationsWereMet())
}
