package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/tumbleweedd/eshop_saga/internal/database"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	internalErrors "github.com/tumbleweedd/eshop_saga/internal/lib/errors"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

type Repository struct {
	log logger.Logger
	db  *sqlx.DB
}

func New(log logger.Logger, db *sqlx.DB) *Repository {
	return &Repository{log: log, db: db}
}

func (r *Repository) SaveWarehouse(ctx context.Context, warehouse models.Warehouse) error {
	const op = "repository.warehouse.SaveWarehouse"

	const query = `INSERT INTO "warehouse" (id, name, location) VALUES (:id, :name, :location)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, location = EXCLUDED.location`

	if _, err := sqlx.NamedExecContext(ctx, database.GetTx(ctx, r.db), query, warehouse); err != nil {
		r.log.Error(op, logger.Err(err))
		return fmt.Errorf("%s: execute statement: %w", op, err)
	}

	return nil
}

func (r *Repository) Warehouse(ctx context.Context, warehouseID int) (models.Warehouse, error) {
	const op = "repository.warehouse.Warehouse"

	const query = `SELECT id, name, location FROM "warehouse" WHERE id = $1`

	var warehouse models.Warehouse
	if err := database.GetTx(ctx, r.db).GetContext(ctx, &warehouse, query, warehouseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Warehouse{}, fmt.Errorf("warehouse %d: %w", warehouseID, internalErrors.ErrWarehouseNotFound)
		}
		r.log.Error(op, logger.Err(err))
		return models.Warehouse{}, fmt.Errorf("%s: execute statement: %w", op, err)
	}

	return warehouse, nil
}

// Inventory returns an empty record when the item was never stocked in the
// warehouse. Inside a transaction the row is created with zero quantity if
// missing and locked until commit, so concurrent adjustments of a new item
// serialize on it instead of both reading zero.
func (r *Repository) Inventory(ctx context.Context, warehouseID, catalogItemID int) (models.WarehouseInventory, error) {
	const op = "repository.warehouse.Inventory"

	q := database.GetTx(ctx, r.db)

	if database.InTx(ctx) {
		const ensureQuery = `INSERT INTO "warehouse_inventory" (warehouse_id, catalog_item_id, quantity, last_updated)
			VALUES ($1, $2, 0, $3)
			ON CONFLICT (warehouse_id, catalog_item_id) DO NOTHING`

		if _, err := q.ExecContext(ctx, ensureQuery, warehouseID, catalogItemID, time.Now().UTC()); err != nil {
			r.log.Error(op, logger.Err(err))
			return models.WarehouseInventory{}, fmt.Errorf("%s: ensure row: %w", op, err)
		}
	}

	query := `SELECT warehouse_id, catalog_item_id, quantity, last_updated FROM "warehouse_inventory"
		WHERE warehouse_id = $1 AND catalog_item_id = $2` + database.ForUpdate(ctx)

	var inventory models.WarehouseInventory
	err := q.GetContext(ctx, &inventory, query, warehouseID, catalogItemID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.WarehouseInventory{WarehouseID: warehouseID, CatalogItemID: catalogItemID}, nil
	case err != nil:
		r.log.Error(op, logger.Err(err))
		return models.WarehouseInventory{}, fmt.Errorf("%s: execute statement: %w", op, err)
	}

	return inventory, nil
}

func (r *Repository) SaveInventory(ctx context.Context, inventory models.WarehouseInventory) error {
	const op = "repository.warehouse.SaveInventory"

	if inventory.Quantity < 0 {
		return internalErrors.ErrInsufficientStock
	}

	const query = `INSERT INTO "warehouse_inventory" (warehouse_id, catalog_item_id, quantity, last_updated)
		VALUES (:warehouse_id, :catalog_item_id, :quantity, :last_updated)
		ON CONFLICT (warehouse_id, catalog_item_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, last_updated = EXCLUDED.last_updated`

	if _, err := sqlx.NamedExecContext(ctx, database.GetTx(ctx, r.db), query, inventory); err != nil {
		r.log.Error(op, logger.Err(err))
		return fmt.Errorf("%s: execute statement: %w", op, err)
	}

	return nil
}

// AvailableStock sums the quantity of each product over all warehouses.
// Products without any inventory row are reported with zero.
func (r *Repository) AvailableStock(ctx context.Context, productIDs []int) (map[int]int, error) {
	const op = "repository.warehouse.AvailableStock"

	const query = `SELECT catalog_item_id, COALESCE(SUM(quantity), 0) AS quantity FROM "warehouse_inventory"
		WHERE catalog_item_id = ANY($1)
		GROUP BY catalog_item_id`

	ids := make(pq.Int64Array, 0, len(productIDs))
	for _, id := range productIDs {
		ids = append(ids, int64(id))
	}

	var rows []struct {
		CatalogItemID int `db:"catalog_item_id"`
		Quantity      int `db:"quantity"`
	}
	if err := database.GetTx(ctx, r.db).SelectContext(ctx, &rows, query, ids); err != nil {
		r.log.Error(op, logger.Err(err))
		return nil, fmt.Errorf("%s: execute statement: %w", op, err)
	}

	stock := make(map[int]int, len(productIDs))
	for _, id := range productIDs {
		stock[id] = 0
	}
	for _, row := range rows {
		stock[row.CatalogItemID] = row.Quantity
	}

	return stock, nil
}
