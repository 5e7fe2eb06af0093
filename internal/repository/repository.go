// Package repository assembles the storage of one service database, either
// on Postgres or in memory.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/tumbleweedd/eshop_saga/internal/database"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/internal/outbox"
	"github.com/tumbleweedd/eshop_saga/internal/repository/idempotency"
	"github.com/tumbleweedd/eshop_saga/internal/repository/memory"
	"github.com/tumbleweedd/eshop_saga/internal/repository/order"
	"github.com/tumbleweedd/eshop_saga/internal/repository/outBox"
	"github.com/tumbleweedd/eshop_saga/internal/repository/shipment"
	"github.com/tumbleweedd/eshop_saga/internal/repository/warehouse"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	Update(ctx context.Context, order *models.Order) error
	Order(ctx context.Context, orderUUID uuid.UUID) (*models.Order, error)
	OrdersByUUIDs(ctx context.Context, UUIDs []uuid.UUID) (map[uuid.UUID]models.OrderSnapshot, error)
	SubmittedBefore(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error)
}

type ShipmentRepository interface {
	Create(ctx context.Context, shipment *models.Shipment) error
	Update(ctx context.Context, shipment *models.Shipment) error
	Shipment(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, error)
	ShipmentByOrder(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error)
}

type WarehouseRepository interface {
	SaveWarehouse(ctx context.Context, warehouse models.Warehouse) error
	Warehouse(ctx context.Context, warehouseID int) (models.Warehouse, error)
	Inventory(ctx context.Context, warehouseID, catalogItemID int) (models.WarehouseInventory, error)
	SaveInventory(ctx context.Context, inventory models.WarehouseInventory) error
	AvailableStock(ctx context.Context, productIDs []int) (map[int]int, error)
}

type IdempotencyRepository interface {
	TryInsert(ctx context.Context, record models.IdempotencyRecord) (bool, error)
}

// Repository is everything stored in one service database. All members
// share the transaction opened through TxManager.
type Repository struct {
	TxManager   database.TxManager
	Outbox      outbox.Store
	Idempotency IdempotencyRepository
	Orders      OrderRepository
	Shipments   ShipmentRepository
	Warehouses  WarehouseRepository
}

func NewPostgres(log logger.Logger, db *sqlx.DB) *Repository {
	return &Repository{
		TxManager:   database.NewTxManager(db),
		Outbox:      outBox.New(log, db),
		Idempotency: idempotency.New(log, db),
		Orders:      order.NewOrderRepository(log, db),
		Shipments:   shipment.New(log, db),
		Warehouses:  warehouse.New(log, db),
	}
}

func NewMemory() *Repository {
	store := memory.NewStore()

	return &Repository{
		TxManager:   store,
		Outbox:      memory.NewOutboxStore(store),
		Idempotency: memory.NewIdempotencyStore(store),
		Orders:      memory.NewOrderRepository(store),
		Shipments:   memory.NewShipmentRepository(store),
		Warehouses:  memory.NewWarehouseRepository(store),
	}
}
