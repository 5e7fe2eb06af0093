package memory

import (
	"context"

	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	internalErrors "github.com/tumbleweedd/eshop_saga/internal/lib/errors"
)

type WarehouseRepository struct {
	store *Store
}

func NewWarehouseRepository(store *Store) *WarehouseRepository {
	return &WarehouseRepository{store: store}
}

func (r *WarehouseRepository) SaveWarehouse(ctx context.Context, warehouse models.Warehouse) error {
	return r.store.write(ctx, func(st *state) error {
		st.warehouses[warehouse.ID] = warehouse
		return nil
	})
}

func (r *WarehouseRepository) Warehouse(ctx context.Context, warehouseID int) (models.Warehouse, error) {
	var warehouse models.Warehouse

	err := r.store.read(ctx, func(st *state) error {
		w, ok := st.warehouses[warehouseID]
		if !ok {
			return internalErrors.ErrWarehouseNotFound
		}

		warehouse = w
		return nil
	})

	return warehouse, err
}

// Inventory returns an empty record when the item was never stocked.
func (r *WarehouseRepository) Inventory(ctx context.Context, warehouseID, catalogItemID int) (models.WarehouseInventory, error) {
	inventory := models.WarehouseInventory{WarehouseID: warehouseID, CatalogItemID: catalogItemID}

	err := r.store.read(ctx, func(st *state) error {
		if existing, ok := st.inventory[inventoryKey{warehouseID, catalogItemID}]; ok {
			inventory = existing
		}
		return nil
	})

	return inventory, err
}

func (r *WarehouseRepository) SaveInventory(ctx context.Context, inventory models.WarehouseInventory) error {
	return r.store.write(ctx, func(st *state) error {
		if inventory.Quantity < 0 {
			return internalErrors.ErrInsufficientStock
		}

		st.inventory[inventoryKey{inventory.WarehouseID, inventory.CatalogItemID}] = inventory
		return nil
	})
}

// AvailableStock sums the quantity of each product over all warehouses.
func (r *WarehouseRepository) AvailableStock(ctx context.Context, productIDs []int) (map[int]int, error) {
	stock := make(map[int]int, len(productIDs))

	err := r.store.read(ctx, func(st *state) error {
		wanted := make(map[int]bool, len(productIDs))
		for _, id := range productIDs {
			wanted[id] = true
			stock[id] = 0
		}

		for key, inventory := range st.inventory {
			if wanted[key.catalogItemID] {
				stock[key.catalogItemID] += inventory.Quantity
			}
		}
		return nil
	})

	return stock, err
}
