package models

import (
	"fmt"
	"time"

	internalErrors "github.com/tumbleweedd/eshop_saga/internal/lib/errors"
)

type Warehouse struct {
	ID       int    `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Location string `db:"location" json:"location"`
}

// WarehouseInventory is the stock of one catalog item in one warehouse.
// Quantity never goes negative.
type WarehouseInventory struct {
	WarehouseID   int       `db:"warehouse_id" json:"warehouseId"`
	CatalogItemID int       `db:"catalog_item_id" json:"catalogItemId"`
	Quantity      int       `db:"quantity" json:"quantity"`
	LastUpdated   time.Time `db:"last_updated" json:"lastUpdated"`
}

func (i *WarehouseInventory) Add(quantity int, now time.Time) error {
	if quantity <= 0 {
		return internalErrors.ErrInvalidQuantity
	}

	i.Quantity += quantity
	i.LastUpdated = now.UTC()
	return nil
}

func (i *WarehouseInventory) Remove(quantity int, now time.Time) error {
	if quantity <= 0 {
		return internalErrors.ErrInvalidQuantity
	}

	if quantity > i.Quantity {
		return fmt.Errorf("warehouse %d item %d: requested %d, available %d: %w",
			i.WarehouseID, i.CatalogItemID, quantity, i.Quantity, internalErrors.ErrInsufficientStock)
	}

	i.Quantity -= quantity
	i.LastUpdated = now.UTC()
	return nil
}
