// Package warehouse keeps per-warehouse stock. It restores the goods of
// cancelled shipments and takes manual stock adjustments.
package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/internal/eventbus"
	"github.com/tumbleweedd/eshop_saga/internal/idempotency"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

const (
	AddStockCommand    = "AddStock"
	RemoveStockCommand = "RemoveStock"
)

type guard interface {
	Execute(ctx context.Context, requestID uuid.UUID, name string, fn func(ctx context.Context) error) (idempotency.Result, error)
}

type warehouseRepository interface {
	Warehouse(ctx context.Context, warehouseID int) (models.Warehouse, error)
	Inventory(ctx context.Context, warehouseID, catalogItemID int) (models.WarehouseInventory, error)
	SaveInventory(ctx context.Context, inventory models.WarehouseInventory) error
}

type Service struct {
	log   logger.Logger
	guard guard
	repo  warehouseRepository
	now   func() time.Time
}

func New(log logger.Logger, guard guard, repo warehouseRepository) *Service {
	return &Service{
		log:   log,
		guard: guard,
		repo:  repo,
		now:   time.Now,
	}
}

func (s *Service) Register(bus *eventbus.Bus) {
	eventbus.SubscribeTyped(bus, models.ShipmentCancelledEvent, s.HandleShipmentCancelled)
}

// HandleShipmentCancelled adds the shipment's goods back to the return
// warehouse. The additions are not idempotent themselves, so the whole
// restock runs once per event id. A missing warehouse stops the restock and
// the event is acknowledged.
func (s *Service) HandleShipmentCancelled(ctx context.Context, e *models.ShipmentCancelledIntegrationEvent) error {
	const op = "services.warehouse.Service.HandleShipmentCancelled"

	result, err := s.guard.Execute(ctx, e.ID, e.Type, func(ctx context.Context) error {
		if _, err := s.repo.Warehouse(ctx, e.ReturnWarehouseID); err != nil {
			return err
		}

		for _, item := range e.OrderItems {
			if err := s.adjust(ctx, e.ReturnWarehouseID, item.ProductID, func(inventory *models.WarehouseInventory) error {
				return inventory.Add(item.Units, s.now())
			}); err != nil {
				return err
			}
		}

		return nil
	})
	if err == nil && result == idempotency.Accepted {
		s.log.InfoContext(ctx, op,
			logger.String("shipment_id", e.ShipmentID.String()),
			logger.Int("warehouse_id", e.ReturnWarehouseID),
			logger.Int("items", len(e.OrderItems)),
		)
	}

	return eventbus.Settle(ctx, s.log, op, e.ID.String(), err)
}

func (s *Service) AddStock(ctx context.Context, requestID uuid.UUID, warehouseID, catalogItemID, quantity int) (idempotency.Result, error) {
	const op = "services.warehouse.Service.AddStock"

	return s.command(ctx, op, requestID, AddStockCommand, warehouseID, catalogItemID, func(inventory *models.WarehouseInventory) error {
		return inventory.Add(quantity, s.now())
	})
}

// RemoveStock fails with ErrInsufficientStock rather than going below zero.
func (s *Service) RemoveStock(ctx context.Context, requestID uuid.UUID, warehouseID, catalogItemID, quantity int) (idempotency.Result, error) {
	const op = "services.warehouse.Service.RemoveStock"

	return s.command(ctx, op, requestID, RemoveStockCommand, warehouseID, catalogItemID, func(inventory *models.WarehouseInventory) error {
		return inventory.Remove(quantity, s.now())
	})
}

func (s *Service) Inventory(ctx context.Context, warehouseID, catalogItemID int) (models.WarehouseInventory, error) {
	const op = "services.warehouse.Service.Inventory"

	if _, err := s.repo.Warehouse(ctx, warehouseID); err != nil {
		return models.WarehouseInventory{}, fmt.Errorf("%s: %w", op, err)
	}

	inventory, err := s.repo.Inventory(ctx, warehouseID, catalogItemID)
	if err != nil {
		return models.WarehouseInventory{}, fmt.Errorf("%s: %w", op, err)
	}

	return inventory, nil
}

func (s *Service) command(
	ctx context.Context,
	op string,
	requestID uuid.UUID,
	name string,
	warehouseID, catalogItemID int,
	change func(inventory *models.WarehouseInventory) error,
) (idempotency.Result, error) {
	result, err := s.guard.Execute(ctx, requestID, name, func(ctx context.Context) error {
		if _, err := s.repo.Warehouse(ctx, warehouseID); err != nil {
			return err
		}

		return s.adjust(ctx, warehouseID, catalogItemID, change)
	})
	if err != nil {
		s.log.WarnContext(ctx, op, logger.Int("warehouse_id", warehouseID), logger.Int("catalog_item_id", catalogItemID), logger.Err(err))
		return result, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

// adjust reads the row locked for update, applies change and writes it back.
func (s *Service) adjust(
	ctx context.Context,
	warehouseID, catalogItemID int,
	change func(inventory *models.WarehouseInventory) error,
) error {
	inventory, err := s.repo.Inventory(ctx, warehouseID, catalogItemID)
	if err != nil {
		return err
	}

	if err = change(&inventory); err != nil {
		return err
	}

	return s.repo.SaveInventory(ctx, inventory)
}
