package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	internalErrors "github.com/tumbleweedd/eshop_saga/internal/lib/errors"
)

type ShipmentRepository struct {
	store *Store
}

func NewShipmentRepository(store *Store) *ShipmentRepository {
	return &ShipmentRepository{store: store}
}

func (r *ShipmentRepository) Create(ctx context.Context, shipment *models.Shipment) error {
	return r.store.write(ctx, func(st *state) error {
		for _, existing := range st.shipments {
			if existing.OrderID == shipment.OrderID() {
				return fmt.Errorf("order %s: %w", shipment.OrderID(), internalErrors.ErrShipmentAlreadyExists)
			}
		}

		st.shipments[shipment.ID()] = shipment.Snapshot()
		return nil
	})
}

// Update stores the new state. The stored history must be a prefix of the new
// one: entries are only ever appended.
func (r *ShipmentRepository) Update(ctx context.Context, shipment *models.Shipment) error {
	return r.store.write(ctx, func(st *state) error {
		existing, ok := st.shipments[shipment.ID()]
		if !ok {
			return internalErrors.ErrShipmentNotFound
		}

		snapshot := shipment.Snapshot()
		if len(snapshot.History) < len(existing.History) {
			return fmt.Errorf("shipment %s: status history cannot shrink", shipment.ID())
		}

		st.shipments[shipment.ID()] = snapshot
		return nil
	})
}

func (r *ShipmentRepository) Shipment(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, error) {
	var shipment *models.Shipment

	err := r.store.read(ctx, func(st *state) error {
		snapshot, ok := st.shipments[shipmentID]
		if !ok {
			return internalErrors.ErrShipmentNotFound
		}

		shipment = models.RestoreShipment(snapshot)
		return nil
	})

	return shipment, err
}

func (r *ShipmentRepository) ShipmentByOrder(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	var shipment *models.Shipment

	err := r.store.read(ctx, func(st *state) error {
		for _, snapshot := range st.shipments {
			if snapshot.OrderID == orderID {
				shipment = models.RestoreShipment(snapshot)
				return nil
			}
		}
		return internalErrors.ErrShipmentNotFound
	})

	return shipment, err
}
