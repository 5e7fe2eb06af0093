// Package shipment owns the shipment lifecycle: it creates a shipment for
// every paid order and moves it along its route on shipper commands.
package shipment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/internal/idempotency"
	internalErrors "github.com/tumbleweedd/eshop_saga/internal/lib/errors"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

const (
	ClaimCommand           = "ClaimShipment"
	PickUpCommand          = "PickUpShipment"
	DepartCommand          = "DepartToNextWarehouse"
	ArriveCommand          = "ArriveAtWarehouse"
	StartDeliveryCommand   = "StartDelivery"
	ConfirmDeliveryCommand = "ConfirmDelivery"
	CancelCommand          = "CancelShipment"
)

type unitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) ([]models.Event, error)) error
}

type guard interface {
	TryBegin(ctx context.Context, requestID uuid.UUID, name string) (idempotency.Result, error)
}

type shipmentRepository interface {
	Create(ctx context.Context, shipment *models.Shipment) error
	Update(ctx context.Context, shipment *models.Shipment) error
	Shipment(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, error)
	ShipmentByOrder(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error)
}

type Service struct {
	log   logger.Logger
	uow   unitOfWork
	guard guard
	repo  shipmentRepository
	route []int
	now   func() time.Time
}

// New builds the shipping service. route is the warehouse list every new
// shipment travels through, origin first.
func New(log logger.Logger, uow unitOfWork, guard guard, repo shipmentRepository, route []int) *Service {
	return &Service{
		log:   log,
		uow:   uow,
		guard: guard,
		repo:  repo,
		route: append([]int(nil), route...),
		now:   time.Now,
	}
}

func (s *Service) Shipment(ctx context.Context, shipmentID uuid.UUID) (models.ShipmentSnapshot, error) {
	const op = "services.shipment.Service.Shipment"

	shipment, err := s.repo.Shipment(ctx, shipmentID)
	if err != nil {
		return models.ShipmentSnapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	return shipment.Snapshot(), nil
}

func (s *Service) Claim(ctx context.Context, requestID, shipmentID uuid.UUID, shipperID, shipperName string) (idempotency.Result, error) {
	return s.apply(ctx, requestID, ClaimCommand, shipmentID, func(shipment *models.Shipment) error {
		return shipment.Claim(shipperID, shipperName, s.now())
	})
}

func (s *Service) PickUp(ctx context.Context, requestID, shipmentID uuid.UUID, shipperID string) (idempotency.Result, error) {
	return s.apply(ctx, requestID, PickUpCommand, shipmentID, func(shipment *models.Shipment) error {
		return shipment.PickUp(shipperID, s.now())
	})
}

func (s *Service) DepartToNextWarehouse(ctx context.Context, requestID, shipmentID uuid.UUID, shipperID string) (idempotency.Result, error) {
	return s.apply(ctx, requestID, DepartCommand, shipmentID, func(shipment *models.Shipment) error {
		return shipment.DepartToNextWarehouse(shipperID, s.now())
	})
}

func (s *Service) ArriveAtWarehouse(ctx context.Context, requestID, shipmentID uuid.UUID, shipperID string) (idempotency.Result, error) {
	return s.apply(ctx, requestID, ArriveCommand, shipmentID, func(shipment *models.Shipment) error {
		return shipment.ArriveAtWarehouse(shipperID, s.now())
	})
}

func (s *Service) StartDelivery(ctx context.Context, requestID, shipmentID uuid.UUID, shipperID string) (idempotency.Result, error) {
	return s.apply(ctx, requestID, StartDeliveryCommand, shipmentID, func(shipment *models.Shipment) error {
		return shipment.StartDelivery(shipperID, s.now())
	})
}

func (s *Service) ConfirmDelivery(ctx context.Context, requestID, shipmentID uuid.UUID, shipperID string) (idempotency.Result, error) {
	return s.apply(ctx, requestID, ConfirmDeliveryCommand, shipmentID, func(shipment *models.Shipment) error {
		return shipment.ConfirmDelivery(shipperID, s.now())
	})
}

func (s *Service) Cancel(ctx context.Context, requestID, shipmentID uuid.UUID, reason string) (idempotency.Result, error) {
	return s.apply(ctx, requestID, CancelCommand, shipmentID, func(shipment *models.Shipment) error {
		return shipment.Cancel(reason, s.now())
	})
}

// apply runs one transition with its idempotency record and outgoing events
// in a single local transaction.
func (s *Service) apply(
	ctx context.Context,
	requestID uuid.UUID,
	name string,
	shipmentID uuid.UUID,
	transition func(shipment *models.Shipment) error,
) (idempotency.Result, error) {
	const op = "services.shipment.Service.apply"

	result := idempotency.Accepted

	err := s.uow.WithTx(ctx, func(ctx context.Context) ([]models.Event, error) {
		var err error
		if result, err = s.guard.TryBegin(ctx, requestID, name); err != nil || result == idempotency.AlreadyProcessed {
			return nil, err
		}

		shipment, err := s.repo.Shipment(ctx, shipmentID)
		if err != nil {
			return nil, err
		}

		if err = transition(shipment); err != nil {
			return nil, err
		}

		if err = s.repo.Update(ctx, shipment); err != nil {
			return nil, err
		}

		return IntegrationEvents(shipment), nil
	})
	if err != nil {
		return idempotency.Accepted, fmt.Errorf("%s: %s %s: %w", op, name, shipmentID, err)
	}

	if result == idempotency.Accepted {
		s.log.InfoContext(ctx, op,
			logger.String("shipment_id", shipmentID.String()),
			logger.String("name", name),
		)
	}

	return result, nil
}

// createForOrder is the body of the order-paid handler, split out so the
// handler only deals with delivery outcome.
func (s *Service) createForOrder(ctx context.Context, e *models.OrderStatusChangedToPaidIntegrationEvent) error {
	return s.uow.WithTx(ctx, func(ctx context.Context) ([]models.Event, error) {
		result, err := s.guard.TryBegin(ctx, e.ID, e.Type)
		if err != nil || result == idempotency.AlreadyProcessed {
			return nil, err
		}

		shipment, err := models.NewShipment(e.OrderID, s.route, e.OrderItems, e.CustomerAddress, s.now())
		if err != nil {
			return nil, err
		}

		if err = s.repo.Create(ctx, shipment); err != nil {
			return nil, err
		}

		return IntegrationEvents(shipment), nil
	})
}

// cancelForOrder cancels the order's shipment unless there is none or it is
// already finished.
func (s *Service) cancelForOrder(ctx context.Context, e *models.OrderStatusChangedToCancelledIntegrationEvent) error {
	return s.uow.WithTx(ctx, func(ctx context.Context) ([]models.Event, error) {
		result, err := s.guard.TryBegin(ctx, e.ID, e.Type)
		if err != nil || result == idempotency.AlreadyProcessed {
			return nil, err
		}

		shipment, err := s.repo.ShipmentByOrder(ctx, e.OrderID)
		if errors.Is(err, internalErrors.ErrShipmentNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		if shipment.Status().IsTerminal() {
			return nil, nil
		}

		if err = shipment.Cancel("order cancelled: "+e.Reason, s.now()); err != nil {
			return nil, err
		}

		if err = s.repo.Update(ctx, shipment); err != nil {
			return nil, err
		}

		return IntegrationEvents(shipment), nil
	})
}
