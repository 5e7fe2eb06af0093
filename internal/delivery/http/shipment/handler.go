package shipment

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/delivery/http/respond"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/internal/idempotency"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

type shipmentService interface {
	Shipment(ctx context.Context, shipmentID uuid.UUID) (models.ShipmentSnapshot, error)
	Claim(ctx context.Context, requestID, shipmentID uuid.UUID, shipperID, shipperName string) (idempotency.Result, error)
	PickUp(ctx context.Context, requestID, shipmentID uuid.UUID, shipperID string) (idempotency.Result, error)
	DepartToNextWarehouse(ctx context.Context, requestID, shipmentID uuid.UUID, shipperID string) (idempotency.Result, error)
	ArriveAtWarehouse(ctx context.Context, requestID, shipmentID uuid.UUID, shipperID string) (idempotency.Result, error)
	StartDelivery(ctx context.Context, requestID, shipmentID uuid.UUID, shipperID string) (idempotency.Result, error)
	ConfirmDelivery(ctx context.Context, requestID, shipmentID uuid.UUID, shipperID string) (idempotency.Result, error)
	Cancel(ctx context.Context, requestID, shipmentID uuid.UUID, reason string) (idempotency.Result, error)
}

type Handler struct {
	log     logger.Logger
	service shipmentService
}

func NewHandler(log logger.Logger, service shipmentService) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/{id}", h.Shipment)
	r.Put("/{id}/claim", h.Claim)
	r.Put("/{id}/pickup", h.shipperCommand("delivery.http.shipment.PickUp", h.service.PickUp))
	r.Put("/{id}/depart", h.shipperCommand("delivery.http.shipment.Depart", h.service.DepartToNextWarehouse))
	r.Put("/{id}/arrive", h.shipperCommand("delivery.http.shipment.Arrive", h.service.ArriveAtWarehouse))
	r.Put("/{id}/deliver", h.shipperCommand("delivery.http.shipment.StartDelivery", h.service.StartDelivery))
	r.Put("/{id}/confirm", h.shipperCommand("delivery.http.shipment.ConfirmDelivery", h.service.ConfirmDelivery))
	r.Put("/{id}/cancel", h.Cancel)
}

func (h *Handler) Shipment(w http.ResponseWriter, r *http.Request) {
	const op = "delivery.http.shipment.Shipment"

	shipmentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, h.log, op, respond.ErrBadRequest)
		return
	}

	shipment, err := h.service.Shipment(r.Context(), shipmentID)
	if err != nil {
		respond.Error(w, h.log, op, err)
		return
	}

	respond.JSON(w, h.log, op, http.StatusOK, newShipmentResponse(shipment))
}

func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	const op = "delivery.http.shipment.Claim"

	var request ClaimRequest
	requestID, shipmentID, err := parseCommand(r, &request)
	if err != nil {
		respond.Error(w, h.log, op, err)
		return
	}

	result, err := h.service.Claim(r.Context(), requestID, shipmentID, request.ShipperID, request.ShipperName)
	if err != nil {
		respond.Error(w, h.log, op, err)
		return
	}

	respond.JSON(w, h.log, op, http.StatusOK, respond.CommandResult{Result: result.String()})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	const op = "delivery.http.shipment.Cancel"

	var request CancelRequest
	requestID, shipmentID, err := parseCommand(r, &request)
	if err != nil {
		respond.Error(w, h.log, op, err)
		return
	}

	result, err := h.service.Cancel(r.Context(), requestID, shipmentID, request.Reason)
	if err != nil {
		respond.Error(w, h.log, op, err)
		return
	}

	respond.JSON(w, h.log, op, http.StatusOK, respond.CommandResult{Result: result.String()})
}

type shipperTransition func(ctx context.Context, requestID, shipmentID uuid.UUID, shipperID string) (idempotency.Result, error)

func (h *Handler) shipperCommand(op string, transition shipperTransition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var request ShipperRequest
		requestID, shipmentID, err := parseCommand(r, &request)
		if err != nil {
			respond.Error(w, h.log, op, err)
			return
		}

		result, err := transition(r.Context(), requestID, shipmentID, request.ShipperID)
		if err != nil {
			respond.Error(w, h.log, op, err)
			return
		}

		respond.JSON(w, h.log, op, http.StatusOK, respond.CommandResult{Result: result.String()})
	}
}
