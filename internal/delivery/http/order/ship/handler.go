package ship

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/delivery/http/respond"
	"github.com/tumbleweedd/eshop_saga/internal/idempotency"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

type orderShipper interface {
	Ship(ctx context.Context, requestID, orderUUID uuid.UUID) (idempotency.Result, error)
}

type Handler struct {
	log          logger.Logger
	orderShipper orderShipper
}

func NewHandler(log logger.Logger, orderShipper orderShipper) *Handler {
	return &Handler{
		log:          log,
		orderShipper: orderShipper,
	}
}

// Ship marks a paid order as shipped without going through the shipping
// service.
func (h *Handler) Ship(w http.ResponseWriter, r *http.Request) {
	const op = "delivery.http.order.ship.Ship"

	requestID, err := respond.RequestID(r)
	if err != nil {
		respond.Error(w, h.log, op, err)
		return
	}

	orderUUID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, h.log, op, respond.ErrBadRequest)
		return
	}

	result, err := h.orderShipper.Ship(r.Context(), requestID, orderUUID)
	if err != nil {
		respond.Error(w, h.log, op, err)
		return
	}

	respond.JSON(w, h.log, op, http.StatusOK, respond.CommandResult{Result: result.String()})
}
