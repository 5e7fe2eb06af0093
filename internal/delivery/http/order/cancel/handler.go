package cancel

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/delivery/http/respond"
	"github.com/tumbleweedd/eshop_saga/internal/idempotency"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

type orderCanceler interface {
	Cancel(ctx context.Context, requestID, orderUUID uuid.UUID) (idempotency.Result, error)
}

type Handler struct {
	log           logger.Logger
	orderCanceler orderCanceler
}

func NewHandler(log logger.Logger, orderCanceler orderCanceler) *Handler {
	return &Handler{
		log:           log,
		orderCanceler: orderCanceler,
	}
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	const op = "delivery.http.order.cancel.Cancel"

	requestID, err := respond.RequestID(r)
	if err != nil {
		respond.Error(w, h.log, op, err)
		return
	}

	request := newCancelOrderRequest(r)
	if err = request.validate(); err != nil {
		respond.Error(w, h.log, op, err)
		return
	}

	result, err := h.orderCanceler.Cancel(r.Context(), requestID, request.toServiceRepresentation())
	if err != nil {
		respond.Error(w, h.log, op, err)
		return
	}

	respond.JSON(w, h.log, op, http.StatusOK, respond.CommandResult{Result: result.String()})
}
