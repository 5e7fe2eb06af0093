package create

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/delivery/http/respond"
	"github.com/tumbleweedd/eshop_saga/internal/idempotency"
	orderCreate "github.com/tumbleweedd/eshop_saga/internal/services/order/create"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

type orderCreator interface {
	Create(ctx context.Context, requestID uuid.UUID, cmd orderCreate.Command) (uuid.UUID, idempotency.Result, error)
}

type Handler struct {
	log logger.Logger

	orderCreator orderCreator
}

func NewHandler(log logger.Logger, orderCreator orderCreator) *Handler {
	return &Handler{
		log:          log,
		orderCreator: orderCreator,
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "delivery.http.order.create.Create"

	requestID, err := respond.RequestID(r)
	if err != nil {
		respond.Error(w, h.log, op, err)
		return
	}

	var request CreateOrderRequest
	if err = respond.Decode(r, &request); err != nil {
		respond.Error(w, h.log, op, err)
		return
	}

	orderUUID, result, err := h.orderCreator.Create(r.Context(), requestID, request.toCommand())
	if err != nil {
		respond.Error(w, h.log, op, err)
		return
	}

	if result == idempotency.AlreadyProcessed {
		respond.JSON(w, h.log, op, http.StatusOK, respond.CommandResult{Result: result.String()})
		return
	}

	respond.JSON(w, h.log, op, http.StatusCreated, respond.CommandResult{
		Result: result.String(),
		ID:     orderUUID.String(),
	})
}
