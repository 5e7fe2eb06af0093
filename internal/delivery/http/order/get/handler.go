package get

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/delivery/http/respond"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

type orderGetter interface {
	OrdersByUUIDs(ctx context.Context, UUIDs []uuid.UUID) ([]models.OrderSnapshot, error)
	OrderByUUID(ctx context.Context, orderUUID uuid.UUID) (models.OrderSnapshot, error)
}

type Handler struct {
	log logger.Logger

	orderGetter orderGetter
}

func NewHandler(log logger.Logger, orderGetter orderGetter) *Handler {
	return &Handler{
		log:         log,
		orderGetter: orderGetter,
	}
}

func (h *Handler) OrderByUUID(w http.ResponseWriter, r *http.Request) {
	const op = "delivery.http.order.get.OrderByUUID"

	request := OrderByUUIDRequest{OrderUUID: chi.URLParam(r, "id")}
	if err := request.validate(); err != nil {
		respond.Error(w, h.log, op, err)
		return
	}

	order, err := h.orderGetter.OrderByUUID(r.Context(), request.toServiceRepresentation())
	if err != nil {
		respond.Error(w, h.log, op, err)
		return
	}

	respond.JSON(w, h.log, op, http.StatusOK, newOrderResponse(order))
}

func (h *Handler) OrdersByUUIDs(w http.ResponseWriter, r *http.Request) {
	const op = "delivery.http.order.get.OrdersByUUIDs"

	var request OrdersByUUIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respond.Error(w, h.log, op, respond.ErrBadRequest)
		return
	}

	if err := request.validate(); err != nil {
		respond.Error(w, h.log, op, err)
		return
	}

	orders, err := h.orderGetter.OrdersByUUIDs(r.Context(), request.toServiceRepresentation())
	if err != nil {
		respond.Error(w, h.log, op, err)
		return
	}

	response := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		response = append(response, newOrderResponse(order))
	}

	respond.JSON(w, h.log, op, http.StatusOK, map[string]any{"orders": response})
}
