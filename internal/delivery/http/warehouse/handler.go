package warehouse

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/delivery/http/respond"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/internal/idempotency"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

type inventoryService interface {
	Inventory(ctx context.Context, warehouseID, catalogItemID int) (models.WarehouseInventory, error)
	AddStock(ctx context.Context, requestID uuid.UUID, warehouseID, catalogItemID, quantity int) (idempotency.Result, error)
	RemoveStock(ctx context.Context, requestID uuid.UUID, warehouseID, catalogItemID, quantity int) (idempotency.Result, error)
}

type Handler struct {
	log     logger.Logger
	service inventoryService
}

func NewHandler(log logger.Logger, service inventoryService) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/{id}/items/{itemId}", h.Inventory)
	r.Put("/{id}/items/{itemId}/add", h.stockCommand("delivery.http.warehouse.AddStock", h.service.AddStock))
	r.Put("/{id}/items/{itemId}/remove", h.stockCommand("delivery.http.warehouse.RemoveStock", h.service.RemoveStock))
}

type StockRequest struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

func (h *Handler) Inventory(w http.ResponseWriter, r *http.Request) {
	const op = "delivery.http.warehouse.Inventory"

	warehouseID, itemID, err := pathIDs(r)
	if err != nil {
		respond.Error(w, h.log, op, err)
		return
	}

	inventory, err := h.service.Inventory(r.Context(), warehouseID, itemID)
	if err != nil {
		respond.Error(w, h.log, op, err)
		return
	}

	respond.JSON(w, h.log, op, http.StatusOK, inventory)
}

type stockChange func(ctx context.Context, requestID uuid.UUID, warehouseID, catalogItemID, quantity int) (idempotency.Result, error)

func (h *Handler) stockCommand(op string, change stockChange) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, err := respond.RequestID(r)
		if err != nil {
			respond.Error(w, h.log, op, err)
			return
		}

		warehouseID, itemID, err := pathIDs(r)
		if err != nil {
			respond.Error(w, h.log, op, err)
			return
		}

		var request StockRequest
		if err = respond.Decode(r, &request); err != nil {
			respond.Error(w, h.log, op, err)
			return
		}

		result, err := change(r.Context(), requestID, warehouseID, itemID, request.Quantity)
		if err != nil {
			respond.Error(w, h.log, op, err)
			return
		}

		respond.JSON(w, h.log, op, http.StatusOK, respond.CommandResult{Result: result.String()})
	}
}

func pathIDs(r *http.Request) (warehouseID, itemID int, err error) {
	if warehouseID, err = strconv.Atoi(chi.URLParam(r, "id")); err != nil {
		return 0, 0, respond.ErrBadRequest
	}

	if itemID, err = strconv.Atoi(chi.URLParam(r, "itemId")); err != nil {
		return 0, 0, respond.ErrBadRequest
	}

	return warehouseID, itemID, nil
}
