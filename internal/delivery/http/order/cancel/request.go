package cancel

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/delivery/http/respond"
)

var errInvalidOrderUUID = errors.New("invalid order uuid")

type CancelOrderRequest struct {
	OrderUUID string `validate:"required,uuid"`
}

func newCancelOrderRequest(r *http.Request) CancelOrderRequest {
	return CancelOrderRequest{OrderUUID: chi.URLParam(r, "id")}
}

func (req *CancelOrderRequest) validate() error {
	if err := respond.Validate(req); err != nil {
		return fmt.Errorf("%w: %w", errInvalidOrderUUID, err)
	}

	return nil
}

func (req *CancelOrderRequest) toServiceRepresentation() uuid.UUID {
	return uuid.MustParse(req.OrderUUID)
}
