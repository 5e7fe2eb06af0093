package get

import (
	"errors"

	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/delivery/http/respond"
)

var (
	errEmptyOrderIDs    = errors.New("no order ids passed")
	errInvalidOrderUUID = errors.New("invalid order uuid")
)

type OrdersByUUIDsRequest struct {
	UUIDs []string `json:"uuids" validate:"required,min=1,max=100,dive,uuid"`
}

func (r *OrdersByUUIDsRequest) validate() error {
	if len(r.UUIDs) == 0 {
		return errors.Join(respond.ErrBadRequest, errEmptyOrderIDs)
	}

	return respond.Validate(r)
}

func (r *OrdersByUUIDsRequest) toServiceRepresentation() []uuid.UUID {
	result := make([]uuid.UUID, 0, len(r.UUIDs))

	for _, orderUUID := range r.UUIDs {
		result = append(result, uuid.MustParse(orderUUID))
	}

	return result
}

type OrderByUUIDRequest struct {
	OrderUUID string `validate:"required,uuid"`
}

func (r *OrderByUUIDRequest) validate() error {
	if err := respond.Validate(r); err != nil {
		return errors.Join(err, errInvalidOrderUUID)
	}

	return nil
}

func (r *OrderByUUIDRequest) toServiceRepresentation() uuid.UUID {
	return uuid.MustParse(r.OrderUUID)
}
