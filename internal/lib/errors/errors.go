package errors

import "errors"

// Domain errors. They are returned to the caller as-is and never swallowed by
// the aggregate; event handlers decide whether a retry could help.
var (
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrOrderNotFound           = errors.New("order not found")
	ErrEmptyOrder              = errors.New("order must contain at least one item")
	ErrInvalidUnits            = errors.New("units must be positive")
	ErrShipmentInFlight        = errors.New("order cannot be cancelled: shipment already exists")

	ErrShipmentNotFound      = errors.New("shipment not found")
	ErrShipmentAlreadyExists = errors.New("shipment already exists for order")
	ErrEmptyRoute            = errors.New("shipment route must contain at least one warehouse")
	ErrNoMoreWaypoints       = errors.New("shipment has no more waypoints")
	ErrRouteNotCompleted     = errors.New("shipment has not visited every waypoint")
	ErrShipperMismatch       = errors.New("shipment is assigned to another shipper")

	ErrWarehouseNotFound = errors.New("warehouse not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")

	ErrDuplicateRequest    = errors.New("request already processed")
	ErrOutboxEntryNotFound = errors.New("outbox entry not found")
)

// IsDomain reports whether err is a rejection by an aggregate, as opposed to an
// infrastructure failure that may succeed on retry.
func IsDomain(err error) bool {
	for _, target := range []error{
		ErrInvalidStatusTransition,
		ErrShipmentInFlight,
		ErrShipmentAlreadyExists,
		ErrNoMoreWaypoints,
		ErrRouteNotCompleted,
		ErrShipperMismatch,
		ErrInsufficientStock,
		ErrInvalidQuantity,
		ErrEmptyOrder,
		ErrInvalidUnits,
		ErrEmptyRoute,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsDataConsistency reports whether err means a referenced record is missing.
// Retrying cannot fix it; an operator has to.
func IsDataConsistency(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrShipmentNotFound) ||
		errors.Is(err, ErrWarehouseNotFound)
}
