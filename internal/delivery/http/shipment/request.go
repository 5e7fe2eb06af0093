package shipment

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/delivery/http/respond"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
)

type ClaimRequest struct {
	ShipperID   string `json:"shipper_id" validate:"required"`
	ShipperName string `json:"shipper_name" validate:"required"`
}

type ShipperRequest struct {
	ShipperID string `json:"shipper_id" validate:"required"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"required,max=256"`
}

// parseCommand reads the request id header, the shipment id path parameter
// and the body.
func parseCommand(r *http.Request, body any) (requestID, shipmentID uuid.UUID, err error) {
	if requestID, err = respond.RequestID(r); err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	if shipmentID, err = uuid.Parse(chi.URLParam(r, "id")); err != nil {
		return uuid.Nil, uuid.Nil, respond.ErrBadRequest
	}

	if err = respond.Decode(r, body); err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	return requestID, shipmentID, nil
}

type HistoryEntry struct {
	Status      string    `json:"status"`
	At          time.Time `json:"at"`
	WarehouseID *int      `json:"warehouse_id,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

type ShipmentResponse struct {
	ID          string                  `json:"id"`
	OrderID     string                  `json:"order_id"`
	ShipperID   string                  `json:"shipper_id,omitempty"`
	ShipperName string                  `json:"shipper_name,omitempty"`
	Status      string                  `json:"status"`
	Waypoints   []models.Waypoint       `json:"waypoints"`
	Items       []models.OrderItemUnits `json:"items"`
	History     []HistoryEntry          `json:"history"`
	CreatedAt   time.Time               `json:"created_at"`
}

func newShipmentResponse(s models.ShipmentSnapshot) ShipmentResponse {
	history := make([]HistoryEntry, 0, len(s.History))
	for _, entry := range s.History {
		history = append(history, HistoryEntry{
			Status:      entry.Status.String(),
			At:          entry.At,
			WarehouseID: entry.WarehouseID,
			Notes:       entry.Notes,
		})
	}

	return ShipmentResponse{
		ID:          s.ID.String(),
		OrderID:     s.OrderID.String(),
		ShipperID:   s.ShipperID,
		ShipperName: s.ShipperName,
		Status:      s.Status.String(),
		Waypoints:   s.Waypoints,
		Items:       s.Items,
		History:     history,
		CreatedAt:   s.CreatedAt,
	}
}
