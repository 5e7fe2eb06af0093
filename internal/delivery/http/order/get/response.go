package get

import (
	"time"

	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
)

type OrderResponse struct {
	ID                 string             `json:"id"`
	BuyerID            string             `json:"buyer_id"`
	Status             string             `json:"status"`
	Description        string             `json:"description"`
	Items              []models.OrderItem `json:"items"`
	Address            models.Address     `json:"address"`
	Total              int64              `json:"total"`
	ShipmentID         string             `json:"shipment_id,omitempty"`
	RejectedProductIDs []int              `json:"rejected_product_ids,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}

func newOrderResponse(s models.OrderSnapshot) OrderResponse {
	order := models.RestoreOrder(s)

	response := OrderResponse{
		ID:                 s.ID.String(),
		BuyerID:            s.BuyerID,
		Status:             s.Status.String(),
		Description:        s.Description,
		Items:              s.Items,
		Address:            s.Address,
		Total:              order.Total(),
		RejectedProductIDs: s.RejectedProductIDs,
		CreatedAt:          s.CreatedAt,
	}

	if s.ShipmentID != uuid.Nil {
		response.ShipmentID = s.ShipmentID.String()
	}

	return response
}
