package create

import (
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	orderCreate "github.com/tumbleweedd/eshop_saga/internal/services/order/create"
)

type CreateOrderRequest struct {
	BuyerID string   `json:"buyer_id" validate:"required"`
	Items   []Item   `json:"items" validate:"required,min=1,dive"`
	Address Address  `json:"address" validate:"required"`
	Payment *Payment `json:"payment"`
}

type Item struct {
	ProductID   int    `json:"product_id" validate:"gt=0"`
	ProductName string `json:"product_name"`
	UnitPrice   int64  `json:"unit_price" validate:"gte=0"`
	Units       int    `json:"units" validate:"gt=0"`
}

type Address struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state"`
	Country string `json:"country" validate:"required"`
	ZipCode string `json:"zip_code"`
}

type Payment struct {
	CardType       string `json:"card_type" validate:"required"`
	CardHolderName string `json:"card_holder_name" validate:"required"`
	CardNumber     string `json:"card_number" validate:"required,numeric,min=12,max=19"`
	CardExpiration string `json:"card_expiration" validate:"required"`
}

func (req *CreateOrderRequest) toCommand() orderCreate.Command {
	items := make([]models.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, models.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Units:       item.Units,
		})
	}

	cmd := orderCreate.Command{
		BuyerID: req.BuyerID,
		Items:   items,
		Address: models.Address{
			Street:  req.Address.Street,
			City:    req.Address.City,
			State:   req.Address.State,
			Country: req.Address.Country,
			ZipCode: req.Address.ZipCode,
		},
	}

	if req.Payment != nil {
		cmd.PaymentInfo = models.PaymentInfo{
			CardType:         req.Payment.CardType,
			CardHolderName:   req.Payment.CardHolderName,
			CardNumberMasked: maskCardNumber(req.Payment.CardNumber),
			CardExpiration:   req.Payment.CardExpiration,
		}
	}

	return cmd
}

// maskCardNumber keeps the last four digits.
func maskCardNumber(number string) string {
	if len(number) <= 4 {
		return number
	}

	masked := make([]byte, len(number))
	for i := range masked {
		if i < len(number)-4 {
			masked[i] = 'X'
			continue
		}
		masked[i] = number[i]
	}

	return string(masked)
}
