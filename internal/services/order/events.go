package order

import (
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
)

// IntegrationEvents turns the transitions recorded on the order into the
// events other services consume, and clears them from the order.
func IntegrationEvents(order *models.Order) []models.Event {
	changes := order.DomainEvents()
	order.ClearDomainEvents()

	events := make([]models.Event, 0, len(changes))
	for _, change := range changes {
		if event := integrationEvent(order, change); event != nil {
			events = append(events, event)
		}
	}

	return events
}

func integrationEvent(order *models.Order, change models.OrderStatusChanged) models.Event {
	switch change.To {
	case models.OrderStatusSubmitted:
		return models.NewOrderStatusChangedIntegrationEvent(
			models.OrderStatusChangedToSubmittedEvent, change.OrderID, change.BuyerID, change.To)
	case models.OrderStatusAwaitingValidation:
		return models.NewOrderStatusChangedToAwaitingValidationIntegrationEvent(
			change.OrderID, change.BuyerID, order.ItemUnits())
	case models.OrderStatusStockConfirmed:
		return models.NewOrderStatusChangedIntegrationEvent(
			models.OrderStatusChangedToStockConfirmedEvent, change.OrderID, change.BuyerID, change.To)
	case models.OrderStatusPaid:
		return models.NewOrderStatusChangedToPaidIntegrationEvent(
			change.OrderID, change.BuyerID, order.ItemUnits(), order.Address())
	case models.OrderStatusShipped:
		return models.NewOrderStatusChangedIntegrationEvent(
			models.OrderStatusChangedToShippedEvent, change.OrderID, change.BuyerID, change.To)
	case models.OrderStatusCancelled:
		return models.NewOrderStatusChangedToCancelledIntegrationEvent(
			change.OrderID, change.BuyerID, change.Reason, change.RejectedProductIDs)
	default:
		return nil
	}
}
