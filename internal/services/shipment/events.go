package shipment

import (
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
)

// IntegrationEvents turns the transitions recorded on the shipment into
// events and clears them. Every change after creation is reported as a
// status change; cancellation and return additionally carry the goods to
// restore.
func IntegrationEvents(shipment *models.Shipment) []models.Event {
	changes := shipment.DomainEvents()
	shipment.ClearDomainEvents()

	events := make([]models.Event, 0, len(changes))
	for _, change := range changes {
		if change.To == models.ShipmentStatusCreated {
			events = append(events, models.NewShipmentCreatedIntegrationEvent(
				change.ShipmentID, change.OrderID, shipment.Route(), shipment.Address()))
			continue
		}

		events = append(events, models.NewShipmentStatusChangedIntegrationEvent(
			change.ShipmentID, change.OrderID, change.To, change.ShipperName, change.At))

		if change.To == models.ShipmentStatusCancelled || change.To == models.ShipmentStatusReturnedToWarehouse {
			events = append(events, models.NewShipmentCancelledIntegrationEvent(
				change.ShipmentID, change.OrderID, shipment.ReturnWarehouseID(), shipment.Items()))
		}
	}

	return events
}
