package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	internalErrors "github.com/tumbleweedd/eshop_saga/internal/lib/errors"
)

type ShipmentStatus int

const (
	UndefinedShipmentStatus ShipmentStatus = iota
	ShipmentStatusCreated
	ShipmentStatusShipperAssigned
	ShipmentStatusPickedUpFromWarehouse
	ShipmentStatusInTransitToWarehouse
	ShipmentStatusArrivedAtWarehouse
	ShipmentStatusDeliveringToCustomer
	ShipmentStatusDelivered
	ShipmentStatusCancelled
	ShipmentStatusReturnedToWarehouse
)

var shipmentStatusNames = map[ShipmentStatus]string{
	UndefinedShipmentStatus:             "Undefined",
	ShipmentStatusCreated:               "Created",
	ShipmentStatusShipperAssigned:       "ShipperAssigned",
	ShipmentStatusPickedUpFromWarehouse: "PickedUpFromWarehouse",
	ShipmentStatusInTransitToWarehouse:  "InTransitToWarehouse",
	ShipmentStatusArrivedAtWarehouse:    "ArrivedAtWarehouse",
	ShipmentStatusDeliveringToCustomer:  "DeliveringToCustomer",
	ShipmentStatusDelivered:             "Delivered",
	ShipmentStatusCancelled:             "Cancelled",
	ShipmentStatusReturnedToWarehouse:   "ReturnedToWarehouse",
}

func (s ShipmentStatus) String() string {
	if name, ok := shipmentStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ShipmentStatus(%d)", int(s))
}

func ParseShipmentStatus(name string) (ShipmentStatus, error) {
	for status, statusName := range shipmentStatusNames {
		if statusName == name {
			return status, nil
		}
	}
	return UndefinedShipmentStatus, fmt.Errorf("unknown shipment status %q", name)
}

func (s ShipmentStatus) IsTerminal() bool {
	switch s {
	case ShipmentStatusDelivered, ShipmentStatusCancelled, ShipmentStatusReturnedToWarehouse:
		return true
	}
	return false
}

type Waypoint struct {
	WarehouseID int        `json:"warehouseId"`
	Sequence    int        `json:"sequence"`
	ArrivedAt   *time.Time `json:"arrivedAt,omitempty"`
	DepartedAt  *time.Time `json:"departedAt,omitempty"`
}

// StatusHistoryEntry is append-only.
type StatusHistoryEntry struct {
	Status      ShipmentStatus `json:"status"`
	At          time.Time      `json:"at"`
	WarehouseID *int           `json:"warehouseId,omitempty"`
	Notes       string         `json:"notes,omitempty"`
}

// ShipmentChanged is recorded by every shipment transition.
type ShipmentChanged struct {
	ShipmentID  uuid.UUID
	OrderID     uuid.UUID
	From        ShipmentStatus
	To          ShipmentStatus
	ShipperName string
	At          time.Time
}

type Shipment struct {
	id          uuid.UUID
	orderID     uuid.UUID
	shipperID   string
	shipperName string
	status      ShipmentStatus
	waypoints   []Waypoint
	current     int
	items       []OrderItemUnits
	address     Address
	history     []StatusHistoryEntry
	createdAt   time.Time

	domainEvents []ShipmentChanged
}

// NewShipment creates a shipment routed through the given warehouses. The
// first warehouse is the origin the goods are picked up from.
func NewShipment(orderID uuid.UUID, route []int, items []OrderItemUnits, address Address, now time.Time) (*Shipment, error) {
	if len(route) == 0 {
		return nil, internalErrors.ErrEmptyRoute
	}

	waypoints := make([]Waypoint, 0, len(route))
	for i, warehouseID := range route {
		waypoints = append(waypoints, Waypoint{WarehouseID: warehouseID, Sequence: i})
	}

	s := &Shipment{
		id:        uuid.New(),
		orderID:   orderID,
		waypoints: waypoints,
		current:   -1,
		items:     append([]OrderItemUnits(nil), items...),
		address:   address,
		createdAt: now.UTC(),
	}

	s.apply(ShipmentStatusCreated, now, nil, "")

	return s, nil
}

type ShipmentSnapshot struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	ShipperID       string
	ShipperName     string
	Status          ShipmentStatus
	Waypoints       []Waypoint
	CurrentWaypoint int
	Items           []OrderItemUnits
	Address         Address
	History         []StatusHistoryEntry
	CreatedAt       time.Time
}

func RestoreShipment(s ShipmentSnapshot) *Shipment {
	return &Shipment{
		id:          s.ID,
		orderID:     s.OrderID,
		shipperID:   s.ShipperID,
		shipperName: s.ShipperName,
		status:      s.Status,
		waypoints:   append([]Waypoint(nil), s.Waypoints...),
		current:     s.CurrentWaypoint,
		items:       append([]OrderItemUnits(nil), s.Items...),
		address:     s.Address,
		history:     append([]StatusHistoryEntry(nil), s.History...),
		createdAt:   s.CreatedAt,
	}
}

func (s *Shipment) Snapshot() ShipmentSnapshot {
	return ShipmentSnapshot{
		ID:              s.id,
		OrderID:         s.orderID,
		ShipperID:       s.shipperID,
		ShipperName:     s.shipperName,
		Status:          s.status,
		Waypoints:       s.Waypoints(),
		CurrentWaypoint: s.current,
		Items:           s.Items(),
		Address:         s.address,
		History:         s.History(),
		CreatedAt:       s.createdAt,
	}
}

func (s *Shipment) ID() uuid.UUID          { return s.id }
func (s *Shipment) OrderID() uuid.UUID     { return s.orderID }
func (s *Shipment) ShipperID() string      { return s.shipperID }
func (s *Shipment) ShipperName() string    { return s.shipperName }
func (s *Shipment) Status() ShipmentStatus { return s.status }
func (s *Shipment) Address() Address       { return s.address }
func (s *Shipment) CreatedAt() time.Time   { return s.createdAt }

func (s *Shipment) Waypoints() []Waypoint {
	return append([]Waypoint(nil), s.waypoints...)
}

func (s *Shipment) Items() []OrderItemUnits {
	return append([]OrderItemUnits(nil), s.items...)
}

func (s *Shipment) History() []StatusHistoryEntry {
	return append([]StatusHistoryEntry(nil), s.history...)
}

func (s *Shipment) Route() []int {
	route := make([]int, 0, len(s.waypoints))
	for _, wp := range s.waypoints {
		route = append(route, wp.WarehouseID)
	}
	return route
}

// ReturnWarehouseID is where cancelled goods go back to: the origin before
// pick-up, afterwards the last warehouse the shipment reached.
func (s *Shipment) ReturnWarehouseID() int {
	if s.current < 0 {
		return s.waypoints[0].WarehouseID
	}
	return s.waypoints[s.current].WarehouseID
}

func (s *Shipment) DomainEvents() []ShipmentChanged {
	return append([]ShipmentChanged(nil), s.domainEvents...)
}

func (s *Shipment) ClearDomainEvents() {
	s.domainEvents = nil
}

func (s *Shipment) Claim(shipperID, shipperName string, now time.Time) error {
	if err := s.guard(ShipmentStatusShipperAssigned, ShipmentStatusCreated); err != nil {
		return err
	}

	s.shipperID = shipperID
	s.shipperName = shipperName
	s.apply(ShipmentStatusShipperAssigned, now, nil, "claimed by "+shipperName)
	return nil
}

func (s *Shipment) PickUp(shipperID string, now time.Time) error {
	if err := s.guard(ShipmentStatusPickedUpFromWarehouse, ShipmentStatusShipperAssigned); err != nil {
		return err
	}
	if err := s.checkShipper(shipperID); err != nil {
		return err
	}

	s.current = 0
	at := now.UTC()
	s.waypoints[0].ArrivedAt = &at
	s.apply(ShipmentStatusPickedUpFromWarehouse, now, &s.waypoints[0].WarehouseID, "")
	return nil
}

func (s *Shipment) DepartToNextWarehouse(shipperID string, now time.Time) error {
	if err := s.guard(ShipmentStatusInTransitToWarehouse,
		ShipmentStatusPickedUpFromWarehouse, ShipmentStatusArrivedAtWarehouse); err != nil {
		return err
	}
	if err := s.checkShipper(shipperID); err != nil {
		return err
	}
	if s.current+1 >= len(s.waypoints) {
		return fmt.Errorf("shipment %s: %w", s.id, internalErrors.ErrNoMoreWaypoints)
	}

	at := now.UTC()
	s.waypoints[s.current].DepartedAt = &at
	next := s.waypoints[s.current+1].WarehouseID
	s.apply(ShipmentStatusInTransitToWarehouse, now, &next, "")
	return nil
}

func (s *Shipment) ArriveAtWarehouse(shipperID string, now time.Time) error {
	if err := s.guard(ShipmentStatusArrivedAtWarehouse, ShipmentStatusInTransitToWarehouse); err != nil {
		return err
	}
	if err := s.checkShipper(shipperID); err != nil {
		return err
	}

	s.current++
	at := now.UTC()
	s.waypoints[s.current].ArrivedAt = &at
	s.apply(ShipmentStatusArrivedAtWarehouse, now, &s.waypoints[s.current].WarehouseID, "")
	return nil
}

func (s *Shipment) StartDelivery(shipperID string, now time.Time) error {
	if err := s.guard(ShipmentStatusDeliveringToCustomer,
		ShipmentStatusPickedUpFromWarehouse, ShipmentStatusArrivedAtWarehouse); err != nil {
		return err
	}
	if err := s.checkShipper(shipperID); err != nil {
		return err
	}
	if s.current != len(s.waypoints)-1 {
		return fmt.Errorf("shipment %s at waypoint %d of %d: %w",
			s.id, s.current+1, len(s.waypoints), internalErrors.ErrRouteNotCompleted)
	}

	at := now.UTC()
	s.waypoints[s.current].DepartedAt = &at
	s.apply(ShipmentStatusDeliveringToCustomer, now, nil, "")
	return nil
}

func (s *Shipment) ConfirmDelivery(shipperID string, now time.Time) error {
	if err := s.guard(ShipmentStatusDelivered, ShipmentStatusDeliveringToCustomer); err != nil {
		return err
	}
	if err := s.checkShipper(shipperID); err != nil {
		return err
	}

	s.apply(ShipmentStatusDelivered, now, nil, "")
	return nil
}

// Cancel stops the shipment. Before pick-up it becomes Cancelled, after
// pick-up ReturnedToWarehouse.
func (s *Shipment) Cancel(reason string, now time.Time) error {
	if s.status.IsTerminal() || s.status == UndefinedShipmentStatus {
		return s.transitionError(ShipmentStatusCancelled)
	}

	to := ShipmentStatusCancelled
	if s.current >= 0 {
		to = ShipmentStatusReturnedToWarehouse
	}

	returnTo := s.ReturnWarehouseID()
	s.apply(to, now, &returnTo, reason)
	return nil
}

func (s *Shipment) checkShipper(shipperID string) error {
	if shipperID != "" && shipperID != s.shipperID {
		return fmt.Errorf("shipment %s: %w", s.id, internalErrors.ErrShipperMismatch)
	}
	return nil
}

func (s *Shipment) guard(to ShipmentStatus, allowed ...ShipmentStatus) error {
	for _, status := range allowed {
		if s.status == status {
			return nil
		}
	}
	return s.transitionError(to)
}

func (s *Shipment) transitionError(to ShipmentStatus) error {
	return fmt.Errorf("shipment %s: %s -> %s: %w", s.id, s.status, to, internalErrors.ErrInvalidStatusTransition)
}

func (s *Shipment) apply(to ShipmentStatus, now time.Time, warehouseID *int, notes string) {
	from := s.status
	s.status = to

	var wh *int
	if warehouseID != nil {
		id := *warehouseID
		wh = &id
	}

	s.history = append(s.history, StatusHistoryEntry{
		Status:      to,
		At:          now.UTC(),
		WarehouseID: wh,
		Notes:       notes,
	})

	s.domainEvents = append(s.domainEvents, ShipmentChanged{
		ShipmentID:  s.id,
		OrderID:     s.orderID,
		From:        from,
		To:          to,
		ShipperName: s.shipperName,
		At:          now.UTC(),
	})
}
