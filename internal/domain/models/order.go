package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	internalErrors "github.com/tumbleweedd/eshop_saga/internal/lib/errors"
)

type OrderStatus int

const (
	UndefinedStatus OrderStatus = iota
	OrderStatusSubmitted
	OrderStatusAwaitingValidation
	OrderStatusStockConfirmed
	OrderStatusPaid
	OrderStatusShipped
	OrderStatusCancelled
)

var orderStatusNames = map[OrderStatus]string{
	UndefinedStatus:               "Undefined",
	OrderStatusSubmitted:          "Submitted",
	OrderStatusAwaitingValidation: "AwaitingValidation",
	OrderStatusStockConfirmed:     "StockConfirmed",
	OrderStatusPaid:               "Paid",
	OrderStatusShipped:            "Shipped",
	OrderStatusCancelled:          "Cancelled",
}

func (s OrderStatus) String() string {
	if name, ok := orderStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("OrderStatus(%d)", int(s))
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusShipped || s == OrderStatusCancelled
}

const (
	CancelReasonByBuyer          = "cancelled by buyer"
	CancelReasonStockRejected    = "stock rejected"
	CancelReasonPaymentFailed    = "payment failed"
	CancelReasonShipmentCanceled = "shipment cancelled"
)

type OrderItem struct {
	ProductID   int    `json:"productId"`
	ProductName string `json:"productName"`
	UnitPrice   int64  `json:"unitPrice"`
	Units       int    `json:"units"`
}

// OrderStatusChanged is recorded by every transition. The ordering service
// translates these into integration events inside the same transaction that
// persists the new status.
type OrderStatusChanged struct {
	OrderID            uuid.UUID
	BuyerID            string
	From               OrderStatus
	To                 OrderStatus
	Reason             string
	RejectedProductIDs []int
}

// Order is the ordering aggregate. Its fields are only reachable through
// getters; status changes only through the transition methods below.
type Order struct {
	id                 uuid.UUID
	buyerID            string
	status             OrderStatus
	items              []OrderItem
	address            Address
	paymentInfo        PaymentInfo
	createdAt          time.Time
	shipmentID         uuid.UUID
	description        string
	rejectedProductIDs []int

	domainEvents []OrderStatusChanged
}

func NewOrder(buyerID string, items []OrderItem, address Address, payment PaymentInfo, now time.Time) (*Order, error) {
	if len(items) == 0 {
		return nil, internalErrors.ErrEmptyOrder
	}

	merged := make([]OrderItem, 0, len(items))
	index := make(map[int]int, len(items))
	for _, item := range items {
		if item.Units <= 0 {
			return nil, fmt.Errorf("product %d: %w", item.ProductID, internalErrors.ErrInvalidUnits)
		}
		if i, ok := index[item.ProductID]; ok {
			merged[i].Units += item.Units
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}

	o := &Order{
		id:          uuid.New(),
		buyerID:     buyerID,
		items:       merged,
		address:     address,
		paymentInfo: payment,
		createdAt:   now.UTC(),
	}

	o.apply(OrderStatusSubmitted, "", nil)

	return o, nil
}

// OrderSnapshot is the persistence shape of an Order.
type OrderSnapshot struct {
	ID                 uuid.UUID
	BuyerID            string
	Status             OrderStatus
	Items              []OrderItem
	Address            Address
	PaymentInfo        PaymentInfo
	CreatedAt          time.Time
	ShipmentID         uuid.UUID
	Description        string
	RejectedProductIDs []int
}

func RestoreOrder(s OrderSnapshot) *Order {
	return &Order{
		id:                 s.ID,
		buyerID:            s.BuyerID,
		status:             s.Status,
		items:              append([]OrderItem(nil), s.Items...),
		address:            s.Address,
		paymentInfo:        s.PaymentInfo,
		createdAt:          s.CreatedAt,
		shipmentID:         s.ShipmentID,
		description:        s.Description,
		rejectedProductIDs: append([]int(nil), s.RejectedProductIDs...),
	}
}

func (o *Order) Snapshot() OrderSnapshot {
	return OrderSnapshot{
		ID:                 o.id,
		BuyerID:            o.buyerID,
		Status:             o.status,
		Items:              o.Items(),
		Address:            o.address,
		PaymentInfo:        o.paymentInfo,
		CreatedAt:          o.createdAt,
		ShipmentID:         o.shipmentID,
		Description:        o.description,
		RejectedProductIDs: o.RejectedProductIDs(),
	}
}

func (o *Order) ID() uuid.UUID            { return o.id }
func (o *Order) BuyerID() string          { return o.buyerID }
func (o *Order) Status() OrderStatus      { return o.status }
func (o *Order) Address() Address         { return o.address }
func (o *Order) PaymentInfo() PaymentInfo { return o.paymentInfo }
func (o *Order) CreatedAt() time.Time     { return o.createdAt }
func (o *Order) ShipmentID() uuid.UUID    { return o.shipmentID }
func (o *Order) Description() string      { return o.description }

func (o *Order) Items() []OrderItem {
	return append([]OrderItem(nil), o.items...)
}

func (o *Order) RejectedProductIDs() []int {
	return append([]int(nil), o.rejectedProductIDs...)
}

func (o *Order) Total() int64 {
	var total int64
	for _, item := range o.items {
		total += item.UnitPrice * int64(item.Units)
	}
	return total
}

// ItemUnits is the wire shape of the order lines.
func (o *Order) ItemUnits() []OrderItemUnits {
	units := make([]OrderItemUnits, 0, len(o.items))
	for _, item := range o.items {
		units = append(units, OrderItemUnits{ProductID: item.ProductID, Units: item.Units})
	}
	return units
}

func (o *Order) DomainEvents() []OrderStatusChanged {
	return append([]OrderStatusChanged(nil), o.domainEvents...)
}

func (o *Order) ClearDomainEvents() {
	o.domainEvents = nil
}

func (o *Order) SetAwaitingValidation() error {
	if err := o.guard(OrderStatusAwaitingValidation, OrderStatusSubmitted); err != nil {
		return err
	}

	o.apply(OrderStatusAwaitingValidation, "", nil)
	return nil
}

func (o *Order) SetStockConfirmed() error {
	if err := o.guard(OrderStatusStockConfirmed, OrderStatusAwaitingValidation); err != nil {
		return err
	}

	o.apply(OrderStatusStockConfirmed, "", nil)
	return nil
}

func (o *Order) SetCancelledWhenStockIsRejected(rejectedProductIDs []int) error {
	if err := o.guard(OrderStatusCancelled, OrderStatusAwaitingValidation); err != nil {
		return err
	}

	o.rejectedProductIDs = append([]int(nil), rejectedProductIDs...)
	o.apply(OrderStatusCancelled, CancelReasonStockRejected, o.rejectedProductIDs)
	return nil
}

func (o *Order) SetPaid() error {
	if err := o.guard(OrderStatusPaid, OrderStatusStockConfirmed); err != nil {
		return err
	}

	o.apply(OrderStatusPaid, "", nil)
	return nil
}

func (o *Order) SetCancelledWhenPaymentFailed() error {
	if err := o.guard(OrderStatusCancelled, OrderStatusStockConfirmed); err != nil {
		return err
	}

	o.apply(OrderStatusCancelled, CancelReasonPaymentFailed, nil)
	return nil
}

func (o *Order) SetShipped() error {
	if err := o.guard(OrderStatusShipped, OrderStatusPaid); err != nil {
		return err
	}

	o.apply(OrderStatusShipped, "", nil)
	return nil
}

// SetCancelledWhenShipmentCancelled closes a paid order whose shipment was
// cancelled or returned to a warehouse.
func (o *Order) SetCancelledWhenShipmentCancelled() error {
	if err := o.guard(OrderStatusCancelled, OrderStatusPaid); err != nil {
		return err
	}

	o.apply(OrderStatusCancelled, CancelReasonShipmentCanceled, nil)
	return nil
}

// Cancel is the explicit buyer/operator cancellation. It is allowed from any
// non-terminal state except a paid order that already has a shipment.
func (o *Order) Cancel() error {
	if o.status.IsTerminal() || o.status == UndefinedStatus {
		return o.transitionError(OrderStatusCancelled)
	}

	if o.status == OrderStatusPaid && o.shipmentID != uuid.Nil {
		return fmt.Errorf("order %s: %w", o.id, internalErrors.ErrShipmentInFlight)
	}

	o.apply(OrderStatusCancelled, CancelReasonByBuyer, nil)
	return nil
}

// AttachShipment links the shipment created for this order. It does not
// change the status.
func (o *Order) AttachShipment(shipmentID uuid.UUID) error {
	if o.shipmentID == shipmentID {
		return nil
	}

	if o.shipmentID != uuid.Nil {
		return fmt.Errorf("order %s already has shipment %s: %w", o.id, o.shipmentID, internalErrors.ErrShipmentAlreadyExists)
	}

	o.shipmentID = shipmentID
	return nil
}

func (o *Order) guard(to OrderStatus, allowed ...OrderStatus) error {
	for _, status := range allowed {
		if o.status == status {
			return nil
		}
	}

	return o.transitionError(to)
}

func (o *Order) transitionError(to OrderStatus) error {
	return fmt.Errorf("order %s: %s -> %s: %w", o.id, o.status, to, internalErrors.ErrInvalidStatusTransition)
}

func (o *Order) apply(to OrderStatus, reason string, rejected []int) {
	from := o.status
	o.status = to

	switch to {
	case OrderStatusCancelled:
		o.description = reason
	default:
		o.description = fmt.Sprintf("order is %s", to)
	}

	o.domainEvents = append(o.domainEvents, OrderStatusChanged{
		OrderID:            o.id,
		BuyerID:            o.buyerID,
		From:               from,
		To:                 to,
		Reason:             reason,
		RejectedProductIDs: append([]int(nil), rejected...),
	})
}
