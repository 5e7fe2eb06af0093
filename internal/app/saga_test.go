package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tumbleweedd/eshop_saga/internal/config"
	"github.com/tumbleweedd/eshop_saga/internal/delivery/http/order/get"
	"github.com/tumbleweedd/eshop_saga/internal/delivery/http/respond"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/internal/repository"
	"github.com/tumbleweedd/eshop_saga/pkg/brokers/memory"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

type saga struct {
	t      *testing.T
	ctx    context.Context
	broker *memory.Broker

	ordering  *Service
	processor *Service
	catalog   *Service
	payment   *Service
	shipping  *Service
	warehouse *Service
}

func testConfig(name string, paymentSucceeds bool) config.Config {
	return config.Config{
		Env:       "local",
		Service:   config.ServiceConfig{Name: name},
		Storage:   config.StorageMemory,
		Transport: config.TransportMemory,
		Outbox:    config.OutboxConfig{BatchSize: 100, InProgressTimeout: time.Minute, PublishTimeout: time.Second},
		Ordering:  config.OrderingConfig{CacheSize: 16, CacheTTL: time.Minute},
		Payment:   config.PaymentConfig{PaymentSucceeded: paymentSucceeds},
		Shipping:  config.ShippingConfig{Route: []int{1, 2}},
		Warehouse: config.WarehouseConfig{Seed: []config.WarehouseSeed{
			{ID: 1, Name: "central"},
			{ID: 2, Name: "north"},
		}},
	}
}

// newSaga builds every service over one in-process broker. The order
// processor shares the ordering database and the catalog reads the
// warehouse database, as in a deployment.
func newSaga(t *testing.T, paymentSucceeds bool) *saga {
	t.Helper()

	ctx := context.Background()
	log := logger.NewDiscard()
	broker := memory.NewBroker()

	orderingRepo := repository.NewMemory()
	warehouseRepo := repository.NewMemory()

	build := func(role Role, repo *repository.Repository) *Service {
		svc, err := NewService(ctx, log, testConfig(string(role), paymentSucceeds), role, repo, broker)
		require.NoError(t, err)

		if svc.consumes {
			broker.Register(svc.Bus.Group(), svc.Bus.Dispatch)
		}
		return svc
	}

	s := &saga{t: t, ctx: ctx, broker: broker}
	s.warehouse = build(RoleWarehouse, warehouseRepo)
	s.catalog = build(RoleCatalog, warehouseRepo)
	s.ordering = build(RoleOrdering, orderingRepo)
	s.processor = build(RoleOrderProcessor, orderingRepo)
	s.payment = build(RolePayment, repository.NewMemory())
	s.shipping = build(RoleShipping, repository.NewMemory())

	return s
}

func (s *saga) do(svc *Service, method, path, body string) *httptest.ResponseRecorder {
	s.t.Helper()

	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.Header.Set(respond.RequestIDHeader, uuid.NewString())

	w := httptest.NewRecorder()
	svc.Router.ServeHTTP(w, r)

	return w
}

func (s *saga) addStock(warehouseID, itemID, quantity int) {
	s.t.Helper()

	w := s.do(s.warehouse, http.MethodPut,
		fmt.Sprintf("/api/v1/warehouses/%d/items/%d/add", warehouseID, itemID),
		fmt.Sprintf(`{"quantity":%d}`, quantity))
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
}

func (s *saga) stock(warehouseID, itemID int) int {
	s.t.Helper()

	w := s.do(s.warehouse, http.MethodGet, fmt.Sprintf("/api/v1/warehouses/%d/items/%d", warehouseID, itemID), "")
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	var inventory models.WarehouseInventory
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &inventory))
	return inventory.Quantity
}

func (s *saga) createOrder(productID, units int) string {
	s.t.Helper()

	body := fmt.Sprintf(`{
		"buyer_id": "buyer-1",
		"items": [{"product_id": %d, "product_name": "item", "unit_price": 250, "units": %d}],
		"address": {"street": "Main 1", "city": "Berlin", "country": "DE"}
	}`, productID, units)

	w := s.do(s.ordering, http.MethodPost, "/api/v1/orders/", body)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	var result respond.CommandResult
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &result))
	require.NotEmpty(s.t, result.ID)

	return result.ID
}

func (s *saga) order(id string) get.OrderResponse {
	s.t.Helper()

	w := s.do(s.ordering, http.MethodGet, "/api/v1/orders/"+id, "")
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	var order get.OrderResponse
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &order))
	return order
}

func (s *saga) shipmentCommand(shipmentID, command, body string) {
	s.t.Helper()

	w := s.do(s.shipping, http.MethodPut, "/api/v1/shipments/"+shipmentID+"/"+command, body)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	s.drain()
}

// confirmGracePeriod runs one poll with a zero grace period and delivers
// everything that follows from it.
func (s *saga) confirmGracePeriod() {
	s.t.Helper()

	require.NoError(s.t, s.processor.poller.Tick(s.ctx))
	s.drain()
}

func (s *saga) drain() {
	s.t.Helper()
	require.NoError(s.t, s.broker.Drain(s.ctx))
}

func TestSagaOrderShippedThroughRoute(t *testing.T) {
	s := newSaga(t, true)
	s.addStock(1, 7, 10)

	orderID := s.createOrder(7, 2)
	s.drain()
	require.Equal(t, models.OrderStatusSubmitted.String(), s.order(orderID).Status)

	s.confirmGracePeriod()

	order := s.order(orderID)
	require.Equal(t, models.OrderStatusPaid.String(), order.Status)
	require.NotEmpty(t, order.ShipmentID)

	// a paid order with a shipment cannot be cancelled by the buyer
	w := s.do(s.ordering, http.MethodPut, "/api/v1/orders/"+orderID+"/cancel", "")
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	s.shipmentCommand(order.ShipmentID, "claim", `{"shipper_id":"s-1","shipper_name":"Bob"}`)
	for _, command := range []string{"pickup", "depart", "arrive", "deliver", "confirm"} {
		s.shipmentCommand(order.ShipmentID, command, `{"shipper_id":"s-1"}`)
	}

	require.Equal(t, models.OrderStatusShipped.String(), s.order(orderID).Status)

	// stock is checked, not reserved
	require.Equal(t, 10, s.stock(1, 7))
}

func TestSagaStockRejected(t *testing.T) {
	s := newSaga(t, true)
	s.addStock(1, 7, 10)

	orderID := s.createOrder(3, 1)
	s.drain()
	s.confirmGracePeriod()

	order := s.order(orderID)
	require.Equal(t, models.OrderStatusCancelled.String(), order.Status)
	require.Equal(t, []int{3}, order.RejectedProductIDs)
	require.Empty(t, order.ShipmentID)

	for _, msg := range s.broker.Published() {
		require.NotEqual(t, models.ShipmentCreatedEvent, msg.TypeName)
	}
}

func TestSagaPaymentFailed(t *testing.T) {
	s := newSaga(t, false)
	s.addStock(2, 7, 5)

	orderID := s.createOrder(7, 1)
	s.drain()
	s.confirmGracePeriod()

	order := s.order(orderID)
	require.Equal(t, models.OrderStatusCancelled.String(), order.Status)
	require.Equal(t, models.CancelReasonPaymentFailed, order.Description)
	require.Empty(t, order.ShipmentID)
}

func TestSagaShipmentCancelledRestocksOnce(t *testing.T) {
	s := newSaga(t, true)
	s.addStock(1, 9, 10)

	orderID := s.createOrder(9, 4)
	s.drain()
	s.confirmGracePeriod()

	order := s.order(orderID)
	require.Equal(t, models.OrderStatusPaid.String(), order.Status)

	s.shipmentCommand(order.ShipmentID, "cancel", `{"reason":"address unreachable"}`)

	require.Equal(t, 14, s.stock(1, 9))

	order = s.order(orderID)
	require.Equal(t, models.OrderStatusCancelled.String(), order.Status)
	require.Equal(t, models.CancelReasonShipmentCanceled, order.Description)

	// the transport delivers the same event again
	var cancelled bool
	for _, msg := range s.broker.Published() {
		if msg.TypeName == models.ShipmentCancelledEvent {
			require.NoError(t, s.broker.Publish(s.ctx, msg))
			cancelled = true
		}
	}
	require.True(t, cancelled)
	s.drain()

	require.Equal(t, 14, s.stock(1, 9))
}

func TestSagaBuyerCancelsBeforeGracePeriod(t *testing.T) {
	s := newSaga(t, true)
	s.addStock(1, 7, 10)

	orderID := s.createOrder(7, 1)
	s.drain()

	w := s.do(s.ordering, http.MethodPut, "/api/v1/orders/"+orderID+"/cancel", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	s.drain()

	// the poller no longer sees the order
	s.confirmGracePeriod()

	order := s.order(orderID)
	require.Equal(t, models.OrderStatusCancelled.String(), order.Status)
	require.Equal(t, models.CancelReasonByBuyer, order.Description)
}
