// Package app wires one service of the saga: its storage, event bus, outbox
// relay, background loops and HTTP surface.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tumbleweedd/eshop_saga/internal/cache_impl"
	"github.com/tumbleweedd/eshop_saga/internal/config"
	deliveryhttp "github.com/tumbleweedd/eshop_saga/internal/delivery/http"
	"github.com/tumbleweedd/eshop_saga/internal/delivery/http/order/cancel"
	"github.com/tumbleweedd/eshop_saga/internal/delivery/http/order/create"
	"github.com/tumbleweedd/eshop_saga/internal/delivery/http/order/get"
	"github.com/tumbleweedd/eshop_saga/internal/delivery/http/order/ship"
	shipmentHTTP "github.com/tumbleweedd/eshop_saga/internal/delivery/http/shipment"
	warehouseHTTP "github.com/tumbleweedd/eshop_saga/internal/delivery/http/warehouse"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/internal/eventbus"
	"github.com/tumbleweedd/eshop_saga/internal/idempotency"
	"github.com/tumbleweedd/eshop_saga/internal/outbox"
	"github.com/tumbleweedd/eshop_saga/internal/repository"
	"github.com/tumbleweedd/eshop_saga/internal/services/catalog"
	"github.com/tumbleweedd/eshop_saga/internal/services/graceperiod"
	orderService "github.com/tumbleweedd/eshop_saga/internal/services/order"
	orderCancel "github.com/tumbleweedd/eshop_saga/internal/services/order/cancel"
	orderCreate "github.com/tumbleweedd/eshop_saga/internal/services/order/create"
	orderGet "github.com/tumbleweedd/eshop_saga/internal/services/order/get"
	orderShip "github.com/tumbleweedd/eshop_saga/internal/services/order/ship"
	"github.com/tumbleweedd/eshop_saga/internal/services/payment"
	shipmentService "github.com/tumbleweedd/eshop_saga/internal/services/shipment"
	warehouseService "github.com/tumbleweedd/eshop_saga/internal/services/warehouse"
	"github.com/tumbleweedd/eshop_saga/internal/services/webhooks"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

type Role string

const (
	RoleOrdering       Role = "ordering"
	RoleOrderProcessor Role = "orderprocessor"
	RoleCatalog        Role = "catalog"
	RolePayment        Role = "payment"
	RoleShipping       Role = "shipping"
	RoleWarehouse      Role = "warehouse"
	RoleWebhooks       Role = "webhooks"
)

// Service is one deployable service. Every service owns its database
// (Repo), consumes under its own group and publishes through its own outbox.
type Service struct {
	Role   Role
	Repo   *repository.Repository
	Bus    *eventbus.Bus
	Relay  *outbox.Relay
	Writer *outbox.Writer
	Guard  *idempotency.Guard
	Router http.Handler

	log      logger.Logger
	cfg      config.Config
	poller   *graceperiod.Poller
	consumes bool
}

// NewService builds the service for role on top of repo and transport.
func NewService(ctx context.Context, log logger.Logger, cfg config.Config, role Role, repo *repository.Repository, transport eventbus.Transport) (*Service, error) {
	const op = "app.NewService"

	log = log.With(logger.String("service", string(role)))

	bus := eventbus.New(log, transport, cfg.Service.Name)
	relay := outbox.NewRelay(log, repo.Outbox, bus, outbox.RelayConfig{
		SweepInterval:     cfg.Outbox.SweepInterval,
		BatchSize:         cfg.Outbox.BatchSize,
		InProgressTimeout: cfg.Outbox.InProgressTimeout,
		PublishTimeout:    cfg.Outbox.PublishTimeout,
	})
	writer := outbox.NewWriter(log, repo.TxManager, repo.Outbox, relay)
	guard := idempotency.New(log, repo.Idempotency, repo.TxManager)

	s := &Service{
		Role:     role,
		Repo:     repo,
		Bus:      bus,
		Relay:    relay,
		Writer:   writer,
		Guard:    guard,
		log:      log,
		cfg:      cfg,
		consumes: true,
	}

	var routes []deliveryhttp.Route

	switch role {
	case RoleOrdering:
		cache := cache_impl.NewOrderCache(cfg.Ordering.CacheSize, cfg.Ordering.CacheTTL, log)
		processor := orderService.NewProcessor(log, writer, guard, repo.Orders, cache)

		orderService.NewHandlers(log, processor).Register(bus)

		routes = append(routes, deliveryhttp.Orders(
			create.NewHandler(log, orderCreate.New(log, writer, guard, repo.Orders, cache)),
			cancel.NewHandler(log, orderCancel.New(log, processor)),
			ship.NewHandler(log, orderShip.New(log, processor)),
			get.NewHandler(log, orderGet.New(log, cache, repo.Orders)),
		))

	case RoleOrderProcessor:
		s.poller = graceperiod.New(log, graceperiod.Config{
			GracePeriod:  cfg.Ordering.GracePeriod,
			PollInterval: cfg.Ordering.PollInterval,
			BatchSize:    cfg.Outbox.BatchSize,
		}, repo.Orders, writer)
		s.consumes = false

	case RoleCatalog:
		catalog.New(log, writer, guard, repo.Warehouses).Register(bus)

	case RolePayment:
		payment.New(log, writer, guard, cfg.Payment.PaymentSucceeded).Register(bus)

	case RoleShipping:
		service := shipmentService.New(log, writer, guard, repo.Shipments, cfg.Shipping.Route)
		service.Register(bus)

		routes = append(routes, deliveryhttp.Shipments(shipmentHTTP.NewHandler(log, service)))

	case RoleWarehouse:
		if err := seedWarehouses(ctx, repo, cfg.Warehouse.Seed); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		service := warehouseService.New(log, guard, repo.Warehouses)
		service.Register(bus)

		routes = append(routes, deliveryhttp.Warehouses(warehouseHTTP.NewHandler(log, service)))

	case RoleWebhooks:
		webhooks.New(log, webhooks.Config{
			URLs:     cfg.Webhooks.URLs,
			Timeout:  cfg.Webhooks.Timeout,
			RetryMax: cfg.Webhooks.RetryMax,
		}).Register(bus)

	default:
		return nil, fmt.Errorf("%s: unknown role %q", op, role)
	}

	s.Router = deliveryhttp.NewRouter(log, routes...)

	return s, nil
}

func seedWarehouses(ctx context.Context, repo *repository.Repository, seed []config.WarehouseSeed) error {
	for _, wh := range seed {
		err := repo.Warehouses.SaveWarehouse(ctx, models.Warehouse{ID: wh.ID, Name: wh.Name, Location: wh.Location})
		if err != nil {
			return fmt.Errorf("seed warehouse %d: %w", wh.ID, err)
		}
	}

	return nil
}
