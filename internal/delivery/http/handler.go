// Package deliveryhttp assembles the HTTP surface of a service: the command
// and query routes it owns plus health and metrics endpoints.
package deliveryhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tumbleweedd/eshop_saga/internal/delivery/http/order/cancel"
	"github.com/tumbleweedd/eshop_saga/internal/delivery/http/order/create"
	"github.com/tumbleweedd/eshop_saga/internal/delivery/http/order/get"
	"github.com/tumbleweedd/eshop_saga/internal/delivery/http/order/ship"
	"github.com/tumbleweedd/eshop_saga/internal/delivery/http/shipment"
	"github.com/tumbleweedd/eshop_saga/internal/delivery/http/warehouse"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

// Route mounts a group of endpoints under /api/v1.
type Route func(r chi.Router)

func Orders(create *create.Handler, cancel *cancel.Handler, ship *ship.Handler, get *get.Handler) Route {
	return func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", create.Create)
			r.Post("/batch", get.OrdersByUUIDs)
			r.Get("/{id}", get.OrderByUUID)
			r.Put("/{id}/cancel", cancel.Cancel)
			r.Put("/{id}/ship", ship.Ship)
		})
	}
}

func Shipments(h *shipment.Handler) Route {
	return func(r chi.Router) {
		r.Route("/shipments", h.Routes)
	}
}

func Warehouses(h *warehouse.Handler) Route {
	return func(r chi.Router) {
		r.Route("/warehouses", h.Routes)
	}
}

func NewRouter(log logger.Logger, routes ...Route) http.Handler {
	mux := chi.NewRouter()

	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	mux.Use(accessLog(log))

	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	mux.Route("/api/v1", func(r chi.Router) {
		for _, route := range routes {
			route(r)
		}
	})

	return mux
}

func accessLog(log logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "delivery.http.accessLog"

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.DebugContext(r.Context(), op,
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.Int("status", ww.Status()),
				logger.Duration("duration", time.Since(start)),
			)
		})
	}
}
