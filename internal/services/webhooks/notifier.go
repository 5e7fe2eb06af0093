// Package webhooks forwards status events to subscriber URLs. Delivery is
// best effort: failures are logged and never redeliver the event.
package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/internal/eventbus"
	"github.com/tumbleweedd/eshop_saga/internal/metrics"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

const EventTypeHeader = "X-Event-Type"

// The client logs through the service logger.
var _ retryablehttp.LeveledLogger = (logger.Logger)(nil)

// NotifiedEvents are the events subscribers receive.
var NotifiedEvents = []string{
	models.OrderStatusChangedToSubmittedEvent,
	models.OrderStatusChangedToPaidEvent,
	models.OrderStatusChangedToShippedEvent,
	models.OrderStatusChangedToCancelledEvent,
	models.ShipmentStatusChangedEvent,
}

type Config struct {
	URLs     []string
	Timeout  time.Duration
	RetryMax int
}

type Notifier struct {
	log    logger.Logger
	urls   []string
	client *retryablehttp.Client
}

func New(log logger.Logger, cfg Config) *Notifier {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.Logger = log
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}

	return &Notifier{
		log:    log,
		urls:   append([]string(nil), cfg.URLs...),
		client: client,
	}
}

func (n *Notifier) Register(bus *eventbus.Bus) {
	for _, typeName := range NotifiedEvents {
		typeName := typeName

		bus.Subscribe(typeName, func(ctx context.Context, payload []byte) error {
			n.Notify(ctx, typeName, payload)
			return nil
		})
	}
}

// Notify POSTs payload to every subscriber. A failing subscriber does not
// stop the others.
func (n *Notifier) Notify(ctx context.Context, typeName string, payload []byte) {
	const op = "services.webhooks.Notifier.Notify"

	for _, url := range n.urls {
		if err := n.post(ctx, url, typeName, payload); err != nil {
			metrics.WebhookDeliveries.WithLabelValues(metrics.OutcomeFailure).Inc()

			n.log.WarnContext(ctx, op,
				logger.String("url", url),
				logger.String("type", typeName),
				logger.Err(err),
			)
			continue
		}

		metrics.WebhookDeliveries.WithLabelValues(metrics.OutcomeSuccess).Inc()
	}
}

func (n *Notifier) post(ctx context.Context, url, typeName string, payload []byte) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventTypeHeader, typeName)

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return nil
}
