// Package eventbus publishes integration events and dispatches received ones
// to the handlers a service registered for their type name.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	internalErrors "github.com/tumbleweedd/eshop_saga/internal/lib/errors"
	"github.com/tumbleweedd/eshop_saga/internal/metrics"
	"github.com/tumbleweedd/eshop_saga/pkg/brokers"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

// Transport is implemented by the kafka, nats and memory brokers.
type Transport interface {
	Publish(ctx context.Context, msg brokers.Message) error
	Consume(ctx context.Context, group string, handle brokers.HandleFunc) error
}

// Handler receives the raw event payload.
type Handler func(ctx context.Context, payload []byte) error

type Bus struct {
	log       logger.Logger
	transport Transport
	group     string

	mu       sync.RWMutex
	handlers map[string][]Handler
	started  bool
}

func New(log logger.Logger, transport Transport, group string) *Bus {
	return &Bus{
		log:       log,
		transport: transport,
		group:     group,
		handlers:  make(map[string][]Handler),
	}
}

func (b *Bus) Publish(ctx context.Context, event models.Event) error {
	const op = "eventbus.Publish"

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: marshal %s: %w", op, event.EventType(), err)
	}

	return b.PublishRaw(ctx, event.EventID().String(), event.EventType(), payload)
}

// PublishRaw hands an already serialized event to the transport. The outbox
// relay uses it with the stored payload.
func (b *Bus) PublishRaw(ctx context.Context, eventID, typeName string, payload []byte) error {
	const op = "eventbus.PublishRaw"

	if err := b.transport.Publish(ctx, brokers.Message{ID: eventID, TypeName: typeName, Payload: payload}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Subscribe registers handler for typeName. Registration is only allowed
// before Run; several handlers for one type all receive every message.
func (b *Bus) Subscribe(typeName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		panic(fmt.Sprintf("eventbus: Subscribe(%q) after Run", typeName))
	}

	b.handlers[typeName] = append(b.handlers[typeName], handler)
}

// Dispatch runs every handler registered for the message type. One handler's
// failure does not prevent the others from running; the failures are joined
// so the transport redelivers the message.
func (b *Bus) Dispatch(ctx context.Context, msg brokers.Message) error {
	const op = "eventbus.Dispatch"

	b.mu.RLock()
	handlers := b.handlers[msg.TypeName]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.log.DebugContext(ctx, op,
			logger.String("msg", "no handler, dropping"),
			logger.String("type", msg.TypeName),
			logger.String("event_id", msg.ID),
		)
		metrics.EventsHandled.WithLabelValues(msg.TypeName, metrics.OutcomeDropped).Inc()
		return nil
	}

	var errs []error
	for i, handler := range handlers {
		if err := b.invoke(ctx, handler, msg.Payload); err != nil {
			b.log.ErrorContext(ctx, op,
				logger.String("type", msg.TypeName),
				logger.String("event_id", msg.ID),
				logger.Int("handler", i),
				logger.Err(err),
			)
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		metrics.EventsHandled.WithLabelValues(msg.TypeName, metrics.OutcomeFailure).Inc()
		return fmt.Errorf("%s: %s: %w", op, msg.TypeName, err)
	}

	metrics.EventsHandled.WithLabelValues(msg.TypeName, metrics.OutcomeSuccess).Inc()
	return nil
}

// Run consumes for the bus's group until ctx is cancelled.
func (b *Bus) Run(ctx context.Context) error {
	b.mu.Lock()
	b.started = true
	b.mu.Unlock()

	return b.transport.Consume(ctx, b.group, b.Dispatch)
}

// Group is the consumer group this bus was created for.
func (b *Bus) Group() string {
	return b.group
}

func (b *Bus) invoke(ctx context.Context, handler Handler, payload []byte) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()

	return handler(ctx, payload)
}

// Typed adapts a handler for a concrete event struct. A payload that cannot
// be decoded is logged and dropped: redelivering it would never succeed.
func Typed[T any](log logger.Logger, fn func(ctx context.Context, event *T) error) Handler {
	return func(ctx context.Context, payload []byte) error {
		const op = "eventbus.Typed"

		event := new(T)
		if err := json.Unmarshal(payload, event); err != nil {
			log.ErrorContext(ctx, op, logger.String("payload", string(payload)), logger.Err(err))
			return nil
		}

		return fn(ctx, event)
	}
}

// SubscribeTyped is Subscribe plus Typed.
func SubscribeTyped[T any](b *Bus, typeName string, fn func(ctx context.Context, event *T) error) {
	b.Subscribe(typeName, Typed(b.log, fn))
}

// Settle decides the delivery outcome of a handler error. Rejections by an
// aggregate and references to missing records are logged and acknowledged,
// since a redelivery would fail the same way; anything else is returned so
// the transport redelivers.
func Settle(ctx context.Context, log logger.Logger, op, eventID string, err error) error {
	if err == nil {
		return nil
	}

	if internalErrors.IsDomain(err) || internalErrors.IsDataConsistency(err) {
		log.WarnContext(ctx, op,
			logger.String("msg", "event acknowledged without effect"),
			logger.String("event_id", eventID),
			logger.Err(err),
		)
		return nil
	}

	return err
}
