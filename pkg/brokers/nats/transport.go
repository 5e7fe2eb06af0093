package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/tumbleweedd/eshop_saga/pkg/brokers"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

const (
	typeHeader = "Eshop-Event-Type"
	fetchBatch = 50
	fetchWait  = 2 * time.Second
	nakDelay   = time.Second
)

type Config struct {
	URL            string
	Stream         string
	Subject        string
	MaxDeliver     int
	PublishTimeout time.Duration
}

// Transport publishes to one JetStream subject and consumes through a durable
// pull consumer per service.
type Transport struct {
	log  logger.Logger
	cfg  Config
	conn *nats.Conn
	js   nats.JetStreamContext
}

func New(ctx context.Context, log logger.Logger, name string, cfg Config) (*Transport, error) {
	const op = "brokers.nats.New"

	if cfg.Stream == "" || cfg.Subject == "" {
		return nil, fmt.Errorf("%s: stream and subject are required", op)
	}

	conn, err := nats.Connect(cfg.URL, nats.Name(name))
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: jetstream: %w", op, err)
	}

	if err = ensureStream(ctx, js, cfg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: ensure stream: %w", op, err)
	}

	return &Transport{log: log, cfg: cfg, conn: conn, js: js}, nil
}

// Publish sets Nats-Msg-Id to the event id so the stream drops duplicates
// published inside its deduplication window.
func (t *Transport) Publish(ctx context.Context, msg brokers.Message) error {
	const op = "brokers.nats.Publish"

	if t.cfg.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.PublishTimeout)
		defer cancel()
	}

	natsMsg := nats.NewMsg(t.cfg.Subject)
	natsMsg.Data = msg.Payload
	natsMsg.Header.Set(nats.MsgIdHdr, msg.ID)
	natsMsg.Header.Set(typeHeader, msg.TypeName)

	if _, err := t.js.PublishMsg(natsMsg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("%s: publish %s: %w", op, msg.TypeName, err)
	}

	return nil
}

func (t *Transport) Consume(ctx context.Context, group string, handle brokers.HandleFunc) error {
	const op = "brokers.nats.Consume"

	if err := t.ensureConsumer(ctx, group); err != nil {
		return fmt.Errorf("%s: ensure consumer: %w", op, err)
	}

	sub, err := t.js.PullSubscribe(t.cfg.Subject, group, nats.Bind(t.cfg.Stream, group))
	if err != nil {
		return fmt.Errorf("%s: subscribe: %w", op, err)
	}
	defer func() {
		if unsubErr := sub.Unsubscribe(); unsubErr != nil && !errors.Is(unsubErr, nats.ErrConnectionClosed) {
			t.log.Warn(op, logger.Err(unsubErr))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := sub.Fetch(fetchBatch, nats.MaxWait(fetchWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, nats.ErrConnectionClosed) {
				return brokers.ErrClosed
			}
			t.log.Warn(op, logger.String("group", group), logger.Err(err))
			continue
		}

		for _, natsMsg := range msgs {
			msg := brokers.Message{
				ID:       natsMsg.Header.Get(nats.MsgIdHdr),
				TypeName: natsMsg.Header.Get(typeHeader),
				Payload:  natsMsg.Data,
			}

			if err = handle(ctx, msg); err != nil {
				t.log.Warn(op,
					logger.String("type", msg.TypeName),
					logger.String("event_id", msg.ID),
					logger.Err(err),
				)
				_ = natsMsg.NakWithDelay(nakDelay)
				continue
			}

			if err = natsMsg.Ack(); err != nil {
				t.log.Warn(op, logger.String("event_id", msg.ID), logger.Err(err))
			}
		}
	}
}

func (t *Transport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Drain()
}

func (t *Transport) ensureConsumer(ctx context.Context, group string) error {
	_, err := t.js.ConsumerInfo(t.cfg.Stream, group, nats.Context(ctx))
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrConsumerNotFound) {
		return err
	}

	maxDeliver := t.cfg.MaxDeliver
	if maxDeliver == 0 {
		maxDeliver = -1
	}

	_, err = t.js.AddConsumer(t.cfg.Stream, &nats.ConsumerConfig{
		Durable:       group,
		AckPolicy:     nats.AckExplicitPolicy,
		DeliverPolicy: nats.DeliverAllPolicy,
		FilterSubject: t.cfg.Subject,
		MaxDeliver:    maxDeliver,
	}, nats.Context(ctx))

	return err
}

func ensureStream(ctx context.Context, js nats.JetStreamContext, cfg Config) error {
	_, err := js.StreamInfo(cfg.Stream, nats.Context(ctx))
	if err == nil {
		return nil
	}

	if errors.Is(err, nats.ErrStreamNotFound) {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      cfg.Stream,
			Subjects:  []string{cfg.Subject},
			Storage:   nats.FileStorage,
			Retention: nats.LimitsPolicy,
		}, nats.Context(ctx))
	}

	return err
}
