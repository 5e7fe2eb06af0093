package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/tumbleweedd/eshop_saga/pkg/brokers"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

const (
	typeHeader   = "event-type"
	retryBackoff = time.Second
)

// Transport publishes every integration event to a single topic and consumes
// it with one consumer group per service.
type Transport struct {
	log logger.Logger

	brokerList []string
	topic      string
	config     *sarama.Config

	producer sarama.SyncProducer
}

func NewConfig(publishTimeout time.Duration) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Compression = sarama.CompressionNone
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	if publishTimeout > 0 {
		cfg.Producer.Timeout = publishTimeout
		cfg.Net.WriteTimeout = publishTimeout
	}

	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Offsets.AutoCommit.Enable = true
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}

	return cfg
}

func New(log logger.Logger, brokerList []string, topic string, cfg *sarama.Config) (*Transport, error) {
	const op = "brokers.kafka.New"

	producer, err := sarama.NewSyncProducer(brokerList, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: create producer: %w", op, err)
	}

	return NewWithProducer(log, brokerList, topic, cfg, producer), nil
}

func NewWithProducer(
	log logger.Logger,
	brokerList []string,
	topic string,
	cfg *sarama.Config,
	producer sarama.SyncProducer,
) *Transport {
	return &Transport{
		log:        log,
		brokerList: brokerList,
		topic:      topic,
		config:     cfg,
		producer:   producer,
	}
}

func (t *Transport) Publish(ctx context.Context, msg brokers.Message) error {
	const op = "brokers.kafka.Publish"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	partition, offset, err := t.producer.SendMessage(&sarama.ProducerMessage{
		Topic: t.topic,
		Key:   sarama.StringEncoder(msg.ID),
		Value: sarama.ByteEncoder(msg.Payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte(typeHeader), Value: []byte(msg.TypeName)},
		},
	})
	if err != nil {
		return fmt.Errorf("%s: send %s: %w", op, msg.TypeName, err)
	}

	t.log.DebugContext(ctx, op,
		logger.String("type", msg.TypeName),
		logger.String("event_id", msg.ID),
		logger.Int("partition", int(partition)),
		logger.Any("offset", offset),
	)

	return nil
}

// Consume blocks until ctx is cancelled, rejoining the group after every
// rebalance.
func (t *Transport) Consume(ctx context.Context, group string, handle brokers.HandleFunc) error {
	const op = "brokers.kafka.Consume"

	consumerGroup, err := sarama.NewConsumerGroup(t.brokerList, group, t.config)
	if err != nil {
		return fmt.Errorf("%s: create consumer group: %w", op, err)
	}
	defer func() {
		if closeErr := consumerGroup.Close(); closeErr != nil {
			t.log.Error(op, logger.Err(closeErr))
		}
	}()

	go func() {
		for groupErr := range consumerGroup.Errors() {
			t.log.Warn(op, logger.String("group", group), logger.Err(groupErr))
		}
	}()

	handler := &groupHandler{log: t.log, handle: handle}

	for {
		if err = consumerGroup.Consume(ctx, []string{t.topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			t.log.Error(op, logger.String("group", group), logger.Err(err))
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (t *Transport) Close() error {
	return t.producer.Close()
}

type groupHandler struct {
	log    logger.Logger
	handle brokers.HandleFunc
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks a message only after the handler succeeded. A failing
// message is retried in place so later offsets are never committed past it.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	const op = "brokers.kafka.ConsumeClaim"

	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			msg := toMessage(message)
			for {
				err := h.handle(session.Context(), msg)
				if err == nil {
					session.MarkMessage(message, "")
					break
				}

				h.log.Warn(op,
					logger.String("type", msg.TypeName),
					logger.String("event_id", msg.ID),
					logger.Err(err),
				)

				select {
				case <-session.Context().Done():
					return nil
				case <-time.After(retryBackoff):
				}
			}
		case <-session.Context().Done():
			return nil
		}
	}
}

func toMessage(message *sarama.ConsumerMessage) brokers.Message {
	msg := brokers.Message{
		ID:      string(message.Key),
		Payload: message.Value,
	}

	for _, header := range message.Headers {
		if header != nil && string(header.Key) == typeHeader {
			msg.TypeName = string(header.Value)
		}
	}

	return msg
}
