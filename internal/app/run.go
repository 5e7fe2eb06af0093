package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	httpapp "github.com/tumbleweedd/eshop_saga/internal/app/http"
	"github.com/tumbleweedd/eshop_saga/internal/config"
	"github.com/tumbleweedd/eshop_saga/internal/eventbus"
	"github.com/tumbleweedd/eshop_saga/internal/metrics"
	"github.com/tumbleweedd/eshop_saga/internal/repository"
	"github.com/tumbleweedd/eshop_saga/pkg/brokers/kafka"
	"github.com/tumbleweedd/eshop_saga/pkg/brokers/memory"
	"github.com/tumbleweedd/eshop_saga/pkg/brokers/nats"
	"github.com/tumbleweedd/eshop_saga/pkg/databases/postgres"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Run starts the consumer, the outbox sweep, the poller where the role has
// one and the HTTP server, and stops all of them when ctx is cancelled. The
// first failing component stops the others.
func (s *Service) Run(ctx context.Context) error {
	const op = "app.Service.Run"

	g, ctx := errgroup.WithContext(ctx)

	if s.consumes {
		g.Go(func() error { return s.Bus.Run(ctx) })
	}

	g.Go(func() error { return s.Relay.Run(ctx) })

	if s.poller != nil {
		g.Go(func() error { return s.poller.Run(ctx) })
	}

	if s.cfg.HTTP.Port > 0 {
		server := httpapp.NewApp(s.log, s.Router, s.cfg.HTTP.Port, s.cfg.HTTP.ShutdownTimeout)
		g.Go(func() error { return server.Run(ctx) })
	}

	s.log.Info(op, logger.String("msg", "service started"), logger.String("group", s.Bus.Group()))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info(op, logger.String("msg", "service stopped"))

	return nil
}

// Main is the body of every service binary.
func Main(role Role) {
	cfg := config.InitConfig()

	log := logger.SetupLogger(cfg.Env)

	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeStorage, err := OpenStorage(ctx, log, cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to open storage: %v", err))
	}
	defer closeQuietly(log, "storage", closeStorage)

	transport, err := OpenTransport(ctx, log, cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to open transport: %v", err))
	}
	defer closeQuietly(log, "transport", transport)

	service, err := NewService(ctx, log, cfg, role, repo, transport)
	if err != nil {
		panic(fmt.Sprintf("failed to build %s: %v", role, err))
	}

	if err = service.Run(ctx); err != nil {
		log.Error("app.Main", logger.Err(err))
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// OpenStorage returns the repositories of the configured backend and the
// function that releases them.
func OpenStorage(ctx context.Context, log logger.Logger, cfg config.Config) (*repository.Repository, io.Closer, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return repository.NewMemory(), closerFunc(func() error { return nil }), nil
	case config.StoragePostgres:
		db, err := postgres.NewPostgresDB(ctx, log, cfg.Postgres.DSN())
		if err != nil {
			return nil, nil, err
		}
		return repository.NewPostgres(log, db.GetDB()), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}
}

// TransportCloser is a transport the caller has to close.
type TransportCloser interface {
	eventbus.Transport
	io.Closer
}

func OpenTransport(ctx context.Context, log logger.Logger, cfg config.Config) (TransportCloser, error) {
	switch cfg.Transport {
	case config.TransportMemory:
		return memory.NewBroker(), nil
	case config.TransportKafka:
		return kafka.New(log, cfg.Kafka.BrokerList, cfg.Kafka.Topic, kafka.NewConfig(cfg.Outbox.PublishTimeout))
	case config.TransportNATS:
		return nats.New(ctx, log, cfg.Service.Name, nats.Config{
			URL:            cfg.NATS.URL,
			Stream:         cfg.NATS.Stream,
			Subject:        cfg.NATS.Subject,
			MaxDeliver:     cfg.NATS.MaxDeliver,
			PublishTimeout: cfg.Outbox.PublishTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

func closeQuietly(log logger.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		log.Error("app.close", logger.String("resource", name), logger.Err(err))
	}
}
