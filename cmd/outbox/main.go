package main

import (
	"context"
	"fmt"

	"github.com/tumbleweedd/eshop_saga/internal/app"
	"github.com/tumbleweedd/eshop_saga/internal/config"
	"github.com/tumbleweedd/eshop_saga/internal/eventbus"
	"github.com/tumbleweedd/eshop_saga/internal/outbox"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

// One-shot sweep of the outbox of the configured service, for operators who
// need to flush stuck entries without starting the service itself.
func main() {
	cfg := config.InitConfig()

	log := logger.SetupLogger(cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, closeStorage, err := app.OpenStorage(ctx, log, cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to open storage: %v", err))
	}
	defer closeStorage.Close()

	transport, err := app.OpenTransport(ctx, log, cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to open transport: %v", err))
	}
	defer transport.Close()

	bus := eventbus.New(log, transport, cfg.Service.Name)

	relay := outbox.NewRelay(log, repo.Outbox, bus, outbox.RelayConfig{
		BatchSize:         cfg.Outbox.BatchSize,
		InProgressTimeout: cfg.Outbox.InProgressTimeout,
		PublishTimeout:    cfg.Outbox.PublishTimeout,
	})

	if err = relay.Sweep(ctx); err != nil {
		panic(fmt.Sprintf("sweep outbox: %v", err))
	}

	log.Info("outbox entries were successfully sent")
}
