package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/satbounty/backend/internal/config"
	"github.com/satbounty/backend/internal/db"
	"github.com/satbounty/backend/internal/events"
	"github.com/satbounty/backend/internal/lightning"
	"github.com/satbounty/backend/internal/repositories"
	"github.com/satbounty/backend/internal/settlement"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	lnClient, err := lightning.NewLNDClient(cfg.LNDRESTHost, cfg.LNDTLSCertPath, cfg.LNDMacaroonPath, log)
	if err != nil {
		log.Fatal("failed to set up lnd client", zap.Error(err))
	}

	caseRepo := repositories.NewCaseRepo(pool)
	activationRepo := repositories.NewActivationRepo(pool)
	publisher := events.NewRedisPublisher(rdb, log)

	consumer := settlement.NewConsumer(
		settlement.NewStore(caseRepo, activationRepo),
		lnClient,
		publisher,
		cfg.ConsumerRetryDelay,
		log,
	)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down settlement consumer")
		cancel()
	}()

	log.Info("settlement consumer started")
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("consumer stopped", zap.Error(err))
	}
}
