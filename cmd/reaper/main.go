package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/satbounty/backend/internal/config"
	"github.com/satbounty/backend/internal/db"
	"github.com/satbounty/backend/internal/lightning"
	"github.com/satbounty/backend/internal/reaper"
	"github.com/satbounty/backend/internal/repositories"
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

	lnClient, err := lightning.NewLNDClient(cfg.LNDRESTHost, cfg.LNDTLSCertPath, cfg.LNDMacaroonPath, log)
	if err != nil {
		log.Fatal("failed to set up lnd client", zap.Error(err))
	}

	caseRepo := repositories.NewCaseRepo(pool)
	activationRepo := repositories.NewActivationRepo(pool)
	userRepo := repositories.NewUserRepo(pool)

	r := reaper.New(
		caseRepo,
		activationRepo,
		userRepo,
		lnClient,
		cfg.CaseExpiryWindow,
		cfg.ActivationExpiryWindow,
		cfg.ReaperInterval,
		log,
	)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down reaper")
		cancel()
	}()

	log.Info("reaper started",
		zap.Duration("case_window", cfg.CaseExpiryWindow),
		zap.Duration("activation_window", cfg.ActivationExpiryWindow),
	)
	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("reaper stopped", zap.Error(err))
	}
}
