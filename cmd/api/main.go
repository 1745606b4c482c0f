package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/satbounty/backend/internal/config"
	"github.com/satbounty/backend/internal/db"
	"github.com/satbounty/backend/internal/events"
	apphttp "github.com/satbounty/backend/internal/http"
	"github.com/satbounty/backend/internal/http/handlers"
	"github.com/satbounty/backend/internal/lightning"
	"github.com/satbounty/backend/internal/repositories"
	"github.com/satbounty/backend/internal/services"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Lightning
	lnClient, err := lightning.NewLNDClient(cfg.LNDRESTHost, cfg.LNDTLSCertPath, cfg.LNDMacaroonPath, log)
	if err != nil {
		log.Fatal("failed to set up lnd client", zap.Error(err))
	}

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	activationRepo := repositories.NewActivationRepo(pool)
	bountyRepo := repositories.NewBountyRepo(pool)
	caseRepo := repositories.NewCaseRepo(pool)
	withdrawalRepo := repositories.NewWithdrawalRepo(pool)
	ledgerRepo := repositories.NewLedgerRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	accountService := services.NewAccountService(userRepo, activationRepo, caseRepo, withdrawalRepo, ledgerRepo, lnClient, publisher, cfg, log)
	bountyService := services.NewBountyService(bountyRepo, activationRepo, publisher, cfg, log)
	caseService := services.NewCaseService(caseRepo, bountyRepo, activationRepo, lnClient, publisher, cfg, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(accountService, log)
	accountHandler := handlers.NewAccountHandler(accountService, log)
	bountyHandler := handlers.NewBountyHandler(bountyService, log)
	caseHandler := handlers.NewCaseHandler(caseService, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, accountHandler, bountyHandler, caseHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
