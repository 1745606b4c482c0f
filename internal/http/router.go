package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/satbounty/backend/internal/config"
	"github.com/satbounty/backend/internal/http/handlers"
	"github.com/satbounty/backend/internal/middleware"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	accountHandler *handlers.AccountHandler,
	bountyHandler *handlers.BountyHandler,
	caseHandler *handlers.CaseHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Rate-limited endpoints
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Auth (public)
	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// Account
	protected.Get("/me", accountHandler.Me)
	protected.Get("/me/activation", accountHandler.Activation)
	protected.Get("/me/ledger", accountHandler.Ledger)
	protected.Get("/me/sales", caseHandler.MySales)
	protected.Get("/me/withdrawals", accountHandler.Withdrawals)
	protected.Post("/me/withdraw", accountHandler.Withdraw)
	protected.Post("/me/deactivate", accountHandler.Deactivate)

	// Bounties
	protected.Post("/bounties", bountyHandler.Create)
	protected.Get("/bounties", bountyHandler.ListActive)
	protected.Get("/bounties/my", bountyHandler.ListMine)
	protected.Get("/bounties/:id", bountyHandler.Get)
	protected.Post("/bounties/:id/submit", bountyHandler.Submit)
	protected.Post("/bounties/:id/deactivate", bountyHandler.Deactivate)

	// Cases
	protected.Post("/cases", caseHandler.Create)
	protected.Get("/cases", caseHandler.List)
	protected.Get("/cases/:id", caseHandler.Get)
	protected.Post("/cases/:id/award", caseHandler.Award)
	protected.Post("/cases/:id/cancel", caseHandler.Cancel)

	// Sellers leaderboard
	protected.Get("/sellers/top", caseHandler.TopSellers)

	// Admin
	admin := protected.Group("/admin", middleware.AdminMiddleware())
	admin.Get("/bounties/pending", bountyHandler.PendingReview)
	admin.Post("/bounties/:id/approve", bountyHandler.Approve)
	admin.Post("/bounties/:id/reject", bountyHandler.Reject)
	admin.Post("/users/:id/activation", accountHandler.SetActivationDisabled)
	admin.Get("/ledger", accountHandler.AllChanges)
	admin.Get("/liabilities", accountHandler.Liabilities)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
