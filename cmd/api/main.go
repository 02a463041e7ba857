package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"

	"github.com/kareemadel/mustaqill_be/internal/config"
	"github.com/kareemadel/mustaqill_be/internal/db"
	"github.com/kareemadel/mustaqill_be/internal/handlers"
	"github.com/kareemadel/mustaqill_be/internal/middleware"
	"github.com/kareemadel/mustaqill_be/internal/models"
	"github.com/kareemadel/mustaqill_be/internal/realtime"
	"github.com/kareemadel/mustaqill_be/internal/services/notify"
	"github.com/kareemadel/mustaqill_be/internal/services/referral"
	"github.com/kareemadel/mustaqill_be/internal/services/settlement"
	"github.com/kareemadel/mustaqill_be/internal/services/visibility"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Affiliate{},
		&models.Referral{},
		&models.Project{},
		&models.ProjectFile{},
		&models.Bid{},
		&models.Transaction{},
		&models.Notification{},
		&models.Review{},
	); err != nil {
		log.Fatal(err)
	}

	rdb := realtime.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Redis not reachable:", err)
	}

	hub := realtime.NewHub()
	go hub.Run()
	go realtime.RunSubscriber(context.Background(), rdb, hub)

	refSvc := referral.NewReferralService(gdb)
	settleSvc := settlement.NewSettlementService(gdb)
	visSvc := visibility.NewVisibilityService(gdb)
	notifySvc := notify.NewNotifyService(gdb, hub, rdb)

	authH := &handlers.AuthHandler{
		DB:        gdb,
		JWTSecret: cfg.JWTSecret,
		Expires:   cfg.JWTExpiresMin,
		Referrals: refSvc,
		Notify:    notifySvc,
	}
	googleH := &handlers.GoogleOAuthHandler{
		DB:              gdb,
		JWTSecret:       cfg.JWTSecret,
		Expires:         cfg.JWTExpiresMin,
		GoogleClientID:  cfg.GoogleClientID,
		GoogleSecret:    cfg.GoogleSecret,
		GoogleRedirect:  cfg.GoogleRedirect,
		FrontendBaseURL: cfg.FrontendBaseURL,
		Referrals:       refSvc,
		Notify:          notifySvc,
	}
	profileH := handlers.NewProfileHandler(gdb)
	projectH := handlers.NewProjectHandler(gdb, visSvc, cfg.UploadDir, cfg.AppBaseURL)
	bidH := handlers.NewBidHandler(gdb, hub, settleSvc, notifySvc)
	affiliateH := handlers.NewAffiliateHandler(gdb, refSvc, settleSvc)
	transactionH := handlers.NewTransactionHandler(gdb, settleSvc, notifySvc)
	notificationH := handlers.NewNotificationHandler(gdb, hub)
	reviewH := handlers.NewReviewHandler(gdb)
	categoryH := handlers.NewCategoryHandler(gdb)

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendBaseURL,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))

	app.Options("/*", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Static("/uploads", cfg.UploadDir)

	api := app.Group("/api")

	// public
	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Get("/auth/google/start", googleH.GoogleStart)
	api.Get("/auth/google/callback", googleH.GoogleCallback)
	api.Get("/categories", categoryH.GetCategories)
	api.Get("/projects", projectH.ListPublic)
	api.Get("/projects/:id", projectH.GetDetail)
	api.Get("/freelancers/:id/reviews", reviewH.ListForFreelancer)

	// protected (JWT)
	protected := api.Group("/",
		middleware.JWTFromCookie(cfg.JWTSecret),
		middleware.AttachJWTLocals(),
	)

	protected.Get("/me", profileH.Me)
	protected.Patch("/me", profileH.Update)

	// projects
	protected.Post("/projects",
		middleware.RequireRoles("client"),
		projectH.Create,
	)
	protected.Get("/my-projects",
		middleware.RequireRoles("client"),
		projectH.ListMine,
	)
	protected.Patch("/projects/:id/cancel",
		middleware.RequireRoles("client"),
		projectH.Cancel,
	)
	protected.Patch("/projects/:id/complete",
		middleware.RequireRoles("client"),
		projectH.Complete,
	)
	protected.Post("/projects/:id/files",
		middleware.RequireRoles("client"),
		projectH.UploadFiles,
	)
	protected.Get("/projects/:id/contact", projectH.GetContact)
	protected.Post("/projects/:id/reviews",
		middleware.RequireRoles("client"),
		reviewH.Create,
	)

	// bids
	protected.Post("/projects/:id/bids",
		middleware.RequireRoles("freelancer"),
		bidH.Submit,
	)
	protected.Get("/projects/:id/bids", bidH.ListForProject)
	protected.Get("/my-bids",
		middleware.RequireRoles("freelancer"),
		bidH.ListMine,
	)
	protected.Patch("/bids/:id/withdraw",
		middleware.RequireRoles("freelancer"),
		bidH.Withdraw,
	)
	protected.Post("/projects/:id/bids/:bidId/accept",
		middleware.RequireRoles("client"),
		bidH.Accept,
	)

	// affiliate. No role guard: the JWT may still carry the pre-opt-in role,
	// and the handlers 404 anyone without an affiliate record anyway.
	protected.Post("/affiliate", affiliateH.OptIn)
	protected.Get("/affiliate", affiliateH.Dashboard)
	protected.Get("/affiliate/referrals", affiliateH.ListReferrals)

	// transactions
	protected.Get("/transactions", transactionH.List)
	protected.Get("/transactions/summary", transactionH.Summary)
	protected.Patch("/admin/transactions/:id/status",
		middleware.RequireRoles("admin"),
		transactionH.UpdateStatus,
	)

	// notifications
	protected.Get("/notifications", notificationH.List)
	protected.Patch("/notifications/:id/read", notificationH.MarkRead)
	protected.Patch("/notifications/read-all", notificationH.MarkAllRead)

	app.Get("/ws/notifications",
		middleware.JWTFromCookie(cfg.JWTSecret),
		middleware.AttachJWTLocals(),
		websocket.New(notificationH.WebSocketHandler),
	)

	log.Fatal(app.Listen(":" + cfg.AppPort))
}
