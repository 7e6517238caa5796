package main

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"

	"github.com/projecthub-dev/projecthub/internal/config"
	"github.com/projecthub-dev/projecthub/internal/db"
	"github.com/projecthub-dev/projecthub/internal/handlers"
	"github.com/projecthub-dev/projecthub/internal/logger"
	"github.com/projecthub-dev/projecthub/internal/middleware"
	"github.com/projecthub-dev/projecthub/internal/models"
	"github.com/projecthub-dev/projecthub/internal/realtime"
	"github.com/projecthub-dev/projecthub/internal/services/stripe"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFile)
	defer logger.Sync()

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		logger.Fatalf("database connect: %v", err)
	}

	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Proposal{},
		&models.Invoice{},
		&models.Task{},
		&models.Review{},
		&models.Deliverable{},
		&models.Notification{},
		&models.Conversation{},
		&models.Message{},
		&models.ProjectMessage{},
		&models.Post{},
		&models.PostLike{},
		&models.PostComment{},
	); err != nil {
		logger.Fatalf("migrate: %v", err)
	}

	rdb := realtime.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Warnf("redis unavailable, cross-process fanout disabled: %v", err)
		rdb = nil
	}

	hub := realtime.NewHub()
	go hub.Run()

	stripeSvc := stripe.New(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	authH := &handlers.AuthHandler{
		DB:        gdb,
		JWTSecret: cfg.JWTSecret,
		Expires:   cfg.JWTExpiresMin,
	}
	googleH := &handlers.GoogleOAuthHandler{
		DB:              gdb,
		JWTSecret:       cfg.JWTSecret,
		Expires:         cfg.JWTExpiresMin,
		GoogleClientID:  cfg.GoogleClientID,
		GoogleSecret:    cfg.GoogleSecret,
		GoogleRedirect:  cfg.GoogleRedirect,
		FrontendBaseURL: cfg.FrontendBaseURL,
	}
	projectH := handlers.NewProjectHandler(gdb)
	proposalH := handlers.NewProposalHandler(gdb, hub, rdb)
	invoiceH := handlers.NewInvoiceHandler(gdb, hub, rdb)
	paymentH := handlers.NewPaymentHandler(gdb, stripeSvc, hub, rdb)
	taskH := handlers.NewTaskHandler(gdb)
	reviewH := handlers.NewReviewHandler(gdb)
	deliverableH := handlers.NewDeliverableHandler(gdb, cfg.UploadDir)
	notificationH := handlers.NewNotificationHandler(gdb)
	chatH := handlers.NewChatHandler(gdb, hub, rdb)
	projectChatH := handlers.NewProjectChatHandler(gdb)
	postH := handlers.NewPostHandler(gdb, hub, rdb)
	wsH := handlers.NewWebSocketHandler(gdb, hub, cfg.JWTSecret)

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendBaseURL,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))

	app.Static("/uploads", cfg.UploadDir)

	api := app.Group("/api")

	// public
	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Get("/auth/google/start", googleH.GoogleStart)
	api.Get("/auth/google/callback", googleH.GoogleCallback)
	api.Post("/payments/stripe-webhook", paymentH.Webhook)

	// protected (JWT)
	protected := api.Group("/", middleware.Protected(cfg.JWTSecret))

	protected.Get("/me", authH.Me)
	protected.Delete("/me", authH.DeleteAccount)

	protected.Post("/projects", middleware.RequireRoles(string(models.RoleClient)), projectH.Create)
	protected.Get("/projects", projectH.ListOpen)
	protected.Get("/projects/my", projectH.ListMine)
	protected.Get("/projects/:id", projectH.GetByID)

	protected.Post("/projects/:id/proposals", middleware.RequireRoles(string(models.RoleFreelancer)), proposalH.Submit)
	protected.Get("/projects/:id/proposals", proposalH.ListForProject)
	protected.Patch("/proposals/:id", middleware.RequireRoles(string(models.RoleClient)), proposalH.Respond)

	protected.Post("/projects/:id/invoices", middleware.RequireRoles(string(models.RoleFreelancer)), invoiceH.Create)
	protected.Get("/projects/:id/invoice", invoiceH.GetForProject)
	protected.Patch("/invoices/:id/pay", middleware.RequireRoles(string(models.RoleClient)), invoiceH.Pay)
	protected.Post("/payments/create-payment-intent", middleware.RequireRoles(string(models.RoleClient)), paymentH.CreatePaymentIntent)

	protected.Post("/projects/:id/tasks", taskH.Create)
	protected.Get("/projects/:id/tasks", taskH.ListForProject)
	protected.Patch("/projects/:id/tasks/:taskId", taskH.UpdateStatus)

	protected.Post("/projects/:id/reviews", reviewH.Create)
	protected.Get("/users/:id/reviews", reviewH.ListForUser)

	protected.Post("/projects/:id/deliverables", middleware.RequireRoles(string(models.RoleFreelancer)), deliverableH.Upload)
	protected.Get("/projects/:id/deliverables", deliverableH.ListForProject)

	protected.Get("/projects/:id/messages", projectChatH.GetMessages)

	protected.Post("/conversations", chatH.CreateOrGetConversation)
	protected.Get("/conversations", chatH.GetConversations)
	protected.Get("/conversations/:id/messages", chatH.GetMessages)
	protected.Post("/conversations/:id/messages", chatH.SendMessage)

	protected.Get("/notifications", notificationH.List)
	protected.Get("/notifications/unread-count", notificationH.UnreadCount)
	protected.Patch("/notifications/read", notificationH.MarkAllRead)

	protected.Post("/posts", postH.Create)
	protected.Get("/posts", postH.List)
	protected.Post("/posts/:id/like", postH.ToggleLike)
	protected.Post("/posts/:id/comments", postH.Comment)

	app.Get("/ws", wsH.Upgrade, wsH.Handler())

	logger.Infof("listening on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		logger.Fatalf("server: %v", err)
	}
}
