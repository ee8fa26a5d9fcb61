package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"handyconnect-server/config"
	"handyconnect-server/database"
	"handyconnect-server/jobs"
	"handyconnect-server/middleware"
	"handyconnect-server/routes"
	"handyconnect-server/services"
	"handyconnect-server/utils"
	ws "handyconnect-server/websocket"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration
	config.Load()
	cfg := config.AppConfig

	if len(os.Args) > 1 && os.Args[1] == "seed" {
		adminPassword := os.Getenv("SEED_ADMIN_PASSWORD")
		if adminPassword == "" {
			log.Fatal("SEED_ADMIN_PASSWORD must be set to seed the database")
		}
		adminEmail := os.Getenv("SEED_ADMIN_EMAIL")
		if adminEmail == "" {
			adminEmail = "admin@handyconnect.ma"
		}
		if err := runSeed(cfg.Database.DSN(), adminEmail, adminPassword); err != nil {
			log.Fatal("Seed failed: ", err)
		}
		return
	}

	// Initialize database
	if err := database.Initialize(); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.Close()
	db := database.GetDB()

	if cfg.Server.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Real-time hub, fanned out through Redis when configured
	var (
		broker      ws.Broker
		redisBroker *ws.RedisBroker
	)
	if cfg.Redis.Addr != "" {
		redisBroker = ws.NewRedisBroker(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
		broker = redisBroker
		log.Printf("✅ Redis fan-out enabled (%s)", cfg.Redis.Addr)
	} else {
		log.Println("⚠️ REDIS_ADDR not set, real-time events stay on this instance")
	}
	hub := ws.NewHub(broker)
	go hub.Run()

	var mailer services.Mailer
	if cfg.SMTP.Enabled() {
		mailer = utils.NewMailer(cfg.SMTP)
		log.Printf("✅ Notification mail enabled via %s:%d", cfg.SMTP.Host, cfg.SMTP.Port)
	} else {
		log.Println("⚠️ SMTP not configured, notifications will not be mailed")
	}

	var gateway services.PaymentGateway
	if cfg.Stripe.Enabled() {
		gateway = services.NewStripeGateway(cfg.Stripe.SecretKey)
		log.Println("✅ Stripe payments enabled")
	} else {
		log.Println("⚠️ STRIPE_SECRET_KEY not set, payment routes will answer 503")
	}

	var uploader services.ImageUploader
	if url := cfg.Cloudinary.ConnectionURL(); url != "" {
		cld, err := services.NewCloudinaryUploader(url)
		if err != nil {
			log.Printf("⚠️ Cloudinary disabled: %v", err)
		} else {
			uploader = cld
			log.Println("✅ Cloudinary uploads enabled")
		}
	} else {
		log.Println("⚠️ Cloudinary not configured, profile photo uploads disabled")
	}

	notifications := services.NewNotificationService(db, hub, mailer)
	users := services.NewUserService(db)
	sessions := services.NewSessionService(db, services.SessionOptions{
		TTL:          time.Duration(cfg.Session.TTLDays) * 24 * time.Hour,
		TicketSecret: cfg.JWT.Secret,
		TicketTTL:    time.Duration(cfg.JWT.WSTicketMinutes) * time.Minute,
	})
	messages := services.NewMessageService(db, hub)
	payments := services.NewPaymentService(db, gateway, cfg.Stripe.Currency, notifications)
	limiter := middleware.NewRateLimiter()

	// Scheduled jobs
	scheduler := jobs.NewScheduler()
	if payments.Enabled() {
		if err := scheduler.Add("payment-poll", cfg.Jobs.PaymentPollSpec, jobs.PaymentPoll(payments)); err != nil {
			log.Fatal(err)
		}
	}
	if err := scheduler.Add("session-sweep", cfg.Jobs.SessionSweepSpec, jobs.SessionSweep(sessions)); err != nil {
		log.Fatal(err)
	}
	if err := scheduler.Add("limiter-cleanup", "@every 10m", jobs.LimiterCleanup(limiter, 30*time.Minute)); err != nil {
		log.Fatal(err)
	}
	scheduler.Start()

	wsHandler := ws.NewHandler(hub, sessions, users, messages, cfg.Server.AllowedOrigins)

	router := routes.SetupRouter(&routes.Dependencies{
		Config:        cfg,
		Users:         users,
		Sessions:      sessions,
		Workers:       services.NewWorkerService(db),
		Interventions: services.NewInterventionService(db, notifications, hub),
		Reviews:       services.NewReviewService(db, notifications),
		Messages:      messages,
		Favorites:     services.NewFavoriteService(db),
		Notifications: notifications,
		Payments:      payments,
		Dashboard:     services.NewDashboardService(db),
		Media:         services.NewMediaService(uploader, users),
		Limiter:       limiter,
		Hub:           hub,
		WebSocket:     wsHandler.ServeWS,
		Ping:          database.Ping,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("🚀 HandyConnect server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}

	scheduler.Stop()
	hub.Stop()
	if redisBroker != nil {
		if err := redisBroker.Close(); err != nil {
			log.Printf("⚠️ Failed to close Redis client: %v", err)
		}
	}
	log.Println("✅ Server exited")
}
