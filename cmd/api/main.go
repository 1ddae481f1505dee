package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go-inventory-insights/internal/app"
	"go-inventory-insights/internal/config"
	"go-inventory-insights/internal/handler"
	"go-inventory-insights/internal/model"
	"go-inventory-insights/internal/service"
	"go-inventory-insights/internal/ws"
	"go-inventory-insights/pkg/database"
	"go-inventory-insights/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// 1. Load Env
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	setupLogger(cfg)

	// 2. Setup Database
	db, err := database.ConnectDB(database.Options{DSN: cfg.DSN()})
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	if err := db.AutoMigrate(model.All()...); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	rdb, err := app.OpenRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("parse REDIS_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Setup WebSocket Hub and event fan-out
	hub := ws.NewHub(cfg.WSSendBuffer)
	go hub.Run(ctx)

	var bus ws.Bus
	if rdb != nil {
		if bus, err = ws.NewRedisBus(rdb, ws.DefaultBusChannel); err != nil {
			log.Fatal().Err(err).Msg("create event bus")
		}
		defer bus.Close()
	}
	broadcaster := ws.NewBroadcaster(hub, bus, 0)
	go func() {
		if err := broadcaster.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("broadcaster stopped")
		}
	}()

	// 4. Dependency Injection (Wiring Layers)
	svc := app.NewServices(cfg, db, rdb, broadcaster)

	scheduler := service.NewScheduler(cfg.RefreshInterval(), service.RefreshJob(svc.Predictions, svc.Notifications), svc.Locker)
	scheduler.Start(ctx)

	verifier := jwt.NewVerifier(cfg.JWTSecret)
	handlers := handler.Handlers{
		Analytics:     handler.NewAnalyticsHandler(svc.Insights, svc.Predictions),
		Predictions:   handler.NewPredictionHandler(svc.Predictions),
		Alerts:        handler.NewAlertHandler(svc.Settings, svc.Notifications),
		Notifications: handler.NewNotificationHandler(svc.Notifications),
		WS:            handler.NewWSHandler(hub),
		Admin:         handler.NewAdminHandler(scheduler),
	}

	// 5. Setup Fiber
	server := fiber.New(fiber.Config{
		AppName: "Inventory Insights v1.0",
	})
	server.Use(logger.New())
	server.Use(recover.New())
	server.Use(cors.New())

	server.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "wsClients": hub.ClientCount()})
	})
	server.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handler.RegisterRoutes(server, verifier, handlers)

	// 6. Graceful Shutdown
	go func() {
		addr := ":" + strconv.Itoa(cfg.Port)
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := server.Listen(addr); err != nil {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	scheduler.Stop()
	if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info().Msg("Server exited")
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}
