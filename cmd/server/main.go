package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ahmetk3436/markops/internal/alert"
	"github.com/ahmetk3436/markops/internal/config"
	"github.com/ahmetk3436/markops/internal/database"
	"github.com/ahmetk3436/markops/internal/handlers"
	"github.com/ahmetk3436/markops/internal/incident"
	"github.com/ahmetk3436/markops/internal/lock"
	"github.com/ahmetk3436/markops/internal/monitor"
	"github.com/ahmetk3436/markops/internal/notify"
	"github.com/ahmetk3436/markops/internal/probe"
	"github.com/ahmetk3436/markops/internal/realtime"
	"github.com/ahmetk3436/markops/internal/reporting"
	"github.com/ahmetk3436/markops/internal/routes"
	"github.com/ahmetk3436/markops/internal/storage/postgres"
)

func main() {
	// JSON structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting MarkOps", "version", handlers.Version)

	// ─── Config ──────────────────────────────────────────────────────────
	cfg := config.Load()
	if cfg.JWTSecret == "" || cfg.AdminPassword == "" {
		slog.Error("JWT_SECRET and ADMIN_PASSWORD must be set")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Database ────────────────────────────────────────────────────────
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("Database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}
	store := postgres.New(db)

	// ─── Target lock ─────────────────────────────────────────────────────
	var locker lock.Locker = lock.NewKeyedLocker()
	if cfg.RedisAddr != "" {
		rdb, err := lock.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			slog.Error("Redis connection failed", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, cfg.LockTTL)
		slog.Info("Using Redis target lock", "addr", cfg.RedisAddr)
	}

	// ─── Alerting ────────────────────────────────────────────────────────
	registry := alert.NewRegistry(cfg.EmailProvider,
		alert.NewResendProvider(cfg.ResendAPIKey),
		alert.NewSESProvider(ctx, cfg.AWSRegion),
	)
	mailer := alert.NewMailer(cfg.EmailFrom, cfg.DashboardURL, registry)
	dispatcher := alert.NewDispatcher(mailer, alert.NewSlackClient(10*time.Second), alert.DefaultPolicy(), cfg.AlertQueueSize)

	// ─── Incidents & monitoring ─────────────────────────────────────────
	var httpOpts []probe.HTTPOption
	if !cfg.FollowRedirects {
		httpOpts = append(httpOpts, probe.WithoutRedirects())
	}
	hub := realtime.NewHub(32)
	incidents := incident.NewManager(store, store, dispatcher, incident.WithPublisher(hub))
	uptime := monitor.New(monitor.Deps{
		Targets:   store,
		Checks:    store,
		HTTP:      probe.NewHTTPProber(cfg.ProbeTimeout, httpOpts...),
		TLS:       probe.NewTLSProber(cfg.TLSTimeout),
		Notifier:  notify.NewDeduplicator(store, cfg.NotificationWindow),
		Incidents: incidents,
		Locker:    locker,
	})
	checker := monitor.NewChecker(uptime, store, cfg.CheckTick, cfg.CheckConcurrency)
	checker.Start(ctx)

	// ─── KPI reports ─────────────────────────────────────────────────────
	reporter := reporting.NewService(store, store, cfg.KPIConcurrency)
	if cfg.KPIReportInterval > 0 {
		reporter.Start(ctx, cfg.KPIReportInterval)
	}

	// ─── Fiber App ──────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      "markops v" + handlers.Version,
		ServerHeader: "markops",
		BodyLimit:    10 * 1024 * 1024, // metric uploads
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal server error"
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": message,
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, PATCH, OPTIONS",
	}))

	app.Use(recover.New(recover.Config{
		EnableStackTrace: false,
	}))

	// Security headers
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	// Request logger
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if c.Path() == "/api/health" {
			return err
		}
		slog.Info("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.IP(),
		)
		return err
	})

	// ─── Routes ─────────────────────────────────────────────────────────
	routes.Setup(app, cfg, routes.Handlers{
		Auth:          handlers.NewAuthHandler(cfg),
		System:        handlers.NewSystemHandler(database.Pinger(db), store),
		Clients:       handlers.NewClientHandler(store),
		Targets:       handlers.NewTargetHandler(store, store, store, uptime),
		Incidents:     handlers.NewIncidentHandler(store, incidents),
		Notifications: handlers.NewNotificationHandler(store),
		KPI:           handlers.NewKPIHandler(reporter, store),
		Stream:        handlers.NewStreamHandler(hub),
	})

	// ─── Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("Shutting down MarkOps...")

		// Stop producers before draining the alert queue.
		checker.Stop()
		reporter.Stop()

		drainCtx, drainCancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := dispatcher.Shutdown(drainCtx); err != nil {
			slog.Warn("Alert queue not fully drained", "error", err)
		}
		drainCancel()

		if err := app.Shutdown(); err != nil {
			slog.Error("Fiber shutdown error", "error", err)
		}
		cancel()

		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	// ─── Start ──────────────────────────────────────────────────────────
	listenAddr := ":" + cfg.Port
	slog.Info("MarkOps listening", "addr", listenAddr)

	if err := app.Listen(listenAddr); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}
