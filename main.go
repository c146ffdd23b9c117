package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"vrcnotify/config"
	"vrcnotify/internal/handler"
	customMiddleware "vrcnotify/internal/middleware"
	"vrcnotify/internal/service"
	"vrcnotify/internal/vrchat"
	"vrcnotify/internal/worker"
	"vrcnotify/internal/ws"
)

func main() {
	// Load .env (ignore error if the file is absent, e.g. in production)
	_ = godotenv.Load()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if cfg.DiscordWebhookURL == "" {
		log.Warn().Msg("DISCORD_WEBHOOK_URL is not set, notifications will be skipped")
	}
	if cfg.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is not set, dashboard login is disabled")
	}

	// WebSocket hub for the live dashboard feed
	hub := ws.NewHub()
	go hub.Run()

	// Core components: one client (single session slot), one dedup guard,
	// one notifier, one poll worker.
	client := vrchat.NewClient(cfg.VRCBaseURL, vrchat.Credentials{
		Username:   cfg.VRCUsername,
		Password:   cfg.VRCPassword,
		TOTPSecret: cfg.VRCTOTPSecret,
	}, cfg.VRCGroupID, cfg.LoginMaxRetries, cfg.HTTPTimeout, log)

	notifier := service.NewNotifier(cfg.DiscordWebhookURL, log)
	guard := service.NewDedupGuard()
	pollWorker := worker.NewPollWorker(client, notifier, guard, hub, cfg.PollInterval, log)

	authService := service.NewAuthService(cfg.JWTSecret, cfg.JWTAccessTokenExpiry,
		cfg.DashboardUsername, cfg.DashboardPasswordHash, log)

	// Setup Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	if len(cfg.CORSAllowOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.CORSAllowOrigins,
			AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
			AllowHeaders: []string{
				echo.HeaderOrigin,
				echo.HeaderContentType,
				echo.HeaderAccept,
				echo.HeaderAuthorization,
			},
			AllowCredentials: true,
		}))
	}

	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.RateLimitPerSecond),
				Burst:     cfg.RateLimitBurst,
				ExpiresIn: time.Duration(cfg.RateLimitWindowMinutes) * time.Minute,
			},
		),
	}))

	// Public routes
	e.POST("/login", handler.LoginUser(authService))
	e.GET("/ws", handler.WebSocketHandler(hub))
	e.GET("/", func(c echo.Context) error { // Health check
		return c.JSON(200, map[string]interface{}{
			"success": true,
			"message": "vrcnotify is running",
			"version": "1.0.0",
		})
	})

	// Dashboard routes behind JWT
	api := e.Group("/api", customMiddleware.JWTAuthMiddleware(authService))
	api.GET("/instances", handler.ListInstances(client))
	api.GET("/status", handler.GetWorkerStatus(pollWorker))
	api.POST("/notify-test", handler.SendTestNotification(notifier))

	go pollWorker.Start()

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	// Wait for termination signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	pollWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("shutdown complete")
}
