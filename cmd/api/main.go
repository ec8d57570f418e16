package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/habitbank/habitbank-api/internal/config"
	"github.com/habitbank/habitbank-api/internal/domain/event"
	"github.com/habitbank/habitbank-api/internal/domain/habit"
	"github.com/habitbank/habitbank-api/internal/domain/timebank"
	"github.com/habitbank/habitbank-api/internal/middleware"
	"github.com/habitbank/habitbank-api/internal/pkg/database"
	"github.com/habitbank/habitbank-api/internal/pkg/jwt"
	"github.com/habitbank/habitbank-api/internal/pkg/logger"
	pkgresponse "github.com/habitbank/habitbank-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting HabitBank API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	clock, err := timebank.NewClock(cfg.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("Invalid timezone")
	}

	policy := timebank.DefaultPolicy()
	policy.DailyEarningCap = cfg.DailyEarningCap
	policy.DailySpendingCap = cfg.DailySpendingCap
	policy.MinBalance = cfg.MinBalance
	policy.MaxBalance = cfg.MaxBalance
	policy.InitialBalance = cfg.InitialBalance

	// Snapshots live in Redis when available, otherwise Postgres. The
	// transaction archive always goes to Postgres.
	var ledgerStore timebank.Store
	if redis != nil {
		ledgerStore = timebank.NewRedisStore(redis)
	} else {
		ledgerStore = timebank.NewPostgresStore(db)
	}
	archive := timebank.NewPostgresArchive(db)

	// ---------- WebSocket hub ----------
	hub := event.NewHub(redis)
	go hub.Run()
	defer hub.Shutdown()

	// ---------- Services ----------
	timebankService := timebank.NewService(policy, clock, ledgerStore, archive, hub)
	habitRepo := habit.NewRepository(db)
	habitService := habit.NewService(habitRepo, timebankService, clock)

	// ---------- Handlers ----------
	timebankHandler := timebank.NewHandler(timebankService)
	habitHandler := habit.NewHandler(habitService)
	eventHandler := event.NewHandler(hub, cfg.AllowedOrigins)

	authMiddleware := middleware.Auth(jwtService)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	// WebSocket endpoint (before Compress)
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		authMiddleware(http.HandlerFunc(eventHandler.WebSocket)).ServeHTTP(w, r)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Compress(5))

		r.Mount("/timebank", timebankHandler.Routes(authMiddleware))
		r.Mount("/habits", habitHandler.Routes(authMiddleware))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
