package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bitslow/cache"
	"bitslow/config"
	"bitslow/handlers"
	"bitslow/logger"
	"bitslow/migrations"
	"bitslow/repository"
	"bitslow/service"

	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	logg, err := logger.New(cfg.Debug)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	db, err := config.InitDB(ctx, cfg)
	if err != nil {
		logg.Fatal("connect database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	if err := migrations.Up(db); err != nil {
		logg.Fatal("migrate database", zap.Error(err))
	}

	repoImpl := repository.NewPostgresRepository(db, logg, repository.WithMaxRetries(cfg.TxMaxRetries))
	responses := cache.New(cfg.CacheSize, cfg.CacheTTL)
	auth := service.NewJWTAuth(cfg.JWTSecret, cfg.JWTTTL)

	svc := service.NewService(
		repoImpl,
		auth,
		service.WithCache(responses),
		service.WithLogger(logg),
	)

	if cfg.SeedAvailableCoins > 0 {
		if _, err := svc.SeedMarket(ctx, cfg.SeedAvailableCoins, cfg.SeedMinValue, cfg.SeedMaxValue); err != nil {
			logg.Warn("market seeding skipped", zap.Error(err))
		}
	}

	h := handlers.NewHandler(svc, auth, responses, logg)
	r := handlers.NewRouter(h, handlers.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))

	srv := http.Server{
		Handler:      r,
		Addr:         ":" + cfg.ServerPort,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logg.Error("shutdown", zap.Error(err))
		}
	}()

	logg.Info("server started", zap.String("port", cfg.ServerPort))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Fatal("serve", zap.Error(err))
	}
}
