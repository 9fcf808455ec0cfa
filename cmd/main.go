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

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"stockledger/config"
	"stockledger/internal/api/product"
	"stockledger/internal/api/report"
	"stockledger/internal/api/router"
	"stockledger/internal/api/sale"
	"stockledger/internal/api/user"
	"stockledger/internal/domain"
	"stockledger/internal/pkg/cache"
	"stockledger/internal/pkg/database"
	"stockledger/internal/pkg/logger"
	"stockledger/internal/pkg/token"
	"stockledger/internal/repository/productrepo"
	"stockledger/internal/repository/salerepo"
	"stockledger/internal/repository/userrepo"
	"stockledger/internal/service/productservice"
	"stockledger/internal/service/reportservice"
	"stockledger/internal/service/saleservice"
	"stockledger/internal/service/userservice"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading configuration from the environment only")
	}

	cfg := config.LoadConfig()
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("configuration loaded", map[string]interface{}{"env": cfg.Environment, "port": cfg.Port})

	// Amounts go out as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Infrastructure
	db, err := database.Open(cfg.DatabaseURL, cfg.DBTimeout)
	if err != nil {
		log.Fatal("failed to open database", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal("failed to migrate database", err)
	}
	log.Info("database ready", map[string]interface{}{"dialect": string(db.Dialect())})

	var cacheClient cache.Client = cache.Noop{}
	if cfg.RedisAddr != "" {
		redisClient, err := cache.NewRedisClient(cfg.RedisAddr)
		if err != nil {
			log.Fatal("failed to connect to redis", err)
		}
		defer redisClient.Close()
		cacheClient = redisClient
		log.Info("redis connected", map[string]interface{}{"addr": cfg.RedisAddr})
	} else {
		log.Warn("REDIS_ADDR not set, product cache and rate limiting disabled", nil)
	}

	// 2. Repository -> Service -> Handler
	productRepo := productrepo.NewProductRepository(db, cacheClient, cfg.CacheTTL, log)
	saleRepo := salerepo.NewSaleRepository(db, cacheClient, log)
	userRepo := userrepo.NewUserRepository(db, log)

	tokenSvc := token.NewService(cfg.JWTSecretKey, cfg.TokenExpiry)
	productSvc := productservice.NewService(productRepo, log)
	saleSvc := saleservice.NewService(saleRepo, log)
	reportSvc := reportservice.NewService(saleSvc, productSvc)
	userSvc := userservice.NewService(userRepo, tokenSvc, log)

	if cfg.AdminPassword != "" {
		created, err := userSvc.EnsureAdmin(ctx, domain.UserRegistration{
			Username: cfg.AdminUsername,
			Email:    cfg.AdminEmail,
			Password: cfg.AdminPassword,
		})
		if err != nil {
			log.Fatal("failed to bootstrap admin account", err)
		}
		if created {
			log.Info("admin account created", map[string]interface{}{"username": cfg.AdminUsername})
		}
	}

	rateLimit := cfg.RateLimitMaxRequests
	if cfg.RedisAddr == "" {
		rateLimit = 0
	}

	handler := router.NewRouter(router.Dependencies{
		ProductHandler:       product.NewHandler(productSvc, saleSvc, log),
		SaleHandler:          sale.NewHandler(saleSvc, log),
		ReportHandler:        report.NewHandler(reportSvc, log),
		UserHandler:          user.NewHandler(userSvc, log),
		Tokens:               tokenSvc,
		Cache:                cacheClient,
		Logger:               log,
		RateLimitMaxRequests: rateLimit,
		RateLimitPeriod:      cfg.RateLimitPeriod,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 3. Serve until a signal arrives
	go func() {
		log.Info("server listening", map[string]interface{}{"port": cfg.Port})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", err)
	}
	log.Info("server stopped", nil)
}
