package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/amankumar-in/phantom-stake-sub001/internal/auth"
	"github.com/amankumar-in/phantom-stake-sub001/internal/compounding"
	"github.com/amankumar-in/phantom-stake-sub001/internal/deposit"
	"github.com/amankumar-in/phantom-stake-sub001/internal/handler"
	"github.com/amankumar-in/phantom-stake-sub001/internal/matching"
	"github.com/amankumar-in/phantom-stake-sub001/internal/middleware"
	"github.com/amankumar-in/phantom-stake-sub001/internal/pool"
	"github.com/amankumar-in/phantom-stake-sub001/internal/qualification"
	"github.com/amankumar-in/phantom-stake-sub001/internal/repository/postgres"
	"github.com/amankumar-in/phantom-stake-sub001/internal/roi"
	"github.com/amankumar-in/phantom-stake-sub001/internal/scheduler"
	"github.com/amankumar-in/phantom-stake-sub001/internal/withdrawal"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/cache"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/config"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/logger"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/validator"
)

func main() {
	godotenv.Load()

	cfg := config.Load()
	log := logger.New("staking-api")

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Starting staking API", map[string]interface{}{
		"port": cfg.Server.Port,
	})

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	log.Info("Database connected", nil)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer redisClient.Close()

	log.Info("Redis connected", nil)

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	walletRepo := postgres.NewWalletRepository(db)
	stakeRepo := postgres.NewStakeRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	txRepo := postgres.NewTransactionRepository(db)
	poolRepo := postgres.NewPoolRepository(db)
	treeRepo := postgres.NewTreeRepository(db)

	// Services
	displayCache := cache.NewFromClient(redisClient)
	engine := qualification.NewEngine(stakeRepo, walletRepo, displayCache, log)
	counterUpdater := compounding.NewUpdater(stakeRepo, walletRepo, log)
	bonusEngine := matching.NewEngine(paymentRepo, userRepo, walletRepo, log)
	distributor := pool.NewDistributor(poolRepo, userRepo, walletRepo, log)
	processor := roi.NewProcessor(stakeRepo, engine, counterUpdater, bonusEngine, log)
	authService := auth.NewService(userRepo, walletRepo, treeRepo, log, cfg.JWT.Secret, cfg.JWT.Expiration)
	depositService := deposit.NewService(stakeRepo, treeRepo, distributor, log)
	withdrawalService := withdrawal.NewService(walletRepo, log)

	// Background jobs
	sched := scheduler.NewScheduler(processor, counterUpdater, distributor, cfg.Scheduler, log)
	sched.Start()
	defer sched.Stop()

	// Handlers
	val := validator.New()
	authHandler := handler.NewAuthHandler(authService, val, log)
	stakeHandler := handler.NewStakeHandler(depositService, paymentRepo, val, log)
	walletHandler := handler.NewWalletHandler(withdrawalService, walletRepo, txRepo, val, log)
	adminHandler := handler.NewAdminHandler(processor, counterUpdater, distributor, userRepo, stakeRepo, log)
	systemHandler := handler.NewSystemHandler(db, redisClient, log)

	// Router
	r := mux.NewRouter()

	r.Use(middleware.CORS)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(log).Log)
	r.Use(middleware.NewRateLimiter(redisClient, 150, time.Minute).Limit)

	authMW := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	idemMW := middleware.NewIdempotencyMiddleware(redisClient, 24*time.Hour)

	r.HandleFunc("/health", systemHandler.Health).Methods("GET")
	r.HandleFunc("/status", systemHandler.Status).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")
	api.HandleFunc("/programs", stakeHandler.ListPrograms).Methods("GET")

	protected := api.NewRoute().Subrouter()
	protected.Use(authMW.Authenticate)
	protected.Use(middleware.NewRateLimiter(redisClient, 60, time.Minute).Limit)

	protected.HandleFunc("/stakes", stakeHandler.ListStakes).Methods("GET")
	protected.HandleFunc("/stakes/{id}", stakeHandler.GetStake).Methods("GET")
	protected.HandleFunc("/stakes/{id}/payments", stakeHandler.ListStakePayments).Methods("GET")
	protected.HandleFunc("/roi/payments", stakeHandler.ListROIPayments).Methods("GET")
	protected.HandleFunc("/wallets", walletHandler.GetWallets).Methods("GET")
	protected.HandleFunc("/transactions", walletHandler.ListTransactions).Methods("GET")

	// Money movement rides behind the idempotency key requirement.
	money := protected.NewRoute().Subrouter()
	money.Use(idemMW.Require)
	money.HandleFunc("/stakes", stakeHandler.CreateStake).Methods("POST")
	money.HandleFunc("/withdrawals", walletHandler.Withdraw).Methods("POST")

	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(authMW.RequireAdmin)
	admin.HandleFunc("/roi/run", adminHandler.RunDailyROI).Methods("POST")
	admin.HandleFunc("/compounding/run", adminHandler.RunCounterPass).Methods("POST")
	admin.HandleFunc("/pools/close", adminHandler.ClosePools).Methods("POST")
	admin.HandleFunc("/pools/{program}/{month}/preview", adminHandler.PreviewPool).Methods("GET")
	admin.HandleFunc("/pools/{program}/{month}/distribute", adminHandler.DistributePool).Methods("POST")
	admin.HandleFunc("/users/{id}/rank", adminHandler.SetUserRank).Methods("PUT")
	admin.HandleFunc("/stakes/{id}/deactivate", adminHandler.DeactivateStake).Methods("POST")

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("Staking API started", map[string]interface{}{
			"address": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down staking API...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Staking API forced shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Staking API stopped gracefully", nil)
}
