package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/procuro-ai/be-po-orders/internal/client"
	"github.com/procuro-ai/be-po-orders/internal/config"
	"github.com/procuro-ai/be-po-orders/internal/database"
	"github.com/procuro-ai/be-po-orders/internal/handler"
	"github.com/procuro-ai/be-po-orders/internal/logger"
	"github.com/procuro-ai/be-po-orders/internal/middleware"
	"github.com/procuro-ai/be-po-orders/internal/repository"
	"github.com/procuro-ai/be-po-orders/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Purchase Orders Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// NATS is optional: without it notifications are logged and dropped.
	var natsConn *nats.Conn
	if cfg.NATS.URL != "" {
		natsConn, err = nats.Connect(cfg.NATS.URL,
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NATS.URL).Msg("NATS unavailable; notifications disabled")
			natsConn = nil
		} else {
			defer natsConn.Close()
			log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
		}
	}

	// Redis is optional: without it cache invalidation is a no-op.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable; cache invalidation disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connection established")
		}
	}

	// Initialize repositories
	orderRepo := repository.NewOrderRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	itemRepo := repository.NewItemRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	installmentRepo := repository.NewInstallmentRepository(db)
	roleDirectoryRepo := repository.NewRoleDirectoryRepository(db)

	// Initialize clients
	notifier, err := client.NewNotificationPublisher(natsConn, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create notification publisher")
	}
	cacheInvalidator := client.NewCacheInvalidator(redisClient, log.Logger)

	// Initialize services
	matcher := service.NewWorkflowMatcher(workflowRepo, log)
	chainService := service.NewApprovalChainService(matcher, approvalRepo, orderRepo, roleDirectoryRepo, notifier, log)
	stockService := service.NewStockService(itemRepo, orderRepo, log)
	approvalService := service.NewApprovalService(approvalRepo, orderRepo, workflowRepo, stockService, notifier, log)
	installmentService := service.NewInstallmentService(installmentRepo, transactionRepo, log)
	numberService := service.NewOrderNumberService(orderRepo, log)
	orderService := service.NewOrderService(orderRepo, transactionRepo, numberService, installmentService, chainService, log)
	workflowService := service.NewWorkflowService(workflowRepo, log)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(orderService, approvalService, stockService, installmentService, workflowService, cacheInvalidator, log)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Order routes
	mux.HandleFunc("/api/v1/orders", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			httpHandler.CreateOrder(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/orders/get", httpHandler.GetOrder)
	mux.HandleFunc("/api/v1/orders/stock/validate", httpHandler.ValidateStock)

	// Approval routes
	mux.HandleFunc("/api/v1/approvals", httpHandler.ListChain)
	mux.HandleFunc("/api/v1/approvals/process", httpHandler.ProcessApproval)
	mux.HandleFunc("/api/v1/approvals/pending", httpHandler.PendingApprovals)

	// Installment routes
	mux.HandleFunc("/api/v1/installments", httpHandler.ListInstallments)
	mux.HandleFunc("/api/v1/installments/payment", httpHandler.RecordInstallmentPayment)

	// Workflow routes
	mux.HandleFunc("/api/v1/workflows", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			httpHandler.ListWorkflows(w, r)
		case http.MethodPost:
			httpHandler.CreateWorkflow(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Apply middleware
	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(30 * time.Second)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
