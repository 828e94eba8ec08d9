package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/astrobalance/vaultgate/internal/audit"
	"github.com/astrobalance/vaultgate/internal/chain"
	"github.com/astrobalance/vaultgate/internal/config"
	"github.com/astrobalance/vaultgate/internal/convert"
	"github.com/astrobalance/vaultgate/internal/handler"
	"github.com/astrobalance/vaultgate/internal/ledger"
	"github.com/astrobalance/vaultgate/internal/middleware"
	"github.com/astrobalance/vaultgate/internal/pkg/logger"
	"github.com/astrobalance/vaultgate/internal/protocol"
	"github.com/astrobalance/vaultgate/internal/repository"
	"github.com/astrobalance/vaultgate/internal/vault"
	"github.com/astrobalance/vaultgate/internal/venue"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 0. Initialize Logger
	logger.Init("info")

	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize Persistence
	// Ledger (Redis > Memory)
	var store ledger.Store
	if cfg.Redis.Addr != "" {
		redisStore, err := repository.NewRedisStore(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis ledger")
			store = redisStore
		} else {
			logger.Error("⚠️ Failed to connect to Redis, falling back to memory", "error", err)
		}
	}
	if store == nil {
		store = ledger.NewMemoryStore()
	}

	// Archive + Audit (Postgres > Local File)
	var historyArchive vault.HistoryArchive
	var auditRepo audit.Repo
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			logger.Info("✅ Connected to PostgreSQL")
			historyArchive = repository.NewPostgresHistoryRepo(db)
			auditRepo = repository.NewPostgresAuditRepo(db)
		} else {
			logger.Error("⚠️ Failed to connect to DB, history and audit will be ledger/file-only", "error", err)
		}
	}

	auditSvc, err := audit.NewService("./logs", auditRepo)
	if err != nil {
		log.Fatalf("Failed to initialize audit service: %v", err)
	}

	// 3. Initialize Core Services
	rateBook := venue.NewRateBook()
	var rateStream *venue.Stream
	if cfg.Venue.StreamURL != "" {
		rateStream = venue.NewStream(cfg.Venue.StreamURL, rateBook)
		rateStream.Start()
	}

	quoter := venue.NewClient(cfg.Venue.QuoteURL, cfg.Venue.RouterAddr,
		time.Duration(cfg.Venue.QuoteTimeoutMs)*time.Millisecond, rateBook)
	converter := convert.NewRouter(quoter, cfg.Vault.BaseDenom)

	chainClient := chain.NewClient(cfg.Chain.RESTURL, time.Duration(cfg.Chain.TimeoutMs)*time.Millisecond)
	registry := protocol.NewRegistry(cfg.Vault.BaseDenom, cfg.Vault.Address, chainClient)

	vaultSvc := vault.NewService(store, registry, converter, historyArchive, cfg.Vault.Address)
	if err := vaultSvc.Initialize(context.Background(), cfg); err != nil {
		log.Fatalf("Failed to initialize vault ledger: %v", err)
	}

	// 4. Initialize Handlers
	vaultHandler := handler.NewVaultHandler(vaultSvc)
	adminHandler := handler.NewAdminHandler(vaultSvc)
	queryHandler := handler.NewQueryHandler(vaultSvc, rateBook, auditSvc)

	// 5. Setup Router
	r := gin.Default()

	// Global Middleware
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.AuditMiddleware(auditSvc))

	// Health Check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "vaultgate"})
	})

	// Metrics Endpoint
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// API V1 Routes
	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg))
	v1.Use(middleware.RateLimitMiddleware(cfg))
	v1.Use(middleware.ReadOnlyMiddleware(cfg.Server.ReadOnly))
	{
		// deposit / withdraw / rebalance
		v1.POST("/vault/deposit", vaultHandler.Deposit)
		v1.POST("/vault/withdraw", vaultHandler.Withdraw)
		v1.POST("/vault/emergency-withdraw", vaultHandler.EmergencyWithdraw)
		v1.POST("/vault/rebalance", vaultHandler.Rebalance)
		v1.POST("/vault/refresh-balances", vaultHandler.RefreshBalances)

		// admin surface
		v1.POST("/admin/protocols", adminHandler.AddProtocol)
		v1.DELETE("/admin/protocols/:name", adminHandler.RemoveProtocol)
		v1.PATCH("/admin/protocols/:name", adminHandler.UpdateProtocol)
		v1.PUT("/admin/risk-parameters", adminHandler.UpdateRiskParameters)
		v1.POST("/admin/denoms", adminHandler.AddSupportedDenom)
		v1.DELETE("/admin/denoms/:denom", adminHandler.RemoveSupportedDenom)
		v1.PUT("/admin/roles/admin", adminHandler.UpdateAdmin)
		v1.PUT("/admin/roles/operator", adminHandler.UpdateOperator)

		// queries
		v1.GET("/config", queryHandler.GetConfig)
		v1.GET("/risk-parameters", queryHandler.GetRiskParameters)
		v1.GET("/users/:address", queryHandler.GetUserInfo)
		v1.GET("/protocols", queryHandler.GetProtocols)
		v1.GET("/protocols/:name", queryHandler.GetProtocolInfo)
		v1.GET("/protocols/:name/apy", queryHandler.GetProtocolAPY)
		v1.GET("/total-value", queryHandler.GetTotalValue)
		v1.GET("/rebalance/history", queryHandler.GetRebalanceHistory)
		v1.POST("/rebalance/check", queryHandler.CheckRebalance)
		v1.GET("/rates", queryHandler.GetRates)
		v1.GET("/audit-logs", queryHandler.GetAuditLogs)
	}

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 VaultGate started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if rateStream != nil {
		rateStream.Stop()
	}
	auditSvc.Close()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("Server exiting")
}
