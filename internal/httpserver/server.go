package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/openarena/wallet/pkg/wallet"
	"go.uber.org/zap"
)

// Run boots the HTTP façade and blocks until ctx is cancelled or the
// listener fails.
func Run(ctx context.Context, cfg Config, logger *zap.Logger, walletService *wallet.Service) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	router := NewRouter(cfg, logger, walletService)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("wallet api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// NewRouter assembles the gin engine with all wallet routes mounted.
func NewRouter(cfg Config, logger *zap.Logger, walletService *wallet.Service) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handler := &httpHandler{
		logger:        logger,
		walletService: walletService,
	}

	api := router.Group("/v1")
	api.POST("/accounts", handler.handleCreateAccount)
	api.GET("/accounts/:id", handler.handleGetAccount)
	api.GET("/accounts/:id/balance", handler.handleGetBalance)
	api.POST("/accounts/:id/credit", handler.handleCredit)
	api.POST("/accounts/:id/debit", handler.handleDebit)
	api.GET("/accounts/:id/transactions", handler.handleListTransactions)

	admin := router.Group("/v1/admin")
	admin.Use(requireAdmin(cfg.AdminJWTSecret, cfg.AdminJWTIssuer))
	admin.POST("/accounts/:id/adjust", handler.handleAdminAdjust)

	return router
}
