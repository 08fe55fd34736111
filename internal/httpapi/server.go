// Package httpapi exposes the ticket engine over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/ticketengine/internal/config"
	"github.com/MarkoPoloResearchLab/ticketengine/internal/notify"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/availability"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/delivery"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/ledger"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/payment"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Services bundles the domain services the handlers call.
type Services struct {
	Ledger       *ledger.Service
	Payments     *payment.Service
	Delivery     *delivery.Service
	Availability *availability.Service
	Hub          *notify.Hub
}

func (services Services) validate() error {
	if services.Ledger == nil || services.Payments == nil || services.Delivery == nil || services.Availability == nil || services.Hub == nil {
		return errors.New("httpapi: every service is required")
	}
	return nil
}

// Run serves the API until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config, services Services, logger *zap.Logger) error {
	router, err := NewRouter(cfg, services, logger)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.RequestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ticketd listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	}
}

// NewRouter wires every route onto a gin engine.
func NewRouter(cfg config.Config, services Services, logger *zap.Logger) (*gin.Engine, error) {
	if err := services.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	authenticator, err := newAuthenticator(cfg.SessionSigningKey, cfg.SessionIssuer, cfg.SessionCookieName)
	if err != nil {
		return nil, err
	}
	handler := &httpHandler{
		logger:   logger,
		services: services,
		cfg:      cfg,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Origin", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	public := router.Group("/api")
	public.GET("/pricing", handler.handlePricing)
	public.POST("/payments/notifications", handler.handlePaymentNotification)

	api := router.Group("/api")
	api.Use(authenticator.middleware())
	api.Use(handler.requestTimeout())

	api.GET("/tickets/balance", handler.handleBalance)
	api.GET("/tickets/transactions", handler.handleTransactions)
	api.POST("/tickets/purchases", handler.handleCreatePurchase)
	api.GET("/tickets/purchases", handler.handleListPurchases)
	api.GET("/tickets/purchases/:id", handler.handleGetPurchase)
	api.POST("/tickets/consume", handler.handleConsume)

	api.POST("/orders", handler.handleCreateOrder)
	api.GET("/orders/:id", handler.handleGetOrder)
	api.POST("/orders/:id/status", handler.handleTransitionOrder)
	api.POST("/orders/:id/rating", handler.handleSubmitRating)
	api.GET("/orders/:id/rating", handler.handleGetRating)

	api.GET("/availability", handler.handleGetAvailability)
	api.PATCH("/availability", handler.handleSetAvailability)

	api.POST("/admin/tickets/adjust", handler.handleAdjust)
	api.GET("/admin/tickets/:userId/audit", handler.handleAudit)

	// The event stream outlives the request timeout.
	router.GET("/api/events", authenticator.middleware(), handler.handleEvents)

	return router, nil
}

type httpHandler struct {
	logger   *zap.Logger
	services Services
	cfg      config.Config
}

func (handler *httpHandler) requestTimeout() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if handler.cfg.RequestTimeout <= 0 {
			ctx.Next()
			return
		}
		requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
		defer cancel()
		ctx.Request = ctx.Request.WithContext(requestCtx)
		ctx.Next()
	}
}
