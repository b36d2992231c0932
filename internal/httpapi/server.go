// Package httpapi exposes the marketplace over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lastcall-foods/lastcall/pkg/market"
	"go.uber.org/zap"
)

const shutdownGrace = 5 * time.Second

// Dependencies wires the HTTP layer.
type Dependencies struct {
	Checkout       Checkout
	Catalog        market.ProductCatalog
	Adjuster       StockAdjuster
	Pending        StockSetQueue
	Orders         OrderLister
	Directory      market.StoreDirectory
	Sessions       *SessionValidator
	Logger         *zap.Logger
	AllowedOrigins []string
}

// NewRouter builds the gin engine with all routes mounted.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Checkout == nil || deps.Catalog == nil || deps.Adjuster == nil || deps.Pending == nil || deps.Orders == nil || deps.Directory == nil {
		return nil, fmt.Errorf("%w: http dependencies are incomplete", market.ErrValidation)
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("%w: session validator is required", market.ErrValidation)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	api := &handlers{
		checkout:  deps.Checkout,
		catalog:   deps.Catalog,
		adjuster:  deps.Adjuster,
		pending:   deps.Pending,
		orders:    deps.Orders,
		directory: deps.Directory,
		logger:    deps.Logger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if len(deps.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	group := router.Group("/api")
	group.Use(deps.Sessions.GinMiddleware())

	group.GET("/products/:product_id/stock", api.handleStock)

	group.POST("/payment/init", requireRole(roleCustomer), api.handleInitPayment)
	group.POST("/payment/confirm", requireRole(roleCustomer), api.handleConfirm)
	group.DELETE("/payment/cancel/:payment_id", requireRole(roleCustomer), api.handleCancel)

	group.PATCH("/orders/:payment_id/accept", requireRole(roleSeller), api.handleAccept)
	group.PATCH("/orders/:payment_id/pickup-ready", requireRole(roleSeller), api.handlePickupReady)
	group.POST("/orders/:payment_id/cancel", requireRole(roleSeller), api.handleStoreCancel)
	group.POST("/orders/:payment_id/complete", requireRole(roleCustomer), api.handleComplete)

	store := group.Group("/store", requireRole(roleSeller))
	store.GET("/orders", api.handleListStoreOrders)
	store.POST("/products", api.handleCreateProduct)
	store.PATCH("/products/:product_id/stock", api.handleAdjustStock)

	return router, nil
}

// Serve runs the HTTP server until ctx is canceled, then drains it.
func Serve(ctx context.Context, addr string, router *gin.Engine, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("marketd listening", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
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
