package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"partsledger/internal/logger"
	"partsledger/internal/services"
)

// RouterDeps is everything SetupRouter wires into the HTTP API.
type RouterDeps struct {
	Catalog   *services.CatalogService
	Invoices  *services.InvoiceService
	Dashboard *services.DashboardService

	// Optional.
	Hub         *Hub
	Idempotency IdempotencyStore
	Redis       Pinger

	CORSOrigins    []string
	RateLimitRPS   float64 // 0 disables rate limiting
	RateLimitBurst int
	Version        string
}

// Pinger is a backend the health check probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IdempotencyTTL is how long a replayable invoice response is kept.
const IdempotencyTTL = 24 * time.Hour

// SetupRouter builds the gin engine serving /api/v1.
func SetupRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// Health check goes before CORS and the limiter so probes are never throttled.
	r.GET("/api/v1/health", func(c *gin.Context) {
		body := gin.H{
			"status":  "ok",
			"service": "partsledger",
			"version": d.Version,
		}
		// A failed Redis ping degrades the report; the probe still passes.
		if d.Redis != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := d.Redis.Ping(ctx); err != nil {
				body["status"] = "degraded"
				body["redis"] = err.Error()
			} else {
				body["redis"] = "ok"
			}
		}
		c.JSON(http.StatusOK, body)
	})

	r.Use(logger.RequestLogger())
	r.Use(CORS(d.CORSOrigins))
	if d.RateLimitRPS > 0 {
		burst := d.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		r.Use(NewRateLimiter(rate.Limit(d.RateLimitRPS), burst).Middleware())
	}

	apiGroup := r.Group("/api/v1")

	catalogController := NewCatalogController(d.Catalog)
	itemsGroup := apiGroup.Group("/items")
	{
		itemsGroup.GET("", catalogController.ListItems)
		itemsGroup.POST("", catalogController.CreateItem)
		itemsGroup.GET("/low-stock", catalogController.LowStock)
		itemsGroup.POST("/import", catalogController.ImportItems)
		itemsGroup.GET("/:id", catalogController.GetItem)
		itemsGroup.PUT("/:id", catalogController.UpdateItem)
		itemsGroup.POST("/:id/restock", catalogController.Restock)
		itemsGroup.POST("/:id/adjust", catalogController.AdjustStock)
		itemsGroup.GET("/:id/movements", catalogController.Movements)
	}

	invoiceController := NewInvoiceController(d.Invoices)
	invoicesGroup := apiGroup.Group("/invoices")
	{
		create := []gin.HandlerFunc{invoiceController.CreateInvoice}
		if d.Idempotency != nil {
			create = append([]gin.HandlerFunc{Idempotency(d.Idempotency, IdempotencyTTL)}, create...)
		}
		invoicesGroup.POST("", create...)
		invoicesGroup.GET("", invoiceController.ListInvoices)
		invoicesGroup.GET("/ongoing", invoiceController.ListOngoing)
		invoicesGroup.GET("/:id", invoiceController.GetInvoice)
		invoicesGroup.PUT("/:id/complete", invoiceController.CompleteInvoice)
		invoicesGroup.DELETE("/:id", invoiceController.DeleteInvoice)
		invoicesGroup.GET("/:id/receipt", invoiceController.Receipt)
		invoicesGroup.GET("/:id/thermal-receipt", invoiceController.ThermalReceipt)
	}

	dashboardController := NewDashboardController(d.Dashboard)
	apiGroup.GET("/dashboard/stats", dashboardController.Stats)

	if d.Hub != nil {
		apiGroup.GET("/ws/ledger", d.Hub.ServeWS)
	}

	return r
}
