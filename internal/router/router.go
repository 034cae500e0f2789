// Package router assembles the HTTP engine: middleware, ops endpoints and the
// versioned API routes.
package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"tally/internal/config"
	"tally/internal/docs"
	"tally/internal/handlers"
	"tally/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Budget      *handlers.BudgetHandler
	Payment     *handlers.PaymentHandler
	Analytics   *handlers.AnalyticsHandler
	Transaction *handlers.TransactionHandler
	Category    *handlers.CategoryHandler
	Pipeline    *handlers.PipelineHandler
}

// New builds the gin engine with middleware and every route attached.
func New(cfg *config.Config, h Handlers) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(gin.Recovery())
	r.Use(requestid.New())
	r.Use(middleware.RequestLogging())
	r.Use(middleware.ErrorHandler())
	r.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ErrorResponse{Error: handlers.ErrorDetail{Code: "NOT_FOUND", Message: "Route not found"}})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, handlers.ErrorResponse{Error: handlers.ErrorDetail{Code: "METHOD_NOT_ALLOWED", Message: "This HTTP method is not allowed for the endpoint you called"}})
	})

	if cfg.EnablePprof {
		pprof.Register(r)
	}

	docs.SwaggerInfo.BasePath = "/api/v1"
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	AttachRoutes(r.Group("/api/v1"), cfg, h)
	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-API-Key", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	return c
}

// AttachRoutes mounts the API routes on group.
func AttachRoutes(group *gin.RouterGroup, cfg *config.Config, h Handlers) {
	// Called by the recurring-payment generator.
	pipeline := group.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(cfg.PipelineAPIKey))
	pipeline.POST("/budgets/:id/sync", h.Pipeline.SyncBudget)

	protected := group.Group("")
	protected.Use(middleware.AuthMiddleware())

	budgets := protected.Group("/budgets")
	budgets.GET("", h.Budget.ListBudgets)
	budgets.POST("", h.Budget.CreateBudget)
	budgets.GET("/current", h.Budget.GetCurrentWeek)
	budgets.GET("/shared", h.Budget.ListShared)
	budgets.GET("/:id", h.Budget.GetBudget)
	budgets.PUT("/:id/total", h.Budget.UpdateTotal)
	budgets.PUT("/:id/categories", h.Budget.ReplaceCategories)
	budgets.DELETE("/:id/categories/:categoryId", h.Budget.DeleteCategory)
	budgets.POST("/:id/categories/:categoryId/payments", h.Payment.AddPayment)
	budgets.PUT("/:id/payments/:paymentId/status", h.Payment.UpdatePaymentStatus)
	budgets.PUT("/:id/payments/:paymentId", h.Payment.UpdatePayment)
	budgets.DELETE("/:id/payments/:paymentId", h.Payment.DeletePayment)
	budgets.POST("/:id/sync", h.Budget.SyncFromSchedules)
	budgets.PUT("/:id/sharing", h.Budget.SetSharing)
	budgets.GET("/:id/recommendations", h.Budget.GetRecommendations)

	analytics := protected.Group("/analytics")
	analytics.GET("/insights", h.Analytics.GetInsights)
	analytics.GET("/anomalies", h.Analytics.GetAnomalies)
	analytics.POST("/allocations", h.Analytics.OptimizeAllocations)
	analytics.GET("/forecast", h.Analytics.GetForecast)

	transactions := protected.Group("/transactions")
	transactions.POST("", h.Transaction.CreateTransaction)
	transactions.GET("", h.Transaction.GetUserTransactions)
	transactions.GET("/:id", h.Transaction.GetTransactionByID)
	transactions.DELETE("/:id", h.Transaction.DeleteTransaction)

	categories := protected.Group("/categories")
	categories.GET("", h.Category.GetUserCategories)
	categories.GET("/:id", h.Category.GetCategoryByID)
}
