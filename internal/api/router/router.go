package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mhixter/arapointx-sub002/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "verification-api",
		})
	})

	jobHandler := handler.NewJobHandler(deps)
	adminHandler := handler.NewAdminHandler(deps)
	orderHandler := handler.NewOrderHandler(deps)

	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.EnqueueJob)
			jobs.GET("/:job_id", jobHandler.GetJob)
		}

		pins := v1.Group("/pins")
		{
			pins.POST("/purchase", orderHandler.PurchasePin)
			pins.GET("/orders/:order_id", orderHandler.GetPinOrder)
		}

		cash := v1.Group("/cash")
		{
			cash.POST("/requests", orderHandler.RequestCash)
			cash.GET("/requests/:order_id", orderHandler.GetCashOrder)
			cash.POST("/requests/:order_id/confirm", orderHandler.ConfirmTransfer)
		}

		admin := v1.Group("/admin")
		{
			admin.GET("/jobs", adminHandler.ListJobs)
			admin.GET("/jobs/stats", adminHandler.JobStats)
			admin.POST("/jobs/:job_id/retry", adminHandler.RetryJob)
			admin.POST("/jobs/:job_id/fail", adminHandler.FailJob)

			admin.GET("/targets", adminHandler.ListTargets)
			admin.PUT("/targets/:service_type", adminHandler.UpsertTarget)

			admin.POST("/cash/:order_id/complete", orderHandler.CompleteCashOrder)
			admin.POST("/cash/:order_id/reject", orderHandler.RejectCashOrder)
		}
	}

	return r
}
