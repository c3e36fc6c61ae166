package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sevenfour/order-workflow-api/config"
	"github.com/sevenfour/order-workflow-api/controllers"
	"github.com/sevenfour/order-workflow-api/middleware"
	"github.com/sevenfour/order-workflow-api/models"
)

// Register mounts every /api route on router. auth validates the caller and must
// populate the subject (EnsureValidToken in production, a stub in tests).
func Register(router *gin.Engine, auth gin.HandlerFunc) {
	controllers.RegisterValidators()

	api := router.Group("/api")
	api.Use(auth)

	// Profile creation runs before a users row exists
	api.POST("/users", controllers.CreateUser)

	authed := api.Group("")
	authed.Use(middleware.LoadCurrentUser())
	admin := middleware.RequireRole(models.RoleAdmin)
	read := scope(middleware.ScopeReadDeliveries)
	write := scope(middleware.ScopeWriteDeliveries)
	remove := scope(middleware.ScopeDeleteDeliveries)

	users := authed.Group("/users")
	{
		users.GET("/me", controllers.GetMyProfile)
		users.PUT("/me", controllers.UpdateMyProfile)
	}

	orders := authed.Group("/orders")
	{
		orders.POST("", controllers.CreateOrder)
		orders.GET("/me", controllers.GetMyOrders)
		orders.POST("/refund-request", controllers.CreateRefundRequest)
		orders.GET("/:id", controllers.GetOrder)
		orders.PUT("/:id/confirm", admin, controllers.ConfirmOrder)
		orders.POST("/:id/cancellation-requests", controllers.CreateOrderCancellationRequest)
	}

	custom := authed.Group("/custom-orders")
	{
		custom.POST("", controllers.CreateCustomOrder)
		custom.GET("/me", controllers.GetMyCustomOrders)
		custom.POST("/cancellation-requests", controllers.CreateCustomCancellationRequest)
		custom.GET("/cancellation-requests", admin, controllers.ListCustomCancellationRequests)
		custom.PUT("/cancellation-requests/:requestId", admin, controllers.ResolveCustomCancellationRequest)
		custom.GET("/:customOrderId", controllers.GetCustomOrder)
		custom.PUT("/:customOrderId/status", admin, controllers.UpdateCustomOrderStatus)
		custom.PUT("/:customOrderId/payment", admin, controllers.UpdateCustomOrderPayment)
	}

	cancellations := authed.Group("/cancellation-requests")
	{
		cancellations.GET("", admin, controllers.ListCancellationRequests)
		cancellations.GET("/me", controllers.ListMyCancellationRequests)
		cancellations.PUT("/:requestId", admin, controllers.ResolveCancellationRequest)
	}

	authed.PUT("/delivery-status/orders/:id/status", admin, write, controllers.UpdateDeliveryStatus)

	delivery := authed.Group("/delivery-enhanced")
	{
		delivery.GET("/orders/:type/:id", controllers.GetDeliveryOrder)
		delivery.GET("/orders", admin, read, controllers.ListDeliveryOrders)
		delivery.GET("/orders/:type/:id/history", admin, read, controllers.GetDeliveryHistory)
		delivery.POST("/schedule", admin, write, controllers.ScheduleDelivery)
		delivery.GET("/calendar", admin, read, controllers.GetDeliveryCalendar)
		delivery.PUT("/calendar/:date", admin, write, controllers.UpdateCalendarDay)
		delivery.POST("/manifests/:date", admin, read, controllers.GenerateManifest)
	}

	couriers := authed.Group("/couriers", admin)
	{
		couriers.GET("", controllers.ListCouriers)
		couriers.GET("/active", controllers.ListActiveCouriers)
		couriers.POST("", write, controllers.CreateCourier)
		couriers.PUT("/:id", write, controllers.UpdateCourier)
		couriers.DELETE("/:id", remove, controllers.DeactivateCourier)
	}
}

// scope requires an Auth0 permission when AUTH0_ENFORCE_SCOPES is on
func scope(name string) gin.HandlerFunc {
	if cfg := config.GetConfig(); cfg != nil && cfg.Auth0EnforceScopes {
		return middleware.RequireScope(name)
	}
	return func(c *gin.Context) { c.Next() }
}
