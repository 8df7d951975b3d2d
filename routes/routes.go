package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/consulting-portal-api/controllers"
	"github.com/kendall-kelly/consulting-portal-api/middleware"
	"github.com/kendall-kelly/consulting-portal-api/models"
	"go.uber.org/zap"
)

// Handlers groups the controllers mounted under /api/v1
type Handlers struct {
	Health    *controllers.HealthController
	Orders    *controllers.OrderController
	Documents *controllers.DocumentController
	Messages  *controllers.MessageController
	Users     *controllers.UserController
	Catalog   *controllers.CatalogController
	// Uploads is only set for the local storage provider
	Uploads *controllers.UploadController
}

// Options carries the cross-cutting middleware dependencies
type Options struct {
	Logger       *zap.Logger
	CORSOrigins  []string
	Authenticate gin.HandlerFunc
	Users        middleware.UserLookup
	ChatLimiter  *middleware.UserRateLimiter
}

// SetupRouter builds the gin engine with every API route
func SetupRouter(h Handlers, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery(opts.Logger), middleware.RequestLogger(opts.Logger), middleware.CORS(opts.CORSOrigins))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", h.Health.Health)
		v1.GET("/database/status", h.Health.DatabaseStatus)
		if h.Uploads != nil {
			v1.GET("/uploads/*key", h.Uploads.GetUpload)
		}

		// first login: the user record may not exist yet, so no actor is loaded
		v1.POST("/users", opts.Authenticate, h.Users.CreateUser)
	}

	authed := v1.Group("", opts.Authenticate, middleware.LoadActor(opts.Users))
	staff := middleware.RequireRole(models.RoleAdmin, models.RoleEmployee)
	admin := middleware.RequireRole(models.RoleAdmin)

	orders := authed.Group("/orders")
	{
		orders.POST("", middleware.RequireRole(models.RoleClient), h.Orders.CreateOrder)
		orders.GET("", h.Orders.ListOrders)
		orders.GET("/:id", h.Orders.GetOrder)
		orders.PATCH("/:id/status", staff, h.Orders.UpdateOrderStatus)
		orders.POST("/:id/payment", h.Orders.UpdateOrderPayment)
		orders.POST("/:id/notes", staff, h.Orders.AddOrderNote)
		orders.DELETE("/:id", admin, h.Orders.DeleteOrder)

		orders.GET("/:id/messages", h.Messages.GetOrderMessages)
		orders.GET("/:id/messages/unread", h.Messages.UnreadCount)
		orders.POST("/:id/messages/read", h.Messages.MarkOrderMessagesAsRead)
		orders.POST("/:id/messages", limited(opts.ChatLimiter, h.Messages.SendOrderMessage)...)
		orders.POST("/:id/messages/attachment", limited(opts.ChatLimiter, h.Messages.SendOrderMessageWithAttachment)...)

		orders.POST("/:id/documents", h.Documents.UploadOrderDocument)
		orders.GET("/:id/documents", h.Documents.ListOrderDocuments)
		orders.GET("/:id/documents/categories", h.Documents.CategoryCounts)
		orders.DELETE("/:id/documents/:docId", h.Documents.DeleteOrderDocument)
		orders.POST("/:id/documents/batch-delete", h.Documents.BatchDeleteOrderDocuments)
		orders.POST("/:id/documents/download-links", h.Documents.DownloadLinks)
	}

	users := authed.Group("/users")
	{
		users.GET("/me", h.Users.GetMyProfile)
		users.PUT("/me", h.Users.UpdateMyProfile)
		users.POST("/me/documents", h.Documents.UploadMyDocument)
		users.GET("/me/documents", h.Documents.ListMyDocuments)
		users.DELETE("/me/documents/:docId", h.Documents.DeleteMyDocument)

		users.GET("", admin, h.Users.ListUsers)
		users.PATCH("/:uid/role", admin, h.Users.UpdateUserRole)
		users.DELETE("/:uid", admin, h.Users.DeleteUser)
	}

	catalog := authed.Group("/services")
	{
		catalog.GET("", h.Catalog.ListServices)
		catalog.GET("/:id", h.Catalog.GetService)
		catalog.POST("", admin, h.Catalog.CreateService)
		catalog.PUT("/:id", admin, h.Catalog.UpdateService)
		catalog.POST("/:id/image", admin, h.Catalog.UploadServiceImage)
		catalog.DELETE("/:id", admin, h.Catalog.DeleteService)
	}

	return router
}

// limited prefixes handler with the limiter's middleware when one is configured
func limited(limiter *middleware.UserRateLimiter, handler gin.HandlerFunc) []gin.HandlerFunc {
	if limiter == nil {
		return []gin.HandlerFunc{handler}
	}
	return []gin.HandlerFunc{limiter.Middleware(), handler}
}
