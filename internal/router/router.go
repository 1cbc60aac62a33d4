// Package router assembles the gin engine: middleware, docs, health and the
// /api/v1 routes.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"cogi/internal/handlers"
	"cogi/internal/middleware"
	"cogi/internal/services"
	"cogi/internal/validator"
)

// Services are the domain services the HTTP surface is built on.
type Services struct {
	Users   services.UserServicer
	Auth    services.AuthServicer
	Threads services.ThreadServicer
	Ledger  services.LedgerServicer
	Audit   services.AuditServicer
}

// Options configures the HTTP surface.
type Options struct {
	CORSOrigin  string
	AdminAPIKey string
	Cookie      handlers.CookieConfig
	Swagger     bool
}

// New builds the engine with every route registered.
func New(svc Services, opts Options) *gin.Engine {
	validator.Register()

	authHandler := handlers.NewAuthHandler(svc.Auth, svc.Users, opts.Cookie)
	chatHandler := handlers.NewChatHandler(svc.Threads, svc.Auth)
	ledgerHandler := handlers.NewLedgerHandler(svc.Ledger)
	adminHandler := handlers.NewAdminHandler(svc.Ledger, svc.Users, svc.Audit)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.CORS(opts.CORSOrigin))

	if opts.Swagger {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.GET("/confirm/:token", authHandler.Confirm)
	auth.POST("/password-reset/request", authHandler.RequestPasswordReset)
	auth.POST("/password-reset/complete", authHandler.CompletePasswordReset)
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout)

	v1.GET("/feedback", ledgerHandler.ListFeedback)
	v1.POST("/subscribe", ledgerHandler.Subscribe)

	// Session routes
	protected := v1.Group("/")
	protected.Use(middleware.SessionAuth(svc.Auth, opts.Cookie.Name))

	protected.GET("/profile", authHandler.GetProfile)
	protected.POST("/feedback", ledgerHandler.SubmitFeedback)

	protected.GET("/chat", chatHandler.ChatView)
	protected.POST("/chat/messages", chatHandler.SendMessage)

	threads := protected.Group("/threads")
	threads.GET("", chatHandler.ListThreads)
	threads.POST("", chatHandler.CreateThread)
	threads.POST("/:id/activate", chatHandler.ActivateThread)
	threads.GET("/:id/messages", chatHandler.GetHistory)
	threads.PUT("/:id", chatHandler.RenameThread)
	threads.DELETE("/:id", chatHandler.DeleteThread)

	// Operator routes
	admin := v1.Group("/admin")
	admin.Use(middleware.AdminKeyAuth(opts.AdminAPIKey))
	admin.GET("/subscribers", adminHandler.ListSubscribers)
	admin.POST("/users/unlock", adminHandler.UnlockUser)

	return router
}
