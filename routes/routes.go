package routes

import (
	"marketpulse/controllers"
	"marketpulse/middleware"
	"marketpulse/services/alerts"
	"marketpulse/services/marketdata"
	"marketpulse/services/news"
	"marketpulse/services/realtime"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, db *gorm.DB, quotes *marketdata.Service, newsService *news.Service, hub *realtime.Hub, engine *alerts.Engine) {
	authController := controllers.NewAuthController(db)
	marketController := controllers.NewMarketController(quotes)
	alertController := controllers.NewAlertController(db, engine)
	portfolioController := controllers.NewPortfolioController(db, quotes, hub)
	newsController := controllers.NewNewsController(newsService, hub)
	realtimeController := controllers.NewRealtimeController(hub)

	api := router.Group("/api/v1")
	{
		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", authController.Register)
			auth.POST("/login", middleware.LoginRateLimitMiddleware(), authController.Login)
			auth.GET("/me", middleware.JWTAuthMiddleware(), authController.Me)
		}

		// Market data routes (public)
		market := api.Group("/market")
		{
			market.GET("/quote/:symbol", marketController.GetQuote)
			market.POST("/quotes", marketController.GetBatchQuotes)
			market.GET("/indices", marketController.GetIndices)
		}

		// Alert routes (authenticated)
		alerts := api.Group("/alerts", middleware.JWTAuthMiddleware())
		{
			alerts.POST("", alertController.CreateAlert)
			alerts.GET("", alertController.ListAlerts)
			alerts.GET("/:id", alertController.GetAlert)
			alerts.DELETE("/:id", alertController.DeleteAlert)
		}

		// Portfolio routes (authenticated)
		portfolios := api.Group("/portfolios", middleware.JWTAuthMiddleware())
		{
			portfolios.POST("", portfolioController.CreatePortfolio)
			portfolios.GET("", portfolioController.ListPortfolios)
			portfolios.GET("/:id", portfolioController.GetPortfolio)
			portfolios.DELETE("/:id", portfolioController.DeletePortfolio)
			portfolios.POST("/:id/transactions", portfolioController.ApplyTransaction)
		}

		// News routes (public)
		newsRoutes := api.Group("/news")
		{
			newsRoutes.GET("", newsController.ListNews)
			newsRoutes.GET("/categories", newsController.GetCategories)
		}

		// Realtime status
		api.GET("/realtime/status", realtimeController.GetStatus)

		// Admin routes
		admin := api.Group("/admin", middleware.JWTAuthMiddleware(), middleware.AdminRoleMiddleware())
		{
			admin.POST("/news", newsController.IngestArticle)
			admin.POST("/alerts/run-cycle", alertController.RunCycle)
		}
	}

	// Websocket endpoint
	router.GET("/ws", middleware.OptionalJWTAuthMiddleware(), realtimeController.HandleWebSocket)
}
