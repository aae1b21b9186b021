package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/gofrolist/calorie-track-ai-bot/internal/api/handlers"
	"github.com/gofrolist/calorie-track-ai-bot/internal/api/middleware"
	"github.com/gofrolist/calorie-track-ai-bot/internal/services"
)

type Deps struct {
	Webhook   *handlers.WebhookHandler
	Photo     *handlers.PhotoHandler
	Meal      *handlers.MealHandler
	Goal      *handlers.GoalHandler
	Stats     *handlers.StatsHandler
	Analytics *handlers.AnalyticsHandler
	Health    *handlers.HealthHandler
	WS        *handlers.WSHandler

	Users services.UserService
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Platform-facing surface, no user auth
	r.POST("/telegram/webhook", d.Webhook.Receive)
	r.GET("/health/live", d.Health.Live)
	r.GET("/health/ready", d.Health.Ready)

	// Mini-app API
	api := r.Group("/api/v1")
	api.Use(middleware.Auth(d.Users))

	api.POST("/photos", d.Photo.Create)
	api.POST("/photos/:photo_id/estimate", d.Photo.DispatchEstimate)
	api.GET("/photos/:photo_id/estimate", d.Photo.GetEstimateByPhoto)
	api.GET("/estimates/:estimate_id", d.Photo.GetEstimate)

	api.POST("/meals", d.Meal.Create)
	api.GET("/meals", d.Meal.List)
	api.GET("/meals/:meal_id", d.Meal.Get)
	api.PATCH("/meals/:meal_id", d.Meal.Update)
	api.DELETE("/meals/:meal_id", d.Meal.Delete)

	api.GET("/goals/daily", d.Goal.Get)
	api.PUT("/goals/daily", d.Goal.Set)

	api.GET("/stats/daily", d.Stats.Daily)
	api.GET("/stats/summary", d.Stats.Summary)

	api.GET("/analytics/inline-summary", d.Analytics.InlineSummary)

	// WebSocket
	api.GET("/ws/estimates/:photo_id", d.WS.EstimateWS)
}
