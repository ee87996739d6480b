package app

import (
	"dynamic_quiz_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	api := router.Group("/api")
	api.GET("/health", c.health.HealthCheck)

	// 动态测验
	sessions := api.Group("/quiz-sessions")
	{
		sessions.POST("", c.quizSession.CreateSession)
		sessions.GET("", c.quizSession.ListSessions)
		sessions.GET("/:id", c.quizSession.GetSession)
		sessions.POST("/:id/responses", c.quizSession.SubmitAnswer)
		sessions.GET("/:id/analytics", c.quizSession.GetAnalytics)
	}
}
