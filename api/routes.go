package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailtrack/api/handlers"
	"github.com/customeros/mailtrack/api/middleware"
	"github.com/customeros/mailtrack/internal/logger"
	"github.com/customeros/mailtrack/internal/tracing"
	"github.com/customeros/mailtrack/services"
)

const (
	AppSourceTracking = "mailtrack-tracking"
	AppSourceAPI      = "mailtrack-api"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, s *services.Services, apikey string, log logger.Logger) {
	if s == nil {
		panic("Services cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	apiHandlers := handlers.InitHandlers(s, log)

	r.GET("/health", handlers.HealthCheck)
	if s.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.Metrics.Handler()))
	}

	// recipient-facing, unauthenticated
	public := r.Group("/track")
	public.Use(middleware.CustomContextMiddleware(AppSourceTracking))
	public.Use(middleware.TracingMiddleware())
	{
		public.GET("/open/:trackingId", apiHandlers.Tracking.Pixel())
		public.GET("/click/:trackingId/:linkIndex", apiHandlers.Tracking.Click())
	}

	protected := r.Group("")
	protected.Use(middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  middleware.APIKeyHeader,
		ValidAPIKey: apikey,
	}))
	protected.Use(middleware.UserIdMiddleware())
	protected.Use(middleware.CustomContextMiddleware(AppSourceAPI))
	protected.Use(middleware.TracingMiddleware())
	{
		track := protected.Group("/track")
		{
			track.POST("/register", apiHandlers.Tracking.RegisterSend())
			track.GET("/events", apiHandlers.Tracking.ListEvents())
			track.GET("/status/:trackingId", apiHandlers.Tracking.EmailStatus())
			track.GET("/analytics", apiHandlers.Analytics.Summary())
		}

		analytics := protected.Group("/analytics")
		{
			analytics.GET("/email-metrics", apiHandlers.Analytics.EmailMetrics())
			analytics.GET("/engagement-trends", apiHandlers.Analytics.EngagementTrends())
			analytics.GET("/campaign-performance", apiHandlers.Analytics.CampaignPerformance())
			analytics.GET("/deliverability", apiHandlers.Analytics.Deliverability())
			analytics.GET("/recipient-analytics", apiHandlers.Analytics.RecipientAnalytics())
			analytics.GET("/realtime", apiHandlers.Analytics.Realtime())
			analytics.POST("/start-imap-monitoring", apiHandlers.Monitoring.StartMonitoring())
			analytics.POST("/stop-imap-monitoring", apiHandlers.Monitoring.StopMonitoring())
			analytics.GET("/imap-status", apiHandlers.Monitoring.Status())
		}

		protected.PUT("/mailboxes", apiHandlers.Monitoring.SaveMailbox())
	}
}
