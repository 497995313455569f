package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailtrack/interfaces"
	"github.com/customeros/mailtrack/internal/enum"
	"github.com/customeros/mailtrack/internal/tracing"
	"github.com/customeros/mailtrack/internal/utils"
)

type AnalyticsHandler struct {
	analytics interfaces.AnalyticsService
}

func NewAnalyticsHandler(analytics interfaces.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

type analyticsQuery struct {
	userID    string
	campaign  string
	timeRange enum.TimeRange
}

// analyticsEndpoint binds the common query parameters and renders the
// result in the standard envelope.
func analyticsEndpoint(operationName string, query func(ctx context.Context, q analyticsQuery) (any, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), operationName)
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		q := analyticsQuery{
			userID:    utils.GetUserIdFromContext(ctx),
			campaign:  utils.FirstNonEmpty(c.Query("campaign"), c.Query("campaignId")),
			timeRange: enum.GetTimeRange(c.Query("timeRange")),
		}
		span.LogKV("campaign", q.campaign, "timeRange", q.timeRange.String())

		data, err := query(ctx, q)
		if err != nil {
			respondError(c, span, err)
			return
		}
		respondData(c, data)
	}
}

func (h *AnalyticsHandler) EmailMetrics() gin.HandlerFunc {
	return analyticsEndpoint("AnalyticsHandler.EmailMetrics", func(ctx context.Context, q analyticsQuery) (any, error) {
		return h.analytics.EmailMetrics(ctx, q.userID, q.campaign, q.timeRange)
	})
}

// Summary serves GET /track/analytics, the per-campaign summary older clients
// poll. It reports the same figures as EmailMetrics.
func (h *AnalyticsHandler) Summary() gin.HandlerFunc {
	return analyticsEndpoint("AnalyticsHandler.Summary", func(ctx context.Context, q analyticsQuery) (any, error) {
		return h.analytics.EmailMetrics(ctx, q.userID, q.campaign, q.timeRange)
	})
}

func (h *AnalyticsHandler) EngagementTrends() gin.HandlerFunc {
	return analyticsEndpoint("AnalyticsHandler.EngagementTrends", func(ctx context.Context, q analyticsQuery) (any, error) {
		return h.analytics.EngagementTrends(ctx, q.userID, q.campaign, q.timeRange)
	})
}

func (h *AnalyticsHandler) CampaignPerformance() gin.HandlerFunc {
	return analyticsEndpoint("AnalyticsHandler.CampaignPerformance", func(ctx context.Context, q analyticsQuery) (any, error) {
		return h.analytics.CampaignPerformance(ctx, q.userID, q.timeRange)
	})
}

func (h *AnalyticsHandler) Deliverability() gin.HandlerFunc {
	return analyticsEndpoint("AnalyticsHandler.Deliverability", func(ctx context.Context, q analyticsQuery) (any, error) {
		return h.analytics.Deliverability(ctx, q.userID, q.timeRange)
	})
}

func (h *AnalyticsHandler) RecipientAnalytics() gin.HandlerFunc {
	return analyticsEndpoint("AnalyticsHandler.RecipientAnalytics", func(ctx context.Context, q analyticsQuery) (any, error) {
		return h.analytics.RecipientAnalytics(ctx, q.userID, q.timeRange)
	})
}

func (h *AnalyticsHandler) Realtime() gin.HandlerFunc {
	return analyticsEndpoint("AnalyticsHandler.Realtime", func(ctx context.Context, q analyticsQuery) (any, error) {
		return h.analytics.Realtime(ctx, q.userID)
	})
}
