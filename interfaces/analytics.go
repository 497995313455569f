package interfaces

import (
	"context"

	"github.com/customeros/mailtrack/dto"
	"github.com/customeros/mailtrack/internal/enum"
)

type AnalyticsService interface {
	EmailMetrics(ctx context.Context, userID, campaignID string, timeRange enum.TimeRange) (*dto.EmailMetrics, error)
	EngagementTrends(ctx context.Context, userID, campaignID string, timeRange enum.TimeRange) ([]dto.TrendPoint, error)
	CampaignPerformance(ctx context.Context, userID string, timeRange enum.TimeRange) ([]dto.CampaignPerformance, error)
	Deliverability(ctx context.Context, userID string, timeRange enum.TimeRange) (*dto.Deliverability, error)
	RecipientAnalytics(ctx context.Context, userID string, timeRange enum.TimeRange) (*dto.RecipientAnalytics, error)
	Realtime(ctx context.Context, userID string) (*dto.Realtime, error)
}

// MetricsCache stores computed results under a per-user version. Get reports
// the version it read at; Set writes under that version, so a result computed
// before an Invalidate can never be served after it.
type MetricsCache interface {
	Get(ctx context.Context, userID, key string, dest interface{}) (version int64, hit bool, err error)
	Set(ctx context.Context, userID string, version int64, key string, value interface{}) error
	Invalidate(ctx context.Context, userID string) error
}
