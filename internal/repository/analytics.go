package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/mailtrack/interfaces"
	"github.com/customeros/mailtrack/internal/enum"
	"github.com/customeros/mailtrack/internal/models"
	"github.com/customeros/mailtrack/internal/tracing"
)

type analyticsRepository struct {
	db *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) interfaces.AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func (r *analyticsRepository) scopedSends(ctx context.Context, scope models.AnalyticsScope) *gorm.DB {
	query := r.db.WithContext(ctx).
		Table("sent_emails AS s").
		Where("s.user_id = ?", scope.UserID).
		Where("s.sent_at >= ?", scope.Since)
	if scope.CampaignID != "" {
		query = query.Where("s.campaign_id = ?", scope.CampaignID)
	}
	if scope.Until != nil {
		query = query.Where("s.sent_at < ?", *scope.Until)
	}
	return query
}

// ListSendEngagement returns every scoped send with its per-kind event counts
func (r *analyticsRepository) ListSendEngagement(ctx context.Context, scope models.AnalyticsScope) ([]models.SendEngagement, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "analyticsRepository.ListSendEngagement")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagUserId(span, scope.UserID)
	span.LogKV("campaignId", scope.CampaignID, "since", scope.Since)

	if scope.UserID == "" {
		err := errors.New("user id is required")
		tracing.TraceErr(span, err)
		return nil, err
	}

	var rows []models.SendEngagement
	err := r.scopedSends(ctx, scope).
		Select(`s.tracking_id, s.campaign_id, s.recipient_email, s.industry, s.location, s.status, s.sent_at,
			SUM(CASE WHEN e.kind = ? THEN 1 ELSE 0 END) AS opens,
			SUM(CASE WHEN e.kind = ? THEN 1 ELSE 0 END) AS clicks,
			SUM(CASE WHEN e.kind = ? THEN 1 ELSE 0 END) AS replies,
			SUM(CASE WHEN e.kind = ? THEN 1 ELSE 0 END) AS bounces`,
			enum.EventOpen, enum.EventClick, enum.EventReply, enum.EventBounce).
		Joins("LEFT JOIN tracking_events AS e ON e.tracking_id = s.tracking_id").
		Group("s.tracking_id, s.campaign_id, s.recipient_email, s.industry, s.location, s.status, s.sent_at").
		Order("s.sent_at ASC").
		Scan(&rows).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list send engagement: %w", err)
	}
	span.LogKV("result.rows", len(rows))
	return rows, nil
}

// ListEventActivity returns events of scoped sends that occurred at or after occurredSince
func (r *analyticsRepository) ListEventActivity(ctx context.Context, scope models.AnalyticsScope, occurredSince time.Time) ([]models.EventActivity, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "analyticsRepository.ListEventActivity")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagUserId(span, scope.UserID)

	if scope.UserID == "" {
		err := errors.New("user id is required")
		tracing.TraceErr(span, err)
		return nil, err
	}

	var rows []models.EventActivity
	err := r.scopedSends(ctx, scope).
		Select("e.tracking_id, e.kind, e.occurred_at").
		Joins("JOIN tracking_events AS e ON e.tracking_id = s.tracking_id").
		Where("e.occurred_at >= ?", occurredSince).
		Order("e.occurred_at ASC").
		Scan(&rows).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list event activity: %w", err)
	}
	return rows, nil
}

// LatestActivity returns the most recent send or event time for the user
func (r *analyticsRepository) LatestActivity(ctx context.Context, userID string) (*time.Time, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "analyticsRepository.LatestActivity")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagUserId(span, userID)

	var latest *time.Time

	var sent models.SentEmail
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("sent_at DESC").First(&sent).Error
	switch {
	case err == nil:
		latest = &sent.SentAt
	case !errors.Is(err, gorm.ErrRecordNotFound):
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get latest send: %w", err)
	}

	var event models.TrackingEvent
	err = r.db.WithContext(ctx).Where("user_id = ?", userID).Order("occurred_at DESC").First(&event).Error
	switch {
	case err == nil:
		if latest == nil || event.OccurredAt.After(*latest) {
			latest = &event.OccurredAt
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get latest event: %w", err)
	}

	return latest, nil
}
