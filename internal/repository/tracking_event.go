package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/customeros/mailtrack/interfaces"
	"github.com/customeros/mailtrack/internal/models"
	"github.com/customeros/mailtrack/internal/tracing"
)

const defaultEventListLimit = 1000

type trackingEventRepository struct {
	db *gorm.DB
}

func NewTrackingEventRepository(db *gorm.DB) interfaces.TrackingEventRepository {
	return &trackingEventRepository{db: db}
}

// Append inserts an event. Events carrying a dedupe key that already exists
// are dropped and Append reports false.
func (r *trackingEventRepository) Append(ctx context.Context, event *models.TrackingEvent) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "trackingEventRepository.Append")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if event == nil {
		err := errors.New("tracking event cannot be nil")
		tracing.TraceErr(span, err)
		return false, err
	}
	tracing.TagTrackingId(span, event.GetTrackingID())
	span.LogKV("kind", event.Kind)

	inserted, err := appendEvent(r.db.WithContext(ctx), event)
	if err != nil {
		tracing.TraceErr(span, err)
		return false, err
	}
	span.LogKV("result.inserted", inserted)
	return inserted, nil
}

func appendEvent(tx *gorm.DB, event *models.TrackingEvent) (bool, error) {
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(event)
	if result.Error != nil {
		return false, fmt.Errorf("failed to append tracking event: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *trackingEventRepository) ListByTrackingID(ctx context.Context, trackingID string) ([]*models.TrackingEvent, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "trackingEventRepository.ListByTrackingID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTrackingId(span, trackingID)

	var events []*models.TrackingEvent
	err := r.db.WithContext(ctx).
		Where("tracking_id = ?", trackingID).
		Order("occurred_at ASC").
		Find(&events).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list tracking events: %w", err)
	}
	return events, nil
}

// List returns the user's events newest first
func (r *trackingEventRepository) List(ctx context.Context, filter models.EventFilter) ([]*models.TrackingEvent, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "trackingEventRepository.List")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagUserId(span, filter.UserID)

	if filter.UserID == "" {
		err := errors.New("user id is required")
		tracing.TraceErr(span, err)
		return nil, err
	}

	query := r.db.WithContext(ctx).Where("user_id = ?", filter.UserID)
	if filter.CampaignID != "" {
		query = query.Where("campaign_id = ?", filter.CampaignID)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Start != nil {
		query = query.Where("occurred_at >= ?", *filter.Start)
	}
	if filter.End != nil {
		query = query.Where("occurred_at <= ?", *filter.End)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultEventListLimit
	}

	var events []*models.TrackingEvent
	if err := query.Order("occurred_at DESC").Limit(limit).Find(&events).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list tracking events: %w", err)
	}
	return events, nil
}
