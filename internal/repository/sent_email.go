package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/mailtrack/interfaces"
	"github.com/customeros/mailtrack/internal/models"
	"github.com/customeros/mailtrack/internal/tracing"
)

type sentEmailRepository struct {
	db *gorm.DB
}

func NewSentEmailRepository(db *gorm.DB) interfaces.SentEmailRepository {
	return &sentEmailRepository{db: db}
}

// Create writes a ledger row. Rows are never updated afterwards.
func (r *sentEmailRepository) Create(ctx context.Context, sent *models.SentEmail) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "sentEmailRepository.Create")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if sent == nil {
		err := errors.New("sent email cannot be nil")
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagTrackingId(span, sent.TrackingID)
	tracing.TagUserId(span, sent.UserID)

	if err := r.db.WithContext(ctx).Create(sent).Error; err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to create sent email: %w", err)
	}
	return nil
}

// GetByTrackingID returns nil, nil when no send exists for trackingID
func (r *sentEmailRepository) GetByTrackingID(ctx context.Context, trackingID string) (*models.SentEmail, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "sentEmailRepository.GetByTrackingID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTrackingId(span, trackingID)

	var sent models.SentEmail
	err := r.db.WithContext(ctx).Where("tracking_id = ?", trackingID).First(&sent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get sent email: %w", err)
	}
	return &sent, nil
}

// FindMostRecentByRecipient returns the latest send to recipientEmail across all users
func (r *sentEmailRepository) FindMostRecentByRecipient(ctx context.Context, recipientEmail string) (*models.SentEmail, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "sentEmailRepository.FindMostRecentByRecipient")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogKV("recipientEmail", recipientEmail)

	var sent models.SentEmail
	err := r.db.WithContext(ctx).
		Where("recipient_email = ?", recipientEmail).
		Order("sent_at DESC").
		Order("created_at DESC").
		First(&sent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to find sent email by recipient: %w", err)
	}
	return &sent, nil
}
