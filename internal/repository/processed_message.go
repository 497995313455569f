package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/customeros/mailtrack/interfaces"
	"github.com/customeros/mailtrack/internal/models"
	"github.com/customeros/mailtrack/internal/tracing"
)

type processedMessageRepository struct {
	db *gorm.DB
}

func NewProcessedMessageRepository(db *gorm.DB) interfaces.ProcessedMessageRepository {
	return &processedMessageRepository{db: db}
}

// RecordOnce claims processed.MessageID and appends event in the same
// transaction. A second claim of the same message id is a no-op. When the
// claim is new but the event's dedupe key is already stored (the claim was
// pruned), the claim is kept and false is returned.
func (r *processedMessageRepository) RecordOnce(ctx context.Context, processed *models.ProcessedMessage, event *models.TrackingEvent) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "processedMessageRepository.RecordOnce")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if processed == nil || processed.MessageID == "" {
		err := errors.New("message id cannot be empty")
		tracing.TraceErr(span, err)
		return false, err
	}
	tracing.TagAccount(span, processed.AccountID)
	span.LogKV("messageId", processed.MessageID)

	if processed.ProcessedAt.IsZero() {
		processed.ProcessedAt = time.Now().UTC()
	}

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		tracing.TraceErr(span, tx.Error)
		return false, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(processed)
	if result.Error != nil {
		tx.Rollback()
		tracing.TraceErr(span, result.Error)
		return false, fmt.Errorf("failed to mark message processed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		span.LogKV("result.duplicate", true)
		return false, nil
	}

	inserted := true
	if event != nil {
		var err error
		if inserted, err = appendEvent(tx, event); err != nil {
			tx.Rollback()
			tracing.TraceErr(span, err)
			return false, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		tracing.TraceErr(span, err)
		return false, fmt.Errorf("failed to commit processed message: %w", err)
	}
	span.LogKV("result.eventInserted", inserted)
	return inserted, nil
}

func (r *processedMessageRepository) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "processedMessageRepository.IsProcessed")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProcessedMessage{}).
		Where("message_id = ?", messageID).
		Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return false, fmt.Errorf("failed to check processed message: %w", err)
	}
	return count > 0, nil
}

// PruneOlderThan drops dedup entries processed before cutoff
func (r *processedMessageRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "processedMessageRepository.PruneOlderThan")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogKV("cutoff", cutoff)

	result := r.db.WithContext(ctx).
		Where("processed_at < ?", cutoff).
		Delete(&models.ProcessedMessage{})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return 0, fmt.Errorf("failed to prune processed messages: %w", result.Error)
	}
	span.LogKV("result.deleted", result.RowsAffected)
	return result.RowsAffected, nil
}
