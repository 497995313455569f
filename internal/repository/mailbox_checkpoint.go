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

type mailboxCheckpointRepository struct {
	db *gorm.DB
}

func NewMailboxCheckpointRepository(db *gorm.DB) interfaces.MailboxCheckpointRepository {
	return &mailboxCheckpointRepository{db: db}
}

// Get retrieves the checkpoint for a mailbox folder, nil when none exists yet
func (r *mailboxCheckpointRepository) Get(ctx context.Context, accountID, folder string) (*models.MailboxCheckpoint, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxCheckpointRepository.Get")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	var checkpoint models.MailboxCheckpoint
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND folder = ?", accountID, folder).
		First(&checkpoint).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return &checkpoint, nil
}

func (r *mailboxCheckpointRepository) Save(ctx context.Context, checkpoint *models.MailboxCheckpoint) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxCheckpointRepository.Save")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if checkpoint == nil {
		err := errors.New("checkpoint cannot be nil")
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagAccount(span, checkpoint.AccountID)
	span.LogKV("uidValidity", checkpoint.UIDValidity, "lastUid", checkpoint.LastUID)

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "folder"}},
			DoUpdates: clause.AssignmentColumns([]string{"uid_validity", "last_uid", "last_processed_at", "updated_at"}),
		}).
		Create(checkpoint).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

func (r *mailboxCheckpointRepository) Delete(ctx context.Context, accountID, folder string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxCheckpointRepository.Delete")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	err := r.db.WithContext(ctx).
		Where("account_id = ? AND folder = ?", accountID, folder).
		Delete(&models.MailboxCheckpoint{}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
