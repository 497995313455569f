package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/mailtrack/interfaces"
	"github.com/customeros/mailtrack/internal/models"
	"github.com/customeros/mailtrack/internal/tracing"
)

type mailboxRepository struct {
	db *gorm.DB
}

func NewMailboxRepository(db *gorm.DB) interfaces.MailboxRepository {
	return &mailboxRepository{db: db}
}

// GetByUserID returns nil, nil when the user has no mailbox configured
func (r *mailboxRepository) GetByUserID(ctx context.Context, userID string) (*models.Mailbox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.GetByUserID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagUserId(span, userID)

	var mailbox models.Mailbox
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&mailbox).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get mailbox: %w", err)
	}
	return &mailbox, nil
}

func (r *mailboxRepository) GetByID(ctx context.Context, id string) (*models.Mailbox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.GetByID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagAccount(span, id)

	var mailbox models.Mailbox
	err := r.db.WithContext(ctx).First(&mailbox, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get mailbox: %w", err)
	}
	return &mailbox, nil
}

// Upsert stores credentials keyed by user. The monitoring flag of an existing
// mailbox is preserved.
func (r *mailboxRepository) Upsert(ctx context.Context, mailbox *models.Mailbox) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.Upsert")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if mailbox == nil || mailbox.UserID == "" {
		err := errors.New("mailbox user id cannot be empty")
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagUserId(span, mailbox.UserID)

	existing, err := r.GetByUserID(ctx, mailbox.UserID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if existing == nil {
		if err := r.db.WithContext(ctx).Create(mailbox).Error; err != nil {
			tracing.TraceErr(span, err)
			return fmt.Errorf("failed to create mailbox: %w", err)
		}
		return nil
	}

	mailbox.ID = existing.ID
	mailbox.MonitoringEnabled = existing.MonitoringEnabled
	mailbox.CreatedAt = existing.CreatedAt
	err = r.db.WithContext(ctx).
		Model(&models.Mailbox{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"email_address": mailbox.EmailAddress,
			"imap_server":   mailbox.ImapServer,
			"imap_port":     mailbox.ImapPort,
			"imap_username": mailbox.ImapUsername,
			"imap_password": mailbox.ImapPassword,
			"imap_tls":      mailbox.ImapTLS,
			"folder":        mailbox.Folder,
			"error_message": "",
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to update mailbox: %w", err)
	}
	return nil
}

func (r *mailboxRepository) SetMonitoring(ctx context.Context, id string, enabled bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.SetMonitoring")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagAccount(span, id)
	span.LogKV("enabled", enabled)

	err := r.db.WithContext(ctx).
		Model(&models.Mailbox{}).
		Where("id = ?", id).
		Update("monitoring_enabled", enabled).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to set mailbox monitoring: %w", err)
	}
	return nil
}

func (r *mailboxRepository) ListMonitored(ctx context.Context) ([]*models.Mailbox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.ListMonitored")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var mailboxes []*models.Mailbox
	if err := r.db.WithContext(ctx).Where("monitoring_enabled = ?", true).Find(&mailboxes).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list monitored mailboxes: %w", err)
	}
	return mailboxes, nil
}

func (r *mailboxRepository) UpdatePollStatus(ctx context.Context, id string, polledAt time.Time, errorMessage string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxRepository.UpdatePollStatus")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagAccount(span, id)

	err := r.db.WithContext(ctx).
		Model(&models.Mailbox{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_polled_at": polledAt,
			"error_message":  errorMessage,
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to update mailbox poll status: %w", err)
	}
	return nil
}
