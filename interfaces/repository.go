package interfaces

import (
	"context"
	"time"

	"github.com/customeros/mailtrack/internal/models"
)

type SentEmailRepository interface {
	Create(ctx context.Context, sent *models.SentEmail) error
	GetByTrackingID(ctx context.Context, trackingID string) (*models.SentEmail, error)
	FindMostRecentByRecipient(ctx context.Context, recipientEmail string) (*models.SentEmail, error)
}

type TrackingEventRepository interface {
	Append(ctx context.Context, event *models.TrackingEvent) (bool, error)
	ListByTrackingID(ctx context.Context, trackingID string) ([]*models.TrackingEvent, error)
	List(ctx context.Context, filter models.EventFilter) ([]*models.TrackingEvent, error)
}

type ProcessedMessageRepository interface {
	// RecordOnce marks messageID processed and appends event (if any) in one
	// transaction. It returns false when messageID was already processed.
	RecordOnce(ctx context.Context, processed *models.ProcessedMessage, event *models.TrackingEvent) (bool, error)
	IsProcessed(ctx context.Context, messageID string) (bool, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type MailboxRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.Mailbox, error)
	GetByID(ctx context.Context, id string) (*models.Mailbox, error)
	Upsert(ctx context.Context, mailbox *models.Mailbox) error
	SetMonitoring(ctx context.Context, id string, enabled bool) error
	ListMonitored(ctx context.Context) ([]*models.Mailbox, error)
	UpdatePollStatus(ctx context.Context, id string, polledAt time.Time, errorMessage string) error
}

type MailboxCheckpointRepository interface {
	Get(ctx context.Context, accountID, folder string) (*models.MailboxCheckpoint, error)
	Save(ctx context.Context, checkpoint *models.MailboxCheckpoint) error
	Delete(ctx context.Context, accountID, folder string) error
}

type AnalyticsRepository interface {
	ListSendEngagement(ctx context.Context, scope models.AnalyticsScope) ([]models.SendEngagement, error)
	ListEventActivity(ctx context.Context, scope models.AnalyticsScope, occurredSince time.Time) ([]models.EventActivity, error)
	LatestActivity(ctx context.Context, userID string) (*time.Time, error)
}
