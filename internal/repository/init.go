package repository

import (
	"gorm.io/gorm"

	"github.com/customeros/mailtrack/interfaces"
	"github.com/customeros/mailtrack/internal/models"
)

type Repositories struct {
	SentEmailRepository         interfaces.SentEmailRepository
	TrackingEventRepository     interfaces.TrackingEventRepository
	ProcessedMessageRepository  interfaces.ProcessedMessageRepository
	MailboxRepository           interfaces.MailboxRepository
	MailboxCheckpointRepository interfaces.MailboxCheckpointRepository
	AnalyticsRepository         interfaces.AnalyticsRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		SentEmailRepository:         NewSentEmailRepository(db),
		TrackingEventRepository:     NewTrackingEventRepository(db),
		ProcessedMessageRepository:  NewProcessedMessageRepository(db),
		MailboxRepository:           NewMailboxRepository(db),
		MailboxCheckpointRepository: NewMailboxCheckpointRepository(db),
		AnalyticsRepository:         NewAnalyticsRepository(db),
	}
}

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.SentEmail{},
		&models.TrackingEvent{},
		&models.ProcessedMessage{},
		&models.Mailbox{},
		&models.MailboxCheckpoint{},
	)
}
