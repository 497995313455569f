package models

import "time"

// ProcessedMessage is the persistent dedup set for mail-sourced signals.
type ProcessedMessage struct {
	MessageID   string    `gorm:"column:message_id;type:varchar(998);primaryKey"`
	AccountID   string    `gorm:"column:account_id;type:varchar(50);not null;index"`
	ProcessedAt time.Time `gorm:"column:processed_at;not null;index"`
}

func (ProcessedMessage) TableName() string {
	return "processed_messages"
}
