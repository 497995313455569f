package models

import (
	"time"
)

// MailboxCheckpoint records poller progress through one mailbox folder
type MailboxCheckpoint struct {
	AccountID       string    `gorm:"column:account_id;type:varchar(50);primaryKey"`
	Folder          string    `gorm:"column:folder;type:varchar(100);primaryKey"`
	UIDValidity     uint32    `gorm:"column:uid_validity;not null;default:0"`
	LastUID         uint32    `gorm:"column:last_uid;not null;default:0"`
	LastProcessedAt time.Time `gorm:"column:last_processed_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (MailboxCheckpoint) TableName() string {
	return "mailbox_checkpoints"
}
