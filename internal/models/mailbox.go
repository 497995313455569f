package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailtrack/internal/utils"
)

// Mailbox holds the IMAP credentials a user monitors for replies and bounces
type Mailbox struct {
	ID           string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	UserID       string `gorm:"column:user_id;type:varchar(100);uniqueIndex;not null" json:"userId"`
	EmailAddress string `gorm:"column:email_address;type:varchar(255);index" json:"emailAddress"`
	// IMAP Configuration
	ImapServer   string `gorm:"column:imap_server;type:varchar(255);not null" json:"imapServer"`
	ImapPort     int    `gorm:"column:imap_port;not null" json:"imapPort"`
	ImapUsername string `gorm:"column:imap_username;type:varchar(255);not null" json:"imapUsername"`
	ImapPassword string `gorm:"column:imap_password;type:varchar(255);not null" json:"-"`
	ImapTLS      bool   `gorm:"column:imap_tls;not null" json:"imapTls"`
	Folder       string `gorm:"column:folder;type:varchar(100);not null;default:INBOX" json:"folder"`
	// Status Information
	MonitoringEnabled bool       `gorm:"column:monitoring_enabled;not null;default:false" json:"monitoringEnabled"`
	LastPolledAt      *time.Time `gorm:"column:last_polled_at" json:"lastPolledAt"`
	ErrorMessage      string     `gorm:"column:error_message;type:text" json:"errorMessage"`
	// Standard timestamps
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName sets the table name
func (Mailbox) TableName() string {
	return "mailboxes"
}

func (m *Mailbox) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("mbox", 16)
	}
	if m.Folder == "" {
		m.Folder = "INBOX"
	}
	return nil
}

func (m *Mailbox) HasCredentials() bool {
	return m != nil && m.ImapServer != "" && m.ImapPort > 0 && m.ImapUsername != "" && m.ImapPassword != ""
}
