package models

import (
	"time"

	"github.com/customeros/mailtrack/internal/enum"
)

// SentEmail is a Send Ledger row. Rows are written once by the send path and never updated.
type SentEmail struct {
	TrackingID     string          `gorm:"column:tracking_id;type:varchar(64);primaryKey" json:"trackingId"`
	UserID         string          `gorm:"column:user_id;type:varchar(100);not null;index:idx_sent_user_sent_at,priority:1;index:idx_sent_user_campaign,priority:1" json:"userId"`
	CampaignID     string          `gorm:"column:campaign_id;type:varchar(255);not null;index:idx_sent_user_campaign,priority:2" json:"campaignId"`
	RecipientEmail string          `gorm:"column:recipient_email;type:varchar(320);not null;index:idx_sent_recipient_sent_at,priority:1" json:"recipientEmail"`
	RecipientName  string          `gorm:"column:recipient_name;type:varchar(255)" json:"recipientName,omitempty"`
	Company        string          `gorm:"column:company;type:varchar(255)" json:"company,omitempty"`
	Industry       string          `gorm:"column:industry;type:varchar(100)" json:"industry"`
	Location       string          `gorm:"column:location;type:varchar(100)" json:"location"`
	Subject        string          `gorm:"column:subject;type:text" json:"subject"`
	MessageID      string          `gorm:"column:message_id;type:varchar(998);index" json:"messageId,omitempty"`
	Status         enum.SendStatus `gorm:"column:status;type:varchar(20);not null;default:sent" json:"status"`
	SentAt         time.Time       `gorm:"column:sent_at;not null;index:idx_sent_user_sent_at,priority:2;index:idx_sent_recipient_sent_at,priority:2" json:"sentAt"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (SentEmail) TableName() string {
	return "sent_emails"
}
