package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/customeros/mailtrack/internal/enum"
)

const UnknownCampaignID = "unknown"

// TrackingEvent is an append-only Event Store row.
type TrackingEvent struct {
	ID             string           `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	TrackingID     *string          `gorm:"column:tracking_id;type:varchar(64);index:idx_event_tracking_kind,priority:1" json:"trackingId"`
	UserID         string           `gorm:"column:user_id;type:varchar(100);index" json:"userId,omitempty"`
	CampaignID     string           `gorm:"column:campaign_id;type:varchar(255);not null;index" json:"campaignId"`
	RecipientEmail string           `gorm:"column:recipient_email;type:varchar(320)" json:"recipientEmail,omitempty"`
	Kind           enum.EventKind   `gorm:"column:kind;type:varchar(20);not null;index:idx_event_tracking_kind,priority:2" json:"kind"`
	Source         enum.EventSource `gorm:"column:source;type:varchar(20);not null" json:"source"`
	OccurredAt     time.Time        `gorm:"column:occurred_at;not null;index" json:"occurredAt"`
	Metadata       JSONMap          `gorm:"column:metadata;type:text" json:"metadata"`
	DedupeKey      *string          `gorm:"column:dedupe_key;type:varchar(998);uniqueIndex" json:"-"`
}

func (TrackingEvent) TableName() string {
	return "tracking_events"
}

func (e *TrackingEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CampaignID == "" {
		e.CampaignID = UnknownCampaignID
	}
	return nil
}

func (e *TrackingEvent) GetTrackingID() string {
	if e.TrackingID == nil {
		return ""
	}
	return *e.TrackingID
}
