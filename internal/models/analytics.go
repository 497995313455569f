package models

import (
	"time"

	"github.com/customeros/mailtrack/internal/enum"
)

// AnalyticsScope bounds every aggregator query. UserID is always required.
type AnalyticsScope struct {
	UserID     string
	CampaignID string
	Since      time.Time
	Until      *time.Time
}

// SendEngagement is one ledger row joined with its per-kind event counts.
type SendEngagement struct {
	TrackingID     string          `gorm:"column:tracking_id"`
	CampaignID     string          `gorm:"column:campaign_id"`
	RecipientEmail string          `gorm:"column:recipient_email"`
	Industry       string          `gorm:"column:industry"`
	Location       string          `gorm:"column:location"`
	Status         enum.SendStatus `gorm:"column:status"`
	SentAt         time.Time       `gorm:"column:sent_at"`
	Opens          int64           `gorm:"column:opens"`
	Clicks         int64           `gorm:"column:clicks"`
	Replies        int64           `gorm:"column:replies"`
	Bounces        int64           `gorm:"column:bounces"`
}

func (s SendEngagement) Delivered() bool {
	return s.Status == enum.SendStatusSent && s.Bounces == 0
}

// EventActivity is a single event attributed to a scoped send.
type EventActivity struct {
	TrackingID string         `gorm:"column:tracking_id"`
	Kind       enum.EventKind `gorm:"column:kind"`
	OccurredAt time.Time      `gorm:"column:occurred_at"`
}

// EventFilter narrows the raw event listing.
type EventFilter struct {
	UserID     string
	CampaignID string
	Kind       enum.EventKind
	Start      *time.Time
	End        *time.Time
	Limit      int
}
