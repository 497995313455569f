package dto

import "time"

// RegisterSendInput is what the send path hands over before SMTP submission.
type RegisterSendInput struct {
	// TrackingId is minted by the caller on the async path. Empty means mint here.
	TrackingId     string     `json:"trackingId,omitempty"`
	UserId         string     `json:"userId"`
	CampaignId     string     `json:"campaignId"`
	RecipientEmail string     `json:"to"`
	Subject        string     `json:"subject"`
	RecipientName  string     `json:"recipientName,omitempty"`
	Company        string     `json:"company,omitempty"`
	Industry       string     `json:"industry,omitempty"`
	Location       string     `json:"location,omitempty"`
	MessageId      string     `json:"messageId,omitempty"`
	Status         string     `json:"status,omitempty"`
	SentAt         *time.Time `json:"sentAt,omitempty"`
}

// RequestMetadata is captured from pixel and redirect hits.
type RequestMetadata struct {
	UserAgent string
	IP        string
	Referer   string
}

type EmailStatus struct {
	TrackingId     string         `json:"trackingId"`
	CampaignId     string         `json:"campaignId"`
	RecipientEmail string         `json:"recipientEmail"`
	SentAt         time.Time      `json:"sentAt"`
	Status         string         `json:"status"`
	EventCounts    map[string]int `json:"eventCounts"`
	LastEventAt    *time.Time     `json:"lastEventAt,omitempty"`
}
