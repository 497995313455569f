package dto

import "time"

type Event struct {
	Event    EventDetails  `json:"event"`
	Metadata EventMetadata `json:"metadata"`
}

type EventDetails struct {
	Id        string      `json:"id"`
	UserId    string      `json:"userId"`
	EntityId  string      `json:"entityId"`
	EventType string      `json:"eventType"`
	Data      interface{} `json:"data"`
}

type EventMetadata struct {
	UberTraceId string `json:"uber-trace-id"`
	AppSource   string `json:"appSource"`
	Timestamp   string `json:"timestamp"`
}

// TrackingEventRecorded is published after an event is appended to the store.
type TrackingEventRecorded struct {
	EventId        string                 `json:"eventId"`
	TrackingId     string                 `json:"trackingId,omitempty"`
	UserId         string                 `json:"userId,omitempty"`
	CampaignId     string                 `json:"campaignId"`
	RecipientEmail string                 `json:"recipientEmail,omitempty"`
	Kind           string                 `json:"kind"`
	Source         string                 `json:"source"`
	OccurredAt     time.Time              `json:"occurredAt"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}
