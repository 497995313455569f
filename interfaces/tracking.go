package interfaces

import (
	"context"

	"github.com/customeros/mailtrack/dto"
	"github.com/customeros/mailtrack/internal/models"
)

type TrackingService interface {
	RegisterSend(ctx context.Context, input dto.RegisterSendInput) (string, error)
	RecordOpen(ctx context.Context, trackingID string, meta dto.RequestMetadata) error
	RecordClick(ctx context.Context, trackingID, linkIndex, targetURL string, meta dto.RequestMetadata) error
	GetEmailStatus(ctx context.Context, userID, trackingID string) (*dto.EmailStatus, error)
	ListEvents(ctx context.Context, filter models.EventFilter) ([]*models.TrackingEvent, error)
	PixelURL(trackingID string) string
	ClickURL(trackingID string, linkIndex int, targetURL string) string
}

// EventDispatcher fans out side effects once an event or send is durable.
type EventDispatcher interface {
	EventRecorded(ctx context.Context, event *models.TrackingEvent)
	SendRegistered(ctx context.Context, sent *models.SentEmail)
}
