package interfaces

import (
	"context"

	"github.com/customeros/mailtrack/dto"
)

type EventPublisher interface {
	PublishTrackingEvent(ctx context.Context, event dto.TrackingEventRecorded) error
	Close() error
}
