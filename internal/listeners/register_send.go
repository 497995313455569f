package listeners

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailtrack/dto"
	"github.com/customeros/mailtrack/interfaces"
	mterrors "github.com/customeros/mailtrack/internal/errors"
	"github.com/customeros/mailtrack/internal/logger"
	"github.com/customeros/mailtrack/internal/tracing"
	"github.com/customeros/mailtrack/services/events"
)

// RegisterSendListener records sends published by outbound mailers on the
// register-send queue.
type RegisterSendListener struct {
	events.Binding[dto.RegisterSendInput]
	log      logger.Logger
	tracking interfaces.TrackingService
}

func NewRegisterSendListener(log logger.Logger, tracking interfaces.TrackingService) events.EventListener {
	return &RegisterSendListener{
		Binding:  events.Bind[dto.RegisterSendInput](events.QueueRegisterSend),
		log:      log,
		tracking: tracking,
	}
}

func (l *RegisterSendListener) Handle(ctx context.Context, baseEvent any) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RegisterSendListener.Handle")
	defer span.Finish()
	tracing.SetDefaultListenerSpanTags(ctx, span)
	tracing.LogObjectAsJson(span, "event", baseEvent)

	event, input, err := l.Decode(ctx, baseEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if input.UserId == "" {
		input.UserId = event.Event.UserId
	}

	trackingID, err := l.tracking.RegisterSend(ctx, input)
	if err != nil {
		tracing.TraceErr(span, err)
		if errors.Is(err, mterrors.ErrInvalidInput) || errors.Is(err, mterrors.ErrUserIdRequired) {
			// ack malformed payloads instead of dead-lettering them
			l.log.Warnf("Dropping invalid register-send event %s: %v", event.Event.Id, err)
			return nil
		}
		return err
	}
	tracing.TagTrackingId(span, trackingID)

	return nil
}
