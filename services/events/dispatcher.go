package events

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailtrack/dto"
	"github.com/customeros/mailtrack/interfaces"
	"github.com/customeros/mailtrack/internal/logger"
	"github.com/customeros/mailtrack/internal/metrics"
	"github.com/customeros/mailtrack/internal/models"
	"github.com/customeros/mailtrack/internal/tracing"
)

const (
	publishTimeout    = 10 * time.Second
	invalidateTimeout = 2 * time.Second
)

// Dispatcher runs the side effects of a durable write: metric counters,
// cache invalidation for the owning user and an async broker publish.
type Dispatcher struct {
	publisher interfaces.EventPublisher
	cache     interfaces.MetricsCache
	metrics   *metrics.Metrics
	log       logger.Logger
	wg        sync.WaitGroup
}

func NewDispatcher(publisher interfaces.EventPublisher, cache interfaces.MetricsCache, m *metrics.Metrics, log logger.Logger) *Dispatcher {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &Dispatcher{
		publisher: publisher,
		cache:     cache,
		metrics:   m,
		log:       log,
	}
}

func (d *Dispatcher) EventRecorded(ctx context.Context, event *models.TrackingEvent) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Dispatcher.EventRecorded")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if event == nil {
		return
	}
	tracing.TagTrackingId(span, event.GetTrackingID())

	d.metrics.EventRecorded(event.Kind.String(), event.Source.String())
	d.invalidate(ctx, event.UserID)

	payload := dto.TrackingEventRecorded{
		EventId:        event.ID,
		TrackingId:     event.GetTrackingID(),
		UserId:         event.UserID,
		CampaignId:     event.CampaignID,
		RecipientEmail: event.RecipientEmail,
		Kind:           event.Kind.String(),
		Source:         event.Source.String(),
		OccurredAt:     event.OccurredAt,
		Metadata:       event.Metadata,
	}

	d.goTracked(ctx, publishTimeout, func(ctx context.Context) {
		if err := d.publisher.PublishTrackingEvent(ctx, payload); err != nil {
			d.log.Errorf("Failed to publish tracking event %s: %v", payload.EventId, err)
		}
	})
}

func (d *Dispatcher) SendRegistered(ctx context.Context, sent *models.SentEmail) {
	if sent == nil {
		return
	}
	d.metrics.SendRegistered()
	d.invalidate(ctx, sent.UserID)
}

func (d *Dispatcher) invalidate(ctx context.Context, userID string) {
	if d.cache == nil || userID == "" {
		return
	}
	d.goTracked(ctx, invalidateTimeout, func(ctx context.Context) {
		if err := d.cache.Invalidate(ctx, userID); err != nil {
			d.log.Warnf("Failed to invalidate metrics cache for user %s: %v", userID, err)
		}
	})
}

// goTracked runs fn detached from the caller's cancellation, bounded by
// timeout, and counted by Wait.
func (d *Dispatcher) goTracked(ctx context.Context, timeout time.Duration, fn func(ctx context.Context)) {
	detached := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer tracing.RecoverAndLogToJaeger(d.log)

		ctx, cancel := context.WithTimeout(detached, timeout)
		defer cancel()
		fn(ctx)
	}()
}

// Wait blocks until in-flight publishes finish
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
