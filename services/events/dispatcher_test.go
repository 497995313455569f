package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailtrack/dto"
	"github.com/customeros/mailtrack/internal/enum"
	"github.com/customeros/mailtrack/internal/logger"
	"github.com/customeros/mailtrack/internal/metrics"
	"github.com/customeros/mailtrack/internal/models"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []dto.TrackingEventRecorded
	err    error
}

func (p *recordingPublisher) PublishTrackingEvent(_ context.Context, event dto.TrackingEventRecorded) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type countingCache struct {
	mu          sync.Mutex
	invalidated map[string]int
}

func (c *countingCache) Get(context.Context, string, string, interface{}) (int64, bool, error) {
	return 0, false, nil
}

func (c *countingCache) Set(context.Context, string, int64, string, interface{}) error { return nil }

func (c *countingCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.invalidated == nil {
		c.invalidated = map[string]int{}
	}
	c.invalidated[userID]++
	return nil
}

func testLogger() logger.Logger {
	l := logger.NewAppLogger(&logger.Config{LogLevel: "error"})
	l.InitLogger()
	return l
}

func TestDispatcher_EventRecorded(t *testing.T) {
	publisher := &recordingPublisher{}
	cache := &countingCache{}
	d := NewDispatcher(publisher, cache, metrics.New(), testLogger())

	trackingID := "t1"
	d.EventRecorded(context.Background(), &models.TrackingEvent{
		ID:         "e1",
		TrackingID: &trackingID,
		UserID:     "u1",
		CampaignID: "c1",
		Kind:       enum.EventOpen,
		Source:     enum.SourcePixel,
		OccurredAt: time.Now().UTC(),
	})
	d.Wait()

	require.Len(t, publisher.events, 1)
	assert.Equal(t, "e1", publisher.events[0].EventId)
	assert.Equal(t, "t1", publisher.events[0].TrackingId)
	assert.Equal(t, "open", publisher.events[0].Kind)
	assert.Equal(t, 1, cache.invalidated["u1"])
}

func TestDispatcher_PublishFailureIsSwallowed(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("broker down")}
	d := NewDispatcher(publisher, nil, nil, testLogger())

	assert.NotPanics(t, func() {
		d.EventRecorded(context.Background(), &models.TrackingEvent{ID: "e1", Kind: enum.EventReply, Source: enum.SourceImap})
		d.Wait()
	})
	assert.Len(t, publisher.events, 1)
}

func TestDispatcher_UnattributedEventSkipsInvalidation(t *testing.T) {
	cache := &countingCache{}
	d := NewDispatcher(nil, cache, nil, testLogger())

	d.EventRecorded(context.Background(), &models.TrackingEvent{ID: "e1", Kind: enum.EventBounce, Source: enum.SourceImap})
	d.SendRegistered(context.Background(), &models.SentEmail{TrackingID: "t1", UserID: "u2"})
	d.Wait()

	assert.Equal(t, 0, cache.invalidated[""])
	assert.Equal(t, 1, cache.invalidated["u2"])
}

func TestGetEventType(t *testing.T) {
	assert.Equal(t, "RegisterSendInput", GetEventType[dto.RegisterSendInput]())
	assert.Equal(t, "RegisterSendInput", GetEventType[*dto.RegisterSendInput]())
}

type blockingCache struct {
	countingCache
	release chan struct{}
}

func (c *blockingCache) Invalidate(ctx context.Context, userID string) error {
	<-c.release
	return c.countingCache.Invalidate(ctx, userID)
}

func TestDispatcher_InvalidationDoesNotBlockCaller(t *testing.T) {
	cache := &blockingCache{release: make(chan struct{})}
	d := NewDispatcher(nil, cache, nil, testLogger())

	returned := make(chan struct{})
	go func() {
		d.SendRegistered(context.Background(), &models.SentEmail{TrackingID: "t1", UserID: "u1"})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("SendRegistered waited on the cache")
	}

	close(cache.release)
	d.Wait()
	assert.Equal(t, 1, cache.invalidated["u1"])
}
