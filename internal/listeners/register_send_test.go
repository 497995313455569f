package listeners

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailtrack/dto"
	mterrors "github.com/customeros/mailtrack/internal/errors"
	"github.com/customeros/mailtrack/internal/logger"
	"github.com/customeros/mailtrack/internal/models"
)

type fakeTracking struct {
	inputs []dto.RegisterSendInput
	err    error
}

func (f *fakeTracking) RegisterSend(_ context.Context, input dto.RegisterSendInput) (string, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return "", f.err
	}
	return "trk_1", nil
}

func (f *fakeTracking) RecordOpen(context.Context, string, dto.RequestMetadata) error { return nil }

func (f *fakeTracking) RecordClick(context.Context, string, string, string, dto.RequestMetadata) error {
	return nil
}

func (f *fakeTracking) GetEmailStatus(context.Context, string, string) (*dto.EmailStatus, error) {
	return nil, nil
}

func (f *fakeTracking) ListEvents(context.Context, models.EventFilter) ([]*models.TrackingEvent, error) {
	return nil, nil
}

func (f *fakeTracking) PixelURL(string) string { return "" }

func (f *fakeTracking) ClickURL(string, int, string) string { return "" }

func newListener(t *testing.T, tracking *fakeTracking) *RegisterSendListener {
	t.Helper()
	log := logger.NewAppLogger(&logger.Config{LogLevel: "error"})
	log.InitLogger()
	return NewRegisterSendListener(log, tracking).(*RegisterSendListener)
}

func registerSendEvent(data map[string]interface{}) dto.Event {
	return dto.Event{
		Event: dto.EventDetails{
			Id:        "evt-1",
			UserId:    "user-1",
			EventType: "RegisterSendInput",
			Data:      data,
		},
	}
}

func TestRegisterSendListener_Handle(t *testing.T) {
	tracking := &fakeTracking{}
	listener := newListener(t, tracking)

	err := listener.Handle(context.Background(), registerSendEvent(map[string]interface{}{
		"campaignId": "camp-1",
		"to":         "Jane@Example.com",
		"subject":    "Hello",
	}))
	require.NoError(t, err)

	require.Len(t, tracking.inputs, 1)
	assert.Equal(t, "user-1", tracking.inputs[0].UserId)
	assert.Equal(t, "camp-1", tracking.inputs[0].CampaignId)
	assert.Equal(t, "Jane@Example.com", tracking.inputs[0].RecipientEmail)
}

func TestRegisterSendListener_InvalidPayloadIsDropped(t *testing.T) {
	tracking := &fakeTracking{err: mterrors.ErrInvalidInput}
	listener := newListener(t, tracking)

	err := listener.Handle(context.Background(), registerSendEvent(map[string]interface{}{"subject": "x"}))
	assert.NoError(t, err)
}

func TestRegisterSendListener_StoreFailureIsReturned(t *testing.T) {
	tracking := &fakeTracking{err: mterrors.Transient(assert.AnError)}
	listener := newListener(t, tracking)

	err := listener.Handle(context.Background(), registerSendEvent(map[string]interface{}{"to": "a@b.com", "subject": "x"}))
	assert.Error(t, err)
}

func TestRegisterSendListener_RejectsNonEvent(t *testing.T) {
	listener := newListener(t, &fakeTracking{})
	assert.Error(t, listener.Handle(context.Background(), "not an event"))
}

func TestRegisterSendListener_Routing(t *testing.T) {
	listener := newListener(t, &fakeTracking{})
	assert.Equal(t, "RegisterSendInput", listener.GetEventType())
	assert.Equal(t, "register-send", listener.GetQueueName())
}

func TestRegisterSendListener_RejectsForeignEventType(t *testing.T) {
	tracking := &fakeTracking{}
	listener := newListener(t, tracking)

	event := registerSendEvent(map[string]interface{}{"to": "a@b.com", "subject": "x"})
	event.Event.EventType = "TrackingEventRecorded"

	assert.Error(t, listener.Handle(context.Background(), event))
	assert.Empty(t, tracking.inputs)
}
