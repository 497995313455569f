package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailtrack/dto"
	"github.com/customeros/mailtrack/interfaces"
	"github.com/customeros/mailtrack/internal/database"
	"github.com/customeros/mailtrack/internal/enum"
	mterrors "github.com/customeros/mailtrack/internal/errors"
	"github.com/customeros/mailtrack/internal/logger"
	"github.com/customeros/mailtrack/internal/models"
	"github.com/customeros/mailtrack/internal/repository"
)

type recordingDispatcher struct {
	events []*models.TrackingEvent
	sends  []*models.SentEmail
}

func (d *recordingDispatcher) EventRecorded(_ context.Context, event *models.TrackingEvent) {
	d.events = append(d.events, event)
}

func (d *recordingDispatcher) SendRegistered(_ context.Context, sent *models.SentEmail) {
	d.sends = append(d.sends, sent)
}

type failingEvents struct {
	interfaces.TrackingEventRepository
}

func (failingEvents) Append(context.Context, *models.TrackingEvent) (bool, error) {
	return false, errors.New("disk I/O error")
}

func testLogger() logger.Logger {
	log := logger.NewAppLogger(&logger.Config{LogLevel: "error"})
	log.InitLogger()
	return log
}

func newTestService(t *testing.T) (interfaces.TrackingService, *repository.Repositories, *recordingDispatcher) {
	t.Helper()
	db, err := database.NewConnection(&database.DatabaseConfig{
		Driver:     database.DriverSQLite,
		SQLitePath: ":memory:",
		LogLevel:   "SILENT",
	})
	require.NoError(t, err)
	require.NoError(t, repository.MigrateDB(db))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	repos := repository.InitRepositories(db)
	dispatcher := &recordingDispatcher{}
	svc := NewTrackingService(repos.SentEmailRepository, repos.TrackingEventRepository, dispatcher, nil, testLogger(), "https://t.example.com/", 2*time.Second)
	return svc, repos, dispatcher
}

func registerInput() dto.RegisterSendInput {
	return dto.RegisterSendInput{
		UserId:         "user1",
		CampaignId:     "campaignA",
		RecipientEmail: "X@Y.com",
		Subject:        "Hi",
	}
}

func TestRegisterSend(t *testing.T) {
	svc, repos, dispatcher := newTestService(t)
	ctx := context.Background()

	trackingID, err := svc.RegisterSend(ctx, registerInput())
	require.NoError(t, err)
	assert.Len(t, trackingID, 21)

	sent, err := repos.SentEmailRepository.GetByTrackingID(ctx, trackingID)
	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.Equal(t, "x@y.com", sent.RecipientEmail)
	assert.Equal(t, "Technology", sent.Industry)
	assert.Equal(t, "North America", sent.Location)
	assert.Equal(t, enum.SendStatusSent, sent.Status)
	assert.Len(t, dispatcher.sends, 1)
}

func TestRegisterSend_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	input := registerInput()
	input.UserId = ""
	_, err := svc.RegisterSend(ctx, input)
	assert.ErrorIs(t, err, mterrors.ErrUserIdRequired)

	input = registerInput()
	input.RecipientEmail = ""
	_, err = svc.RegisterSend(ctx, input)
	assert.ErrorIs(t, err, mterrors.ErrInvalidInput)

	input = registerInput()
	input.Subject = " "
	_, err = svc.RegisterSend(ctx, input)
	assert.ErrorIs(t, err, mterrors.ErrInvalidInput)
}

func TestRegisterSend_SuppliedTrackingIdIsIdempotent(t *testing.T) {
	svc, _, dispatcher := newTestService(t)
	ctx := context.Background()

	input := registerInput()
	input.TrackingId = "trk-fixed"

	first, err := svc.RegisterSend(ctx, input)
	require.NoError(t, err)
	second, err := svc.RegisterSend(ctx, input)
	require.NoError(t, err)

	assert.Equal(t, "trk-fixed", first)
	assert.Equal(t, first, second)
	assert.Len(t, dispatcher.sends, 1)

	input.UserId = "intruder"
	_, err = svc.RegisterSend(ctx, input)
	assert.ErrorIs(t, err, mterrors.ErrInvalidInput)
}

func TestRecordOpen_EveryHitIsRecorded(t *testing.T) {
	svc, repos, dispatcher := newTestService(t)
	ctx := context.Background()

	trackingID, err := svc.RegisterSend(ctx, registerInput())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.RecordOpen(ctx, trackingID, dto.RequestMetadata{UserAgent: "Mozilla", IP: "10.0.0.1"}))
	}

	events, err := repos.TrackingEventRepository.ListByTrackingID(ctx, trackingID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for _, event := range events {
		assert.Equal(t, enum.EventOpen, event.Kind)
		assert.Equal(t, enum.SourcePixel, event.Source)
		assert.Equal(t, "user1", event.UserID)
		assert.Equal(t, "campaignA", event.CampaignID)
		assert.Equal(t, "Mozilla", event.Metadata.GetString("userAgent"))
	}
	assert.Len(t, dispatcher.events, 3)
}

func TestRecordOpen_UnknownTrackingId(t *testing.T) {
	svc, _, dispatcher := newTestService(t)

	err := svc.RecordOpen(context.Background(), "does-not-exist", dto.RequestMetadata{})
	assert.ErrorIs(t, err, mterrors.ErrSendNotFound)
	assert.Empty(t, dispatcher.events)
}

func TestRecordClick(t *testing.T) {
	svc, repos, _ := newTestService(t)
	ctx := context.Background()

	trackingID, err := svc.RegisterSend(ctx, registerInput())
	require.NoError(t, err)

	require.NoError(t, svc.RecordClick(ctx, trackingID, "cta", "https://example.com/pricing", dto.RequestMetadata{}))

	events, err := repos.TrackingEventRepository.ListByTrackingID(ctx, trackingID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enum.EventClick, events[0].Kind)
	assert.Equal(t, enum.SourceRedirect, events[0].Source)
	assert.Equal(t, "cta", events[0].Metadata.GetString("linkIndex"))
	assert.Equal(t, "https://example.com/pricing", events[0].Metadata.GetString("targetUrl"))
}

func TestRecordClick_StoreFailureIsTransient(t *testing.T) {
	_, repos, dispatcher := newTestService(t)
	svc := NewTrackingService(repos.SentEmailRepository, failingEvents{repos.TrackingEventRepository}, dispatcher, nil, testLogger(), "", 0)
	ctx := context.Background()

	trackingID, err := svc.RegisterSend(ctx, registerInput())
	require.NoError(t, err)

	err = svc.RecordClick(ctx, trackingID, "1", "https://example.com", dto.RequestMetadata{})
	assert.ErrorIs(t, err, mterrors.ErrTransientIO)
	assert.Empty(t, dispatcher.events)
}

func TestGetEmailStatus_MostSevereWins(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	trackingID, err := svc.RegisterSend(ctx, registerInput())
	require.NoError(t, err)

	status, err := svc.GetEmailStatus(ctx, "user1", trackingID)
	require.NoError(t, err)
	assert.Equal(t, "sent", status.Status)
	assert.Nil(t, status.LastEventAt)

	require.NoError(t, svc.RecordClick(ctx, trackingID, "1", "https://example.com", dto.RequestMetadata{}))
	require.NoError(t, svc.RecordOpen(ctx, trackingID, dto.RequestMetadata{}))

	status, err = svc.GetEmailStatus(ctx, "user1", trackingID)
	require.NoError(t, err)
	assert.Equal(t, "clicked", status.Status)
	assert.Equal(t, 1, status.EventCounts["open"])
	assert.Equal(t, 1, status.EventCounts["click"])
	assert.NotNil(t, status.LastEventAt)

	_, err = svc.GetEmailStatus(ctx, "someone-else", trackingID)
	assert.ErrorIs(t, err, mterrors.ErrSendNotFound)
}

func TestGetEmailStatus_FailedSendStaysFailed(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	input := registerInput()
	input.Status = "failed"
	trackingID, err := svc.RegisterSend(ctx, input)
	require.NoError(t, err)
	require.NoError(t, svc.RecordOpen(ctx, trackingID, dto.RequestMetadata{}))

	status, err := svc.GetEmailStatus(ctx, "user1", trackingID)
	require.NoError(t, err)
	assert.Equal(t, "failed", status.Status)
}

func TestListEvents(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ListEvents(ctx, models.EventFilter{})
	assert.ErrorIs(t, err, mterrors.ErrUserIdRequired)

	_, err = svc.ListEvents(ctx, models.EventFilter{UserID: "user1", Kind: "download"})
	assert.ErrorIs(t, err, mterrors.ErrInvalidInput)

	trackingID, err := svc.RegisterSend(ctx, registerInput())
	require.NoError(t, err)
	require.NoError(t, svc.RecordOpen(ctx, trackingID, dto.RequestMetadata{}))

	events, err := svc.ListEvents(ctx, models.EventFilter{UserID: "user1", Kind: enum.EventOpen})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	events, err = svc.ListEvents(ctx, models.EventFilter{UserID: "user2"})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestTrackingURLs(t *testing.T) {
	svc, _, _ := newTestService(t)

	assert.Equal(t, "https://t.example.com/track/open/abc", svc.PixelURL("abc"))
	assert.Equal(t, "https://t.example.com/track/click/abc/2?url=https%3A%2F%2Fexample.com%2Fa%3Fb%3Dc", svc.ClickURL("abc", 2, "https://example.com/a?b=c"))
}
