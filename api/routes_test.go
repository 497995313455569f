package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailtrack/api/middleware"
	"github.com/customeros/mailtrack/dto"
	"github.com/customeros/mailtrack/interfaces"
	"github.com/customeros/mailtrack/internal/cache"
	"github.com/customeros/mailtrack/internal/database"
	mterrors "github.com/customeros/mailtrack/internal/errors"
	"github.com/customeros/mailtrack/internal/logger"
	"github.com/customeros/mailtrack/internal/metrics"
	"github.com/customeros/mailtrack/internal/models"
	"github.com/customeros/mailtrack/internal/repository"
	"github.com/customeros/mailtrack/services"
	"github.com/customeros/mailtrack/services/analytics"
	"github.com/customeros/mailtrack/services/events"
	"github.com/customeros/mailtrack/services/tracking"
)

const testAPIKey = "secret"

type fakeMonitor struct {
	configured map[string]bool
	running    map[string]bool
}

func newFakeMonitor() *fakeMonitor {
	return &fakeMonitor{configured: map[string]bool{}, running: map[string]bool{}}
}

func (m *fakeMonitor) SaveMailbox(_ context.Context, input dto.MailboxInput) (*models.Mailbox, error) {
	if input.UserId == "" {
		return nil, mterrors.ErrUserIdRequired
	}
	m.configured[input.UserId] = true
	return &models.Mailbox{ID: "mbox_1", UserID: input.UserId, ImapServer: input.ImapHost, ImapPassword: input.ImapPassword}, nil
}

func (m *fakeMonitor) StartMonitoring(_ context.Context, userID string) (*dto.MonitorStatus, error) {
	if userID == "" {
		return nil, mterrors.ErrUserIdRequired
	}
	if !m.configured[userID] {
		return nil, mterrors.ErrConfigMissing
	}
	m.running[userID] = true
	return m.status(userID), nil
}

func (m *fakeMonitor) StopMonitoring(_ context.Context, userID string) (*dto.MonitorStatus, error) {
	m.running[userID] = false
	return m.status(userID), nil
}

func (m *fakeMonitor) Status(_ context.Context, userID string) (*dto.MonitorStatus, error) {
	if userID == "" {
		return nil, mterrors.ErrUserIdRequired
	}
	return m.status(userID), nil
}

func (m *fakeMonitor) status(userID string) *dto.MonitorStatus {
	return &dto.MonitorStatus{UserId: userID, Configured: m.configured[userID], Running: m.running[userID]}
}

func (m *fakeMonitor) ResumeAll(context.Context) error { return nil }

func (m *fakeMonitor) Stop() {}

type failingTracking struct {
	interfaces.TrackingService
}

func (failingTracking) RecordOpen(context.Context, string, dto.RequestMetadata) error {
	return mterrors.Transient(errors.New("database is locked"))
}

func (failingTracking) RecordClick(context.Context, string, string, string, dto.RequestMetadata) error {
	return mterrors.Transient(errors.New("database is locked"))
}

type testServer struct {
	router  *gin.Engine
	monitor *fakeMonitor
}

func newTestServer(t *testing.T, wrap func(interfaces.TrackingService) interfaces.TrackingService) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	log := logger.NewAppLogger(&logger.Config{LogLevel: "error"})
	log.InitLogger()

	repos := repository.InitRepositories(db)
	m := metrics.New()
	metricsCache := cache.NewNoopMetricsCache()
	dispatcher := events.NewDispatcher(nil, metricsCache, m, log)
	t.Cleanup(dispatcher.Wait)

	trackingService := tracking.NewTrackingService(repos.SentEmailRepository, repos.TrackingEventRepository, dispatcher, m, log, "https://t.example.com", 0)
	if wrap != nil {
		trackingService = wrap(trackingService)
	}
	monitor := newFakeMonitor()

	s := &services.Services{
		Metrics:          m,
		MetricsCache:     metricsCache,
		Dispatcher:       dispatcher,
		TrackingService:  trackingService,
		AnalyticsService: analytics.NewAnalyticsService(repos.AnalyticsRepository, metricsCache, log),
		MonitorService:   monitor,
	}

	router := gin.New()
	RegisterRoutes(router, s, testAPIKey, log)
	return &testServer{router: router, monitor: monitor}
}

func (s *testServer) do(method, path string, body any, authed bool) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set(middleware.APIKeyHeader, testAPIKey)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func register(t *testing.T, s *testServer) string {
	t.Helper()
	rec := s.do(http.MethodPost, "/track/register", map[string]any{
		"userId":     "user1",
		"campaignId": "campaignA",
		"to":         "x@y.com",
		"subject":    "Hi",
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	trackingID, _ := body["trackingId"].(string)
	require.NotEmpty(t, trackingID)
	assert.Equal(t, "https://t.example.com/track/open/"+trackingID, body["pixelUrl"])
	return trackingID
}

func TestPixel_ServesGifForUnknownId(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodGet, "/track/open/unknown-id", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store, no-cache, must-revalidate, private", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))
	assert.Equal(t, "0", rec.Header().Get("Expires"))
	assert.Len(t, rec.Body.Bytes(), 43)
}

func TestPixel_StoreFailureStillServesGif(t *testing.T) {
	s := newTestServer(t, func(inner interfaces.TrackingService) interfaces.TrackingService {
		return failingTracking{inner}
	})

	rec := s.do(http.MethodGet, "/track/open/abc", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Body.Bytes(), 43)
}

func TestClick_MissingUrl(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodGet, "/track/click/abc/1", nil, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing target URL", rec.Body.String())
}

func TestClick_RedirectsEvenWhenStoreFails(t *testing.T) {
	s := newTestServer(t, func(inner interfaces.TrackingService) interfaces.TrackingService {
		return failingTracking{inner}
	})

	rec := s.do(http.MethodGet, "/track/click/abc/cta?url=https%3A%2F%2Fexample.com%2Fpricing%3Fa%3D1", nil, false)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com/pricing?a=1", rec.Header().Get("Location"))
}

func TestProtectedRoutesRequireApiKey(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodGet, "/analytics/email-metrics?userId=user1", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/analytics/email-metrics?userId=user1", nil)
	req.Header.Set(middleware.APIKeyHeader, "wrong")
	wrong := httptest.NewRecorder()
	s.router.ServeHTTP(wrong, req)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
}

func TestRegister_Validation(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodPost, "/track/register", map[string]any{"to": "x@y.com", "subject": "Hi"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])

	rec = s.do(http.MethodPost, "/track/register", map[string]any{"userId": "user1", "subject": "Hi"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEndToEnd_OpensAndClickShowInMetrics(t *testing.T) {
	s := newTestServer(t, nil)
	trackingID := register(t, s)

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/track/open/"+trackingID, nil, false).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/track/open/"+trackingID, nil, false).Code)
	require.Equal(t, http.StatusFound, s.do(http.MethodGet, "/track/click/"+trackingID+"/0?url=https%3A%2F%2Fexample.com", nil, false).Code)

	rec := s.do(http.MethodGet, "/analytics/email-metrics?userId=user1&timeRange=7d", nil, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, 1.0, data["totalSent"])
	assert.Equal(t, 1.0, data["totalOpened"])
	assert.Equal(t, 1.0, data["totalClicked"])
	assert.Equal(t, 2.0, data["totalOpenEvents"])

	rec = s.do(http.MethodGet, "/track/events?userId=user1&eventType=open", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, decode(t, rec)["count"])

	rec = s.do(http.MethodGet, "/track/status/"+trackingID+"?userId=user1", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "clicked", decode(t, rec)["data"].(map[string]any)["status"])

	rec = s.do(http.MethodGet, "/track/status/"+trackingID+"?userId=user2", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrackAnalytics_SummarisesCampaign(t *testing.T) {
	s := newTestServer(t, nil)
	trackingID := register(t, s)
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/track/open/"+trackingID, nil, false).Code)

	rec := s.do(http.MethodGet, "/track/analytics?userId=user1&campaignId=campaignA", nil, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, 1.0, data["totalSent"])
	assert.Equal(t, 1.0, data["totalOpened"])

	rec = s.do(http.MethodGet, "/track/analytics?userId=user1&campaignId=campaignB", nil, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 0.0, decode(t, rec)["data"].(map[string]any)["totalSent"])
}

func TestAnalytics_RequiresUserId(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{
		"/analytics/email-metrics",
		"/analytics/engagement-trends",
		"/analytics/campaign-performance",
		"/analytics/deliverability",
		"/analytics/recipient-analytics",
		"/analytics/realtime",
		"/track/analytics",
		"/track/events",
	} {
		rec := s.do(http.MethodGet, path, nil, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestEvents_InvalidDate(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodGet, "/track/events?userId=user1&startDate=yesterday", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonitoring_StartWithoutMailbox(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodPost, "/analytics/start-imap-monitoring", map[string]any{"userId": "user1"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "PUT /mailboxes")
}

func TestMonitoring_Lifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodPut, "/mailboxes", map[string]any{
		"userId":       "user1",
		"imapHost":     "imap.example.com",
		"imapPort":     993,
		"imapUsername": "me@example.com",
		"imapPassword": "hunter2",
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "hunter2")

	rec = s.do(http.MethodPost, "/analytics/start-imap-monitoring", map[string]any{"userId": "user1"}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["data"].(map[string]any)["running"])

	rec = s.do(http.MethodGet, "/analytics/imap-status?userId=user1", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["data"].(map[string]any)["configured"])

	rec = s.do(http.MethodPost, "/analytics/stop-imap-monitoring", map[string]any{"userId": "user1"}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["data"].(map[string]any)["running"])
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", nil, false).Code)

	rec := s.do(http.MethodGet, "/metrics", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mailtrack_sends_registered_total")
}
