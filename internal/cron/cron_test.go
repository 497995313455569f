package cron

import (
	"context"
	"os"
	"testing"
	"time"

	cronv3 "github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/kubernetes"

	"github.com/customeros/mailtrack/config"
	"github.com/customeros/mailtrack/internal/logger"
	"github.com/customeros/mailtrack/internal/models"
)

type mockKubernetesInterface struct {
	kubernetes.Interface
	mock.Mock
}

type mockProcessedRepository struct {
	mock.Mock
}

func (m *mockProcessedRepository) RecordOnce(ctx context.Context, processed *models.ProcessedMessage, event *models.TrackingEvent) (bool, error) {
	args := m.Called(ctx, processed, event)
	return args.Bool(0), args.Error(1)
}

func (m *mockProcessedRepository) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	args := m.Called(ctx, messageID)
	return args.Bool(0), args.Error(1)
}

func (m *mockProcessedRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func testConfig() *config.Config {
	return &config.Config{
		AppConfig:   &config.AppConfig{PodName: "test-pod"},
		DedupConfig: &config.DedupConfig{Retention: 48 * time.Hour},
	}
}

func TestNewCronManager(t *testing.T) {
	cfg := testConfig()
	log := getLogger()
	k8s := &mockKubernetesInterface{}

	cm := NewCronManager(cfg, log, k8s, nil)

	assert.NotNil(t, cm)
	assert.Equal(t, cfg, cm.cfg)
	assert.Equal(t, log, cm.log)
	assert.Equal(t, k8s, cm.k8s)
	assert.NotNil(t, cm.jobIDs)
}

func TestCronManager_StartCronRegistersJobs(t *testing.T) {
	os.Setenv("CRON_SCHEDULE_PRUNE_PROCESSED", "0 0 3 * * *")
	defer os.Unsetenv("CRON_SCHEDULE_PRUNE_PROCESSED")

	cm := NewCronManager(testConfig(), getLogger(), nil, &mockProcessedRepository{})
	require.NoError(t, cm.Start("test-pod", "default"))
	defer cm.Stop()

	assert.NotNil(t, cm.cron)
	assert.Contains(t, cm.jobIDs, "heartbeat")
	assert.Contains(t, cm.jobIDs, "prune_processed")
	assert.Len(t, cm.cron.Entries(), 2)
}

func TestCronManager_SkipsPruneWithoutRepository(t *testing.T) {
	cm := NewCronManager(testConfig(), getLogger(), nil, nil)
	cm.StartCron()
	defer cm.Stop()

	assert.NotContains(t, cm.jobIDs, "prune_processed")
}

func TestCronManager_Stop(t *testing.T) {
	cm := NewCronManager(testConfig(), getLogger(), &mockKubernetesInterface{}, nil)

	mockCron := cronv3.New()
	mockCron.Start()
	cm.cron = mockCron

	cm.Stop()
	cm.Stop()

	select {
	case <-cm.stopCh:
	default:
		t.Error("Stop channel was not closed")
	}
}

func TestCronManager_PruneUsesRetention(t *testing.T) {
	repo := &mockProcessedRepository{}
	before := time.Now().UTC().Add(-48 * time.Hour)
	repo.On("PruneOlderThan", mock.Anything, mock.MatchedBy(func(cutoff time.Time) bool {
		return !cutoff.Before(before) && cutoff.Before(time.Now().UTC().Add(-47*time.Hour))
	})).Return(int64(7), nil)

	cm := NewCronManager(testConfig(), getLogger(), nil, repo)
	cm.pruneProcessedMessages()

	repo.AssertExpectations(t)
}

func TestPruneProcessedMessages_DefaultRetention(t *testing.T) {
	repo := &mockProcessedRepository{}
	before := time.Now().UTC().Add(-defaultRetention)
	repo.On("PruneOlderThan", mock.Anything, mock.MatchedBy(func(cutoff time.Time) bool {
		return !cutoff.Before(before) && cutoff.Before(before.Add(time.Minute))
	})).Return(int64(0), nil)

	deleted, err := PruneProcessedMessages(context.Background(), repo, 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	repo.AssertExpectations(t)
}
