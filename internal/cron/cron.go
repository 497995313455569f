package cron

import (
	"context"
	"sync"
	"time"

	"github.com/caarlos0/env/v6"
	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/customeros/mailtrack/config"
	"github.com/customeros/mailtrack/interfaces"
	cron_config "github.com/customeros/mailtrack/internal/cron/config"
	"github.com/customeros/mailtrack/internal/logger"
	"github.com/customeros/mailtrack/internal/tracing"
	"github.com/customeros/mailtrack/internal/utils"
)

const (
	// GroupMaintenance is the group for store maintenance jobs
	GroupMaintenance = "maintenance"

	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second

	defaultRetention = 30 * 24 * time.Hour
)

var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupMaintenance: new(sync.Mutex),
	},
}

type CronManager struct {
	cfg       *config.Config
	log       logger.Logger
	cron      *cronv3.Cron
	k8s       kubernetes.Interface
	stopCh    chan struct{}
	stopOnce  sync.Once
	cancel    context.CancelFunc
	jobIDs    map[string]cronv3.EntryID
	processed interfaces.ProcessedMessageRepository
}

func NewCronManager(cfg *config.Config, log logger.Logger, k8s kubernetes.Interface, processed interfaces.ProcessedMessageRepository) *CronManager {
	return &CronManager{
		cfg:       cfg,
		log:       log,
		k8s:       k8s,
		stopCh:    make(chan struct{}),
		jobIDs:    make(map[string]cronv3.EntryID),
		processed: processed,
	}
}

// Start initializes and starts the cron manager with leader election.
// If k8s is nil, it will start in local mode without leader election.
func (cm *CronManager) Start(podName, namespace string) error {
	if cm.k8s == nil {
		cm.log.Info("Starting cron manager in local mode")
		cm.StartCron()
		return nil
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      "mailtrack-cron-leader",
			Namespace: namespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: podName,
		},
	}

	errCh := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cm.cancel = cancel

	go func() {
		defer tracing.RecoverAndLogToJaeger(cm.log)
		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   LeaseDuration,
			RenewDeadline:   RenewDeadline,
			RetryPeriod:     RetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(ctx context.Context) {
					cm.StartCron()
				},
				OnStoppedLeading: func() {
					cm.log.Info("Leader lost - stopping crons")
					cm.stopCron()
				},
				OnNewLeader: func(identity string) {
					cm.log.Infof("New leader elected: %s", identity)
				},
			},
		})
		if err != nil {
			errCh <- err
			return
		}
		le.Run(ctx)
	}()

	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		cm.StartCron()
	case <-time.After(5 * time.Second):
	}

	return nil
}

// Stop gracefully stops the cron manager and gives up leadership
func (cm *CronManager) Stop() {
	cm.stopOnce.Do(func() {
		if cm.cancel != nil {
			cm.cancel()
		}
		cm.stopCron()
		close(cm.stopCh)
	})
}

func (cm *CronManager) stopCron() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		<-ctx.Done()
	}
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		cm.log.Fatalf("Failed to parse cron config from environment: %v", err)
	}

	if cronConfig.CronScheduleHeartbeat != "" {
		podName := cm.cfg.AppConfig.PodName
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		})
		if err != nil {
			cm.log.Fatalf("Could not add heartbeat cron job: %v", err)
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	if cronConfig.CronSchedulePruneProcessed != "" && cm.processed != nil {
		id, err := c.AddFunc(cronConfig.CronSchedulePruneProcessed, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupMaintenance].Lock()
			defer jobLocks.locks[GroupMaintenance].Unlock()
			cm.pruneProcessedMessages()
		})
		if err != nil {
			cm.log.Fatalf("Could not add prune processed messages cron job: %v", err)
		}
		cm.jobIDs["prune_processed"] = id
		cm.log.Infof("Registered prune processed messages job with schedule: %s", cronConfig.CronSchedulePruneProcessed)
	}
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

func (cm *CronManager) pruneProcessedMessages() {
	span, ctx := tracing.StartTracerSpan(context.Background(), "CronManager.pruneProcessedMessages")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	deleted, err := PruneProcessedMessages(ctx, cm.processed, cm.cfg.DedupConfig.Retention)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to prune processed messages: %v", err)
		return
	}
	span.LogKV("result.deleted", deleted)
	cm.log.Infof("Pruned %d processed messages", deleted)
}

// PruneProcessedMessages drops dedup entries older than retention. Mail
// older than the retention window is never fetched again because the
// poller only searches above its checkpoint.
func PruneProcessedMessages(ctx context.Context, processed interfaces.ProcessedMessageRepository, retention time.Duration) (int64, error) {
	if retention <= 0 {
		retention = defaultRetention
	}
	return processed.PruneOlderThan(ctx, utils.Now().Add(-retention))
}
