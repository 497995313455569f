package services

import (
	"database/sql"

	"github.com/redis/go-redis/v9"

	"github.com/customeros/mailtrack/config"
	"github.com/customeros/mailtrack/interfaces"
	"github.com/customeros/mailtrack/internal/cache"
	"github.com/customeros/mailtrack/internal/database"
	"github.com/customeros/mailtrack/internal/distlock"
	"github.com/customeros/mailtrack/internal/logger"
	"github.com/customeros/mailtrack/internal/metrics"
	"github.com/customeros/mailtrack/internal/repository"
	"github.com/customeros/mailtrack/services/analytics"
	"github.com/customeros/mailtrack/services/events"
	"github.com/customeros/mailtrack/services/imap"
	"github.com/customeros/mailtrack/services/mail_processor"
	"github.com/customeros/mailtrack/services/storage"
	"github.com/customeros/mailtrack/services/tracking"
)

type Services struct {
	Metrics          *metrics.Metrics
	MetricsCache     interfaces.MetricsCache
	Locker           interfaces.Locker
	EventsService    *events.EventsService
	Dispatcher       *events.Dispatcher
	ArchiveStorage   interfaces.StorageService
	TrackingService  interfaces.TrackingService
	AnalyticsService interfaces.AnalyticsService
	MailProcessor    interfaces.MailProcessor
	MonitorService   interfaces.MailboxMonitor
}

// InitServices wires the service graph. redisClient and sqlDB may be nil;
// caching and cross-replica locking then degrade to process-local no-ops.
func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories, redisClient *redis.Client, sqlDB *sql.DB, m *metrics.Metrics) (*Services, error) {
	// events
	publisherConfig := events.DefaultPublisherConfig()

	subscriberConfig := &events.SubscriberConfig{
		MaxRetries:          events.DefaultMaxRetries,
		ReconnectBackoff:    events.DefaultReconnectBackoff,
		MaxReconnectBackoff: events.DefaultMaxReconnectBackoff,
	}

	eventsService, err := events.NewEventsService(cfg.RabbitMQConfig.URL, log, &publisherConfig, subscriberConfig)
	if err != nil {
		return nil, err
	}

	metricsCache := cache.NewNoopMetricsCache()
	if redisClient != nil && cfg.RedisConfig.CacheEnabled {
		metricsCache = cache.NewRedisMetricsCache(redisClient, cfg.RedisConfig.MetricsTTL)
	}

	archive, err := storage.NewArchiveStorage(cfg.ArchiveConfig)
	if err != nil {
		eventsService.Close()
		return nil, err
	}

	locker := distlock.NewLocker(redisClient, sqlDB, cfg.DatabaseConfig.Driver == database.DriverPostgres, cfg.ImapConfig.LockTTL)
	dispatcher := events.NewDispatcher(eventsService.Publisher, metricsCache, m, log)

	trackingService := tracking.NewTrackingService(
		repos.SentEmailRepository,
		repos.TrackingEventRepository,
		dispatcher,
		m,
		log,
		cfg.AppConfig.TrackingPublicUrl,
		cfg.TrackingConfig.WriteTimeout,
	)

	processor := mail_processor.NewMailProcessor(
		repos.SentEmailRepository,
		repos.ProcessedMessageRepository,
		dispatcher,
		archive,
		m,
		log,
	)

	monitor := imap.NewMonitorService(
		cfg.ImapConfig,
		repos.MailboxRepository,
		repos.MailboxCheckpointRepository,
		processor,
		locker,
		m,
		log,
		nil,
	)

	return &Services{
		Metrics:          m,
		MetricsCache:     metricsCache,
		Locker:           locker,
		EventsService:    eventsService,
		Dispatcher:       dispatcher,
		ArchiveStorage:   archive,
		TrackingService:  trackingService,
		AnalyticsService: analytics.NewAnalyticsService(repos.AnalyticsRepository, metricsCache, log),
		MailProcessor:    processor,
		MonitorService:   monitor,
	}, nil
}
