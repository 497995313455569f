package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/customeros/mailtrack/api"
	"github.com/customeros/mailtrack/config"
	"github.com/customeros/mailtrack/internal/cron"
	"github.com/customeros/mailtrack/internal/listeners"
	"github.com/customeros/mailtrack/internal/logger"
	"github.com/customeros/mailtrack/internal/metrics"
	"github.com/customeros/mailtrack/internal/repository"
	"github.com/customeros/mailtrack/internal/tracing"
	"github.com/customeros/mailtrack/services"
)

const (
	httpShutdownTimeout = 15 * time.Second
	stopTimeout         = 10 * time.Second
)

type Server struct {
	config       *config.Config
	log          logger.Logger
	httpServer   *http.Server
	router       *gin.Engine
	services     *services.Services
	repositories *repository.Repositories
	redisClient  *redis.Client
	cronManager  *cron.CronManager
	tracerCloser io.Closer
}

func NewServer(cfg *config.Config, db *gorm.DB) (*Server, error) {
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		return nil, fmt.Errorf("could not initialize jaeger tracer: %w", err)
	}
	opentracing.SetGlobalTracer(tracer)

	repos := repository.InitRepositories(db)

	var redisClient *redis.Client
	if cfg.RedisConfig.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Addr,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			appLogger.Warnf("Redis unavailable at %s, continuing without cache and distributed locks: %v", cfg.RedisConfig.Addr, err)
			redisClient.Close()
			redisClient = nil
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	svcs, err := services.InitServices(cfg, appLogger, repos, redisClient, sqlDB, metrics.New())
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	return &Server{
		config:       cfg,
		log:          appLogger,
		router:       router,
		services:     svcs,
		repositories: repos,
		redisClient:  redisClient,
		cronManager:  cron.NewCronManager(cfg, appLogger, kubernetesClient(appLogger), repos.ProcessedMessageRepository),
		tracerCloser: closer,
		httpServer: &http.Server{
			Addr:              ":" + cfg.AppConfig.APIPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// kubernetesClient returns nil outside a cluster, which puts cron in local mode
func kubernetesClient(log logger.Logger) kubernetes.Interface {
	if os.Getenv("LOCAL_DEV") == "true" {
		return nil
	}
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		log.Infof("Not running in kubernetes, cron leader election disabled: %v", err)
		return nil
	}
	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		log.Warnf("Could not create kubernetes client: %v", err)
		return nil
	}
	return client
}

func (s *Server) Initialize(ctx context.Context) error {
	s.log.Info("Registering event listeners...")
	if err := s.services.EventsService.RegisterAndListen(
		listeners.NewRegisterSendListener(s.log, s.services.TrackingService),
	); err != nil {
		return err
	}

	s.log.Info("Resuming mailbox monitors...")
	if err := s.services.MonitorService.ResumeAll(ctx); err != nil {
		s.log.Errorf("Failed to resume mailbox monitors: %v", err)
	}

	api.RegisterRoutes(s.router, s.services, s.config.AppConfig.APIKey, s.log)

	return nil
}

func (s *Server) recoverWithJaeger(name string) {
	if r := recover(); r != nil {
		span := opentracing.GlobalTracer().StartSpan(
			fmt.Sprintf("panic.%s", name),
		)
		defer span.Finish()

		ext.Error.Set(span, true)
		span.LogKV(
			"event", "panic",
			"process", name,
			"error", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)

		s.log.Errorf("Panic in %s: %v\n%s", name, r, debug.Stack())
	}
}

func (s *Server) wrapGoroutine(name string, fn func()) {
	defer s.recoverWithJaeger(name)
	fn()
}

func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Initialize(ctx); err != nil {
		return err
	}

	if err := s.cronManager.Start(s.config.AppConfig.PodName, s.config.AppConfig.Namespace); err != nil {
		s.log.Errorf("Cron manager failed to start: %v", err)
	}

	go s.wrapGoroutine("http_server", func() {
		s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("HTTP server error: %v", err)
		}
	})
	s.log.Info("Mailtrack is now running. Press Ctrl+C to exit.")

	return s.waitForShutdown()
}

func (s *Server) waitForShutdown() error {
	defer s.recoverWithJaeger("shutdown")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	s.log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer shutdownCancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("HTTP server shutdown error: %v", err)
	} else {
		s.log.Info("HTTP server shut down successfully")
	}

	s.cronManager.Stop()

	// MonitorService.Stop is bounded internally
	s.wrapGoroutine("monitor_shutdown", s.services.MonitorService.Stop)
	s.log.Info("Mailbox monitors stopped")

	drained := make(chan struct{})
	go s.wrapGoroutine("dispatcher_drain", func() {
		defer close(drained)
		s.services.Dispatcher.Wait()
	})
	select {
	case <-drained:
	case <-time.After(stopTimeout):
		s.log.Warn("Timed out waiting for in-flight event publishes")
	}

	if err := s.services.EventsService.Close(); err != nil {
		s.log.Errorf("Events service shutdown error: %v", err)
	}
	if s.redisClient != nil {
		s.redisClient.Close()
	}
	if s.tracerCloser != nil {
		s.tracerCloser.Close()
	}
	_ = s.log.Sync()

	return nil
}
