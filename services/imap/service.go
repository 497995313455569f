package imap

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailtrack/config"
	"github.com/customeros/mailtrack/dto"
	"github.com/customeros/mailtrack/interfaces"
	"github.com/customeros/mailtrack/internal/enum"
	mterrors "github.com/customeros/mailtrack/internal/errors"
	"github.com/customeros/mailtrack/internal/logger"
	"github.com/customeros/mailtrack/internal/metrics"
	"github.com/customeros/mailtrack/internal/models"
	"github.com/customeros/mailtrack/internal/tracing"
	"github.com/customeros/mailtrack/internal/utils"
)

const defaultStopTimeout = 10 * time.Second

var ErrMonitorStopped = errors.New("mailbox monitor is shutting down")

// MonitorService runs one polling worker per monitored mailbox
type MonitorService struct {
	cfg  config.ImapConfig
	deps workerDeps

	ctx    context.Context
	cancel context.CancelFunc

	workersMutex sync.Mutex
	workers      map[string]*worker // keyed by user id
	stopped      bool
}

func NewMonitorService(
	cfg *config.ImapConfig,
	mailboxes interfaces.MailboxRepository,
	checkpoints interfaces.MailboxCheckpointRepository,
	processor interfaces.MailProcessor,
	locker interfaces.Locker,
	m *metrics.Metrics,
	log logger.Logger,
	dial Dialer,
) *MonitorService {
	if cfg == nil {
		cfg = &config.ImapConfig{}
	}
	if dial == nil {
		dial = NewDialer(cfg.DialTimeout)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MonitorService{
		cfg: *cfg,
		deps: workerDeps{
			dial:        dial,
			processor:   processor,
			checkpoints: checkpoints,
			mailboxes:   mailboxes,
			locker:      locker,
			metrics:     m,
			log:         log,
		},
		ctx:     ctx,
		cancel:  cancel,
		workers: make(map[string]*worker),
	}
}

// SaveMailbox stores IMAP credentials for a user. A running worker is
// restarted with the new settings.
func (s *MonitorService) SaveMailbox(ctx context.Context, input dto.MailboxInput) (*models.Mailbox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MonitorService.SaveMailbox")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagUserId(span, input.UserId)

	if input.UserId == "" {
		return nil, mterrors.ErrUserIdRequired
	}
	if strings.TrimSpace(input.ImapHost) == "" || input.ImapPort <= 0 || input.ImapUsername == "" || input.ImapPassword == "" {
		return nil, mterrors.ErrInvalidInput
	}

	useTLS := true
	if input.UseTLS != nil {
		useTLS = *input.UseTLS
	}
	emailAddress := utils.NormalizeEmail(input.EmailAddress)
	if emailAddress == "" {
		emailAddress = utils.NormalizeEmail(input.ImapUsername)
	}
	folder := strings.TrimSpace(input.Folder)
	if folder == "" {
		folder = "INBOX"
	}

	mailbox := &models.Mailbox{
		UserID:       input.UserId,
		EmailAddress: emailAddress,
		ImapServer:   strings.TrimSpace(input.ImapHost),
		ImapPort:     input.ImapPort,
		ImapUsername: input.ImapUsername,
		ImapPassword: input.ImapPassword,
		ImapTLS:      useTLS,
		Folder:       folder,
	}
	if err := s.deps.mailboxes.Upsert(ctx, mailbox); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	tracing.TagAccount(span, mailbox.ID)

	s.workersMutex.Lock()
	existing, running := s.workers[input.UserId]
	s.workersMutex.Unlock()
	if running {
		s.stopWorker(input.UserId, existing)
		s.startWorker(mailbox)
	}

	return mailbox, nil
}

// StartMonitoring is idempotent: an already running worker is left alone
func (s *MonitorService) StartMonitoring(ctx context.Context, userID string) (*dto.MonitorStatus, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MonitorService.StartMonitoring")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagUserId(span, userID)

	if userID == "" {
		return nil, mterrors.ErrUserIdRequired
	}

	mailbox, err := s.deps.mailboxes.GetByUserID(ctx, userID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if !mailbox.HasCredentials() {
		return nil, mterrors.ErrConfigMissing
	}

	if err := s.deps.mailboxes.SetMonitoring(ctx, mailbox.ID, true); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	s.workersMutex.Lock()
	w, running := s.workers[userID]
	s.workersMutex.Unlock()
	if running {
		return withConfigured(w.status()), nil
	}

	w = s.startWorker(mailbox)
	if w == nil {
		return nil, ErrMonitorStopped
	}
	return withConfigured(w.status()), nil
}

// StopMonitoring is idempotent and waits for the in-flight tick
func (s *MonitorService) StopMonitoring(ctx context.Context, userID string) (*dto.MonitorStatus, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MonitorService.StopMonitoring")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagUserId(span, userID)

	if userID == "" {
		return nil, mterrors.ErrUserIdRequired
	}

	mailbox, err := s.deps.mailboxes.GetByUserID(ctx, userID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if mailbox == nil {
		return nil, mterrors.ErrConfigMissing
	}

	if err := s.deps.mailboxes.SetMonitoring(ctx, mailbox.ID, false); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	s.workersMutex.Lock()
	w, running := s.workers[userID]
	s.workersMutex.Unlock()
	if running {
		s.stopWorker(userID, w)
		return withConfigured(w.status()), nil
	}

	return &dto.MonitorStatus{
		UserId:     userID,
		AccountId:  mailbox.ID,
		Configured: true,
		State:      enum.MonitorStopped.String(),
	}, nil
}

func (s *MonitorService) Status(ctx context.Context, userID string) (*dto.MonitorStatus, error) {
	if userID == "" {
		return nil, mterrors.ErrUserIdRequired
	}

	s.workersMutex.Lock()
	w, running := s.workers[userID]
	s.workersMutex.Unlock()
	if running {
		return withConfigured(w.status()), nil
	}

	mailbox, err := s.deps.mailboxes.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	status := &dto.MonitorStatus{
		UserId: userID,
		State:  enum.MonitorStopped.String(),
	}
	if mailbox != nil {
		status.AccountId = mailbox.ID
		status.Configured = mailbox.HasCredentials()
		status.LastTickAt = mailbox.LastPolledAt
		status.LastError = mailbox.ErrorMessage
	}
	return status, nil
}

// ResumeAll restarts workers for every mailbox with monitoring enabled
func (s *MonitorService) ResumeAll(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MonitorService.ResumeAll")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	mailboxes, err := s.deps.mailboxes.ListMonitored(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	resumed := 0
	for _, mailbox := range mailboxes {
		if !mailbox.HasCredentials() {
			s.deps.log.Warnf("[%s] Monitoring enabled without credentials, skipping", mailbox.ID)
			continue
		}
		s.workersMutex.Lock()
		_, running := s.workers[mailbox.UserID]
		s.workersMutex.Unlock()
		if running {
			continue
		}
		if s.startWorker(mailbox) != nil {
			resumed++
		}
	}
	span.LogKV("resumed", resumed)
	s.deps.log.Infof("Resumed monitoring for %d mailboxes", resumed)
	return nil
}

// Stop halts every worker, waiting at most 10s in total
func (s *MonitorService) Stop() {
	s.workersMutex.Lock()
	s.stopped = true
	workers := make(map[string]*worker, len(s.workers))
	for userID, w := range s.workers {
		workers[userID] = w
		delete(s.workers, userID)
	}
	s.workersMutex.Unlock()

	s.cancel()

	deadline := time.Now().Add(defaultStopTimeout)
	for userID, w := range workers {
		if !w.stop(time.Until(deadline)) {
			s.deps.log.Warnf("Timeout waiting for mailbox worker of user %s to stop", userID)
		}
		s.deps.metrics.MonitorStopped()
	}
	s.deps.log.Info("Mailbox monitor stopped")
}

func (s *MonitorService) startWorker(mailbox *models.Mailbox) *worker {
	s.workersMutex.Lock()
	defer s.workersMutex.Unlock()

	if s.stopped {
		return nil
	}
	if w, running := s.workers[mailbox.UserID]; running {
		return w
	}

	w := newWorker(mailbox, s.cfg, s.deps)
	s.workers[mailbox.UserID] = w
	w.start(s.ctx)
	s.deps.metrics.MonitorStarted()
	s.deps.log.Infof("[%s] Started monitoring %s for user %s", mailbox.ID, mailbox.Folder, mailbox.UserID)
	return w
}

func (s *MonitorService) stopWorker(userID string, w *worker) {
	s.workersMutex.Lock()
	if current, ok := s.workers[userID]; ok && current == w {
		delete(s.workers, userID)
	}
	s.workersMutex.Unlock()

	if !w.stop(defaultStopTimeout) {
		s.deps.log.Warnf("[%s] Timeout waiting for worker to stop", w.mailbox.ID)
	}
	s.deps.metrics.MonitorStopped()
	s.deps.log.Infof("[%s] Stopped monitoring for user %s", w.mailbox.ID, userID)
}

func withConfigured(status *dto.MonitorStatus) *dto.MonitorStatus {
	status.Configured = true
	return status
}
