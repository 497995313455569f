package imap

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
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

const (
	tickResultSuccess = "success"
	tickResultFailure = "failure"
	tickResultSkipped = "skipped"
	tickResultBackoff = "backoff"
	tickResultLocked  = "locked"
)

type workerDeps struct {
	dial        Dialer
	processor   interfaces.MailProcessor
	checkpoints interfaces.MailboxCheckpointRepository
	mailboxes   interfaces.MailboxRepository
	locker      interfaces.Locker
	metrics     *metrics.Metrics
	log         logger.Logger
}

// worker polls one mailbox folder on a fixed interval
type worker struct {
	workerDeps
	mailbox *models.Mailbox
	cfg     config.ImapConfig

	// guards against overlapping ticks
	ticking atomic.Bool

	mu            sync.RWMutex
	state         enum.MonitorState
	failures      int
	nextAttemptAt time.Time
	lastTickAt    *time.Time
	lastSuccessAt *time.Time
	lastError     string

	skipped   atomic.Int64
	processed atomic.Int64

	cancel context.CancelFunc
	done   chan struct{}
	ticks  sync.WaitGroup

	now    func() time.Time
	jitter func() float64
}

func newWorker(mailbox *models.Mailbox, cfg config.ImapConfig, deps workerDeps) *worker {
	return &worker{
		workerDeps: deps,
		mailbox:    mailbox,
		cfg:        cfg,
		state:      enum.MonitorDisconnected,
		done:       make(chan struct{}),
		now:        utils.Now,
		jitter:     rand.Float64,
	}
}

func (w *worker) start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	go w.run(ctx)
}

// stop cancels the loop and waits for an in-flight tick, up to timeout
func (w *worker) stop(timeout time.Duration) bool {
	if w.cancel != nil {
		w.cancel()
	}
	select {
	case <-w.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (w *worker) run(ctx context.Context) {
	defer close(w.done)
	defer w.setState(enum.MonitorStopped)

	interval := w.cfg.PollInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.launchTick(ctx)
	for {
		select {
		case <-ctx.Done():
			w.ticks.Wait()
			return
		case <-ticker.C:
			w.launchTick(ctx)
		}
	}
}

func (w *worker) launchTick(ctx context.Context) {
	w.ticks.Add(1)
	go func() {
		defer w.ticks.Done()
		defer tracing.RecoverAndLogToJaeger(w.log)
		w.tryTick(ctx)
	}()
}

// tryTick runs one tick unless another is in flight, the worker is backing
// off, or another replica holds the mailbox lock.
func (w *worker) tryTick(ctx context.Context) string {
	if !w.ticking.CompareAndSwap(false, true) {
		w.skipped.Add(1)
		w.metrics.PollTick(tickResultSkipped, 0)
		return tickResultSkipped
	}
	defer w.ticking.Store(false)

	if ctx.Err() != nil {
		return tickResultSkipped
	}

	w.mu.RLock()
	nextAttemptAt := w.nextAttemptAt
	w.mu.RUnlock()
	if w.now().Before(nextAttemptAt) {
		w.metrics.PollTick(tickResultBackoff, 0)
		return tickResultBackoff
	}

	if w.locker != nil {
		unlock, err := w.locker.TryLock(ctx, "imap:"+w.mailbox.ID)
		if err != nil {
			w.log.Warnf("[%s] Failed to acquire poll lock: %v", w.mailbox.ID, err)
			w.metrics.PollTick(tickResultLocked, 0)
			return tickResultLocked
		}
		if unlock == nil {
			w.metrics.PollTick(tickResultLocked, 0)
			return tickResultLocked
		}
		defer unlock()
	}

	timeout := w.cfg.TickTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	tickCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := w.now()
	err := w.tick(tickCtx)
	finished := w.now()
	w.recordResult(ctx, started, finished, err)

	if err != nil {
		w.metrics.PollTick(tickResultFailure, finished.Sub(started).Seconds())
		return tickResultFailure
	}
	w.metrics.PollTick(tickResultSuccess, finished.Sub(started).Seconds())
	return tickResultSuccess
}

func (w *worker) recordResult(ctx context.Context, started, finished time.Time, err error) {
	w.mu.Lock()
	w.lastTickAt = &started
	if err == nil {
		w.failures = 0
		w.nextAttemptAt = time.Time{}
		w.lastError = ""
		w.lastSuccessAt = &finished
		w.state = enum.MonitorIdle
	} else {
		w.failures++
		w.nextAttemptAt = finished.Add(w.backoff(w.failures))
		w.lastError = err.Error()
		w.state = enum.MonitorDisconnected
	}
	failures, nextAttemptAt := w.failures, w.nextAttemptAt
	w.mu.Unlock()

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
		w.log.Warnf("[%s] Poll failed (%d consecutive), next attempt at %s: %v",
			w.mailbox.ID, failures, nextAttemptAt.Format(time.RFC3339), err)
	}

	if w.mailboxes == nil {
		return
	}
	statusCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if updateErr := w.mailboxes.UpdatePollStatus(statusCtx, w.mailbox.ID, finished, errMsg); updateErr != nil {
		w.log.Warnf("[%s] Failed to update poll status: %v", w.mailbox.ID, updateErr)
	}
}

// backoff returns base*2^(n-1) capped at max, with ±10% jitter
func (w *worker) backoff(failures int) time.Duration {
	base, ceiling := w.cfg.BackoffBase, w.cfg.BackoffMax
	if base <= 0 {
		base = 5 * time.Second
	}
	if ceiling <= 0 {
		ceiling = 5 * time.Minute
	}

	delay := base
	for i := 1; i < failures && delay < ceiling; i++ {
		delay *= 2
	}
	if delay > ceiling {
		delay = ceiling
	}

	factor := 0.9 + 0.2*w.jitter()
	return time.Duration(float64(delay) * factor)
}

func (w *worker) setState(state enum.MonitorState) {
	w.mu.Lock()
	w.state = state
	w.mu.Unlock()
}

func (w *worker) tick(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailboxWorker.tick")
	defer span.Finish()
	tracing.TagComponentPoller(span)
	tracing.TagUserId(span, w.mailbox.UserID)
	tracing.TagAccount(span, w.mailbox.ID)

	folder := w.mailbox.Folder
	if folder == "" {
		folder = "INBOX"
	}

	w.setState(enum.MonitorConnecting)
	c, err := w.dial(ctx, w.mailbox)
	if err != nil {
		tracing.TraceErr(span, err)
		return mterrors.Transient(err)
	}
	defer func() {
		if err := c.Logout(); err != nil {
			w.log.Debugf("[%s] Logout failed: %v", w.mailbox.ID, err)
		}
	}()

	w.setState(enum.MonitorFetching)
	uidValidity, err := c.Select(folder)
	if err != nil {
		tracing.TraceErr(span, err)
		return mterrors.Transient(err)
	}

	checkpoint, err := w.checkpoints.Get(ctx, w.mailbox.ID, folder)
	if err != nil {
		tracing.TraceErr(span, err)
		return mterrors.Transient(err)
	}

	var afterUID uint32
	if checkpoint != nil {
		if checkpoint.UIDValidity == uidValidity {
			afterUID = checkpoint.LastUID
		} else {
			w.log.Infof("[%s][%s] UIDVALIDITY changed from %d to %d, resetting checkpoint",
				w.mailbox.ID, folder, checkpoint.UIDValidity, uidValidity)
		}
	}
	span.LogKV("uidValidity", uidValidity, "afterUid", afterUID)

	lookback := w.cfg.InitialLookback
	if lookback <= 0 {
		lookback = 7 * 24 * time.Hour
	}
	uids, err := c.SearchUIDs(afterUID, w.now().Add(-lookback))
	if err != nil {
		tracing.TraceErr(span, err)
		return mterrors.Transient(err)
	}
	span.LogKV("messages", len(uids))

	progress := &checkpointProgress{lastUID: afterUID}
	fetchErr := w.processUIDs(ctx, c, folder, uidValidity, uids, progress)

	if checkpoint == nil || checkpoint.UIDValidity != uidValidity || progress.lastUID != afterUID {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		err := w.checkpoints.Save(saveCtx, &models.MailboxCheckpoint{
			AccountID:       w.mailbox.ID,
			Folder:          folder,
			UIDValidity:     uidValidity,
			LastUID:         progress.lastUID,
			LastProcessedAt: w.now(),
		})
		if err != nil {
			tracing.TraceErr(span, err)
			if fetchErr == nil {
				fetchErr = mterrors.Transient(err)
			}
		}
	}

	if fetchErr != nil {
		tracing.TraceErr(span, fetchErr)
	}
	return fetchErr
}

type checkpointProgress struct {
	lastUID uint32
	blocked bool
}

func (p *checkpointProgress) advance(uid uint32) {
	if !p.blocked && uid > p.lastUID {
		p.lastUID = uid
	}
}

func (w *worker) processUIDs(ctx context.Context, c MailClient, folder string, uidValidity uint32, uids []uint32, progress *checkpointProgress) error {
	batchSize := w.cfg.FetchBatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	src := MessageSource{
		UserID:      w.mailbox.UserID,
		AccountID:   w.mailbox.ID,
		Folder:      folder,
		UIDValidity: uidValidity,
	}

	for i := 0; i < len(uids); i += batchSize {
		if ctx.Err() != nil {
			return mterrors.Transient(ctx.Err())
		}

		end := i + batchSize
		if end > len(uids) {
			end = len(uids)
		}

		raws, err := c.FetchRaw(uids[i:end])
		if err != nil {
			return mterrors.Transient(err)
		}

		for _, raw := range raws {
			if ctx.Err() != nil {
				return mterrors.Transient(ctx.Err())
			}
			w.processOne(ctx, src, raw, progress)
		}
	}
	return nil
}

func (w *worker) processOne(ctx context.Context, src MessageSource, raw RawMessage, progress *checkpointProgress) {
	msg, err := ParseMessage(src, raw)
	if err != nil {
		w.log.Warnf("[%s][%s] Skipping unparseable message uid %d: %v", src.AccountID, src.Folder, raw.UID, err)
		progress.advance(raw.UID)
		return
	}

	result, err := w.processor.Process(ctx, msg)
	if err != nil {
		if errors.Is(err, mterrors.ErrTransientIO) {
			w.log.Warnf("[%s][%s] Message uid %d will be retried: %v", src.AccountID, src.Folder, raw.UID, err)
			progress.blocked = true
			return
		}
		w.log.Errorf("[%s][%s] Failed to process message uid %d: %v", src.AccountID, src.Folder, raw.UID, err)
		progress.advance(raw.UID)
		return
	}

	progress.advance(raw.UID)
	if !result.Duplicate && !result.Ignored {
		w.processed.Add(1)
	}
}

func (w *worker) status() *dto.MonitorStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	status := &dto.MonitorStatus{
		UserId:              w.mailbox.UserID,
		AccountId:           w.mailbox.ID,
		State:               w.state.String(),
		Running:             w.state != enum.MonitorStopped,
		ConsecutiveFailures: w.failures,
		LastTickAt:          w.lastTickAt,
		LastSuccessAt:       w.lastSuccessAt,
		LastError:           w.lastError,
		SkippedTicks:        w.skipped.Load(),
		ProcessedMessages:   w.processed.Load(),
	}
	if !w.nextAttemptAt.IsZero() {
		nextAttemptAt := w.nextAttemptAt
		status.NextAttemptAt = &nextAttemptAt
	}
	return status
}
