package tracking

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

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
	DefaultCampaignID = "default"
	DefaultIndustry   = "Technology"
	DefaultLocation   = "North America"

	defaultWriteTimeout = 2 * time.Second
)

type trackingService struct {
	sentEmails   interfaces.SentEmailRepository
	events       interfaces.TrackingEventRepository
	dispatcher   interfaces.EventDispatcher
	metrics      *metrics.Metrics
	log          logger.Logger
	publicURL    string
	writeTimeout time.Duration
}

func NewTrackingService(
	sentEmails interfaces.SentEmailRepository,
	events interfaces.TrackingEventRepository,
	dispatcher interfaces.EventDispatcher,
	m *metrics.Metrics,
	log logger.Logger,
	publicURL string,
	writeTimeout time.Duration,
) interfaces.TrackingService {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &trackingService{
		sentEmails:   sentEmails,
		events:       events,
		dispatcher:   dispatcher,
		metrics:      m,
		log:          log,
		publicURL:    strings.TrimRight(publicURL, "/"),
		writeTimeout: writeTimeout,
	}
}

// RegisterSend writes the ledger row for an outbound email and returns its
// tracking id. Registering a caller-supplied tracking id twice is a no-op.
func (s *trackingService) RegisterSend(ctx context.Context, input dto.RegisterSendInput) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TrackingService.RegisterSend")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagUserId(span, input.UserId)

	if strings.TrimSpace(input.UserId) == "" {
		return "", mterrors.ErrUserIdRequired
	}
	recipient := utils.NormalizeEmail(input.RecipientEmail)
	if recipient == "" {
		return "", errors.Wrap(mterrors.ErrInvalidInput, "recipient email is required")
	}
	if strings.TrimSpace(input.Subject) == "" {
		return "", errors.Wrap(mterrors.ErrInvalidInput, "subject is required")
	}

	if input.TrackingId != "" {
		existing, err := s.sentEmails.GetByTrackingID(ctx, input.TrackingId)
		if err != nil {
			tracing.TraceErr(span, err)
			return "", mterrors.Transient(err)
		}
		if existing != nil {
			if existing.UserID != input.UserId {
				return "", errors.Wrap(mterrors.ErrInvalidInput, "tracking id belongs to another user")
			}
			span.LogKV("result.duplicate", true)
			return existing.TrackingID, nil
		}
	}

	trackingID := input.TrackingId
	if trackingID == "" {
		trackingID = utils.GenerateTrackingID()
	}
	tracing.TagTrackingId(span, trackingID)

	sentAt := utils.Now()
	if input.SentAt != nil && !input.SentAt.IsZero() {
		sentAt = input.SentAt.UTC()
	}

	sent := &models.SentEmail{
		TrackingID:     trackingID,
		UserID:         input.UserId,
		CampaignID:     utils.FirstNonEmpty(strings.TrimSpace(input.CampaignId), DefaultCampaignID),
		RecipientEmail: recipient,
		RecipientName:  strings.TrimSpace(input.RecipientName),
		Company:        strings.TrimSpace(input.Company),
		Industry:       utils.FirstNonEmpty(strings.TrimSpace(input.Industry), DefaultIndustry),
		Location:       utils.FirstNonEmpty(strings.TrimSpace(input.Location), DefaultLocation),
		Subject:        input.Subject,
		MessageID:      strings.TrimSpace(input.MessageId),
		Status:         enum.GetSendStatus(input.Status),
		SentAt:         sentAt,
	}

	if err := s.sentEmails.Create(ctx, sent); err != nil {
		tracing.TraceErr(span, err)
		return "", mterrors.Transient(err)
	}

	s.dispatcher.SendRegistered(ctx, sent)
	return trackingID, nil
}

// RecordOpen appends one open event per pixel hit
func (s *trackingService) RecordOpen(ctx context.Context, trackingID string, meta dto.RequestMetadata) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TrackingService.RecordOpen")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTrackingId(span, trackingID)

	err := s.record(ctx, trackingID, enum.EventOpen, enum.SourcePixel, models.JSONMap{
		"userAgent": meta.UserAgent,
		"ip":        meta.IP,
		"referer":   meta.Referer,
	})
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

// RecordClick appends one click event per redirect hit
func (s *trackingService) RecordClick(ctx context.Context, trackingID, linkIndex, targetURL string, meta dto.RequestMetadata) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TrackingService.RecordClick")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTrackingId(span, trackingID)

	err := s.record(ctx, trackingID, enum.EventClick, enum.SourceRedirect, models.JSONMap{
		"linkIndex": linkIndex,
		"targetUrl": targetURL,
		"userAgent": meta.UserAgent,
		"ip":        meta.IP,
	})
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (s *trackingService) record(ctx context.Context, trackingID string, kind enum.EventKind, source enum.EventSource, metadata models.JSONMap) error {
	if trackingID == "" {
		return mterrors.ErrSendNotFound
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	sent, err := s.sentEmails.GetByTrackingID(writeCtx, trackingID)
	if err != nil {
		s.metrics.EventWriteFailed(source.String())
		return mterrors.Transient(err)
	}
	if sent == nil {
		s.log.Debugf("Ignoring %s for unknown tracking id %s", kind, trackingID)
		return mterrors.ErrSendNotFound
	}

	event := &models.TrackingEvent{
		TrackingID:     &sent.TrackingID,
		UserID:         sent.UserID,
		CampaignID:     sent.CampaignID,
		RecipientEmail: sent.RecipientEmail,
		Kind:           kind,
		Source:         source,
		OccurredAt:     utils.Now(),
		Metadata:       metadata,
	}
	if _, err := s.events.Append(writeCtx, event); err != nil {
		s.metrics.EventWriteFailed(source.String())
		return mterrors.Transient(err)
	}

	s.dispatcher.EventRecorded(ctx, event)
	return nil
}

// GetEmailStatus derives the most severe status reached by a send
func (s *trackingService) GetEmailStatus(ctx context.Context, userID, trackingID string) (*dto.EmailStatus, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TrackingService.GetEmailStatus")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagUserId(span, userID)
	tracing.TagTrackingId(span, trackingID)

	if userID == "" {
		return nil, mterrors.ErrUserIdRequired
	}

	sent, err := s.sentEmails.GetByTrackingID(ctx, trackingID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if sent == nil || sent.UserID != userID {
		return nil, mterrors.ErrSendNotFound
	}

	events, err := s.events.ListByTrackingID(ctx, trackingID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	result := &dto.EmailStatus{
		TrackingId:     sent.TrackingID,
		CampaignId:     sent.CampaignID,
		RecipientEmail: sent.RecipientEmail,
		SentAt:         sent.SentAt,
		EventCounts:    make(map[string]int),
	}

	status := enum.EmailStatusSent
	for _, event := range events {
		result.EventCounts[event.Kind.String()]++
		if candidate := enum.StatusForEvent(event.Kind); candidate.Rank() > status.Rank() {
			status = candidate
		}
		if result.LastEventAt == nil || event.OccurredAt.After(*result.LastEventAt) {
			occurredAt := event.OccurredAt
			result.LastEventAt = &occurredAt
		}
	}
	if sent.Status == enum.SendStatusFailed {
		status = enum.EmailStatusFailed
	}
	result.Status = status.String()

	return result, nil
}

func (s *trackingService) ListEvents(ctx context.Context, filter models.EventFilter) ([]*models.TrackingEvent, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TrackingService.ListEvents")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagUserId(span, filter.UserID)

	if filter.UserID == "" {
		return nil, mterrors.ErrUserIdRequired
	}
	if filter.Kind != "" && !filter.Kind.IsValid() {
		return nil, errors.Wrapf(mterrors.ErrInvalidInput, "unknown event type %q", filter.Kind)
	}

	events, err := s.events.List(ctx, filter)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return events, nil
}

func (s *trackingService) PixelURL(trackingID string) string {
	return fmt.Sprintf("%s/track/open/%s", s.publicURL, url.PathEscape(trackingID))
}

func (s *trackingService) ClickURL(trackingID string, linkIndex int, targetURL string) string {
	return fmt.Sprintf("%s/track/click/%s/%d?url=%s", s.publicURL, url.PathEscape(trackingID), linkIndex, url.QueryEscape(targetURL))
}
