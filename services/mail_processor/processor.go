package mail_processor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
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
	"github.com/customeros/mailtrack/services/classifier"
)

const (
	outcomeDuplicate    = "duplicate"
	outcomeIgnored      = "ignored"
	outcomeUnattributed = "unattributed"
	outcomeError        = "error"
)

type MailProcessor struct {
	sentEmails interfaces.SentEmailRepository
	processed  interfaces.ProcessedMessageRepository
	dispatcher interfaces.EventDispatcher
	archive    interfaces.StorageService
	metrics    *metrics.Metrics
	log        logger.Logger
}

func NewMailProcessor(
	sentEmails interfaces.SentEmailRepository,
	processed interfaces.ProcessedMessageRepository,
	dispatcher interfaces.EventDispatcher,
	archive interfaces.StorageService,
	m *metrics.Metrics,
	log logger.Logger,
) *MailProcessor {
	return &MailProcessor{
		sentEmails: sentEmails,
		processed:  processed,
		dispatcher: dispatcher,
		archive:    archive,
		metrics:    m,
		log:        log,
	}
}

// Process classifies msg, attributes it to a send and records the resulting
// event exactly once per Message-Id. Errors wrapping ErrTransientIO mean the
// message was not recorded and must be retried.
func (p *MailProcessor) Process(ctx context.Context, msg *dto.InboundMessage) (*dto.ProcessResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailProcessor.Process")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if msg == nil || msg.MessageId == "" {
		err := errors.Wrap(mterrors.ErrParseMessage, "message id is empty")
		tracing.TraceErr(span, err)
		return nil, err
	}
	tracing.TagAccount(span, msg.AccountId)
	span.LogKV("messageId", msg.MessageId)

	processed := &models.ProcessedMessage{
		MessageID:   msg.MessageId,
		AccountID:   msg.AccountId,
		ProcessedAt: utils.Now(),
	}

	classification := classifier.Classify(msg)
	span.LogKV("classification", classification.Class.String(), "reason", classification.Reason)

	if classification.Class == enum.MessageIgnored {
		p.log.Debugf("Ignoring message %s: %v", msg.MessageId, mterrors.ErrClassificationAmbiguous)
		recorded, err := p.processed.RecordOnce(ctx, processed, nil)
		if err != nil {
			tracing.TraceErr(span, err)
			p.metrics.MessageProcessed(outcomeError)
			return nil, mterrors.Transient(err)
		}
		if !recorded {
			p.metrics.MessageProcessed(outcomeDuplicate)
			return &dto.ProcessResult{Duplicate: true, Ignored: true}, nil
		}
		p.metrics.MessageProcessed(outcomeIgnored)
		return &dto.ProcessResult{Ignored: true}, nil
	}

	event, sent, err := p.buildEvent(ctx, msg, classification)
	if err != nil {
		tracing.TraceErr(span, err)
		p.metrics.MessageProcessed(outcomeError)
		return nil, mterrors.Transient(err)
	}

	recorded, err := p.processed.RecordOnce(ctx, processed, event)
	if err != nil {
		tracing.TraceErr(span, err)
		p.metrics.EventWriteFailed(enum.SourceImap.String())
		p.metrics.MessageProcessed(outcomeError)
		return nil, mterrors.Transient(err)
	}

	result := &dto.ProcessResult{
		Kind:       event.Kind.String(),
		TrackingId: event.GetTrackingID(),
		CampaignId: event.CampaignID,
		Attributed: sent != nil,
	}
	if !recorded {
		span.LogKV("result.duplicate", true)
		p.metrics.MessageProcessed(outcomeDuplicate)
		result.Duplicate = true
		return result, nil
	}

	p.dispatcher.EventRecorded(ctx, event)
	p.archiveRaw(ctx, msg)

	if sent == nil {
		p.metrics.MessageProcessed(outcomeUnattributed)
	} else {
		p.metrics.MessageProcessed(event.Kind.String())
	}
	return result, nil
}

func (p *MailProcessor) buildEvent(ctx context.Context, msg *dto.InboundMessage, classification classifier.Classification) (*models.TrackingEvent, *models.SentEmail, error) {
	kind := enum.EventReply
	switch classification.Class {
	case enum.MessageBounce:
		kind = enum.EventBounce
	case enum.MessageReadReceipt:
		kind = enum.EventOpen
	}

	dedupeKey := msg.MessageId
	occurredAt := msg.Date.UTC()
	if msg.Date.IsZero() || occurredAt.After(utils.Now().Add(time.Hour)) {
		occurredAt = utils.Now()
	}

	metadata := models.JSONMap{
		"messageId":      msg.MessageId,
		"accountId":      msg.AccountId,
		"folder":         msg.Folder,
		"classification": classification.Class.String(),
		"reason":         classification.Reason,
		"from":           msg.From,
		"subject":        msg.Subject,
	}
	switch classification.Class {
	case enum.MessageBounce:
		metadata["bounceType"] = classification.BounceType.String()
	case enum.MessageReply:
		metadata["inReplyTo"] = msg.InReplyTo
	case enum.MessageReadReceipt:
		metadata["readReceipt"] = true
	}

	event := &models.TrackingEvent{
		UserID:     msg.UserId,
		Kind:       kind,
		Source:     enum.SourceImap,
		OccurredAt: occurredAt,
		Metadata:   metadata,
		DedupeKey:  &dedupeKey,
	}

	address := classifier.AttributionAddress(msg, classification.Class)
	metadata["attributionAddress"] = address

	var sent *models.SentEmail
	if address != "" {
		var err error
		sent, err = p.sentEmails.FindMostRecentByRecipient(ctx, address)
		if err != nil {
			return nil, nil, err
		}
	}

	if sent != nil {
		trackingID := sent.TrackingID
		event.TrackingID = &trackingID
		event.UserID = sent.UserID
		event.CampaignID = sent.CampaignID
		event.RecipientEmail = sent.RecipientEmail
		return event, sent, nil
	}

	event.RecipientEmail = address
	event.CampaignID = models.UnknownCampaignID
	if msg.CampaignHint != "" {
		event.CampaignID = msg.CampaignHint
		metadata["campaignHint"] = msg.CampaignHint
	}
	p.log.Infof("Recording %s from message %s under campaign %s: %v", kind, msg.MessageId, event.CampaignID, mterrors.ErrAttributionMiss)
	return event, nil, nil
}

func (p *MailProcessor) archiveRaw(ctx context.Context, msg *dto.InboundMessage) {
	if p.archive == nil || len(msg.Raw) == 0 {
		return
	}
	if err := p.archive.Upload(ctx, ArchiveKey(msg.AccountId, msg.MessageId), msg.Raw, "message/rfc822"); err != nil {
		p.log.Warnf("Failed to archive raw message %s: %v", msg.MessageId, err)
	}
}

// ArchiveKey is the object key of a raw message in the archive bucket
func ArchiveKey(accountID, messageID string) string {
	sum := sha256.Sum256([]byte(messageID))
	return "raw/" + accountID + "/" + hex.EncodeToString(sum[:]) + ".eml"
}
