package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailtrack/dto"
	"github.com/customeros/mailtrack/interfaces"
	"github.com/customeros/mailtrack/internal/enum"
	mterrors "github.com/customeros/mailtrack/internal/errors"
	"github.com/customeros/mailtrack/internal/logger"
	"github.com/customeros/mailtrack/internal/models"
	"github.com/customeros/mailtrack/internal/tracing"
	"github.com/customeros/mailtrack/internal/utils"
)

// transparentGIF is a 1x1 transparent GIF89a
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

type TrackingHandler struct {
	tracking interfaces.TrackingService
	log      logger.Logger
}

func NewTrackingHandler(tracking interfaces.TrackingService, log logger.Logger) *TrackingHandler {
	return &TrackingHandler{tracking: tracking, log: log}
}

func requestMetadata(c *gin.Context) dto.RequestMetadata {
	return dto.RequestMetadata{
		UserAgent: c.Request.UserAgent(),
		IP:        c.ClientIP(),
		Referer:   c.Request.Referer(),
	}
}

// Pixel serves the tracking GIF. Recording is best effort; the image is
// returned regardless of the outcome.
func (h *TrackingHandler) Pixel() gin.HandlerFunc {
	return func(c *gin.Context) {
		trackingID := c.Param("trackingId")
		if err := h.tracking.RecordOpen(c.Request.Context(), trackingID, requestMetadata(c)); err != nil {
			h.logRecordError("open", trackingID, err)
		}

		c.Header("Cache-Control", "no-store, no-cache, must-revalidate, private")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		c.Data(http.StatusOK, "image/gif", transparentGIF)
	}
}

// Click records the click and redirects to the target url
func (h *TrackingHandler) Click() gin.HandlerFunc {
	return func(c *gin.Context) {
		target := c.Query("url")
		if strings.TrimSpace(target) == "" {
			c.String(http.StatusBadRequest, "Missing target URL")
			return
		}

		trackingID := c.Param("trackingId")
		if err := h.tracking.RecordClick(c.Request.Context(), trackingID, c.Param("linkIndex"), target, requestMetadata(c)); err != nil {
			h.logRecordError("click", trackingID, err)
		}

		c.Header("Cache-Control", "no-store, no-cache, must-revalidate, private")
		c.Redirect(http.StatusFound, target)
	}
}

func (h *TrackingHandler) logRecordError(kind, trackingID string, err error) {
	if errors.Is(err, mterrors.ErrSendNotFound) {
		h.log.Debugf("No send for %s tracking id %s", kind, trackingID)
		return
	}
	h.log.Errorf("Failed to record %s for tracking id %s: %v", kind, trackingID, err)
}

// RegisterSend records an outbound email in the send ledger
func (h *TrackingHandler) RegisterSend() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "TrackingHandler.RegisterSend")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var input dto.RegisterSendInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, span, errors.Wrap(mterrors.ErrInvalidInput, err.Error()))
			return
		}
		if input.UserId == "" {
			input.UserId = utils.GetUserIdFromContext(ctx)
		}

		trackingID, err := h.tracking.RegisterSend(ctx, input)
		if err != nil {
			respondError(c, span, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"trackingId": trackingID,
			"pixelUrl":   h.tracking.PixelURL(trackingID),
		})
	}
}

// ListEvents returns raw tracking events for the caller
func (h *TrackingHandler) ListEvents() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "TrackingHandler.ListEvents")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		filter, err := eventFilter(ctx, c)
		if err != nil {
			respondError(c, span, err)
			return
		}

		events, err := h.tracking.ListEvents(ctx, filter)
		if err != nil {
			respondError(c, span, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"count":   len(events),
			"events":  events,
		})
	}
}

func eventFilter(ctx context.Context, c *gin.Context) (models.EventFilter, error) {
	filter := models.EventFilter{
		UserID:     utils.GetUserIdFromContext(ctx),
		CampaignID: c.Query("campaignId"),
		Kind:       enum.EventKind(c.Query("eventType")),
	}

	start, err := utils.ParseDateParam(c.Query("startDate"))
	if err != nil {
		return filter, errors.Wrap(mterrors.ErrInvalidInput, err.Error())
	}
	end, err := utils.ParseDateParam(c.Query("endDate"))
	if err != nil {
		return filter, errors.Wrap(mterrors.ErrInvalidInput, err.Error())
	}
	filter.Start, filter.End = start, end

	if limit := c.Query("limit"); limit != "" {
		filter.Limit, err = strconv.Atoi(limit)
		if err != nil || filter.Limit < 0 {
			return filter, errors.Wrap(mterrors.ErrInvalidInput, "limit must be a positive number")
		}
	}
	return filter, nil
}

// EmailStatus returns the derived status of one send
func (h *TrackingHandler) EmailStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "TrackingHandler.EmailStatus")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		status, err := h.tracking.GetEmailStatus(ctx, utils.GetUserIdFromContext(ctx), c.Param("trackingId"))
		if err != nil {
			respondError(c, span, err)
			return
		}
		respondData(c, status)
	}
}
