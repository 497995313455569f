package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailtrack/dto"
	"github.com/customeros/mailtrack/interfaces"
	mterrors "github.com/customeros/mailtrack/internal/errors"
	"github.com/customeros/mailtrack/internal/tracing"
	"github.com/customeros/mailtrack/internal/utils"
)

type MonitoringHandler struct {
	monitor interfaces.MailboxMonitor
}

func NewMonitoringHandler(monitor interfaces.MailboxMonitor) *MonitoringHandler {
	return &MonitoringHandler{monitor: monitor}
}

type monitoringRequest struct {
	UserId string `json:"userId"`
}

// bodyUserId prefers the userId in the JSON body over the header or query value
func bodyUserId(ctx context.Context, c *gin.Context) string {
	var req monitoringRequest
	if c.Request.ContentLength != 0 {
		_ = c.ShouldBindJSON(&req)
	}
	return utils.FirstNonEmpty(req.UserId, utils.GetUserIdFromContext(ctx))
}

func (h *MonitoringHandler) StartMonitoring() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MonitoringHandler.StartMonitoring")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		status, err := h.monitor.StartMonitoring(ctx, bodyUserId(ctx, c))
		if err != nil {
			respondError(c, span, err)
			return
		}
		respondData(c, status)
	}
}

func (h *MonitoringHandler) StopMonitoring() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MonitoringHandler.StopMonitoring")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		status, err := h.monitor.StopMonitoring(ctx, bodyUserId(ctx, c))
		if err != nil {
			respondError(c, span, err)
			return
		}
		respondData(c, status)
	}
}

func (h *MonitoringHandler) Status() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MonitoringHandler.Status")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		status, err := h.monitor.Status(ctx, utils.GetUserIdFromContext(ctx))
		if err != nil {
			respondError(c, span, err)
			return
		}
		respondData(c, status)
	}
}

// SaveMailbox upserts the caller's IMAP credentials
func (h *MonitoringHandler) SaveMailbox() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MonitoringHandler.SaveMailbox")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var input dto.MailboxInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, span, errors.Wrap(mterrors.ErrInvalidInput, err.Error()))
			return
		}
		input.UserId = utils.FirstNonEmpty(input.UserId, utils.GetUserIdFromContext(ctx))

		mailbox, err := h.monitor.SaveMailbox(ctx, input)
		if err != nil {
			respondError(c, span, err)
			return
		}
		respondData(c, mailbox)
	}
}
