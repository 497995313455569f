package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	mterrors "github.com/customeros/mailtrack/internal/errors"
	"github.com/customeros/mailtrack/internal/tracing"
	"github.com/customeros/mailtrack/services/imap"
)

const configMissingMessage = "No mailbox configured for this user. Save IMAP credentials with PUT /mailboxes before starting monitoring."

func errorStatus(err error) int {
	switch {
	case errors.Is(err, mterrors.ErrUserIdRequired),
		errors.Is(err, mterrors.ErrInvalidInput),
		errors.Is(err, mterrors.ErrConfigMissing):
		return http.StatusBadRequest
	case errors.Is(err, mterrors.ErrSendNotFound):
		return http.StatusNotFound
	case errors.Is(err, imap.ErrMonitorStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error) string {
	if errors.Is(err, mterrors.ErrConfigMissing) {
		return configMissingMessage
	}
	return err.Error()
}

func respondError(c *gin.Context, span opentracing.Span, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		tracing.TraceErr(span, err)
	}
	c.JSON(status, gin.H{"success": false, "error": errorMessage(err)})
}

func respondData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}
