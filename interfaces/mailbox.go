package interfaces

import (
	"context"

	"github.com/customeros/mailtrack/dto"
	"github.com/customeros/mailtrack/internal/models"
)

type MailboxMonitor interface {
	SaveMailbox(ctx context.Context, input dto.MailboxInput) (*models.Mailbox, error)
	StartMonitoring(ctx context.Context, userID string) (*dto.MonitorStatus, error)
	StopMonitoring(ctx context.Context, userID string) (*dto.MonitorStatus, error)
	Status(ctx context.Context, userID string) (*dto.MonitorStatus, error)
	ResumeAll(ctx context.Context) error
	Stop()
}

type MailProcessor interface {
	Process(ctx context.Context, msg *dto.InboundMessage) (*dto.ProcessResult, error)
}
