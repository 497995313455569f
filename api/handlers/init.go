package handlers

import (
	"github.com/customeros/mailtrack/internal/logger"
	"github.com/customeros/mailtrack/services"
)

type APIHandlers struct {
	Tracking   *TrackingHandler
	Analytics  *AnalyticsHandler
	Monitoring *MonitoringHandler
}

func InitHandlers(s *services.Services, log logger.Logger) *APIHandlers {
	return &APIHandlers{
		Tracking:   NewTrackingHandler(s.TrackingService, log),
		Analytics:  NewAnalyticsHandler(s.AnalyticsService),
		Monitoring: NewMonitoringHandler(s.MonitorService),
	}
}
