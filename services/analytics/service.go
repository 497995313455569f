package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailtrack/dto"
	"github.com/customeros/mailtrack/interfaces"
	mtcache "github.com/customeros/mailtrack/internal/cache"
	"github.com/customeros/mailtrack/internal/enum"
	mterrors "github.com/customeros/mailtrack/internal/errors"
	"github.com/customeros/mailtrack/internal/logger"
	"github.com/customeros/mailtrack/internal/models"
	"github.com/customeros/mailtrack/internal/tracing"
	"github.com/customeros/mailtrack/internal/utils"
	"github.com/customeros/mailtrack/services/tracking"
)

const (
	AllCampaigns = "all"

	CampaignStatusActive    = "active"
	CampaignStatusCompleted = "completed"

	activeCampaignWindow = 7 * 24 * time.Hour
	dayLayout            = "2006-01-02"
)

type analyticsService struct {
	repo  interfaces.AnalyticsRepository
	cache interfaces.MetricsCache
	log   logger.Logger
	now   func() time.Time
}

func NewAnalyticsService(repo interfaces.AnalyticsRepository, cache interfaces.MetricsCache, log logger.Logger) interfaces.AnalyticsService {
	if cache == nil {
		cache = mtcache.NewNoopMetricsCache()
	}
	return &analyticsService{
		repo:  repo,
		cache: cache,
		log:   log,
		now:   utils.Now,
	}
}

func (s *analyticsService) scope(userID, campaignID string, timeRange enum.TimeRange) models.AnalyticsScope {
	if campaignID == AllCampaigns {
		campaignID = ""
	}
	return models.AnalyticsScope{
		UserID:     userID,
		CampaignID: campaignID,
		Since:      timeRange.Since(s.now()),
	}
}

// cached serves key from the cache, falling back to compute. The result is
// written under the version read before compute ran. Cache failures are
// logged and never fail the query.
func cached[T any](ctx context.Context, s *analyticsService, userID, key string, compute func() (T, error)) (T, error) {
	var result T
	version, hit, err := s.cache.Get(ctx, userID, key, &result)
	if err != nil {
		s.log.Warnf("Metrics cache read failed for user %s: %v", userID, err)
		result, err = compute()
		return result, err
	}
	if hit {
		return result, nil
	}

	result, err = compute()
	if err != nil {
		return result, err
	}
	if err := s.cache.Set(ctx, userID, version, key, result); err != nil {
		s.log.Warnf("Metrics cache write failed for user %s: %v", userID, err)
	}
	return result, nil
}

func (s *analyticsService) EmailMetrics(ctx context.Context, userID, campaignID string, timeRange enum.TimeRange) (*dto.EmailMetrics, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AnalyticsService.EmailMetrics")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagUserId(span, userID)
	span.LogKV("campaignId", campaignID, "timeRange", timeRange.String())

	if userID == "" {
		return nil, mterrors.ErrUserIdRequired
	}

	scope := s.scope(userID, campaignID, timeRange)
	key := fmt.Sprintf("email-metrics:%s:%s", utils.FirstNonEmpty(scope.CampaignID, AllCampaigns), timeRange)
	result, err := cached(ctx, s, userID, key, func() (*dto.EmailMetrics, error) {
		sends, err := s.repo.ListSendEngagement(ctx, scope)
		if err != nil {
			return nil, err
		}
		return snapshot(sends), nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return result, nil
}

func snapshot(sends []models.SendEngagement) *dto.EmailMetrics {
	var t tally
	for _, send := range sends {
		t.add(send)
	}
	return &dto.EmailMetrics{
		TotalSent:        t.sent,
		TotalDelivered:   t.delivered,
		TotalOpened:      t.opened,
		TotalClicked:     t.clicked,
		TotalReplied:     t.replied,
		TotalBounced:     t.bounced,
		TotalOpenEvents:  t.openEvents,
		TotalClickEvents: t.clickEvents,
		DeliveryRate:     percent(t.delivered, t.sent, 1),
		OpenRate:         percent(t.opened, t.delivered, 1),
		ClickRate:        percent(t.clicked, t.opened, 1),
		ReplyRate:        percent(t.replied, t.delivered, 2),
		BounceRate:       percent(t.bounced, t.sent, 1),
	}
}

// EngagementTrends returns one zero-filled point per UTC day in the range.
// Event columns count distinct sends with that kind of event on the day.
func (s *analyticsService) EngagementTrends(ctx context.Context, userID, campaignID string, timeRange enum.TimeRange) ([]dto.TrendPoint, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AnalyticsService.EngagementTrends")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagUserId(span, userID)

	if userID == "" {
		return nil, mterrors.ErrUserIdRequired
	}

	scope := s.scope(userID, campaignID, timeRange)
	key := fmt.Sprintf("engagement-trends:%s:%s", utils.FirstNonEmpty(scope.CampaignID, AllCampaigns), timeRange)
	result, err := cached(ctx, s, userID, key, func() ([]dto.TrendPoint, error) {
		sends, err := s.repo.ListSendEngagement(ctx, scope)
		if err != nil {
			return nil, err
		}
		activity, err := s.repo.ListEventActivity(ctx, scope, scope.Since)
		if err != nil {
			return nil, err
		}
		return trends(scope.Since, s.now(), sends, activity), nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return result, nil
}

func trends(since, now time.Time, sends []models.SendEngagement, activity []models.EventActivity) []dto.TrendPoint {
	points := make([]dto.TrendPoint, 0)
	index := make(map[string]int)
	for day := utils.StartOfDay(since); !day.After(now); day = day.AddDate(0, 0, 1) {
		date := day.Format(dayLayout)
		index[date] = len(points)
		points = append(points, dto.TrendPoint{Date: date})
	}

	for _, send := range sends {
		i, ok := index[send.SentAt.UTC().Format(dayLayout)]
		if !ok {
			continue
		}
		points[i].Sent++
		if send.Delivered() {
			points[i].Delivered++
		}
	}

	seen := make(map[string]struct{})
	for _, event := range activity {
		date := event.OccurredAt.UTC().Format(dayLayout)
		i, ok := index[date]
		if !ok {
			continue
		}
		dedupe := date + "|" + event.Kind.String() + "|" + event.TrackingID
		if _, dup := seen[dedupe]; dup {
			continue
		}
		seen[dedupe] = struct{}{}
		switch event.Kind {
		case enum.EventOpen:
			points[i].Opens++
		case enum.EventClick:
			points[i].Clicks++
		case enum.EventReply:
			points[i].Replies++
		case enum.EventBounce:
			points[i].Bounces++
		}
	}
	return points
}

// CampaignPerformance returns per-campaign totals, most recently active first.
func (s *analyticsService) CampaignPerformance(ctx context.Context, userID string, timeRange enum.TimeRange) ([]dto.CampaignPerformance, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AnalyticsService.CampaignPerformance")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagUserId(span, userID)

	if userID == "" {
		return nil, mterrors.ErrUserIdRequired
	}

	scope := s.scope(userID, "", timeRange)
	result, err := cached(ctx, s, userID, "campaign-performance:"+timeRange.String(), func() ([]dto.CampaignPerformance, error) {
		sends, err := s.repo.ListSendEngagement(ctx, scope)
		if err != nil {
			return nil, err
		}
		return campaigns(sends, s.now()), nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return result, nil
}

func campaigns(sends []models.SendEngagement, now time.Time) []dto.CampaignPerformance {
	type campaignTally struct {
		tally
		first, last time.Time
	}
	byCampaign := make(map[string]*campaignTally)
	for _, send := range sends {
		c, ok := byCampaign[send.CampaignID]
		if !ok {
			c = &campaignTally{first: send.SentAt, last: send.SentAt}
			byCampaign[send.CampaignID] = c
		}
		c.add(send)
		if send.SentAt.Before(c.first) {
			c.first = send.SentAt
		}
		if send.SentAt.After(c.last) {
			c.last = send.SentAt
		}
	}

	result := make([]dto.CampaignPerformance, 0, len(byCampaign))
	for campaignID, c := range byCampaign {
		status := CampaignStatusCompleted
		if now.Sub(c.last) <= activeCampaignWindow {
			status = CampaignStatusActive
		}
		result = append(result, dto.CampaignPerformance{
			CampaignId:  campaignID,
			Name:        campaignID,
			Sent:        c.sent,
			Delivered:   c.delivered,
			Opens:       c.opened,
			Clicks:      c.clicked,
			Replies:     c.replied,
			Bounces:     c.bounced,
			OpenRate:    percent(c.opened, c.delivered, 1),
			ClickRate:   percent(c.clicked, c.opened, 1),
			ReplyRate:   percent(c.replied, c.delivered, 2),
			FirstSentAt: c.first.UTC(),
			LastSentAt:  c.last.UTC(),
			Status:      status,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastSentAt.Equal(result[j].LastSentAt) {
			return result[i].LastSentAt.After(result[j].LastSentAt)
		}
		return result[i].CampaignId < result[j].CampaignId
	})
	return result
}

// Deliverability groups sends by recipient mailbox provider
func (s *analyticsService) Deliverability(ctx context.Context, userID string, timeRange enum.TimeRange) (*dto.Deliverability, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AnalyticsService.Deliverability")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagUserId(span, userID)

	if userID == "" {
		return nil, mterrors.ErrUserIdRequired
	}

	scope := s.scope(userID, "", timeRange)
	result, err := cached(ctx, s, userID, "deliverability:"+timeRange.String(), func() (*dto.Deliverability, error) {
		sends, err := s.repo.ListSendEngagement(ctx, scope)
		if err != nil {
			return nil, err
		}
		return deliverability(sends), nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return result, nil
}

func deliverability(sends []models.SendEngagement) *dto.Deliverability {
	byProvider := make(map[string]*dto.ProviderDeliverability)
	for _, send := range sends {
		provider := EmailProvider(send.RecipientEmail)
		p, ok := byProvider[provider]
		if !ok {
			p = &dto.ProviderDeliverability{Provider: provider}
			byProvider[provider] = p
		}
		p.Sent++
		if send.Delivered() {
			p.Delivered++
		}
		if send.Bounces > 0 {
			p.Bounced++
		}
	}

	result := &dto.Deliverability{ByProvider: make([]dto.ProviderDeliverability, 0, len(byProvider))}
	for _, p := range byProvider {
		p.Rate = percent(p.Delivered, p.Sent, 1)
		result.ByProvider = append(result.ByProvider, *p)
	}
	sort.Slice(result.ByProvider, func(i, j int) bool {
		a, b := result.ByProvider[i], result.ByProvider[j]
		if a.Delivered != b.Delivered {
			return a.Delivered > b.Delivered
		}
		return a.Provider < b.Provider
	})
	return result
}

// RecipientAnalytics breaks sends down by recipient industry and location
func (s *analyticsService) RecipientAnalytics(ctx context.Context, userID string, timeRange enum.TimeRange) (*dto.RecipientAnalytics, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AnalyticsService.RecipientAnalytics")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagUserId(span, userID)

	if userID == "" {
		return nil, mterrors.ErrUserIdRequired
	}

	scope := s.scope(userID, "", timeRange)
	result, err := cached(ctx, s, userID, "recipient-analytics:"+timeRange.String(), func() (*dto.RecipientAnalytics, error) {
		sends, err := s.repo.ListSendEngagement(ctx, scope)
		if err != nil {
			return nil, err
		}
		return recipients(sends), nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return result, nil
}

func recipients(sends []models.SendEngagement) *dto.RecipientAnalytics {
	industries := make(map[string]*tally)
	locations := make(map[string]int64)
	for _, send := range sends {
		industry := utils.FirstNonEmpty(send.Industry, tracking.DefaultIndustry)
		t, ok := industries[industry]
		if !ok {
			t = &tally{}
			industries[industry] = t
		}
		t.add(send)
		locations[utils.FirstNonEmpty(send.Location, tracking.DefaultLocation)]++
	}

	result := &dto.RecipientAnalytics{
		ByIndustry: make([]dto.IndustryBreakdown, 0, len(industries)),
		ByLocation: make([]dto.LocationBreakdown, 0, len(locations)),
	}
	for industry, t := range industries {
		result.ByIndustry = append(result.ByIndustry, dto.IndustryBreakdown{
			Industry:  industry,
			Count:     t.sent,
			OpenRate:  percent(t.opened, t.sent, 1),
			ClickRate: percent(t.clicked, t.opened, 1),
		})
	}
	total := int64(len(sends))
	for location, count := range locations {
		result.ByLocation = append(result.ByLocation, dto.LocationBreakdown{
			Location: location,
			Count:    count,
			Rate:     percent(count, total, 1),
		})
	}
	sort.Slice(result.ByIndustry, func(i, j int) bool {
		a, b := result.ByIndustry[i], result.ByIndustry[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Industry < b.Industry
	})
	sort.Slice(result.ByLocation, func(i, j int) bool {
		a, b := result.ByLocation[i], result.ByLocation[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Location < b.Location
	})
	return result
}

// Realtime summarises the current UTC day
func (s *analyticsService) Realtime(ctx context.Context, userID string) (*dto.Realtime, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AnalyticsService.Realtime")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagUserId(span, userID)

	if userID == "" {
		return nil, mterrors.ErrUserIdRequired
	}

	now := s.now()
	today := utils.StartOfDay(now)
	key := "realtime:" + today.Format(dayLayout)
	result, err := cached(ctx, s, userID, key, func() (*dto.Realtime, error) {
		recent, err := s.repo.ListSendEngagement(ctx, models.AnalyticsScope{UserID: userID, Since: now.Add(-activeCampaignWindow)})
		if err != nil {
			return nil, err
		}
		opens, err := s.repo.ListEventActivity(ctx, models.AnalyticsScope{UserID: userID, Since: enum.TimeRange90d.Since(now)}, today)
		if err != nil {
			return nil, err
		}
		lastUpdate, err := s.repo.LatestActivity(ctx, userID)
		if err != nil {
			return nil, err
		}

		realtime := &dto.Realtime{LastUpdate: lastUpdate}
		active := make(map[string]struct{})
		var openedToday int64
		for _, send := range recent {
			active[send.CampaignID] = struct{}{}
			if !send.SentAt.Before(today) {
				realtime.SentToday++
				if send.Opens > 0 {
					openedToday++
				}
			}
		}
		for _, event := range opens {
			if event.Kind == enum.EventOpen {
				realtime.OpensToday++
			}
		}
		realtime.ActiveCampaigns = int64(len(active))
		realtime.CurrentOpenRate = percent(openedToday, realtime.SentToday, 1)
		return realtime, nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return result, nil
}

// tally counts distinct sends per kind alongside raw event totals
type tally struct {
	sent, delivered, opened, clicked, replied, bounced int64
	openEvents, clickEvents                            int64
}

func (t *tally) add(send models.SendEngagement) {
	t.sent++
	if send.Delivered() {
		t.delivered++
	}
	if send.Opens > 0 {
		t.opened++
	}
	if send.Clicks > 0 {
		t.clicked++
	}
	if send.Replies > 0 {
		t.replied++
	}
	if send.Bounces > 0 {
		t.bounced++
	}
	t.openEvents += send.Opens
	t.clickEvents += send.Clicks
}

// percent returns numerator/denominator as a percentage rounded to decimals,
// or 0 when denominator is 0.
func percent(numerator, denominator int64, decimals int) float64 {
	if denominator == 0 {
		return 0
	}
	scale := math.Pow10(decimals)
	return math.Round(float64(numerator)/float64(denominator)*100*scale) / scale
}
