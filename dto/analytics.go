package dto

import "time"

type EmailMetrics struct {
	TotalSent        int64   `json:"totalSent"`
	TotalDelivered   int64   `json:"totalDelivered"`
	TotalOpened      int64   `json:"totalOpened"`
	TotalClicked     int64   `json:"totalClicked"`
	TotalReplied     int64   `json:"totalReplied"`
	TotalBounced     int64   `json:"totalBounced"`
	TotalOpenEvents  int64   `json:"totalOpenEvents"`
	TotalClickEvents int64   `json:"totalClickEvents"`
	DeliveryRate     float64 `json:"deliveryRate"`
	OpenRate         float64 `json:"openRate"`
	ClickRate        float64 `json:"clickRate"`
	ReplyRate        float64 `json:"replyRate"`
	BounceRate       float64 `json:"bounceRate"`
}

type TrendPoint struct {
	Date      string `json:"date"`
	Sent      int64  `json:"sent"`
	Delivered int64  `json:"delivered"`
	Opens     int64  `json:"opens"`
	Clicks    int64  `json:"clicks"`
	Replies   int64  `json:"replies"`
	Bounces   int64  `json:"bounces"`
}

type CampaignPerformance struct {
	CampaignId  string    `json:"campaignId"`
	Name        string    `json:"name"`
	Sent        int64     `json:"sent"`
	Delivered   int64     `json:"delivered"`
	Opens       int64     `json:"opens"`
	Clicks      int64     `json:"clicks"`
	Replies     int64     `json:"replies"`
	Bounces     int64     `json:"bounces"`
	OpenRate    float64   `json:"openRate"`
	ClickRate   float64   `json:"clickRate"`
	ReplyRate   float64   `json:"replyRate"`
	FirstSentAt time.Time `json:"firstSentAt"`
	LastSentAt  time.Time `json:"lastSentAt"`
	Status      string    `json:"status"`
}

type ProviderDeliverability struct {
	Provider  string  `json:"provider"`
	Sent      int64   `json:"sent"`
	Delivered int64   `json:"delivered"`
	Bounced   int64   `json:"bounced"`
	Rate      float64 `json:"rate"`
}

type Deliverability struct {
	ByProvider []ProviderDeliverability `json:"byProvider"`
}

type IndustryBreakdown struct {
	Industry  string  `json:"industry"`
	Count     int64   `json:"count"`
	OpenRate  float64 `json:"openRate"`
	ClickRate float64 `json:"clickRate"`
}

type LocationBreakdown struct {
	Location string  `json:"location"`
	Count    int64   `json:"count"`
	Rate     float64 `json:"rate"`
}

type RecipientAnalytics struct {
	ByIndustry []IndustryBreakdown `json:"byIndustry"`
	ByLocation []LocationBreakdown `json:"byLocation"`
}

type Realtime struct {
	ActiveCampaigns int64      `json:"activeCampaigns"`
	SentToday       int64      `json:"sentToday"`
	OpensToday      int64      `json:"opensToday"`
	CurrentOpenRate float64    `json:"currentOpenRate"`
	LastUpdate      *time.Time `json:"lastUpdate"`
}
