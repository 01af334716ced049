package analytics

import "time"

// Range is the enumerated time-window selector for aggregation queries.
type Range string

const (
	RangeToday Range = "today"
	Range7D    Range = "7d"
	Range30D   Range = "30d"
	RangeAll   Range = "all"
)

// ParseRange maps a query value to a Range. Empty input falls back to the
// 7-day default; unrecognized values are rejected.
func ParseRange(raw string) (Range, bool) {
	switch Range(raw) {
	case "":
		return Range7D, true
	case RangeToday, Range7D, Range30D, RangeAll:
		return Range(raw), true
	default:
		return "", false
	}
}

// Start returns the inclusive lower bound of the range relative to now.
// Buckets and day boundaries use server-local time throughout.
func (r Range) Start(now time.Time) time.Time {
	switch r {
	case RangeToday:
		local := now.In(time.Local)
		y, m, d := local.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
	case Range30D:
		return now.Add(-30 * 24 * time.Hour)
	case RangeAll:
		return time.Unix(0, 0)
	default:
		return now.Add(-7 * 24 * time.Hour)
	}
}

// CollectInput is the payload of a page-view beacon.
type CollectInput struct {
	VisitorID    string `json:"visitor_id" binding:"required"`
	SessionID    string `json:"session_id"`
	Path         string `json:"path" binding:"required"`
	Title        string `json:"title"`
	Referrer     string `json:"referrer"`
	UTMSource    string `json:"utm_source"`
	UTMMedium    string `json:"utm_medium"`
	UTMCampaign  string `json:"utm_campaign"`
	Device       string `json:"device"`
	Browser      string `json:"browser"`
	OS           string `json:"os"`
	ScreenWidth  int    `json:"screen_width"`
	ScreenHeight int    `json:"screen_height"`
	Language     string `json:"language"`
}

// HeartbeatInput is the payload of a periodic engagement signal.
type HeartbeatInput struct {
	SessionID   string `json:"session_id" binding:"required"`
	ScrollDepth *int   `json:"scroll_depth" binding:"omitempty,min=0,max=100"`
	Path        string `json:"path"`
}

// Metric is a single summary value with its change versus the previous
// period of equal length. Change is nil when range=all.
type Metric struct {
	Value  float64  `json:"value"`
	Change *float64 `json:"change,omitempty"`
}

// SummaryStats bundles the dashboard KPI tiles.
type SummaryStats struct {
	Visitors        Metric `json:"visitors"`
	Sessions        Metric `json:"sessions"`
	AvgDuration     Metric `json:"avg_duration"`
	BounceRate      Metric `json:"bounce_rate"`
	PagesPerSession Metric `json:"pages_per_session"`
	PageViews       Metric `json:"page_views"`
}

// TimeSeriesPoint is one non-empty bucket of the views-over-time chart.
// Sessions counts distinct session ids seen in the bucket, not visitors.
type TimeSeriesPoint struct {
	Bucket   string `json:"bucket"`
	Views    int64  `json:"views"`
	Sessions int64  `json:"sessions"`
}

// PageStats is one row of the top-pages table.
type PageStats struct {
	Path           string  `json:"path"`
	Views          int64   `json:"views"`
	UniqueSessions int64   `json:"unique_sessions"`
	AvgTimeOnPage  float64 `json:"avg_time_on_page"`
	AvgScrollDepth float64 `json:"avg_scroll_depth"`
	BounceRate     float64 `json:"bounce_rate"`
}

// CityStats is a per-city sub-row of the geography view.
type CityStats struct {
	City     string `json:"city"`
	Sessions int64  `json:"sessions"`
	Visitors int64  `json:"visitors"`
}

// CountryStats is one row of the geography view.
type CountryStats struct {
	Country     string      `json:"country"`
	CountryCode string      `json:"country_code"`
	Visitors    int64       `json:"visitors"`
	Sessions    int64       `json:"sessions"`
	Percentage  float64     `json:"percentage"`
	AvgDuration float64     `json:"avg_duration"`
	Cities      []CityStats `json:"cities"`
}

// NameCount is a (name, count, percentage) row of a frequency distribution.
type NameCount struct {
	Name       string  `json:"name"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// DeviceStats holds the three independent device-mix distributions.
type DeviceStats struct {
	Devices  []NameCount `json:"devices"`
	Browsers []NameCount `json:"browsers"`
	OS       []NameCount `json:"os"`
}

// ReferrerRow reports one traffic-source category or raw referrer domain.
type ReferrerRow struct {
	Name       string  `json:"name"`
	Sessions   int64   `json:"sessions"`
	Visitors   int64   `json:"visitors"`
	Percentage float64 `json:"percentage"`
}

// ReferrerStats bundles the categorized and raw-domain referrer views.
type ReferrerStats struct {
	Sources []ReferrerRow `json:"sources"`
	Domains []ReferrerRow `json:"domains"`
}

// ActivePage is one currently-active page of the realtime view, keyed by the
// session's current exit page.
type ActivePage struct {
	Path     string `json:"path"`
	Sessions int64  `json:"sessions"`
}

// RealtimeStats reports activity within the trailing five minutes.
type RealtimeStats struct {
	Visitors int64        `json:"visitors"`
	Sessions int64        `json:"sessions"`
	Pages    []ActivePage `json:"pages"`
}
