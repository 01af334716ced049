package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Shotlin/shotlin-backend/internal/models"
)

const (
	realtimeWindow    = 5 * time.Minute
	defaultPagesLimit = 20
	maxCountries      = 50
	maxCitiesPerEntry = 5
	maxReferrerRows   = 20
	maxActivePages    = 10
	// The all-time series is capped to the trailing 90 days to bound result
	// size; the other views scan the full range.
	timeSeriesAllCap = 90
)

// Engine computes the dashboard aggregation views. It is read-only: every
// view derives from a single consistent pass over the rows it needs.
type Engine struct {
	store Store
	now   func() time.Time
}

// NewEngine creates the aggregation engine.
func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Summary computes the KPI tiles for the range, each with its change versus
// the immediately preceding period of equal length (skipped for range=all).
func (e *Engine) Summary(ctx context.Context, rng Range) (*SummaryStats, error) {
	now := e.now()
	start := rng.Start(now)

	sessions, err := e.store.SessionsSince(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	views, err := e.store.CountPageViewsSince(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("count page views: %w", err)
	}
	current := summarize(sessions, views)

	if rng == RangeAll {
		return &SummaryStats{
			Visitors:        Metric{Value: current.visitors},
			Sessions:        Metric{Value: current.sessions},
			AvgDuration:     Metric{Value: current.avgDuration},
			BounceRate:      Metric{Value: current.bounceRate},
			PagesPerSession: Metric{Value: current.pagesPerSession},
			PageViews:       Metric{Value: current.pageViews},
		}, nil
	}

	prevStart := start.Add(-now.Sub(start))
	prevSessions, err := e.store.SessionsBetween(ctx, prevStart, start)
	if err != nil {
		return nil, fmt.Errorf("load previous sessions: %w", err)
	}
	prevViews, err := e.store.CountPageViewsBetween(ctx, prevStart, start)
	if err != nil {
		return nil, fmt.Errorf("count previous page views: %w", err)
	}
	previous := summarize(prevSessions, prevViews)

	return &SummaryStats{
		Visitors:        metricWithChange(current.visitors, previous.visitors),
		Sessions:        metricWithChange(current.sessions, previous.sessions),
		AvgDuration:     metricWithChange(current.avgDuration, previous.avgDuration),
		BounceRate:      metricWithChange(current.bounceRate, previous.bounceRate),
		PagesPerSession: metricWithChange(current.pagesPerSession, previous.pagesPerSession),
		PageViews:       metricWithChange(current.pageViews, previous.pageViews),
	}, nil
}

type summaryNumbers struct {
	visitors        float64
	sessions        float64
	avgDuration     float64
	bounceRate      float64
	pagesPerSession float64
	pageViews       float64
}

func summarize(sessions []models.VisitorSession, pageViews int64) summaryNumbers {
	n := summaryNumbers{pageViews: float64(pageViews)}
	n.sessions = float64(len(sessions))
	if len(sessions) == 0 {
		return n
	}

	visitors := map[string]struct{}{}
	var totalDuration, totalViews, bounced int64
	for _, s := range sessions {
		visitors[s.VisitorID] = struct{}{}
		totalDuration += s.Duration
		totalViews += s.PageViews
		if s.Bounced {
			bounced++
		}
	}
	n.visitors = float64(len(visitors))
	n.avgDuration = round1(float64(totalDuration) / n.sessions)
	n.bounceRate = round1(float64(bounced) / n.sessions * 100)
	n.pagesPerSession = round1(float64(totalViews) / n.sessions)
	return n
}

func metricWithChange(current, previous float64) Metric {
	change := percentChange(current, previous)
	return Metric{Value: current, Change: &change}
}

// percentChange reports (current-previous)/previous as a percentage, rounded
// to one decimal. A zero previous value yields 100 when current is positive
// and 0 otherwise.
func percentChange(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return round1((current - previous) / previous * 100)
}

// TimeSeries buckets page views by hour (range=today) or calendar day,
// in server-local time. Empty buckets are not synthesized.
func (e *Engine) TimeSeries(ctx context.Context, rng Range) ([]TimeSeriesPoint, error) {
	now := e.now()
	start := rng.Start(now)
	if rng == RangeAll {
		if floor := now.AddDate(0, 0, -timeSeriesAllCap); start.Before(floor) {
			start = floor
		}
	}

	views, err := e.store.PageViewsSince(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("load page views: %w", err)
	}

	layout := "2006-01-02"
	if rng == RangeToday {
		layout = "2006-01-02 15:00"
	}

	type bucket struct {
		views    int64
		sessions map[string]struct{}
	}
	buckets := map[string]*bucket{}
	for _, pv := range views {
		key := pv.Timestamp.In(time.Local).Format(layout)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{sessions: map[string]struct{}{}}
			buckets[key] = b
		}
		b.views++
		b.sessions[pv.SessionID] = struct{}{}
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	points := make([]TimeSeriesPoint, 0, len(keys))
	for _, key := range keys {
		b := buckets[key]
		points = append(points, TimeSeriesPoint{
			Bucket:   key,
			Views:    b.views,
			Sessions: int64(len(b.sessions)),
		})
	}
	return points, nil
}

// TopPages groups in-range page views by path. The per-page bounce rate
// counts sessions whose only in-range view anywhere landed on this path, so
// it can legitimately diverge from the session-level bounce rate.
func (e *Engine) TopPages(ctx context.Context, rng Range, limit int) ([]PageStats, error) {
	if limit <= 0 {
		limit = defaultPagesLimit
	}
	start := rng.Start(e.now())

	views, err := e.store.PageViewsSince(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("load page views: %w", err)
	}

	type pageAgg struct {
		views       int64
		sessions    map[string]struct{}
		timeSum     int64
		timeCount   int64
		scrollSum   int64
		scrollCount int64
	}
	pages := map[string]*pageAgg{}
	viewsPerSession := map[string]int64{}

	for _, pv := range views {
		viewsPerSession[pv.SessionID]++

		p, ok := pages[pv.Path]
		if !ok {
			p = &pageAgg{sessions: map[string]struct{}{}}
			pages[pv.Path] = p
		}
		p.views++
		p.sessions[pv.SessionID] = struct{}{}
		if pv.TimeOnPage != nil {
			p.timeSum += *pv.TimeOnPage
			p.timeCount++
		}
		if pv.ScrollDepth != nil {
			p.scrollSum += int64(*pv.ScrollDepth)
			p.scrollCount++
		}
	}

	out := make([]PageStats, 0, len(pages))
	for path, p := range pages {
		var bounces int64
		for sid := range p.sessions {
			if viewsPerSession[sid] == 1 {
				bounces++
			}
		}

		row := PageStats{
			Path:           path,
			Views:          p.views,
			UniqueSessions: int64(len(p.sessions)),
			BounceRate:     round1(float64(bounces) / float64(len(p.sessions)) * 100),
		}
		if p.timeCount > 0 {
			row.AvgTimeOnPage = round1(float64(p.timeSum) / float64(p.timeCount))
		}
		if p.scrollCount > 0 {
			row.AvgScrollDepth = round1(float64(p.scrollSum) / float64(p.scrollCount))
		}
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Views != out[j].Views {
			return out[i].Views > out[j].Views
		}
		return out[i].Path < out[j].Path
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Geography groups in-range sessions by country code, with up to five top
// cities per country. Rows lacking a country code bucket under "unknown".
func (e *Engine) Geography(ctx context.Context, rng Range) ([]CountryStats, error) {
	start := rng.Start(e.now())

	sessions, err := e.store.SessionsSince(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	type cityAgg struct {
		sessions int64
		visitors map[string]struct{}
	}
	type countryAgg struct {
		name        string
		sessions    int64
		visitors    map[string]struct{}
		durationSum int64
		cities      map[string]*cityAgg
	}
	countries := map[string]*countryAgg{}
	for _, s := range sessions {
		code := strings.TrimSpace(s.CountryCode)
		if code == "" {
			code = "unknown"
		}
		c, ok := countries[code]
		if !ok {
			c = &countryAgg{visitors: map[string]struct{}{}, cities: map[string]*cityAgg{}}
			countries[code] = c
		}
		if c.name == "" {
			c.name = s.Country
		}
		c.sessions++
		c.visitors[s.VisitorID] = struct{}{}
		c.durationSum += s.Duration

		city := strings.TrimSpace(s.City)
		if city == "" {
			continue
		}
		ct, ok := c.cities[city]
		if !ok {
			ct = &cityAgg{visitors: map[string]struct{}{}}
			c.cities[city] = ct
		}
		ct.sessions++
		ct.visitors[s.VisitorID] = struct{}{}
	}

	total := float64(len(sessions))
	out := make([]CountryStats, 0, len(countries))
	for code, c := range countries {
		row := CountryStats{
			Country:     c.name,
			CountryCode: code,
			Visitors:    int64(len(c.visitors)),
			Sessions:    c.sessions,
			Percentage:  round1(float64(c.sessions) / total * 100),
			AvgDuration: round1(float64(c.durationSum) / float64(c.sessions)),
		}

		cities := make([]CityStats, 0, len(c.cities))
		for name, ct := range c.cities {
			cities = append(cities, CityStats{
				City:     name,
				Sessions: ct.sessions,
				Visitors: int64(len(ct.visitors)),
			})
		}
		sort.Slice(cities, func(i, j int) bool {
			if cities[i].Sessions != cities[j].Sessions {
				return cities[i].Sessions > cities[j].Sessions
			}
			return cities[i].City < cities[j].City
		})
		if len(cities) > maxCitiesPerEntry {
			cities = cities[:maxCitiesPerEntry]
		}
		row.Cities = cities
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Sessions != out[j].Sessions {
			return out[i].Sessions > out[j].Sessions
		}
		return out[i].CountryCode < out[j].CountryCode
	})
	if len(out) > maxCountries {
		out = out[:maxCountries]
	}
	return out, nil
}

// Devices computes three independent frequency distributions over in-range
// sessions: device type, browser, operating system.
func (e *Engine) Devices(ctx context.Context, rng Range) (*DeviceStats, error) {
	start := rng.Start(e.now())

	sessions, err := e.store.SessionsSince(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	devices := map[string]int64{}
	browsers := map[string]int64{}
	oses := map[string]int64{}
	for _, s := range sessions {
		devices[orUnknown(s.Device)]++
		browsers[orUnknown(s.Browser)]++
		oses[orUnknown(s.OS)]++
	}

	total := int64(len(sessions))
	return &DeviceStats{
		Devices:  toDistribution(devices, total),
		Browsers: toDistribution(browsers, total),
		OS:       toDistribution(oses, total),
	}, nil
}

// Referrers reports the fixed traffic-source taxonomy and the top raw
// referrer domains over in-range sessions.
func (e *Engine) Referrers(ctx context.Context, rng Range) (*ReferrerStats, error) {
	start := rng.Start(e.now())

	sessions, err := e.store.SessionsSince(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	type refAgg struct {
		sessions int64
		visitors map[string]struct{}
	}
	sources := map[string]*refAgg{}
	domains := map[string]*refAgg{}
	bump := func(m map[string]*refAgg, key, visitorID string) {
		a, ok := m[key]
		if !ok {
			a = &refAgg{visitors: map[string]struct{}{}}
			m[key] = a
		}
		a.sessions++
		a.visitors[visitorID] = struct{}{}
	}

	for _, s := range sessions {
		bump(sources, classifyTrafficSource(s.UTMSource, s.ReferrerDomain), s.VisitorID)
		if domain := strings.TrimSpace(s.ReferrerDomain); domain != "" {
			bump(domains, domain, s.VisitorID)
		}
	}

	total := float64(len(sessions))
	sourceRows := make([]ReferrerRow, 0, len(sources))
	for _, name := range sourceOrder {
		a, ok := sources[name]
		if !ok {
			continue
		}
		sourceRows = append(sourceRows, ReferrerRow{
			Name:       name,
			Sessions:   a.sessions,
			Visitors:   int64(len(a.visitors)),
			Percentage: round1(float64(a.sessions) / total * 100),
		})
	}

	domainRows := make([]ReferrerRow, 0, len(domains))
	for name, a := range domains {
		domainRows = append(domainRows, ReferrerRow{
			Name:       name,
			Sessions:   a.sessions,
			Visitors:   int64(len(a.visitors)),
			Percentage: round1(float64(a.sessions) / total * 100),
		})
	}
	sort.Slice(domainRows, func(i, j int) bool {
		if domainRows[i].Sessions != domainRows[j].Sessions {
			return domainRows[i].Sessions > domainRows[j].Sessions
		}
		return domainRows[i].Name < domainRows[j].Name
	})
	if len(domainRows) > maxReferrerRows {
		domainRows = domainRows[:maxReferrerRows]
	}

	return &ReferrerStats{Sources: sourceRows, Domains: domainRows}, nil
}

// Realtime reports sessions active within the trailing five minutes,
// independent of any range selector.
func (e *Engine) Realtime(ctx context.Context) (*RealtimeStats, error) {
	now := e.now()

	sessions, err := e.store.ActiveSessions(ctx, now.Add(-realtimeWindow))
	if err != nil {
		return nil, fmt.Errorf("load active sessions: %w", err)
	}

	visitors := map[string]struct{}{}
	pages := map[string]int64{}
	for _, s := range sessions {
		visitors[s.VisitorID] = struct{}{}
		if page := strings.TrimSpace(s.ExitPage); page != "" {
			pages[page]++
		}
	}

	pageRows := make([]ActivePage, 0, len(pages))
	for path, count := range pages {
		pageRows = append(pageRows, ActivePage{Path: path, Sessions: count})
	}
	sort.Slice(pageRows, func(i, j int) bool {
		if pageRows[i].Sessions != pageRows[j].Sessions {
			return pageRows[i].Sessions > pageRows[j].Sessions
		}
		return pageRows[i].Path < pageRows[j].Path
	})
	if len(pageRows) > maxActivePages {
		pageRows = pageRows[:maxActivePages]
	}

	return &RealtimeStats{
		Visitors: int64(len(visitors)),
		Sessions: int64(len(sessions)),
		Pages:    pageRows,
	}, nil
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}

func toDistribution(counts map[string]int64, total int64) []NameCount {
	out := make([]NameCount, 0, len(counts))
	for name, count := range counts {
		row := NameCount{Name: name, Count: count}
		if total > 0 {
			row.Percentage = round1(float64(count) / float64(total) * 100)
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
