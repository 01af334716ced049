package models

import "time"

// VisitorSession is one continuous visit by one visitor, bounded by a
// 30-minute inactivity timeout. Geography fields are filled once at creation
// from the first known client IP and never re-queried afterwards.
type VisitorSession struct {
	Base
	VisitorID    string    `json:"visitor_id"     gorm:"index:idx_visitor;index:idx_visitor_session,composite:2;not null"`
	EntryPage    string    `json:"entry_page"     gorm:"not null"`
	ExitPage     string    `json:"exit_page"`
	StartedAt    time.Time `json:"started_at"     gorm:"index"`
	LastActiveAt time.Time `json:"last_active_at" gorm:"index"`
	Duration     int64     `json:"duration"` // seconds, recomputed on heartbeat
	PageViews    int64     `json:"page_views"     gorm:"column:page_view_count"`
	Bounced      bool      `json:"bounced"`

	Referrer       string `json:"referrer"`
	ReferrerDomain string `json:"referrer_domain" gorm:"index"`
	UTMSource      string `json:"utm_source"`
	UTMMedium      string `json:"utm_medium"`
	UTMCampaign    string `json:"utm_campaign"`

	Device       string `json:"device"`
	Browser      string `json:"browser"`
	OS           string `json:"os"`
	ScreenWidth  int    `json:"screen_width"`
	ScreenHeight int    `json:"screen_height"`
	Language     string `json:"language"`

	Country     string  `json:"country"`
	CountryCode string  `json:"country_code" gorm:"index"`
	City        string  `json:"city"`
	Region      string  `json:"region"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    string  `json:"timezone"`
}

func (VisitorSession) TableName() string { return "visitor_sessions" }
