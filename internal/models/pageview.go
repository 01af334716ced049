package models

import "time"

// PageView is one page load or in-session navigation event. Engagement
// fields (TimeOnPage, ScrollDepth) start unset and are only ever written by
// heartbeats targeting the most recent view of a (session, path) pair.
type PageView struct {
	Base
	SessionID   string    `json:"session_id" gorm:"index;index:idx_session_path,composite:1;not null"`
	Path        string    `json:"path"       gorm:"index;index:idx_session_path,composite:2;not null"`
	Title       string    `json:"title"`
	Referrer    string    `json:"referrer"`
	Timestamp   time.Time `json:"timestamp"  gorm:"index"`
	TimeOnPage  *int64    `json:"time_on_page"` // seconds
	ScrollDepth *int      `json:"scroll_depth"` // 0-100, monotonically non-decreasing
}

func (PageView) TableName() string { return "page_views" }
