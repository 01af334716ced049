package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/Shotlin/shotlin-backend/internal/models"
	"gorm.io/gorm"
)

// gormStore implements Store on top of MySQL via GORM.
type gormStore struct {
	db *gorm.DB
}

// NewStore wraps a GORM connection in the Store interface.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) FindOpenSession(ctx context.Context, id, visitorID string, activeSince time.Time) (*models.VisitorSession, error) {
	var sess models.VisitorSession
	err := s.db.WithContext(ctx).
		Where("id = ? AND visitor_id = ? AND last_active_at >= ?", id, visitorID, activeSince).
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *gormStore) CreateSession(ctx context.Context, sess *models.VisitorSession) error {
	return s.db.WithContext(ctx).Create(sess).Error
}

func (s *gormStore) GetSession(ctx context.Context, id string) (*models.VisitorSession, error) {
	var sess models.VisitorSession
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *gormStore) RecordSessionView(ctx context.Context, id string, now time.Time, exitPage string) error {
	return s.db.WithContext(ctx).Model(&models.VisitorSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_active_at":  now,
			"exit_page":       exitPage,
			"bounced":         false,
			"page_view_count": gorm.Expr("page_view_count + 1"),
		}).Error
}

func (s *gormStore) TouchSession(ctx context.Context, id string, now time.Time, duration int64) error {
	return s.db.WithContext(ctx).Model(&models.VisitorSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_active_at": now,
			"duration":       duration,
		}).Error
}

func (s *gormStore) CreatePageView(ctx context.Context, pv *models.PageView) error {
	return s.db.WithContext(ctx).Create(pv).Error
}

func (s *gormStore) LatestPageView(ctx context.Context, sessionID, path string) (*models.PageView, error) {
	var pv models.PageView
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND path = ?", sessionID, path).
		Order("timestamp DESC").
		First(&pv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPageViewNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pv, nil
}

func (s *gormStore) UpdatePageViewEngagement(ctx context.Context, id string, scrollDepth int, timeOnPage int64) error {
	return s.db.WithContext(ctx).Model(&models.PageView{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"scroll_depth": scrollDepth,
			"time_on_page": timeOnPage,
		}).Error
}

func (s *gormStore) SessionsSince(ctx context.Context, since time.Time) ([]models.VisitorSession, error) {
	var sessions []models.VisitorSession
	err := s.db.WithContext(ctx).
		Where("started_at >= ?", since).
		Find(&sessions).Error
	return sessions, err
}

func (s *gormStore) SessionsBetween(ctx context.Context, from, to time.Time) ([]models.VisitorSession, error) {
	var sessions []models.VisitorSession
	err := s.db.WithContext(ctx).
		Where("started_at >= ? AND started_at < ?", from, to).
		Find(&sessions).Error
	return sessions, err
}

func (s *gormStore) PageViewsSince(ctx context.Context, since time.Time) ([]models.PageView, error) {
	var views []models.PageView
	err := s.db.WithContext(ctx).
		Where("timestamp >= ?", since).
		Find(&views).Error
	return views, err
}

func (s *gormStore) CountPageViewsSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.PageView{}).
		Where("timestamp >= ?", since).
		Count(&count).Error
	return count, err
}

func (s *gormStore) CountPageViewsBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.PageView{}).
		Where("timestamp >= ? AND timestamp < ?", from, to).
		Count(&count).Error
	return count, err
}

func (s *gormStore) ActiveSessions(ctx context.Context, activeSince time.Time) ([]models.VisitorSession, error) {
	var sessions []models.VisitorSession
	err := s.db.WithContext(ctx).
		Where("last_active_at >= ?", activeSince).
		Find(&sessions).Error
	return sessions, err
}
