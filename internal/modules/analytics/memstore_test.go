package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/Shotlin/shotlin-backend/internal/models"
	"github.com/google/uuid"
)

// memStore is an in-memory Store used by the service and engine tests.
// failWith, when set, is returned by every operation to simulate a storage
// outage.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*models.VisitorSession
	views    []*models.PageView
	failWith error
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]*models.VisitorSession{}}
}

func (m *memStore) FindOpenSession(ctx context.Context, id, visitorID string, activeSince time.Time) (*models.VisitorSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	s, ok := m.sessions[id]
	if !ok || s.VisitorID != visitorID || s.LastActiveAt.Before(activeSince) {
		return nil, ErrSessionNotFound
	}
	clone := *s
	return &clone, nil
}

func (m *memStore) CreateSession(ctx context.Context, s *models.VisitorSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	clone := *s
	m.sessions[s.ID] = &clone
	return nil
}

func (m *memStore) GetSession(ctx context.Context, id string) (*models.VisitorSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	clone := *s
	return &clone, nil
}

func (m *memStore) RecordSessionView(ctx context.Context, id string, now time.Time, exitPage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.LastActiveAt = now
	s.ExitPage = exitPage
	s.Bounced = false
	s.PageViews++
	return nil
}

func (m *memStore) TouchSession(ctx context.Context, id string, now time.Time, duration int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.LastActiveAt = now
	s.Duration = duration
	return nil
}

func (m *memStore) CreatePageView(ctx context.Context, pv *models.PageView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if pv.ID == "" {
		pv.ID = uuid.New().String()
	}
	clone := *pv
	m.views = append(m.views, &clone)
	return nil
}

func (m *memStore) LatestPageView(ctx context.Context, sessionID, path string) (*models.PageView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var latest *models.PageView
	for _, pv := range m.views {
		if pv.SessionID != sessionID || pv.Path != path {
			continue
		}
		if latest == nil || pv.Timestamp.After(latest.Timestamp) {
			latest = pv
		}
	}
	if latest == nil {
		return nil, ErrPageViewNotFound
	}
	clone := *latest
	return &clone, nil
}

func (m *memStore) UpdatePageViewEngagement(ctx context.Context, id string, scrollDepth int, timeOnPage int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for _, pv := range m.views {
		if pv.ID == id {
			depth := scrollDepth
			top := timeOnPage
			pv.ScrollDepth = &depth
			pv.TimeOnPage = &top
			return nil
		}
	}
	return ErrPageViewNotFound
}

func (m *memStore) SessionsSince(ctx context.Context, since time.Time) ([]models.VisitorSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []models.VisitorSession
	for _, s := range m.sessions {
		if !s.StartedAt.Before(since) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) SessionsBetween(ctx context.Context, from, to time.Time) ([]models.VisitorSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []models.VisitorSession
	for _, s := range m.sessions {
		if !s.StartedAt.Before(from) && s.StartedAt.Before(to) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) PageViewsSince(ctx context.Context, since time.Time) ([]models.PageView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []models.PageView
	for _, pv := range m.views {
		if !pv.Timestamp.Before(since) {
			out = append(out, *pv)
		}
	}
	return out, nil
}

func (m *memStore) CountPageViewsSince(ctx context.Context, since time.Time) (int64, error) {
	views, err := m.PageViewsSince(ctx, since)
	return int64(len(views)), err
}

func (m *memStore) CountPageViewsBetween(ctx context.Context, from, to time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	var count int64
	for _, pv := range m.views {
		if !pv.Timestamp.Before(from) && pv.Timestamp.Before(to) {
			count++
		}
	}
	return count, nil
}

func (m *memStore) ActiveSessions(ctx context.Context, activeSince time.Time) ([]models.VisitorSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []models.VisitorSession
	for _, s := range m.sessions {
		if !s.LastActiveAt.Before(activeSince) {
			out = append(out, *s)
		}
	}
	return out, nil
}
