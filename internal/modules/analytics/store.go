package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/Shotlin/shotlin-backend/internal/models"
)

// ErrSessionNotFound reports that no session row matched the lookup. It is a
// local, recoverable condition: ingestion reacts by opening a new session,
// heartbeat by answering 404.
var ErrSessionNotFound = errors.New("session not found")

// ErrPageViewNotFound reports that no page view matched a (session, path)
// lookup.
var ErrPageViewNotFound = errors.New("page view not found")

// Store is the durable event repository consumed by the ingestion service
// and the aggregation engine.
type Store interface {
	// FindOpenSession returns the session with the given id and visitor id
	// whose last activity is at or after activeSince, or ErrSessionNotFound.
	FindOpenSession(ctx context.Context, id, visitorID string, activeSince time.Time) (*models.VisitorSession, error)
	CreateSession(ctx context.Context, s *models.VisitorSession) error
	GetSession(ctx context.Context, id string) (*models.VisitorSession, error)

	// RecordSessionView applies the per-view session mutations: bump
	// last-active, move the exit page, clear the bounced flag, and atomically
	// increment the page-view counter.
	RecordSessionView(ctx context.Context, id string, now time.Time, exitPage string) error

	// TouchSession applies the heartbeat session mutations: bump last-active
	// and store the recomputed duration.
	TouchSession(ctx context.Context, id string, now time.Time, duration int64) error

	CreatePageView(ctx context.Context, pv *models.PageView) error

	// LatestPageView returns the most recent view of path within the session,
	// or ErrPageViewNotFound.
	LatestPageView(ctx context.Context, sessionID, path string) (*models.PageView, error)
	UpdatePageViewEngagement(ctx context.Context, id string, scrollDepth int, timeOnPage int64) error

	// Range-filtered projection reads for the aggregation engine.
	SessionsSince(ctx context.Context, since time.Time) ([]models.VisitorSession, error)
	SessionsBetween(ctx context.Context, from, to time.Time) ([]models.VisitorSession, error)
	PageViewsSince(ctx context.Context, since time.Time) ([]models.PageView, error)
	CountPageViewsSince(ctx context.Context, since time.Time) (int64, error)
	CountPageViewsBetween(ctx context.Context, from, to time.Time) (int64, error)

	// ActiveSessions returns sessions whose last activity is at or after
	// activeSince.
	ActiveSessions(ctx context.Context, activeSince time.Time) ([]models.VisitorSession, error)
}
