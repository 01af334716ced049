package analytics

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Shotlin/shotlin-backend/internal/models"
	"github.com/Shotlin/shotlin-backend/internal/pkg/geoip"
	"go.uber.org/zap"
)

// sessionTimeout bounds a visit: a session with no activity for this long is
// permanently closed and a later event opens a fresh one.
const sessionTimeout = 30 * time.Minute

// ErrInvalidInput reports a rejected ingestion payload. Checked before any
// store access.
var ErrInvalidInput = errors.New("invalid input")

// GeoResolver resolves a client IP to a best-effort location.
type GeoResolver interface {
	Lookup(ctx context.Context, ip string) geoip.Location
}

// Service ingests collect/heartbeat events and owns the session lifecycle.
type Service struct {
	store Store
	geo   GeoResolver
	log   *zap.Logger
	now   func() time.Time
}

// NewService creates the ingestion service.
func NewService(store Store, geo GeoResolver, log *zap.Logger) *Service {
	return &Service{store: store, geo: geo, log: log, now: time.Now}
}

// Collect records a page view. It resolves or opens the visit session and
// always returns the effective session id so the client can reference it in
// subsequent events.
func (s *Service) Collect(ctx context.Context, in CollectInput, clientIP string) (string, error) {
	in.VisitorID = strings.TrimSpace(in.VisitorID)
	in.Path = strings.TrimSpace(in.Path)
	if in.VisitorID == "" {
		return "", fmt.Errorf("%w: visitor id is required", ErrInvalidInput)
	}
	if in.Path == "" {
		return "", fmt.Errorf("%w: path is required", ErrInvalidInput)
	}

	now := s.now()

	sess, err := s.resolveSession(ctx, in.SessionID, in.VisitorID, now)
	switch {
	case err == nil:
		if err := s.store.RecordSessionView(ctx, sess.ID, now, in.Path); err != nil {
			return "", fmt.Errorf("update session: %w", err)
		}
	case errors.Is(err, ErrSessionNotFound):
		sess, err = s.openSession(ctx, in, clientIP, now)
		if err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("resolve session: %w", err)
	}

	pv := &models.PageView{
		SessionID: sess.ID,
		Path:      in.Path,
		Title:     in.Title,
		Referrer:  in.Referrer,
		Timestamp: now,
	}
	if err := s.store.CreatePageView(ctx, pv); err != nil {
		// The session mutation already landed; analytics data is best-effort
		// so the inconsistency is logged rather than rolled back.
		s.log.Warn("page view insert failed after session write",
			zap.String("session_id", sess.ID),
			zap.String("path", in.Path),
			zap.Error(err),
		)
		return sess.ID, fmt.Errorf("create page view: %w", err)
	}

	return sess.ID, nil
}

// Heartbeat refreshes session liveness and, when a path and scroll depth are
// reported, updates engagement on the most recent view of that path.
func (s *Service) Heartbeat(ctx context.Context, in HeartbeatInput) error {
	in.SessionID = strings.TrimSpace(in.SessionID)
	if in.SessionID == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	if in.ScrollDepth != nil && (*in.ScrollDepth < 0 || *in.ScrollDepth > 100) {
		return fmt.Errorf("%w: scroll depth must be within 0-100", ErrInvalidInput)
	}

	sess, err := s.store.GetSession(ctx, in.SessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return err
		}
		return fmt.Errorf("load session: %w", err)
	}

	now := s.now()
	duration := int64(now.Sub(sess.StartedAt).Seconds())
	if duration < 0 {
		duration = 0
	}
	if err := s.store.TouchSession(ctx, sess.ID, now, duration); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	if in.ScrollDepth == nil || strings.TrimSpace(in.Path) == "" {
		return nil
	}

	pv, err := s.store.LatestPageView(ctx, sess.ID, strings.TrimSpace(in.Path))
	if err != nil {
		if errors.Is(err, ErrPageViewNotFound) {
			return nil
		}
		return fmt.Errorf("load page view: %w", err)
	}

	// Scroll depth only ratchets upward; older views of the same path are
	// immutable history and never touched here.
	depth := *in.ScrollDepth
	if pv.ScrollDepth != nil && *pv.ScrollDepth > depth {
		depth = *pv.ScrollDepth
	}
	timeOnPage := int64(now.Sub(pv.Timestamp).Seconds())
	if timeOnPage < 0 {
		timeOnPage = 0
	}
	if err := s.store.UpdatePageViewEngagement(ctx, pv.ID, depth, timeOnPage); err != nil {
		return fmt.Errorf("update page view: %w", err)
	}
	return nil
}

// resolveSession finds the open session the event belongs to. Any mismatch
// (no candidate, wrong visitor, timed out) means a new session is required.
func (s *Service) resolveSession(ctx context.Context, candidateID, visitorID string, now time.Time) (*models.VisitorSession, error) {
	candidateID = strings.TrimSpace(candidateID)
	if candidateID == "" {
		return nil, ErrSessionNotFound
	}
	return s.store.FindOpenSession(ctx, candidateID, visitorID, now.Add(-sessionTimeout))
}

func (s *Service) openSession(ctx context.Context, in CollectInput, clientIP string, now time.Time) (*models.VisitorSession, error) {
	// Geography is resolved once per visit, from the first known client IP.
	// The lookup never fails; at worst every field stays empty.
	loc := s.geo.Lookup(ctx, clientIP)

	sess := &models.VisitorSession{
		VisitorID:      in.VisitorID,
		EntryPage:      in.Path,
		ExitPage:       in.Path,
		StartedAt:      now,
		LastActiveAt:   now,
		PageViews:      1,
		Bounced:        true,
		Referrer:       in.Referrer,
		ReferrerDomain: referrerDomain(in.Referrer),
		UTMSource:      in.UTMSource,
		UTMMedium:      in.UTMMedium,
		UTMCampaign:    in.UTMCampaign,
		Device:         in.Device,
		Browser:        in.Browser,
		OS:             in.OS,
		ScreenWidth:    in.ScreenWidth,
		ScreenHeight:   in.ScreenHeight,
		Language:       in.Language,
		Country:        loc.Country,
		CountryCode:    loc.CountryCode,
		City:           loc.City,
		Region:         loc.Region,
		Latitude:       loc.Latitude,
		Longitude:      loc.Longitude,
		Timezone:       loc.Timezone,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// referrerDomain extracts the lowercased host from a referrer URL, dropping
// a leading "www.". Malformed or absent URLs yield the empty string.
func referrerDomain(referrer string) string {
	raw := strings.TrimSpace(referrer)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www.")
}
