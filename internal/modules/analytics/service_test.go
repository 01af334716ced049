package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/Shotlin/shotlin-backend/internal/pkg/geoip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubGeo struct {
	loc   geoip.Location
	calls int
}

func (g *stubGeo) Lookup(ctx context.Context, ip string) geoip.Location {
	g.calls++
	return g.loc
}

func newTestService(store Store, geo GeoResolver) *Service {
	return NewService(store, geo, zap.NewNop())
}

func TestCollect_OpensSessionWithGeoAndFirstView(t *testing.T) {
	store := newMemStore()
	geo := &stubGeo{loc: geoip.Location{
		Country:     "Germany",
		CountryCode: "DE",
		City:        "Berlin",
		Region:      "Berlin",
		Latitude:    52.52,
		Longitude:   13.4,
		Timezone:    "Europe/Berlin",
	}}
	svc := newTestService(store, geo)

	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.Local)
	svc.now = func() time.Time { return now }

	sessionID, err := svc.Collect(context.Background(), CollectInput{
		VisitorID: "v-1",
		Path:      "/pricing",
		Title:     "Pricing",
		Referrer:  "https://www.google.com/search?q=shotlin",
		Device:    "desktop",
		Browser:   "Firefox",
		OS:        "Linux",
		Language:  "de-DE",
	}, "93.184.216.34")
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)

	sess, err := store.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, "v-1", sess.VisitorID)
	assert.Equal(t, "/pricing", sess.EntryPage)
	assert.Equal(t, "/pricing", sess.ExitPage)
	assert.Equal(t, int64(1), sess.PageViews)
	assert.True(t, sess.Bounced)
	assert.Equal(t, "google.com", sess.ReferrerDomain)
	assert.Equal(t, "DE", sess.CountryCode)
	assert.Equal(t, "Berlin", sess.City)
	assert.Equal(t, 1, geo.calls)

	pv, err := store.LatestPageView(context.Background(), sessionID, "/pricing")
	require.NoError(t, err)
	assert.Equal(t, now, pv.Timestamp)
	assert.Nil(t, pv.ScrollDepth)
	assert.Nil(t, pv.TimeOnPage)
}

func TestCollect_ReusesOpenSessionWithinTimeout(t *testing.T) {
	store := newMemStore()
	geo := &stubGeo{}
	svc := newTestService(store, geo)

	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.Local)
	svc.now = func() time.Time { return now }

	first, err := svc.Collect(context.Background(), CollectInput{VisitorID: "v-1", Path: "/"}, "1.2.3.4")
	require.NoError(t, err)

	// Three follow-up views, each ten minutes after the previous one.
	paths := []string{"/features", "/pricing", "/signup"}
	for _, path := range paths {
		now = now.Add(10 * time.Minute)
		got, err := svc.Collect(context.Background(), CollectInput{
			VisitorID: "v-1",
			SessionID: first,
			Path:      path,
		}, "1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}

	sess, err := store.GetSession(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, int64(4), sess.PageViews)
	assert.False(t, sess.Bounced)
	assert.Equal(t, "/", sess.EntryPage)
	assert.Equal(t, "/signup", sess.ExitPage)
	assert.Equal(t, now, sess.LastActiveAt)

	// Geography was resolved exactly once, at session creation.
	assert.Equal(t, 1, geo.calls)
}

func TestCollect_TimeoutOpensFreshSession(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &stubGeo{})

	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.Local)
	svc.now = func() time.Time { return now }

	first, err := svc.Collect(context.Background(), CollectInput{VisitorID: "v-1", Path: "/"}, "1.2.3.4")
	require.NoError(t, err)

	now = now.Add(sessionTimeout + time.Second)
	second, err := svc.Collect(context.Background(), CollectInput{
		VisitorID: "v-1",
		SessionID: first,
		Path:      "/back",
	}, "1.2.3.4")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	// The stale session is abandoned untouched.
	stale, err := store.GetSession(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stale.PageViews)
	assert.True(t, stale.Bounced)
}

func TestCollect_VisitorMismatchOpensFreshSession(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &stubGeo{})

	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.Local)
	svc.now = func() time.Time { return now }

	first, err := svc.Collect(context.Background(), CollectInput{VisitorID: "v-1", Path: "/"}, "1.2.3.4")
	require.NoError(t, err)

	second, err := svc.Collect(context.Background(), CollectInput{
		VisitorID: "v-2",
		SessionID: first,
		Path:      "/",
	}, "1.2.3.4")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestCollect_RejectsInvalidInput(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &stubGeo{})

	tests := []struct {
		name string
		in   CollectInput
	}{
		{name: "missing visitor id", in: CollectInput{Path: "/"}},
		{name: "missing path", in: CollectInput{VisitorID: "v-1"}},
		{name: "blank path", in: CollectInput{VisitorID: "v-1", Path: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Collect(context.Background(), tt.in, "1.2.3.4")
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	assert.Empty(t, store.sessions)
	assert.Empty(t, store.views)
}

func TestHeartbeat_UnknownSession(t *testing.T) {
	svc := newTestService(newMemStore(), &stubGeo{})

	err := svc.Heartbeat(context.Background(), HeartbeatInput{SessionID: "nope"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestHeartbeat_RecomputesDurationAndRatchetsScroll(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &stubGeo{})

	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.Local)
	now := start
	svc.now = func() time.Time { return now }

	sessionID, err := svc.Collect(context.Background(), CollectInput{VisitorID: "v-1", Path: "/post"}, "1.2.3.4")
	require.NoError(t, err)

	depths := []int{10, 40, 25, 90}
	for i, depth := range depths {
		now = start.Add(time.Duration(i+1) * 15 * time.Second)
		d := depth
		err := svc.Heartbeat(context.Background(), HeartbeatInput{
			SessionID:   sessionID,
			ScrollDepth: &d,
			Path:        "/post",
		})
		require.NoError(t, err)
	}

	pv, err := store.LatestPageView(context.Background(), sessionID, "/post")
	require.NoError(t, err)
	require.NotNil(t, pv.ScrollDepth)
	assert.Equal(t, 90, *pv.ScrollDepth, "scroll depth must never regress")
	require.NotNil(t, pv.TimeOnPage)
	assert.Equal(t, int64(60), *pv.TimeOnPage)

	sess, err := store.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(60), sess.Duration)
	assert.Equal(t, now, sess.LastActiveAt)
}

func TestHeartbeat_ScrollNeverRegresses(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &stubGeo{})

	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.Local)
	now := start
	svc.now = func() time.Time { return now }

	sessionID, err := svc.Collect(context.Background(), CollectInput{VisitorID: "v-1", Path: "/post"}, "1.2.3.4")
	require.NoError(t, err)

	high := 80
	require.NoError(t, svc.Heartbeat(context.Background(), HeartbeatInput{SessionID: sessionID, ScrollDepth: &high, Path: "/post"}))

	low := 20
	require.NoError(t, svc.Heartbeat(context.Background(), HeartbeatInput{SessionID: sessionID, ScrollDepth: &low, Path: "/post"}))

	pv, err := store.LatestPageView(context.Background(), sessionID, "/post")
	require.NoError(t, err)
	assert.Equal(t, 80, *pv.ScrollDepth)
}

func TestHeartbeat_WithoutPathOnlyTouchesSession(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &stubGeo{})

	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.Local)
	now := start
	svc.now = func() time.Time { return now }

	sessionID, err := svc.Collect(context.Background(), CollectInput{VisitorID: "v-1", Path: "/post"}, "1.2.3.4")
	require.NoError(t, err)

	now = start.Add(45 * time.Second)
	require.NoError(t, svc.Heartbeat(context.Background(), HeartbeatInput{SessionID: sessionID}))

	sess, err := store.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(45), sess.Duration)

	pv, err := store.LatestPageView(context.Background(), sessionID, "/post")
	require.NoError(t, err)
	assert.Nil(t, pv.ScrollDepth)
	assert.Nil(t, pv.TimeOnPage)
}

func TestHeartbeat_RejectsOutOfRangeScrollDepth(t *testing.T) {
	svc := newTestService(newMemStore(), &stubGeo{})

	bad := 101
	err := svc.Heartbeat(context.Background(), HeartbeatInput{SessionID: "s", ScrollDepth: &bad, Path: "/"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestReferrerDomain(t *testing.T) {
	tests := []struct {
		name     string
		referrer string
		want     string
	}{
		{name: "https with www", referrer: "https://www.google.com/search?q=x", want: "google.com"},
		{name: "plain host", referrer: "https://news.ycombinator.com", want: "news.ycombinator.com"},
		{name: "empty", referrer: "", want: ""},
		{name: "whitespace", referrer: "   ", want: ""},
		{name: "malformed", referrer: "://bad", want: ""},
		{name: "schemeless", referrer: "example.com/page", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, referrerDomain(tt.referrer))
		})
	}
}
