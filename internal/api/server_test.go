package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripsync/pkg/catalog"
	"tripsync/pkg/geo"
	"tripsync/pkg/location"
	"tripsync/pkg/model"
	"tripsync/pkg/navigation"
	"tripsync/pkg/peer"
	"tripsync/pkg/proximity"
	"tripsync/pkg/routing"
	"tripsync/pkg/routing/straight"
	"tripsync/pkg/session"
	"tripsync/pkg/surface"
	"tripsync/pkg/tracker"
)

var (
	zocalo      = geo.Point{Lat: 19.4326, Lon: -99.1332}
	bellasArtes = geo.Point{Lat: 19.4352, Lon: -99.1412}
)

type recordingFollower struct {
	mu    sync.Mutex
	paths []orb.LineString
}

func (f *recordingFollower) SetPath(ls orb.LineString) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, ls)
}

func (f *recordingFollower) all() []orb.LineString {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]orb.LineString(nil), f.paths...)
}

type countingPublisher struct {
	n atomic.Int32
}

func (p *countingPublisher) Publish(peer.Message) { p.n.Add(1) }

type fixture struct {
	srv      *httptest.Server
	hub      *location.Hub
	nav      *navigation.Navigator
	engine   *proximity.Engine
	board    *surface.Board
	journal  *session.Manager
	follower *recordingFollower
	pushes   *countingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cat, err := catalog.New([]model.PointOfInterest{
		{ID: "zocalo", DisplayName: "Zócalo", Coordinate: zocalo},
		{ID: "bellas-artes", DisplayName: "Palacio de Bellas Artes", Coordinate: bellasArtes},
	}, catalog.Options{CollectibleBase: 100})
	require.NoError(t, err)

	f := &fixture{
		hub:      location.NewHub(nil),
		board:    surface.NewBoard(true),
		journal:  session.NewManager(0),
		follower: &recordingFollower{},
		pushes:   &countingPublisher{},
	}
	t.Cleanup(func() { f.hub.Close() })

	planner := routing.NewPlanner(routing.NewResolver(straight.New(100), routing.Options{}))
	f.nav = navigation.New(navigation.Options{
		Fixes:   f.hub,
		Surface: surface.NewSession(f.board),
		Recalc:  planner,
		Journal: f.journal,
	})
	f.engine = proximity.NewEngine(cat, proximity.NewMemoryLedger(), proximity.Options{})

	rec := peer.NewRecommender(cat, f.pushes, peer.RecommenderOptions{})

	tr := tracker.New()
	tr.TrackSuccess(string(peer.DomainNavigation))

	srv := NewServer(":0", Handlers{
		Routes:    NewRoutesHandler(planner),
		Trip:      NewTripHandler(f.nav, planner, f.journal, f.follower),
		Fix:       NewFixHandler(f.hub),
		Proximity: NewProximityHandler(f.engine),
		Recommend: NewRecommendHandler(rec, f.hub),
		Stats:     NewStatsHandler(tr, nil),
		Card:      f.board,
	}, func() {})
	f.srv = httptest.NewServer(srv.Handler)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func planBody(modes ...string) map[string]any {
	return map[string]any{
		"origin":      map[string]float64{"lat": zocalo.Lat, "lon": zocalo.Lon},
		"destination": map[string]float64{"lat": bellasArtes.Lat, "lon": bellasArtes.Lon},
		"modes":       modes,
	}
}

func TestHealthAndVersion(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/version", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	v := decode[map[string]string](t, resp)
	assert.NotEmpty(t, v["version"])
}

func TestPlanRoutes(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/routes", planBody())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[routesResponse](t, resp)

	assert.ElementsMatch(t, model.AllModes, body.Modes)
	walk := body.Routes[model.ModePedestrian]
	require.NotEmpty(t, walk)
	assert.True(t, walk[0].IsFastest)

	require.Len(t, body.Summary, len(body.Modes))
	walkSummary := body.Summary[model.ModePedestrian]
	assert.Equal(t, walk[0].Duration, walkSummary.Duration)
	assert.Equal(t, walk[0].Distance, walkSummary.Distance)
	assert.Less(t, body.Summary[model.ModeAutomobile].Duration, walkSummary.Duration)
}

func TestPlanRoutes_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body any
	}{
		{"unknown mode", planBody("hovercraft")},
		{"bad latitude", map[string]any{
			"origin":      map[string]float64{"lat": 123, "lon": 0},
			"destination": map[string]float64{"lat": 0, "lon": 0},
		}},
		{"unknown field", map[string]any{"from": "here"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/api/routes", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestArrows(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/routes/arrows?mode=pedestrian", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	f.do(t, http.MethodPost, "/api/routes", planBody("pedestrian"))
	resp = f.do(t, http.MethodGet, "/api/routes/arrows?mode=pedestrian&index=0", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	arrows := decode[[]routing.Arrow](t, resp)
	assert.NotEmpty(t, arrows)

	resp = f.do(t, http.MethodGet, "/api/routes/arrows?mode=pedestrian&index=9", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTripLifecycle(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/trip/start", map[string]any{"mode": "pedestrian"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "start before planning")

	f.do(t, http.MethodPost, "/api/routes", planBody("pedestrian", "automobile"))

	resp = f.do(t, http.MethodPost, "/api/trip/start", map[string]any{
		"mode": "pedestrian", "index": 0, "destination_name": "Bellas Artes",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	trip := decode[tripResponse](t, resp)
	assert.True(t, trip.IsActive)
	assert.Equal(t, navigation.PhaseActive, trip.Phase)
	assert.Equal(t, "Bellas Artes", trip.DestinationName)
	assert.Equal(t, bellasArtes, trip.Destination)
	assert.NotEmpty(t, trip.Instruction)
	paths := f.follower.all()
	require.Len(t, paths, 1)
	assert.GreaterOrEqual(t, len(paths[0]), 2)

	card, ok := f.board.Current()
	require.True(t, ok)
	assert.True(t, card.Active)

	resp = f.do(t, http.MethodGet, "/api/status/live", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	live := decode[surface.Card](t, resp)
	assert.Equal(t, "Bellas Artes", live.Snapshot.DestinationName)

	f.journal.AddEvent(&model.TripEvent{Type: model.EventCollected, Title: "Zócalo"})
	resp = f.do(t, http.MethodGet, "/api/trip", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[tripResponse](t, resp).Collected)

	resp = f.do(t, http.MethodPost, "/api/trip/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	trip = decode[tripResponse](t, resp)
	assert.False(t, trip.IsActive)
	assert.Equal(t, navigation.PhaseIdle, trip.Phase)

	resp = f.do(t, http.MethodGet, "/api/trip/events", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	events := decode[[]model.TripEvent](t, resp)
	require.Len(t, events, 3)
	assert.Equal(t, model.EventTripStarted, events[0].Type)
	assert.Equal(t, model.EventCollected, events[1].Type)
	assert.Equal(t, model.EventTripStopped, events[2].Type)

	resp = f.do(t, http.MethodPost, "/api/trip/start", map[string]any{"mode": "automobile"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, decode[tripResponse](t, resp).Collected, "a new trip starts a fresh journal")

	resp = f.do(t, http.MethodGet, "/api/trip/events", nil)
	events = decode[[]model.TripEvent](t, resp)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventTripStarted, events[0].Type)
}

func TestTripStart_Errors(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/routes", planBody("pedestrian"))

	resp := f.do(t, http.MethodPost, "/api/trip/start", map[string]any{"mode": "pedestrian", "index": 5})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/trip/start", map[string]any{"mode": "teleport"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/trip/start", map[string]any{"mode": "pedestrian", "index": -1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTripEvents_Since(t *testing.T) {
	f := newFixture(t)
	f.journal.AddEvent(&model.TripEvent{Type: model.EventCollected, Title: "old", Timestamp: time.Now().Add(-time.Hour)})
	f.journal.AddEvent(&model.TripEvent{Type: model.EventCollected, Title: "new", Timestamp: time.Now()})

	since := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339)
	resp := f.do(t, http.MethodGet, "/api/trip/events?since="+since, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	events := decode[[]model.TripEvent](t, resp)
	require.Len(t, events, 1)
	assert.Equal(t, "new", events[0].Title)

	resp = f.do(t, http.MethodGet, "/api/trip/events?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFix(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/fix", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/fix", map[string]any{"lat": zocalo.Lat, "lon": zocalo.Lon, "heading": 90.0})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/fix", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fix := decode[location.Fix](t, resp)
	assert.Equal(t, zocalo, fix.Coord)
	require.NotNil(t, fix.Heading)
	assert.InDelta(t, 90.0, *fix.Heading, 1e-9)

	resp = f.do(t, http.MethodPost, "/api/fix", map[string]any{"lat": 0, "lon": 0, "heading": 400.0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFix_HubClosed(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.hub.Close())

	resp := f.do(t, http.MethodPost, "/api/fix", map[string]any{"lat": zocalo.Lat, "lon": zocalo.Lon})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRecommendations(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/recommendations", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "no fix yet")

	resp = f.do(t, http.MethodGet, "/api/recommendations?lat=91&lon=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = f.do(t, http.MethodGet, "/api/recommendations?lat=abc&lon=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/recommendations?lat=19.4326&lon=-99.1332", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	recs := decode[[]peer.Recommendation](t, resp)
	require.Len(t, recs, 1, "Bellas Artes is beyond the 500 m radius")
	assert.Equal(t, "zocalo", recs[0].POI.ID)
	assert.Equal(t, 100, recs[0].POI.CollectibleID)

	require.NoError(t, f.hub.Publish(location.Fix{Coord: bellasArtes}))
	resp = f.do(t, http.MethodGet, "/api/recommendations", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	recs = decode[[]peer.Recommendation](t, resp)
	require.NotEmpty(t, recs)
	assert.Equal(t, "bellas-artes", recs[0].POI.ID)

	assert.Zero(t, f.pushes.n.Load(), "previews are never pushed")
}

func TestCollect(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/collect", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "no focus yet")

	f.engine.OnFix(location.Fix{Coord: geo.DestinationPoint(zocalo, 20, 0), Timestamp: time.Now()})

	resp = f.do(t, http.MethodGet, "/api/proximity", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[model.ProximityState](t, resp)
	require.NotNil(t, st.Focus)
	assert.Equal(t, "zocalo", st.Focus.POI.ID)
	assert.True(t, st.Collectable)

	resp = f.do(t, http.MethodPost, "/api/collect", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[proximity.CollectResult](t, resp)
	assert.Equal(t, 100, res.CollectibleID)
	assert.False(t, res.AlreadyCollected)

	resp = f.do(t, http.MethodPost, "/api/collect", map[string]string{"poi_id": "zocalo"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res = decode[proximity.CollectResult](t, resp)
	assert.True(t, res.AlreadyCollected)

	resp = f.do(t, http.MethodPost, "/api/collect", map[string]string{"poi_id": "atlantis"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/collection", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	coll := decode[map[string][]int](t, resp)
	assert.Equal(t, []int{100}, coll["collected"])
}

func TestLiveStatus_NoCard(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/status/live", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[StatsResponse](t, resp)
	assert.Equal(t, int64(1), stats.Channels[string(peer.DomainNavigation)].Success)
	assert.Positive(t, stats.Diagnostics.Goroutines)
}

func TestMirrorEndpoint(t *testing.T) {
	m := peer.NewMirror()
	m.Apply(peer.NavigationUpdate{IsActive: true, DestName: "Bellas Artes", DistanceRemaining: 420})

	srv := httptest.NewServer(NewServer(":0", Handlers{Mirror: m}, func() {}).Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/mirror")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[peer.MirrorState](t, resp)
	require.NotNil(t, st.Navigation)
	assert.Equal(t, "Bellas Artes", st.Navigation.DestName)

	resp2, err := http.Get(srv.URL + "/api/trip")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode, "phone routes are not registered")
}
