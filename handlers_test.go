package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"geozone-planner/internal/config"
	"geozone-planner/internal/geozone"
	"geozone-planner/internal/log"
	"geozone-planner/internal/projection"
	"geozone-planner/internal/timeutil"
)

func testServer(t *testing.T) (*server, http.Handler) {
	t.Helper()
	origin := projection.NewOrigin(50.85, 5.69, 48)
	store := config.NewStore()
	lat, lon := origin.ToGeodeticE7(r2.Vec{X: 500})
	require.NoError(t, store.SetCircle(0, lat, lon, 100*100))
	store.Zones[0].Type = config.TypeExclusive

	f := &config.File{
		Settings: config.Default(),
		Store:    store,
		Origin:   &config.Location{Lat: 50.85, Lon: 5.69, Alt: 48},
	}
	srv := newServer(f, timeutil.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)), log.Discard())
	return srv, srv.routes()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func cruising() geozone.VehicleState {
	return geozone.VehicleState{
		PositionHealthy: true,
		Armed:           true,
		Position:        r3.Vec{Z: 50},
		GroundCourse:    90,
		GroundSpeed:     5,
		Modes:           geozone.Modes{Angle: true},
		Home:            r3.Vec{X: 1000},
	}
}

func TestHealthBeforeFirstTick(t *testing.T) {
	_, h := testServer(t)

	rec := do(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	body := decode(t, rec)
	assert.Equal(t, "waiting for zones", body["status"])
	assert.Equal(t, false, body["active"])
}

func TestTickActivatesEngine(t *testing.T) {
	srv, h := testServer(t)
	st := cruising()

	rec := do(t, h, http.MethodPost, "/tick", tickRequest{State: &st})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["active"])

	status := body["status"].(map[string]any)
	assert.Equal(t, false, status["inside_nfz"])
	assert.Equal(t, "none", status["action"])

	// A step moves the vehicle along its course.
	rec = do(t, h, http.MethodPost, "/tick", tickRequest{Step: 2})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 10, srv.vehicle.State().Position.Y, 1e-9)

	rec = do(t, h, http.MethodGet, "/zones", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	zones := decode(t, rec)["zones"].([]any)
	require.Len(t, zones, 1)
	assert.Equal(t, "exclusive", zones[0].(map[string]any)["type"])
}

func TestTickRejectsBadRequests(t *testing.T) {
	_, h := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/tick", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/tick", tickRequest{Step: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/tick", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPreflight(t *testing.T) {
	_, h := testServer(t)
	rec := do(t, h, http.MethodOptions, "/rth", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "POST, GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Empty(t, rec.Body.String())
}

func TestRTHPlansDetour(t *testing.T) {
	srv, h := testServer(t)

	rec := do(t, h, http.MethodPost, "/rth", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	st := cruising()
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/tick", tickRequest{State: &st}).Code)

	rec = do(t, h, http.MethodPost, "/rth", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp rthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Positive(t, resp.Result)
	require.Len(t, resp.Waypoints, resp.Result)
	assert.Empty(t, resp.NoWayHomeAction)

	for _, wp := range resp.Waypoints {
		back := srv.origin.ToLocal(orb.Point{wp.Lon, wp.Lat})
		assert.InDelta(t, wp.Local.X, back.X, 0.01)
		assert.InDelta(t, wp.Local.Y, back.Y, 0.01)
	}

	// Planning again gives the same detour.
	rec = do(t, h, http.MethodPost, "/rth", nil)
	var again rthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	if diff := cmp.Diff(resp, again); diff != "" {
		t.Errorf("second plan differs (-first +second):\n%s", diff)
	}
}

func TestOriginFromFirstVertex(t *testing.T) {
	store := config.NewStore()
	require.NoError(t, store.SetCircle(3, 508500000, 56900000, 5000))

	o := originFor(&config.File{Store: store})
	assert.InDelta(t, 50.85, o.Lat, 1e-9)
	assert.InDelta(t, 5.69, o.Lon, 1e-9)

	o = originFor(&config.File{Store: config.NewStore()})
	assert.Equal(t, 0.0, o.Lat)
}
