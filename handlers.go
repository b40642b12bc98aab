package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"geozone-planner/internal/config"
	"geozone-planner/internal/geozone"
	"geozone-planner/internal/log"
	"geozone-planner/internal/projection"
	"geozone-planner/internal/sim"
	"geozone-planner/internal/timeutil"
)

// server owns one engine and the simulated vehicle it flies. Every handler
// takes mu, the engine is single-threaded.
type server struct {
	mu       sync.Mutex
	engine   *geozone.Engine
	vehicle  *sim.Vehicle
	clock    timeutil.Clock
	origin   *projection.Origin
	settings config.Settings
	log      *log.Logger
}

// originFor returns the origin named by the zone file, or the first stored
// vertex. A file without either is flown around 0,0.
func originFor(f *config.File) *projection.Origin {
	if f.Origin != nil {
		return projection.NewOrigin(f.Origin.Lat, f.Origin.Lon, f.Origin.Alt)
	}
	for _, v := range f.Store.Vertices {
		if v.ZoneID >= 0 {
			return projection.NewOriginE7(v.Lat, v.Lon, 0)
		}
	}
	return projection.NewOrigin(0, 0, 0)
}

func newServer(f *config.File, clock timeutil.Clock, logger *log.Logger) *server {
	origin := originFor(f)
	vehicle := sim.New(geozone.VehicleState{
		PositionHealthy: true,
		HomeAltitude:    origin.Alt,
	})
	return &server{
		engine:   geozone.New(f.Store, f.Settings, vehicle, vehicle, origin, geozone.WithLogger(logger)),
		vehicle:  vehicle,
		clock:    clock,
		origin:   origin,
		settings: f.Settings,
		log:      logger,
	}
}

// corsMiddleware adds CORS headers to allow frontend requests
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(corsMiddleware)
	r.HandleFunc("/tick", s.tickHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/status", s.statusHandler).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/rth", s.rthHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/zones", s.zonesHandler).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet, http.MethodOptions)
	return r
}

type tickRequest struct {
	// State replaces the simulated state before the tick when set.
	State *geozone.VehicleState `json:"state,omitempty"`
	// Step advances the simulation by this many seconds first.
	Step float64 `json:"step"`
}

type stateResponse struct {
	Status   geozone.Status       `json:"status"`
	State    geozone.VehicleState `json:"state"`
	Commands sim.Commands         `json:"commands"`
	Active   bool                 `json:"active"`
}

// POST /tick - Advance the simulation and run one engine update
func (s *server) tickHandler(w http.ResponseWriter, r *http.Request) {
	var req tickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.Warn("invalid tick request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Step < 0 {
		http.Error(w, "step must not be negative", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.State != nil {
		s.vehicle.SetState(*req.State)
	}
	if req.Step > 0 {
		dt := time.Duration(req.Step * float64(time.Second))
		s.vehicle.Step(dt)
		if c, ok := s.clock.(interface{ Advance(time.Duration) }); ok {
			c.Advance(dt)
		}
	}
	s.engine.Update(s.clock.Now())

	writeJSON(w, s.log, s.snapshot())
}

// GET /status - Current engine status and vehicle state
func (s *server) statusHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, s.log, s.snapshot())
}

func (s *server) snapshot() stateResponse {
	return stateResponse{
		Status:   s.engine.Status(),
		State:    s.vehicle.State(),
		Commands: s.vehicle.Commands(),
		Active:   s.engine.IsActive(),
	}
}

type waypoint struct {
	Local r3.Vec  `json:"local"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

type rthResponse struct {
	// Result is the number of detour waypoints, 0 for the direct way home
	// and -1 when there is none.
	Result          int        `json:"result"`
	Waypoints       []waypoint `json:"waypoints"`
	MaxHomeAltitude *float64   `json:"max_home_altitude,omitempty"`
	// NoWayHomeAction is what the flight controller falls back to when no
	// way home exists.
	NoWayHomeAction string `json:"no_way_home_action,omitempty"`
}

// POST /rth - Start RTH and plan the way home
func (s *server) rthHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.engine.IsActive() {
		http.Error(w, "geozones not active, send a tick with a healthy position first", http.StatusConflict)
		return
	}

	// Every request plans from scratch.
	s.engine.ResetRTH()
	s.engine.SetupRTH()
	s.engine.UpdateMaxHomeAltitude()
	n := s.engine.CheckForNFZAtCourse()

	resp := rthResponse{Result: n, Waypoints: []waypoint{}}
	for _, wp := range s.engine.RTHWaypoints() {
		p := s.origin.ToGeodetic(r2.Vec{X: wp.X, Y: wp.Y})
		resp.Waypoints = append(resp.Waypoints, waypoint{Local: wp, Lat: p.Lat(), Lon: p.Lon()})
	}
	if st := s.engine.Status(); st.HomeHasMaxAltitude {
		alt := st.MaxHomeAltitude
		resp.MaxHomeAltitude = &alt
	}
	if n == geozone.RouteNone {
		resp.NoWayHomeAction = s.settings.NoWayHomeAction.String()
	}

	s.log.Info("rth planned", "result", n, "waypoints", len(resp.Waypoints))
	writeJSON(w, s.log, resp)
}

// GET /zones - Runtime zones, enabled ones first
func (s *server) zonesHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	zones := s.engine.Zones()
	if zones == nil {
		zones = []geozone.ZoneView{}
	}
	writeJSON(w, s.log, map[string]any{
		"zones":  zones,
		"active": s.engine.IsActive(),
	})
}

// GET /health - Health check endpoint
func (s *server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := "ready"
	if !s.engine.IsActive() {
		status = "waiting for zones"
	}
	writeJSON(w, s.log, map[string]any{
		"status":          status,
		"active":          s.engine.IsActive(),
		"blocking_arming": s.engine.IsBlockingArming(),
		"action":          s.engine.ActionState(),
	})
}

func writeJSON(w http.ResponseWriter, l *log.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		l.Warn("writing response", "error", err)
	}
}
