// Package api provides the HTTP API for the bunkhouse simulation.
// GET endpoints are public (read-only observation).
// Mutating endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/talgya/bunkhouse/internal/engine"
	"github.com/talgya/bunkhouse/internal/host"
	"github.com/talgya/bunkhouse/internal/ledger"
	"github.com/talgya/bunkhouse/internal/persistence"
	"github.com/talgya/bunkhouse/internal/report"
)

// DefaultRefund is the share of construction cost returned on removal when
// the request does not specify one.
const DefaultRefund = 0.5

// Server serves the simulation over HTTP.
type Server struct {
	Sim         *engine.Simulation
	Eng         *engine.Engine
	DB          *persistence.DB // Optional; snapshots are disabled without it
	Port        int
	AdminKey    string   // Bearer token for admin endpoints. Empty = admin disabled.
	CORSOrigins []string // Allowed browser origins

	Metrics *Metrics
	Limiter *RateLimiter // Applied to admin endpoints; nil = unlimited
}

// Router builds the route table with metrics middleware.
func (s *Server) Router() *mux.Router {
	if s.Metrics == nil {
		s.Metrics = NewMetrics(s.Sim)
	}

	r := mux.NewRouter()
	r.Use(s.Metrics.Middleware)
	r.Handle("/metrics", s.Metrics.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()

	// Public endpoints.
	v1.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/catalog", s.handleCatalog).Methods(http.MethodGet)
	v1.HandleFunc("/hosts", s.handleHosts).Methods(http.MethodGet)
	v1.HandleFunc("/hosts/{id}", s.handleHost).Methods(http.MethodGet)
	v1.HandleFunc("/hosts/{id}/report", s.handleInspect).Methods(http.MethodGet)
	v1.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	v1.HandleFunc("/report", s.handleReport).Methods(http.MethodGet)
	v1.HandleFunc("/speed", s.handleGetSpeed).Methods(http.MethodGet)

	// Admin endpoints.
	admin := v1.NewRoute().Subrouter()
	admin.Use(s.adminOnly)
	if s.Limiter != nil {
		admin.Use(s.Limiter.Middleware)
	}
	admin.HandleFunc("/hosts", s.handleCreateHost).Methods(http.MethodPost)
	admin.HandleFunc("/hosts/{id}", s.handleDeleteHost).Methods(http.MethodDelete)
	admin.HandleFunc("/hosts/{id}/context", s.handleContext).Methods(http.MethodPost)
	admin.HandleFunc("/hosts/{id}/upgrades", s.handleInstall).Methods(http.MethodPost)
	admin.HandleFunc("/hosts/{id}/upgrades/{def}/toggle", s.handleToggle).Methods(http.MethodPost)
	admin.HandleFunc("/hosts/{id}/upgrades/{def}", s.handleRemove).Methods(http.MethodDelete)
	admin.HandleFunc("/speed", s.handleSetSpeed).Methods(http.MethodPost)
	admin.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodPost)

	return r
}

// Handler wraps the router with CORS and access logging.
func (s *Server) Handler() http.Handler {
	origins := append([]string{"http://localhost:5173", "http://localhost:3000"}, s.CORSOrigins...)
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	return handlers.LoggingHandler(os.Stdout, cors(s.Router()))
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly requires bearer token auth.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no BUNKHOUSE_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnknownHost), errors.Is(err, ledger.ErrNotInstalled):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrAlreadyInstalled), errors.Is(err, ledger.ErrDependentUpgradesExist):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrMissingPrerequisite),
		errors.Is(err, ledger.ErrInsufficientSpace),
		errors.Is(err, ledger.ErrInvalidDefinition):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}

// writeUpgradeError also counts the rejection.
func (s *Server) writeUpgradeError(w http.ResponseWriter, err error) {
	s.Metrics.UpgradeRejected(statusFor(err))
	s.writeError(w, err)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Sim.Status()
	resp := map[string]any{
		"name":         "bunkhouse",
		"tick":         st.Tick,
		"sim_time":     st.SimTime,
		"season":       st.Season,
		"outdoor_temp": st.OutdoorTemp,
		"weather":      st.Weather,
		"stats":        st.Stats,
	}
	if s.Eng != nil {
		resp["speed"] = s.Eng.Speed()
	}
	writeJSON(w, resp)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Catalog)
}

// handleHosts lists hosts, optionally filtered by ?capability=climate,powered.
func (s *Server) handleHosts(w http.ResponseWriter, r *http.Request) {
	var caps []engine.Capability
	if raw := r.URL.Query().Get("capability"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			c, ok := engine.ParseCapability(strings.TrimSpace(name))
			if !ok {
				http.Error(w, fmt.Sprintf("unknown capability %q", name), http.StatusBadRequest)
				return
			}
			caps = append(caps, c)
		}
	}
	writeJSON(w, s.Sim.HostViews(caps...))
}

func (s *Server) handleHost(w http.ResponseWriter, r *http.Request) {
	view, err := s.Sim.HostView(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, view)
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var (
		ins report.Inspection
		ok  bool
	)
	s.Sim.Locked(func() {
		var h *host.Host
		if h, ok = s.Sim.Hosts.Get(id); ok {
			ins = report.Inspect(h)
		}
	})
	if !ok {
		s.writeError(w, fmt.Errorf("%w: %s", engine.ErrUnknownHost, id))
		return
	}
	writeJSON(w, ins)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var resp struct {
		Active  report.ActiveReport  `json:"active"`
		Summary []report.SummaryLine `json:"summary"`
	}
	s.Sim.Locked(func() {
		hosts := s.Sim.Hosts.All()
		resp.Active = report.Active(hosts)
		resp.Summary = report.Summary(hosts)
	})
	writeJSON(w, resp)
}

// handleEvents returns recent events, optionally only those of ?host=<id>.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= engine.MaxEvents {
			limit = n
		}
	}

	events := s.Sim.RecentEvents(0)
	if hostID := r.URL.Query().Get("host"); hostID != "" {
		var filtered []engine.Event
		for _, e := range events {
			if e.HostID == hostID {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	if events == nil {
		events = []engine.Event{}
	}
	writeJSON(w, events[start:])
}

type createHostRequest struct {
	Name    string       `json:"name"`
	Kind    string       `json:"kind"`
	Context host.Context `json:"context"`
}

func (s *Server) handleCreateHost(w http.ResponseWriter, r *http.Request) {
	var req createHostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if req.Kind == "" {
		req.Kind = host.KindSecondFloor
	}
	if !host.ValidKind(req.Kind) {
		http.Error(w, fmt.Sprintf("unknown host kind %q", req.Kind), http.StatusBadRequest)
		return
	}
	if err := validateContext(req.Context); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	view := s.Sim.CreateHost(req.Name, req.Kind, req.Context)
	slog.Info("host created", "id", view.ID, "name", view.Name, "kind", view.Kind)
	writeJSONStatus(w, http.StatusCreated, view)
}

func (s *Server) handleDeleteHost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Sim.RemoveHost(id); err != nil {
		s.writeError(w, err)
		return
	}
	slog.Info("host removed", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// contextPatch updates only the fields that are present. The outdoor
// temperature belongs to the weather source and cannot be set.
type contextPatch struct {
	Spawned      *bool    `json:"spawned"`
	HasPower     *bool    `json:"has_power"`
	FuelReserve  *float64 `json:"fuel_reserve"`
	AddFuel      *float64 `json:"add_fuel"`
	TotalSpace   *float64 `json:"total_space"`
	BaseBedCount *int     `json:"base_bed_count"`
	TargetTemp   *float64 `json:"target_temp"`
}

func (p contextPatch) apply(c *host.Context) {
	if p.Spawned != nil {
		c.Spawned = *p.Spawned
	}
	if p.HasPower != nil {
		c.HasPower = *p.HasPower
	}
	if p.FuelReserve != nil {
		c.FuelReserve = *p.FuelReserve
	}
	if p.AddFuel != nil {
		c.FuelReserve += *p.AddFuel
	}
	if p.TotalSpace != nil {
		c.TotalSpace = *p.TotalSpace
	}
	if p.BaseBedCount != nil {
		c.BaseBedCount = *p.BaseBedCount
	}
	if p.TargetTemp != nil {
		c.TargetTemp = *p.TargetTemp
	}
}

func validateContext(c host.Context) error {
	switch {
	case c.FuelReserve < 0:
		return errors.New("fuel_reserve must not be negative")
	case c.TotalSpace < 0:
		return errors.New("total_space must not be negative")
	case c.BaseBedCount < 0:
		return errors.New("base_bed_count must not be negative")
	}
	return nil
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	var patch contextPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	var invalid error
	view, err := s.Sim.UpdateContext(mux.Vars(r)["id"], func(c *host.Context) {
		next := *c
		patch.apply(&next)
		if invalid = validateContext(next); invalid == nil {
			*c = next
		}
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	if invalid != nil {
		http.Error(w, invalid.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, view)
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Def      string `json:"def"`
		Material string `json:"material"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Def == "" {
		http.Error(w, "invalid json: def is required", http.StatusBadRequest)
		return
	}

	id := mux.Vars(r)["id"]
	view, err := s.Sim.Install(id, req.Def, req.Material)
	if err != nil {
		s.writeUpgradeError(w, err)
		return
	}
	slog.Info("upgrade installed", "host", id, "def", req.Def, "material", req.Material)
	writeJSON(w, view)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	view, err := s.Sim.Toggle(vars["id"], vars["def"])
	if err != nil {
		s.writeUpgradeError(w, err)
		return
	}
	writeJSON(w, view)
}

// handleRemove deconstructs an upgrade. ?mode=one removes a single instance
// (default all); ?refund sets the refunded share of cost, 0 to 1.
func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	q := r.URL.Query()

	all := true
	switch q.Get("mode") {
	case "", "all":
	case "one":
		all = false
	default:
		http.Error(w, "mode must be all or one", http.StatusBadRequest)
		return
	}

	pct := DefaultRefund
	if raw := q.Get("refund"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			http.Error(w, "refund must be between 0 and 1", http.StatusBadRequest)
			return
		}
		pct = v
	}

	ref, err := s.Sim.RemoveUpgrade(vars["id"], vars["def"], all, pct)
	if err != nil {
		s.writeUpgradeError(w, err)
		return
	}
	slog.Info("upgrade removed", "host", vars["id"], "def", vars["def"], "instances", ref.Instances)
	writeJSON(w, ref)
}

func (s *Server) handleGetSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not available", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleSetSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not available", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Speed < 0 || req.Speed > 1000 {
		http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
		return
	}
	s.Eng.SetSpeed(req.Speed)
	slog.Info("speed changed", "speed", req.Speed)
	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	var err error
	s.Sim.Locked(func() { err = s.DB.SaveState(s.Sim) })
	if err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"tick":    s.Sim.CurrentTick(),
		"message": "snapshot saved",
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
