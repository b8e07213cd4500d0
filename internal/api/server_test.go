package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/talgya/bunkhouse/internal/catalog"
	"github.com/talgya/bunkhouse/internal/engine"
	"github.com/talgya/bunkhouse/internal/host"
	"github.com/talgya/bunkhouse/internal/persistence"
	"github.com/talgya/bunkhouse/internal/weather"
)

const testKey = "secret"

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	cat, err := catalog.New([]catalog.Definition{
		{ID: "bunks", SpaceCost: 2, BedCountOffset: 1},
		{ID: "lamp", SpaceCost: 1, RequiresPower: true, BasePowerConsumption: 10, RequiredUpgrades: []string{"bunks"}},
		{ID: "walls", SpaceCost: 3, MaterialCost: 10, AllowedMaterials: []string{"wood", "steel"}},
		{ID: "vault", SpaceCost: 500},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	s := &Server{
		Sim:      engine.NewSimulation(cat, weather.Fixed(8), nil),
		Eng:      engine.NewEngine(),
		AdminKey: testKey,
	}
	return s, s.Router()
}

func do(t *testing.T, h http.Handler, method, path, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if auth {
		req.Header.Set("Authorization", "Bearer "+testKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func createHost(t *testing.T, h http.Handler) engine.HostView {
	t.Helper()
	body := `{"name":"bunk a","kind":"second_floor","context":{"spawned":true,"has_power":true,"fuel_reserve":5,"total_space":20,"base_bed_count":1,"target_temp":21}}`
	rec := do(t, h, http.MethodPost, "/api/v1/hosts", body, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create host: %d %s", rec.Code, rec.Body.String())
	}
	return decode[engine.HostView](t, rec)
}

func TestAdminAuth(t *testing.T) {
	s, h := newTestServer(t)

	if rec := do(t, h, http.MethodPost, "/api/v1/hosts", `{"name":"x"}`, false); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: got %d", rec.Code)
	}

	s.AdminKey = ""
	if rec := do(t, h, http.MethodPost, "/api/v1/hosts", `{"name":"x"}`, true); rec.Code != http.StatusForbidden {
		t.Fatalf("admin disabled: got %d", rec.Code)
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/hosts", "", false); rec.Code != http.StatusOK {
		t.Fatalf("public read: got %d", rec.Code)
	}
}

func TestCreateHostValidation(t *testing.T) {
	_, h := newTestServer(t)
	cases := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"missing name", `{"kind":"basement"}`},
		{"unknown kind", `{"name":"x","kind":"attic"}`},
		{"negative fuel", `{"name":"x","context":{"fuel_reserve":-1}}`},
	}
	for _, tc := range cases {
		if rec := do(t, h, http.MethodPost, "/api/v1/hosts", tc.body, true); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: got %d", tc.name, rec.Code)
		}
	}

	view := createHost(t, h)
	if view.ID == "" || view.Kind != host.KindSecondFloor || view.State.BedCount != 1 {
		t.Fatalf("unexpected host %+v", view)
	}
}

func TestUpgradeLifecycle(t *testing.T) {
	_, h := newTestServer(t)
	id := createHost(t, h).ID
	base := "/api/v1/hosts/" + id

	rec := do(t, h, http.MethodPost, base+"/upgrades", `{"def":"bunks"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("install bunks: %d %s", rec.Code, rec.Body.String())
	}
	if v := decode[engine.HostView](t, rec); v.State.BedCount != 2 {
		t.Fatalf("bed count = %d", v.State.BedCount)
	}

	rec = do(t, h, http.MethodPost, base+"/upgrades", `{"def":"lamp"}`, true)
	if v := decode[engine.HostView](t, rec); v.State.Usage.PowerDraw <= 0 {
		t.Fatalf("lamp draws no power: %+v", v.State.Usage)
	}

	rec = do(t, h, http.MethodPost, base+"/upgrades/lamp/toggle", "", true)
	if v := decode[engine.HostView](t, rec); v.State.Usage.PowerDraw != 0 {
		t.Fatalf("toggled lamp still draws %v", v.State.Usage.PowerDraw)
	}

	if rec := do(t, h, http.MethodDelete, base+"/upgrades/bunks", "", true); rec.Code != http.StatusConflict {
		t.Fatalf("remove prerequisite: got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, base+"/upgrades/lamp?mode=one", "", true); rec.Code != http.StatusOK {
		t.Fatalf("remove lamp: %d %s", rec.Code, rec.Body.String())
	}

	do(t, h, http.MethodPost, base+"/upgrades", `{"def":"walls","material":"steel"}`, true)
	rec = do(t, h, http.MethodDelete, base+"/upgrades/walls?refund=1", "", true)
	ref := decode[host.Refund](t, rec)
	if ref.Instances != 1 || len(ref.Lines) != 1 || ref.Lines[0].Resource != "steel" || ref.Lines[0].Amount != 10 {
		t.Fatalf("unexpected refund %+v", ref)
	}

	events := decode[[]engine.Event](t, do(t, h, http.MethodGet, "/api/v1/events?host="+id, "", false))
	if len(events) == 0 {
		t.Fatalf("no events recorded for host")
	}
	for _, e := range events {
		if e.HostID != id {
			t.Fatalf("event for other host: %+v", e)
		}
	}
}

func TestErrorStatus(t *testing.T) {
	_, h := newTestServer(t)
	id := createHost(t, h).ID
	base := "/api/v1/hosts/" + id
	do(t, h, http.MethodPost, base+"/upgrades", `{"def":"walls","material":"wood"}`, true)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown host", http.MethodGet, "/api/v1/hosts/nope", "", http.StatusNotFound},
		{"unknown host install", http.MethodPost, "/api/v1/hosts/nope/upgrades", `{"def":"bunks"}`, http.StatusNotFound},
		{"not installed", http.MethodDelete, base + "/upgrades/bunks", "", http.StatusNotFound},
		{"already installed", http.MethodPost, base + "/upgrades", `{"def":"walls","material":"wood"}`, http.StatusConflict},
		{"missing prerequisite", http.MethodPost, base + "/upgrades", `{"def":"lamp"}`, http.StatusUnprocessableEntity},
		{"insufficient space", http.MethodPost, base + "/upgrades", `{"def":"vault"}`, http.StatusUnprocessableEntity},
		{"unknown definition", http.MethodPost, base + "/upgrades", `{"def":"bunkz"}`, http.StatusUnprocessableEntity},
		{"reinstall other material", http.MethodPost, base + "/upgrades", `{"def":"walls","material":"steel"}`, http.StatusConflict},
		{"missing def", http.MethodPost, base + "/upgrades", `{}`, http.StatusBadRequest},
		{"bad mode", http.MethodDelete, base + "/upgrades/walls?mode=some", "", http.StatusBadRequest},
		{"bad refund", http.MethodDelete, base + "/upgrades/walls?refund=2", "", http.StatusBadRequest},
		{"bad capability", http.MethodGet, "/api/v1/hosts?capability=flying", "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := do(t, h, tc.method, tc.path, tc.body, true)
		if rec.Code != tc.want {
			t.Fatalf("%s: got %d, want %d (%s)", tc.name, rec.Code, tc.want, rec.Body.String())
		}
	}
}

func TestContextPatch(t *testing.T) {
	_, h := newTestServer(t)
	id := createHost(t, h).ID
	path := "/api/v1/hosts/" + id + "/context"

	rec := do(t, h, http.MethodPost, path, `{"add_fuel":2.5,"base_bed_count":3}`, true)
	v := decode[engine.HostView](t, rec)
	if v.Context.FuelReserve != 7.5 || v.State.BedCount != 3 || !v.Context.HasPower {
		t.Fatalf("unexpected context %+v beds=%d", v.Context, v.State.BedCount)
	}

	if rec := do(t, h, http.MethodPost, path, `{"total_space":-1}`, true); rec.Code != http.StatusBadRequest {
		t.Fatalf("negative space: got %d", rec.Code)
	}
	v = decode[engine.HostView](t, do(t, h, http.MethodGet, "/api/v1/hosts/"+id, "", false))
	if v.Context.TotalSpace != 20 {
		t.Fatalf("rejected patch was applied: %+v", v.Context)
	}
}

func TestHostFilterAndReports(t *testing.T) {
	_, h := newTestServer(t)
	a := createHost(t, h).ID
	createHost(t, h)
	do(t, h, http.MethodPost, "/api/v1/hosts/"+a+"/upgrades", `{"def":"bunks"}`, true)

	views := decode[[]engine.HostView](t, do(t, h, http.MethodGet, "/api/v1/hosts?capability=multi_bed", "", false))
	if len(views) != 1 || views[0].ID != a {
		t.Fatalf("filtered hosts = %+v", views)
	}

	rep := decode[struct {
		Active struct {
			HostsWithUpgrades int `json:"hosts_with_upgrades"`
		} `json:"active"`
		Summary []struct {
			Def string `json:"def"`
		} `json:"summary"`
	}](t, do(t, h, http.MethodGet, "/api/v1/report", "", false))
	if rep.Active.HostsWithUpgrades != 1 || len(rep.Summary) != 1 || rep.Summary[0].Def != "bunks" {
		t.Fatalf("unexpected report %+v", rep)
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/hosts/"+a+"/report", "", false); rec.Code != http.StatusOK {
		t.Fatalf("inspect: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/hosts/nope/report", "", false); rec.Code != http.StatusNotFound {
		t.Fatalf("inspect unknown: %d", rec.Code)
	}

	if rec := do(t, h, http.MethodDelete, "/api/v1/hosts/"+a, "", true); rec.Code != http.StatusNoContent {
		t.Fatalf("delete host: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/hosts/"+a, "", false); rec.Code != http.StatusNotFound {
		t.Fatalf("deleted host still served: %d", rec.Code)
	}
}

func TestSpeed(t *testing.T) {
	s, h := newTestServer(t)
	if rec := do(t, h, http.MethodPost, "/api/v1/speed", `{"speed":2000}`, true); rec.Code != http.StatusBadRequest {
		t.Fatalf("out of range speed: %d", rec.Code)
	}
	do(t, h, http.MethodPost, "/api/v1/speed", `{"speed":4}`, true)
	if s.Eng.Speed() != 4 {
		t.Fatalf("speed = %v", s.Eng.Speed())
	}
	got := decode[map[string]float64](t, do(t, h, http.MethodGet, "/api/v1/speed", "", false))
	if got["speed"] != 4 {
		t.Fatalf("speed response %v", got)
	}
	st := decode[map[string]any](t, do(t, h, http.MethodGet, "/api/v1/status", "", false))
	if st["speed"] != 4.0 || st["season"] != "Spring" {
		t.Fatalf("status %v", st)
	}
}

func TestSnapshot(t *testing.T) {
	s, h := newTestServer(t)
	if rec := do(t, h, http.MethodPost, "/api/v1/snapshot", "", true); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("snapshot without db: %d", rec.Code)
	}

	db, err := persistence.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	s.DB = db
	createHost(t, h)

	if rec := do(t, h, http.MethodPost, "/api/v1/snapshot", "", true); rec.Code != http.StatusOK {
		t.Fatalf("snapshot: %d %s", rec.Code, rec.Body.String())
	}
	hosts, err := db.LoadHosts(s.Sim.Catalog)
	if err != nil || len(hosts) != 1 {
		t.Fatalf("saved hosts = %d, err %v", len(hosts), err)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := newTestServer(t)
	id := createHost(t, h).ID
	do(t, h, http.MethodPost, "/api/v1/hosts/"+id+"/upgrades", `{"def":"lamp"}`, true)

	body := do(t, h, http.MethodGet, "/metrics", "", false).Body.String()
	for _, want := range []string{
		`bunkhouse_host_beds{host="` + id + `",name="bunk a"} 1`,
		`bunkhouse_upgrade_errors_total{status="422"} 1`,
		`bunkhouse_http_requests_total{route="/api/v1/hosts",status="201"} 1`,
		`bunkhouse_tick 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatalf("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatalf("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatalf("limits are per client")
	}
	if got := rl.RetryAfter("a"); got != 61 {
		t.Fatalf("retry after = %d", got)
	}
	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Fatalf("window should reset")
	}
}

func TestRateLimitedAdmin(t *testing.T) {
	s, _ := newTestServer(t)
	s.Limiter = NewRateLimiter(1, time.Hour)
	h := s.Router()

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/speed", bytes.NewBufferString(`{"speed":1}`))
		req.Header.Set("Authorization", "Bearer "+testKey)
		req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}
	if rec := send(); rec.Code != http.StatusOK {
		t.Fatalf("first request: %d", rec.Code)
	}
	rec := send()
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("second request: %d retry=%q", rec.Code, rec.Header().Get("Retry-After"))
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/speed", "", false); rec.Code != http.StatusOK {
		t.Fatalf("reads are not limited: %d", rec.Code)
	}
}
