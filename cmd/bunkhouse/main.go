// Command bunkhouse runs the bunkhouse upgrade and climate simulation.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/talgya/bunkhouse/internal/api"
	"github.com/talgya/bunkhouse/internal/catalog"
	"github.com/talgya/bunkhouse/internal/engine"
	"github.com/talgya/bunkhouse/internal/entropy"
	"github.com/talgya/bunkhouse/internal/host"
	"github.com/talgya/bunkhouse/internal/persistence"
	"github.com/talgya/bunkhouse/internal/weather"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("bunkhouse: upgrade ledger and climate simulation")

	dbPath := envOrDefault("BUNKHOUSE_DB", "data/bunkhouse.db")
	apiPort := envIntOrDefault("BUNKHOUSE_PORT", 8080)

	// ── Catalog ───────────────────────────────────────────────────────
	cat := catalog.Default()
	if path := os.Getenv("BUNKHOUSE_CATALOG"); path != "" {
		loaded, err := catalog.LoadFile(path)
		if err != nil {
			slog.Error("failed to load catalog", "path", path, "error", err)
			os.Exit(1)
		}
		cat = loaded
	}
	slog.Info("catalog ready", "definitions", cat.Len())

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(dbPath), 0755)
	db, err := persistence.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", dbPath)

	// ── Weather ───────────────────────────────────────────────────────
	seed := weatherSeed(db)
	noise := weather.NewNoiseModel(seed)
	client := weather.NewClient(os.Getenv("OPENWEATHER_API_KEY"), os.Getenv("OPENWEATHER_LOCATION"))
	slog.Info("weather seed", "seed", seed)
	if client != nil {
		slog.Info("live weather enabled (OpenWeatherMap)")
	} else {
		slog.Warn("OPENWEATHER_API_KEY not set, outdoor temperature from noise model only")
	}
	src := weather.NewLive(client, noise)

	// ── Load or Seed Hosts ────────────────────────────────────────────
	var hosts []*host.Host
	var events []engine.Event
	var startTick uint64
	var startSeason uint8

	if db.HasState() {
		slog.Info("found saved state, loading...")

		var loadErr error
		hosts, loadErr = db.LoadHosts(cat)
		if loadErr != nil {
			slog.Error("failed to load hosts", "error", loadErr)
			os.Exit(1)
		}
		events, loadErr = db.LoadEvents(engine.MaxEvents)
		if loadErr != nil {
			slog.Error("failed to load events", "error", loadErr)
			os.Exit(1)
		}

		startTick = db.LastTick()
		if seasonStr, err := db.GetMeta("season"); err == nil {
			if s, err := strconv.ParseUint(seasonStr, 10, 8); err == nil {
				startSeason = uint8(s)
			}
		}

		slog.Info("state restored",
			"hosts", len(hosts),
			"events", len(events),
			"tick", startTick,
			"season", engine.SeasonName(startSeason),
			"sim_time", engine.SimTime(startTick),
		)
	}

	// ── Simulation ────────────────────────────────────────────────────
	sim := engine.NewSimulation(cat, src, hosts)
	sim.Events = events
	sim.LastTick = startTick
	sim.CurrentSeason = startSeason

	if startTick == 0 && sim.Hosts.Len() == 0 {
		slog.Info("no saved state found, seeding sample hosts...")
		seedHosts(sim)
		var saveErr error
		sim.Locked(func() { saveErr = db.SaveState(sim) })
		if saveErr != nil {
			slog.Error("initial save failed", "error", saveErr)
		}
	}

	eng := engine.NewEngine()
	eng.Tick = startTick

	// Wire tick callbacks, auto-save every sim-day.
	eng.OnTick = sim.TickMinute
	eng.OnHour = sim.TickHour
	eng.OnDay = func(tick uint64) {
		sim.TickDay(tick)
		var saveErr error
		sim.Locked(func() { saveErr = db.SaveState(sim) })
		if saveErr != nil {
			slog.Error("daily save failed", "error", saveErr)
		}
	}
	eng.OnWeek = sim.TickWeek
	eng.OnSeason = sim.TickSeason

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("BUNKHOUSE_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("BUNKHOUSE_ADMIN_KEY not set, admin endpoints will be disabled")
	}

	var origins []string
	if v := os.Getenv("BUNKHOUSE_CORS_ORIGINS"); v != "" {
		origins = strings.Split(v, ",")
	}

	apiServer := &api.Server{
		Sim:         sim,
		Eng:         eng,
		DB:          db,
		Port:        apiPort,
		AdminKey:    adminKey,
		CORSOrigins: origins,
		Limiter:     api.NewRateLimiter(envIntOrDefault("BUNKHOUSE_ADMIN_RATE", 60), time.Minute),
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	fmt.Printf("\nBunkhouse is running: %d hosts.\n", sim.Hosts.Len())
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", apiPort)
	if startTick > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", startTick, engine.SimTime(startTick))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run()

	// Final save on shutdown.
	slog.Info("final save...")
	var saveErr error
	sim.Locked(func() { saveErr = db.SaveState(sim) })
	if saveErr != nil {
		slog.Error("final save failed", "error", saveErr)
	}

	fmt.Println("Simulation stopped. State saved.")
}

// seedHosts registers a loft and a basement with a few upgrades each.
func seedHosts(sim *engine.Simulation) {
	type install struct{ def, material string }
	samples := []struct {
		name     string
		kind     string
		ctx      host.Context
		installs []install
	}{
		{
			name: "North Loft", kind: host.KindSecondFloor,
			ctx: host.Context{Spawned: true, HasPower: true, FuelReserve: 200, TotalSpace: 40, BaseBedCount: 1, TargetTemp: 21},
			installs: []install{
				{"partition_walls", "wood"},
				{"double_bunks", "wood"},
				{"wood_stove", ""},
				{"reading_lamps", ""},
			},
		},
		{
			name: "Cellar Dorm", kind: host.KindBasement,
			ctx: host.Context{Spawned: true, HasPower: true, FuelReserve: 50, TotalSpace: 30, BaseBedCount: 2, TargetTemp: 20},
			installs: []install{
				{"insulated_walls", ""},
				{"heat_pump", ""},
				{"dehumidifier", ""},
			},
		},
	}

	for _, s := range samples {
		view := sim.CreateHost(s.name, s.kind, s.ctx)
		for _, in := range s.installs {
			if _, err := sim.Install(view.ID, in.def, in.material); err != nil {
				slog.Warn("sample upgrade skipped", "host", s.name, "def", in.def, "error", err)
			}
		}
		slog.Info("sample host seeded", "id", view.ID, "name", s.name, "kind", s.kind)
	}
}

// weatherSeed prefers BUNKHOUSE_SEED, then the seed saved with the state, then
// a fresh one from random.org or crypto/rand. A fresh seed is saved so restarts
// keep the same weather.
func weatherSeed(db *persistence.DB) int64 {
	if v := os.Getenv("BUNKHOUSE_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
		slog.Warn("invalid BUNKHOUSE_SEED, ignoring", "value", v)
	}
	if saved, err := db.GetMeta("seed"); err == nil {
		if n, err := strconv.ParseInt(saved, 10, 64); err == nil {
			return n
		}
	}
	seed := entropy.Seed(entropy.NewClient(os.Getenv("RANDOM_ORG_API_KEY")))
	if err := db.SaveMeta("seed", strconv.FormatInt(seed, 10)); err != nil {
		slog.Error("failed to save seed", "error", err)
	}
	return seed
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
