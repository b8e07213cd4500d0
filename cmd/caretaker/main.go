// Command caretaker runs the autonomous bunkhouse steward.
// It observes host state, decides which fuel upgrades to switch,
// and acts via the admin toggle API.
package main

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/bunkhouse/internal/caretaker"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment.
	apiURL := envOrDefault("BUNKHOUSE_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("BUNKHOUSE_ADMIN_KEY")
	intervalMin := envIntOrDefault("CARETAKER_INTERVAL", 10)
	memoryPath := envOrDefault("CARETAKER_MEMORY", "caretaker_memory.json")

	rules := caretaker.DefaultRules()
	rules.Tolerance = envFloatOrDefault("CARETAKER_TOLERANCE", rules.Tolerance)

	if adminKey == "" {
		slog.Error("BUNKHOUSE_ADMIN_KEY is required")
		os.Exit(1)
	}

	interval := time.Duration(intervalMin) * time.Minute

	slog.Info("bunkhouse caretaker starting",
		"api_url", apiURL,
		"interval", interval,
		"tolerance", rules.Tolerance,
	)

	observer := caretaker.NewObserver(apiURL)
	actor := caretaker.NewActor(apiURL, adminKey)
	mem := caretaker.LoadMemory(memoryPath)

	// Wait for the simulation API to be ready before the first cycle.
	slog.Info("waiting for bunkhouse API...")
	waitForAPI(apiURL)

	runCycle(observer, actor, mem, rules)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			runCycle(observer, actor, mem, rules)
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig)
			mem.Save()
			fmt.Println("Caretaker stopped.")
			return
		}
	}
}

// runCycle executes one observe → decide → act cycle.
func runCycle(observer *caretaker.Observer, actor *caretaker.Actor, mem *caretaker.Memory, rules caretaker.Rules) {
	snap, err := observer.Observe()
	if err != nil {
		slog.Error("observation failed", "error", err)
		return
	}

	health := caretaker.Triage(snap, rules.Tolerance)
	slog.Info("observation complete",
		"tick", snap.Status.Tick,
		"time", snap.Status.SimTime,
		"hosts", len(snap.Hosts),
		"outdoor", fmt.Sprintf("%.1f", snap.Status.OutdoorTemp),
		"fuel_per_day", humanize.CommafWithDigits(snap.Status.Stats.TotalFuelPerDay, 1),
		"level", caretaker.Worst(health),
	)
	for _, h := range health {
		if h.Level == caretaker.LevelHealthy {
			continue
		}
		days := "unlimited"
		if !math.IsInf(h.FuelDays, 1) {
			days = humanize.FtoaWithDigits(h.FuelDays, 1)
		}
		slog.Warn("host needs attention",
			"host", h.Name,
			"level", h.Level,
			"fuel_days", days,
			"deviation", fmt.Sprintf("%+.1f", h.Deviation),
		)
	}

	actions := caretaker.Decide(snap, mem, rules)
	if len(actions) == 0 {
		slog.Info("caretaker cycle complete, nothing to switch")
		return
	}

	for _, a := range actions {
		res, err := actor.Act(a)
		if err != nil {
			slog.Error("toggle failed", "host", a.HostName, "def", a.Def, "error", err)
			continue
		}
		mem.Record(caretaker.ActionRecord{Tick: snap.Status.Tick, HostID: a.HostID, Def: a.Def, On: a.On})
		slog.Info("upgrade switched",
			"host", a.HostName,
			"def", a.Def,
			"on", res.IsOn(a.Def),
			"rationale", a.Rationale,
		)
	}
	mem.Save()
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

func envFloatOrDefault(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// waitForAPI polls the status endpoint with exponential backoff until it
// responds. Exits after 5 minutes if the API never becomes ready.
func waitForAPI(apiURL string) {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for {
		resp, err := http.Get(apiURL + "/api/v1/status")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				slog.Info("bunkhouse API is ready")
				return
			}
		}
		if time.Now().After(deadline) {
			slog.Error("bunkhouse API did not become ready within 5 minutes")
			os.Exit(1)
		}
		slog.Info("bunkhouse not ready, retrying...", "backoff", backoff)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
