package caretaker

import "math"

// Health levels, most urgent first.
const (
	LevelCritical = "CRITICAL"
	LevelWarning  = "WARNING"
	LevelWatch    = "WATCH"
	LevelHealthy  = "HEALTHY"
)

// Fuel horizons in days below which a host is flagged.
const (
	CriticalFuelDays = 1.0
	WatchFuelDays    = 3.0
)

// HostHealth holds diagnostic signals derived from one host's observation.
// Runs before the rules and costs no requests.
type HostHealth struct {
	HostID    string
	Name      string
	FuelDays  float64 // Days of reserve at the current burn; +Inf when nothing burns
	Deviation float64 // Current minus target temperature
	Level     string
}

// Triage classifies every spawned host. tolerance is the half-width of the
// comfort band around each host's target temperature.
func Triage(snap *Snapshot, tolerance float64) []HostHealth {
	var out []HostHealth
	for _, h := range snap.Hosts {
		if !h.Context.Spawned {
			continue
		}
		hh := HostHealth{
			HostID:    h.ID,
			Name:      h.Name,
			FuelDays:  math.Inf(1),
			Deviation: h.State.Climate.Current - h.Context.TargetTemp,
			Level:     LevelHealthy,
		}
		if burn := h.State.Usage.FuelPerDay; burn > 0 {
			hh.FuelDays = h.Context.FuelReserve / burn
		}

		switch {
		case hh.FuelDays < CriticalFuelDays:
			hh.Level = LevelCritical
		case math.Abs(hh.Deviation) > tolerance:
			hh.Level = LevelWarning
		case hh.FuelDays < WatchFuelDays:
			hh.Level = LevelWatch
		}
		out = append(out, hh)
	}
	return out
}

// Worst returns the most urgent level among hs.
func Worst(hs []HostHealth) string {
	rank := map[string]int{LevelHealthy: 0, LevelWatch: 1, LevelWarning: 2, LevelCritical: 3}
	worst := LevelHealthy
	for _, h := range hs {
		if rank[h.Level] > rank[worst] {
			worst = h.Level
		}
	}
	return worst
}
