package host

import (
	"math"

	"github.com/talgya/bunkhouse/internal/catalog"
	"github.com/talgya/bunkhouse/internal/climate"
)

// Throttle constants for smart modifiers.
const (
	StandbyThrottle = 0.05 // Drawn while holding target
	MinThrottle     = 0.1  // Floor while working, avoids rapid cycling
	StandbyBand     = 0.5  // |diff| below which a modifier idles
	FullPowerDiff   = 10.0 // |diff| at which throttle reaches 1
)

// Usage is a host's resource consumption.
type Usage struct {
	FuelPerDay float64 `json:"fuel_per_day"`
	PowerDraw  float64 `json:"power_draw"`
}

// FuelPerTick converts the daily fuel rate to one tick's worth.
func (u Usage) FuelPerTick(ticksPerDay int) float64 {
	if ticksPerDay <= 0 {
		return 0
	}
	return u.FuelPerDay / float64(ticksPerDay)
}

// Resources computes fuel and power use of the active modifiers. base is the
// temperature before smart modifiers run; it decides how hard they work.
func Resources(active []climate.Modifier, beds int, outdoor, base, target float64) Usage {
	var u Usage
	for _, m := range active {
		d := m.Def
		if d.FuelPerBed > 0 {
			u.FuelPerDay += FuelRate(d, beds, outdoor)
		}
		if d.RequiresPower {
			power := d.BasePowerConsumption * float64(m.Count)
			if d.IsSmart() {
				power *= Throttle(d.SmartMode, base, target)
			}
			u.PowerDraw += power
		}
	}
	return u
}

// FuelRate returns one upgrade's fuel use per day. Heaters burning while it is
// already warmer than their cap outside, and coolers running while it is colder
// than theirs, burn at half rate.
func FuelRate(d *catalog.Definition, beds int, outdoor float64) float64 {
	rate := d.FuelPerBed * float64(beds)
	if d.HeatOffset > 0 && outdoor > d.MaxHeatCap {
		rate *= 0.5
	} else if d.CoolOffset > 0 && outdoor < d.MinCoolCap {
		rate *= 0.5
	}
	return rate
}

// Throttle returns the fraction of base power a smart modifier draws.
func Throttle(mode catalog.SmartMode, base, target float64) float64 {
	diff := target - base
	if (diff > 0 && !mode.CanHeat()) || (diff < 0 && !mode.CanCool()) {
		return 0
	}
	abs := math.Abs(diff)
	if abs < StandbyBand {
		return StandbyThrottle
	}
	return math.Max(MinThrottle, math.Min(1, abs/FullPowerDiff))
}
