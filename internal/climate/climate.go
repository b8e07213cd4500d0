// Package climate computes a host's virtual temperature from the outdoor
// temperature and its active upgrades.
//
// The computation runs four passes in a fixed order: insulation pulls the outdoor
// temperature toward a weighted target, passive heaters then passive coolers apply
// capped fixed offsets, and finally powered smart modifiers seek the host's target
// temperature. The passes must not be reordered.
package climate

import (
	"math"

	"github.com/talgya/bunkhouse/internal/catalog"
)

// DeadBand is the distance from target within which smart modifiers do nothing.
const DeadBand = 0.1

// Modifier is one active upgrade as seen by the simulator.
type Modifier struct {
	Def   *catalog.Definition
	Count int
}

// Result holds the temperature after pass 3 (Base) and after pass 4 (Current).
type Result struct {
	Base    float64 `json:"base_temperature"`
	Current float64 `json:"current_temperature"`
}

// Simulate runs all four passes. Modifiers must be in ledger order; the passive
// passes depend on it when several heaters or coolers have different caps.
func Simulate(outdoor float64, mods []Modifier, target float64, hasPower bool) Result {
	temp := Insulate(outdoor, mods)
	temp = PassiveHeat(temp, mods)
	temp = PassiveCool(temp, mods)
	return Result{
		Base:    temp,
		Current: SmartAdjust(temp, mods, target, hasPower),
	}
}

// Insulate is pass 1.
func Insulate(outdoor float64, mods []Modifier) float64 {
	var total, weighted float64
	for _, m := range mods {
		if m.Def.InsulationAdjustment > 0 {
			total += m.Def.InsulationAdjustment
			weighted += m.Def.InsulationTarget * m.Def.InsulationAdjustment
		}
	}
	if total <= 0 {
		return outdoor
	}
	target := weighted / total
	return outdoor + clamp(target-outdoor, -total, total)
}

// PassiveHeat is pass 2. Each heater's cap is checked against the running
// temperature, so later heaters see the effect of earlier ones.
func PassiveHeat(temp float64, mods []Modifier) float64 {
	for _, m := range mods {
		if !m.Def.IsPassiveHeater() {
			continue
		}
		temp += clamp(m.Def.HeatOffset, 0, m.Def.MaxHeatCap-temp)
	}
	return temp
}

// PassiveCool is pass 3, symmetric to PassiveHeat.
func PassiveCool(temp float64, mods []Modifier) float64 {
	for _, m := range mods {
		if !m.Def.IsPassiveCooler() {
			continue
		}
		temp -= clamp(m.Def.CoolOffset, 0, temp-m.Def.MinCoolCap)
	}
	return temp
}

// SmartAdjust is pass 4. It moves base toward target by at most the combined
// capacity of the modifiers able to push in the needed direction, and never past
// the target.
func SmartAdjust(base float64, mods []Modifier, target float64, hasPower bool) float64 {
	if !hasPower || !anySmart(mods) {
		return base
	}
	diff := target - base
	if math.Abs(diff) < DeadBand {
		return base
	}

	heat, cool := Capacity(mods)
	if diff > 0 {
		return base + math.Min(diff, heat)
	}
	return base - math.Min(-diff, cool)
}

// Capacity returns the combined heating and cooling capacity of the smart
// modifiers in mods, in degrees per evaluation.
func Capacity(mods []Modifier) (heat, cool float64) {
	for _, m := range mods {
		d := m.Def
		if !d.IsSmart() {
			continue
		}
		scale := d.BasePowerConsumption / 100 * float64(m.Count)
		if d.SmartMode.CanHeat() {
			heat += d.SmartHeatEfficiency * scale
		}
		if d.SmartMode.CanCool() {
			cool += d.SmartCoolEfficiency * scale
		}
	}
	return heat, cool
}

func anySmart(mods []Modifier) bool {
	for _, m := range mods {
		if m.Def.IsSmart() {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		// Cap already exceeded: the effect contributes nothing.
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
