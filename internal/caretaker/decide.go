package caretaker

import "fmt"

// Rules tunes the decision pass.
type Rules struct {
	Tolerance float64 // Half-width of the comfort band around a host's target
	Cooldown  uint64  // Ticks before the same upgrade may be switched again
}

// DefaultRules keeps hosts within 3 °C of target and waits a sim-hour between
// switches of one upgrade.
func DefaultRules() Rules {
	return Rules{Tolerance: 3, Cooldown: 60}
}

// Action is one toggle the caretaker wants sent.
type Action struct {
	HostID    string `json:"host_id"`
	HostName  string `json:"host_name"`
	Def       string `json:"def"`
	On        bool   `json:"on"` // State the upgrade should end up in
	Rationale string `json:"rationale"`
}

// Decide returns the toggles for this cycle. Fuel upgrades running against
// the weather are switched off; switched-off ones come back on when the host
// leaves the comfort band in the direction they address and the weather no
// longer works against them.
func Decide(snap *Snapshot, mem *Memory, rules Rules) []Action {
	defs := make(map[string]Definition, len(snap.Catalog))
	for _, d := range snap.Catalog {
		defs[d.ID] = d
	}

	var actions []Action
	for _, h := range snap.Hosts {
		if !h.Context.Spawned {
			continue
		}
		outdoor := h.Context.OutdoorTemp
		current := h.State.Climate.Current
		target := h.Context.TargetTemp

		for _, u := range h.State.Upgrades {
			d, ok := defs[u.Def]
			if !ok || d.FuelPerBed <= 0 {
				continue
			}
			if mem != nil && mem.RecentlyToggled(h.ID, u.Def, snap.Status.Tick, rules.Cooldown) {
				continue
			}

			against := d.AgainstWeather(outdoor)
			act := Action{HostID: h.ID, HostName: h.Name, Def: u.Def}
			switch {
			case !u.ToggledOff && against:
				act.Rationale = fmt.Sprintf("burning at half rate with %.1f °C outside", outdoor)
			case u.ToggledOff && !against && h.Context.FuelReserve > 0 && d.Heater() && current < target-rules.Tolerance:
				act.On = true
				act.Rationale = fmt.Sprintf("%.1f °C is below the band around %.1f °C", current, target)
			case u.ToggledOff && !against && h.Context.FuelReserve > 0 && d.Cooler() && current > target+rules.Tolerance:
				act.On = true
				act.Rationale = fmt.Sprintf("%.1f °C is above the band around %.1f °C", current, target)
			default:
				continue
			}
			actions = append(actions, act)
		}
	}
	return actions
}
