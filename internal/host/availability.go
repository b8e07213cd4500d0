package host

import (
	"encoding/json"
	"fmt"

	"github.com/talgya/bunkhouse/internal/catalog"
	"github.com/talgya/bunkhouse/internal/climate"
	"github.com/talgya/bunkhouse/internal/ledger"
)

// Reason says why a constructed upgrade is or is not functioning.
type Reason uint8

const (
	Active Reason = iota
	ToggledOff
	NoPower
	OutOfFuel
	InsufficientCount
)

// String returns the reason's identifier.
func (r Reason) String() string {
	switch r {
	case ToggledOff:
		return "toggled_off"
	case NoPower:
		return "no_power"
	case OutOfFuel:
		return "out_of_fuel"
	case InsufficientCount:
		return "insufficient_count"
	default:
		return "active"
	}
}

// MarshalJSON writes the reason by name.
func (r Reason) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON reads a reason by name.
func (r *Reason) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, c := range []Reason{Active, ToggledOff, NoPower, OutOfFuel, InsufficientCount} {
		if c.String() == s {
			*r = c
			return nil
		}
	}
	return fmt.Errorf("unknown disable reason %q", s)
}

// reasonFor evaluates the checks in priority order; the first match wins.
func reasonFor(r ledger.Record, d *catalog.Definition, ctx Context, beds int) Reason {
	switch {
	case r.ToggledOff && d.CanBeToggled():
		return ToggledOff
	case d.RequiresPower && !ctx.HasPower:
		return NoPower
	case d.FuelPerBed > 0 && ctx.FuelReserve <= 0:
		return OutOfFuel
	case d.OnePerBed && r.Count < beds:
		return InsufficientCount
	default:
		return Active
	}
}

// DisableReason returns the availability of one constructed upgrade.
func (h *Host) DisableReason(defID string) (Reason, error) {
	r, ok := h.ledger.Get(defID)
	if !ok {
		return Active, fmt.Errorf("%w: %s", ledger.ErrNotInstalled, defID)
	}
	d, err := h.lookup(defID)
	if err != nil {
		return Active, err
	}
	return reasonFor(r, d, h.Context, h.BedCount()), nil
}

// ActiveDefinitions returns the ids of functioning upgrades in ledger order.
// The result is recomputed on every call.
func (h *Host) ActiveDefinitions() []string {
	ids := make([]string, 0, h.ledger.Len())
	for _, m := range h.activeModifiers(h.BedCount()) {
		ids = append(ids, m.Def.ID)
	}
	return ids
}

func (h *Host) activeModifiers(beds int) []climate.Modifier {
	var mods []climate.Modifier
	for _, r := range h.ledger.Records() {
		d, ok := h.catalog.Lookup(r.DefID)
		if !ok {
			continue
		}
		if reasonFor(r, d, h.Context, beds) == Active {
			mods = append(mods, climate.Modifier{Def: d, Count: r.Count})
		}
	}
	return mods
}
