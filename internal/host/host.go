// Package host ties a ledger of constructed upgrades to the context of the
// structure that owns it, and derives capacity, availability, climate and
// resource consumption from them.
package host

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/talgya/bunkhouse/internal/catalog"
	"github.com/talgya/bunkhouse/internal/climate"
	"github.com/talgya/bunkhouse/internal/ledger"
)

// DefaultTemperature is reported for hosts that are not spawned in the world.
const DefaultTemperature = 21.0

// Host kinds.
const (
	KindSecondFloor = "second_floor"
	KindBasement    = "basement"
)

// ValidKind reports whether kind is a known host kind.
func ValidKind(kind string) bool {
	return kind == KindSecondFloor || kind == KindBasement
}

// Context is the state a host reads from the world around it each tick.
type Context struct {
	Spawned      bool    `json:"spawned"`
	OutdoorTemp  float64 `json:"outdoor_temp"`
	HasPower     bool    `json:"has_power"`
	FuelReserve  float64 `json:"fuel_reserve"`
	TotalSpace   float64 `json:"total_space"`
	BaseBedCount int     `json:"base_bed_count"`
	TargetTemp   float64 `json:"target_temp"`
}

// Host is one multi-occupant structure and the upgrades built on it.
// It is not safe for concurrent use; the owner serialises access.
type Host struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Kind    string  `json:"kind"`
	Context Context `json:"context"`

	ledger  *ledger.Ledger
	catalog *catalog.Catalog

	// OnCapacityChange is called after a mutation changes the bed count.
	// Reassigning occupants is left to the callee.
	OnCapacityChange func(h *Host, before, after int) `json:"-"`
}

// New creates a host with a fresh id and an empty ledger.
func New(name, kind string, cat *catalog.Catalog, ctx Context) *Host {
	return Restore(uuid.NewString(), name, kind, cat, ctx, ledger.New())
}

// Restore rebuilds a host from saved state.
func Restore(id, name, kind string, cat *catalog.Catalog, ctx Context, l *ledger.Ledger) *Host {
	if l == nil {
		l = ledger.New()
	}
	return &Host{
		ID:      id,
		Name:    name,
		Kind:    kind,
		Context: ctx,
		ledger:  l,
		catalog: cat,
	}
}

// Ledger exposes the host's ledger for persistence and read-only inspection.
func (h *Host) Ledger() *ledger.Ledger { return h.ledger }

// Catalog returns the catalog the host resolves definitions against.
func (h *Host) Catalog() *catalog.Catalog { return h.catalog }

// Has reports whether the upgrade is constructed.
func (h *Host) Has(defID string) bool { return h.ledger.Has(defID) }

// ConstructedCount returns the number of built instances of an upgrade.
func (h *Host) ConstructedCount(defID string) int { return h.ledger.ConstructedCount(defID) }

// BedCount returns the host's current capacity.
func (h *Host) BedCount() int {
	return BedCount(h.ledger, h.catalog, h.Context.BaseBedCount)
}

// UsedSpace returns the space taken by constructed upgrades.
func (h *Host) UsedSpace() float64 {
	return UsedSpace(h.ledger, h.catalog, h.BedCount())
}

// SpaceShortage returns how far used space exceeds total space, or 0. Shrinking
// rooms are reported, never resolved by removing upgrades.
func (h *Host) SpaceShortage() float64 {
	if over := h.UsedSpace() - h.Context.TotalSpace; over > 0 {
		return over
	}
	return 0
}

// CapacityContext returns the space and capacity figures install checks use.
func (h *Host) CapacityContext() CapacityContext {
	return CapacityContext{
		TotalSpace:   h.Context.TotalSpace,
		UsedSpace:    h.UsedSpace(),
		BaseBedCount: h.Context.BaseBedCount,
	}
}

func (h *Host) lookup(defID string) (*catalog.Definition, error) {
	d, ok := h.catalog.Lookup(defID)
	if !ok {
		return nil, h.catalog.UnknownError(defID)
	}
	return d, nil
}

// Install builds an upgrade. Installing a onePerBed upgrade that is already
// present adds another instance instead of failing.
func (h *Host) Install(defID, material string) error {
	d, err := h.lookup(defID)
	if err != nil {
		return err
	}
	if err := InstallCheck(d, material, h.Kind, h.ledger, h.catalog, h.CapacityContext()); err != nil {
		return err
	}

	before := h.BedCount()
	if h.ledger.Has(defID) {
		err = h.ledger.IncreaseCount(defID)
	} else {
		err = h.ledger.Install(defID, material)
	}
	if err != nil {
		return err
	}
	h.notifyCapacity(before)
	return nil
}

// Remove deletes every instance of an upgrade and returns the removed record.
func (h *Host) Remove(defID string) (ledger.Record, error) {
	if !h.ledger.Has(defID) {
		return ledger.Record{}, fmt.Errorf("%w: %s", ledger.ErrNotInstalled, defID)
	}
	d, err := h.lookup(defID)
	if err != nil {
		return ledger.Record{}, err
	}
	if err := RemoveCheck(d, h.ledger, h.catalog); err != nil {
		return ledger.Record{}, err
	}

	before := h.BedCount()
	rec, err := h.ledger.Remove(defID)
	if err != nil {
		return ledger.Record{}, err
	}
	h.notifyCapacity(before)
	return rec, nil
}

// RemoveAllWithRefund removes every instance and refunds pct of their cost.
func (h *Host) RemoveAllWithRefund(defID string, pct float64) (Refund, error) {
	rec, err := h.Remove(defID)
	if err != nil {
		return Refund{}, err
	}
	d, _ := h.catalog.Lookup(defID)
	return ComputeRefund(d, rec.Material, rec.Count, pct), nil
}

// RemoveOneWithRefund removes a single instance and refunds pct of its cost. The
// record is deleted, subject to the dependents check, only when it was the last.
func (h *Host) RemoveOneWithRefund(defID string, pct float64) (Refund, error) {
	rec, ok := h.ledger.Get(defID)
	if !ok {
		return Refund{}, fmt.Errorf("%w: %s", ledger.ErrNotInstalled, defID)
	}
	if rec.Count <= 1 {
		removed, err := h.Remove(defID)
		if err != nil {
			return Refund{}, err
		}
		d, _ := h.catalog.Lookup(defID)
		return ComputeRefund(d, removed.Material, 1, pct), nil
	}

	d, err := h.lookup(defID)
	if err != nil {
		return Refund{}, err
	}
	before := h.BedCount()
	if _, err := h.ledger.DecreaseCount(defID); err != nil {
		return Refund{}, err
	}
	h.notifyCapacity(before)
	return ComputeRefund(d, rec.Material, 1, pct), nil
}

// Toggle flips an upgrade on or off. Upgrades that cannot be toggled are left
// untouched without error.
func (h *Host) Toggle(defID string) error {
	rec, ok := h.ledger.Get(defID)
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrNotInstalled, defID)
	}
	d, err := h.lookup(defID)
	if err != nil {
		return err
	}
	if !d.CanBeToggled() {
		return nil
	}
	return h.ledger.SetToggledOff(defID, !rec.ToggledOff)
}

func (h *Host) notifyCapacity(before int) {
	after := h.BedCount()
	if after != before && h.OnCapacityChange != nil {
		h.OnCapacityChange(h, before, after)
	}
}

// CurrentTemperature returns the temperature after all four climate passes.
func (h *Host) CurrentTemperature() float64 {
	return h.Climate().Current
}

// BaseTemperature returns the temperature before smart modifiers run.
func (h *Host) BaseTemperature() float64 {
	return h.Climate().Base
}

// Climate runs the climate simulation over the active upgrades.
func (h *Host) Climate() climate.Result {
	if !h.Context.Spawned {
		return climate.Result{Base: DefaultTemperature, Current: DefaultTemperature}
	}
	return climate.Simulate(h.Context.OutdoorTemp, h.activeModifiers(h.BedCount()), h.Context.TargetTemp, h.Context.HasPower)
}

// CurrentPowerDraw returns the power drawn by active upgrades.
func (h *Host) CurrentPowerDraw() float64 {
	return h.Usage().PowerDraw
}

// CurrentFuelRate returns fuel consumed per day by active upgrades.
func (h *Host) CurrentFuelRate() float64 {
	return h.Usage().FuelPerDay
}

// Usage computes fuel and power consumption for the current context.
func (h *Host) Usage() Usage {
	if !h.Context.Spawned {
		return Usage{}
	}
	beds := h.BedCount()
	mods := h.activeModifiers(beds)
	res := climate.Simulate(h.Context.OutdoorTemp, mods, h.Context.TargetTemp, h.Context.HasPower)
	return Resources(mods, beds, h.Context.OutdoorTemp, res.Base, h.Context.TargetTemp)
}

// ConsumeFuel subtracts amount from the fuel reserve, stopping at zero.
func (h *Host) ConsumeFuel(amount float64) {
	if amount <= 0 {
		return
	}
	h.Context.FuelReserve -= amount
	if h.Context.FuelReserve < 0 {
		h.Context.FuelReserve = 0
	}
}

// Snapshot holds every derived value of a host, computed in one pass.
type Snapshot struct {
	BedCount      int            `json:"bed_count"`
	UsedSpace     float64        `json:"used_space"`
	TotalSpace    float64        `json:"total_space"`
	SpaceShortage float64        `json:"space_shortage"`
	Climate       climate.Result `json:"climate"`
	Usage         Usage          `json:"usage"`
	Upgrades      []UpgradeState `json:"upgrades"`
	Comfort       Comfort        `json:"comfort"`
}

// UpgradeState is one ledger record with its availability.
type UpgradeState struct {
	ledger.Record
	Reason Reason `json:"reason"`
}

// Snapshot computes all derived values against a single capacity evaluation.
func (h *Host) Snapshot() Snapshot {
	beds := h.BedCount()
	used := UsedSpace(h.ledger, h.catalog, beds)

	snap := Snapshot{
		BedCount:   beds,
		UsedSpace:  used,
		TotalSpace: h.Context.TotalSpace,
		Climate:    climate.Result{Base: DefaultTemperature, Current: DefaultTemperature},
	}
	if over := used - h.Context.TotalSpace; over > 0 {
		snap.SpaceShortage = over
	}

	var mods []climate.Modifier
	for _, r := range h.ledger.Records() {
		d, ok := h.catalog.Lookup(r.DefID)
		if !ok {
			continue
		}
		reason := reasonFor(r, d, h.Context, beds)
		snap.Upgrades = append(snap.Upgrades, UpgradeState{Record: r, Reason: reason})
		if reason == Active {
			mods = append(mods, climate.Modifier{Def: d, Count: r.Count})
		}
	}

	if h.Context.Spawned {
		snap.Climate = climate.Simulate(h.Context.OutdoorTemp, mods, h.Context.TargetTemp, h.Context.HasPower)
		snap.Usage = Resources(mods, beds, h.Context.OutdoorTemp, snap.Climate.Base, h.Context.TargetTemp)
	}
	snap.Comfort = comfortFor(h.Kind, mods, beds)
	return snap
}
