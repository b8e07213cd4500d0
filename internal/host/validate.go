package host

import (
	"fmt"

	"github.com/talgya/bunkhouse/internal/catalog"
	"github.com/talgya/bunkhouse/internal/ledger"
)

// CapacityContext is the space budget an install is checked against.
type CapacityContext struct {
	TotalSpace   float64 `json:"total_space"`
	UsedSpace    float64 `json:"used_space"`
	BaseBedCount int     `json:"base_bed_count"`
}

// Free returns the unused space.
func (c CapacityContext) Free() float64 { return c.TotalSpace - c.UsedSpace }

// InstallCheck reports whether d may be installed with the given material on a
// host of the given kind. A onePerBed upgrade that is already present stacks and
// needs no further checks.
func InstallCheck(d *catalog.Definition, material, kind string, l *ledger.Ledger, cat *catalog.Catalog, cc CapacityContext) error {
	if !d.AllowsHost(kind) {
		return fmt.Errorf("%w: %s cannot be built on a %s", ledger.ErrInvalidDefinition, d.ID, kind)
	}
	if l.Has(d.ID) {
		if d.OnePerBed {
			return nil
		}
		return fmt.Errorf("%w: %s", ledger.ErrAlreadyInstalled, d.ID)
	}
	if !d.AllowsMaterial(material) {
		return fmt.Errorf("%w: %s cannot be made of %q", ledger.ErrInvalidDefinition, d.ID, material)
	}
	for _, req := range d.RequiredUpgrades {
		if !l.Has(req) {
			return fmt.Errorf("%w: %s requires %s", ledger.ErrMissingPrerequisite, d.ID, req)
		}
	}

	need := spaceFor(d, BedCount(l, cat, cc.BaseBedCount))
	if free := cc.Free(); free < need {
		return fmt.Errorf("%w: %s needs %.1f, %.1f free", ledger.ErrInsufficientSpace, d.ID, need, free)
	}
	return nil
}

// RemoveCheck reports whether d can be removed without stranding an upgrade that
// requires it.
func RemoveCheck(d *catalog.Definition, l *ledger.Ledger, cat *catalog.Catalog) error {
	for _, r := range l.Records() {
		if r.DefID == d.ID {
			continue
		}
		other, ok := cat.Lookup(r.DefID)
		if ok && other.Requires(d.ID) {
			return fmt.Errorf("%w: %s is required by %s", ledger.ErrDependentUpgradesExist, d.ID, other.ID)
		}
	}
	return nil
}
