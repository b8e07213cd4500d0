package host

import (
	"math"

	"github.com/talgya/bunkhouse/internal/catalog"
	"github.com/talgya/bunkhouse/internal/ledger"
)

// BedCount derives occupancy capacity from every constructed record, whether or
// not it is currently active. Availability itself depends on capacity (onePerBed
// checks), so capacity must never be computed from the active subset.
//
// Offsets are summed first; the product of all multipliers is applied once after.
func BedCount(l *ledger.Ledger, cat *catalog.Catalog, base int) int {
	sum := float64(base)
	product := 1.0
	for _, r := range l.Records() {
		d, ok := cat.Lookup(r.DefID)
		if !ok {
			continue
		}
		sum += float64(d.BedCountOffset)
		product *= d.Multiplier()
	}
	n := int(math.Floor(sum * product))
	if n < 0 {
		return 0
	}
	return n
}

// UsedSpace returns the space taken by the constructed upgrades at the given
// capacity.
func UsedSpace(l *ledger.Ledger, cat *catalog.Catalog, beds int) float64 {
	used := 0.0
	for _, r := range l.Records() {
		d, ok := cat.Lookup(r.DefID)
		if !ok {
			continue
		}
		used += spaceFor(d, beds)
	}
	return used
}

func spaceFor(d *catalog.Definition, beds int) float64 {
	return d.SpaceCost + d.SpaceCostPerBed*float64(beds)
}
