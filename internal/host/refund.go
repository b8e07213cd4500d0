package host

import (
	"math"

	"github.com/talgya/bunkhouse/internal/catalog"
)

// RefundLine is the amount of one resource returned by a removal.
type RefundLine struct {
	Resource string `json:"resource"`
	Amount   int    `json:"amount"`
}

// Refund is the manifest of resources returned for removed instances.
type Refund struct {
	DefID     string       `json:"def"`
	Instances int          `json:"instances"`
	Lines     []RefundLine `json:"lines"`
}

// ComputeRefund refunds floor(unitCost × instances × pct) for each line of the
// construction bill, including the material line when a material was chosen.
// pct is clamped to [0, 1].
func ComputeRefund(d *catalog.Definition, material string, instances int, pct float64) Refund {
	pct = math.Max(0, math.Min(1, pct))
	ref := Refund{DefID: d.ID, Instances: instances}

	add := func(resource string, unit int) {
		amount := int(math.Floor(float64(unit) * float64(instances) * pct))
		if amount > 0 {
			ref.Lines = append(ref.Lines, RefundLine{Resource: resource, Amount: amount})
		}
	}
	for _, c := range d.Costs {
		add(c.Resource, c.Count)
	}
	if material != "" && d.MaterialCost > 0 {
		add(material, d.MaterialCost)
	}
	return ref
}
