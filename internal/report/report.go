// Package report builds operator summaries of the upgrades constructed across
// hosts: a per-host listing, counts by definition and material, and a detailed
// inspection of one host.
package report

import (
	"sort"

	"github.com/talgya/bunkhouse/internal/catalog"
	"github.com/talgya/bunkhouse/internal/host"
)

// UpgradeLine is one constructed upgrade and the definition values that matter
// when reviewing it.
type UpgradeLine struct {
	Def      string      `json:"def"`
	Label    string      `json:"label"`
	Material string      `json:"material,omitempty"`
	Count    int         `json:"count"`
	Reason   host.Reason `json:"reason"`

	SpaceCost            float64            `json:"space_cost"`
	BedCountOffset       int                `json:"bed_count_offset,omitempty"`
	BedCountMultiplier   float64            `json:"bed_count_multiplier,omitempty"` // Omitted when 1
	ImpressivenessLevel  int                `json:"impressiveness_level,omitempty"`
	RemoveSleepDisturbed bool               `json:"remove_sleep_disturbed,omitempty"`
	Costs                []catalog.CostItem `json:"costs,omitempty"`
	AllowedMaterials     []string           `json:"allowed_materials,omitempty"`
}

// HostReport lists a host's space budget and upgrades.
type HostReport struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Kind       string        `json:"kind"`
	UsedSpace  float64       `json:"used_space"`
	TotalSpace float64       `json:"total_space"`
	BedCount   int           `json:"bed_count"`
	Upgrades   []UpgradeLine `json:"upgrades"`
}

// ActiveReport covers every host that has at least one upgrade.
type ActiveReport struct {
	Hosts             []HostReport `json:"hosts"`
	HostsWithUpgrades int          `json:"hosts_with_upgrades"`
	TotalUpgrades     int          `json:"total_upgrades"`
}

// Active lists the upgrades on every host that has any, in host order.
func Active(hosts []*host.Host) ActiveReport {
	rep := ActiveReport{Hosts: []HostReport{}}
	for _, h := range hosts {
		if h.Ledger().Len() == 0 {
			continue
		}
		hr := hostReport(h)
		rep.Hosts = append(rep.Hosts, hr)
		rep.HostsWithUpgrades++
		rep.TotalUpgrades += len(hr.Upgrades)
	}
	return rep
}

func hostReport(h *host.Host) HostReport {
	snap := h.Snapshot()
	hr := HostReport{
		ID:         h.ID,
		Name:       h.Name,
		Kind:       h.Kind,
		UsedSpace:  snap.UsedSpace,
		TotalSpace: snap.TotalSpace,
		BedCount:   snap.BedCount,
		Upgrades:   make([]UpgradeLine, 0, len(snap.Upgrades)),
	}
	for _, u := range snap.Upgrades {
		line := UpgradeLine{
			Def:      u.DefID,
			Label:    u.DefID,
			Material: u.Material,
			Count:    u.Count,
			Reason:   u.Reason,
		}
		if d, ok := h.Catalog().Lookup(u.DefID); ok {
			line.Label = d.Label
			line.SpaceCost = d.SpaceCost
			line.BedCountOffset = d.BedCountOffset
			if m := d.Multiplier(); m != 1 {
				line.BedCountMultiplier = m
			}
			line.ImpressivenessLevel = d.ImpressivenessLevel
			line.RemoveSleepDisturbed = d.RemoveSleepDisturbed
			line.Costs = d.Costs
			line.AllowedMaterials = d.AllowedMaterials
		}
		hr.Upgrades = append(hr.Upgrades, line)
	}
	return hr
}

// MaterialCount is how many hosts built an upgrade from one material.
type MaterialCount struct {
	Material string `json:"material"`
	Count    int    `json:"count"`
}

// SummaryLine counts one definition across hosts.
type SummaryLine struct {
	Def       string          `json:"def"`
	Label     string          `json:"label"`
	Hosts     int             `json:"hosts"`     // Hosts that have it
	Instances int             `json:"instances"` // Sum of counts
	Materials []MaterialCount `json:"materials,omitempty"`
}

// Summary counts installed upgrades by definition and material, most common
// first. Ties are broken by id so the order is stable.
func Summary(hosts []*host.Host) []SummaryLine {
	lines := make(map[string]*SummaryLine)
	materials := make(map[string]map[string]int)

	for _, h := range hosts {
		for _, r := range h.Ledger().Records() {
			line, ok := lines[r.DefID]
			if !ok {
				line = &SummaryLine{Def: r.DefID, Label: r.DefID}
				if d, found := h.Catalog().Lookup(r.DefID); found {
					line.Label = d.Label
				}
				lines[r.DefID] = line
				materials[r.DefID] = make(map[string]int)
			}
			line.Hosts++
			line.Instances += r.Count
			if r.Material != "" {
				materials[r.DefID][r.Material]++
			}
		}
	}

	out := make([]SummaryLine, 0, len(lines))
	for id, line := range lines {
		for m, n := range materials[id] {
			line.Materials = append(line.Materials, MaterialCount{Material: m, Count: n})
		}
		sort.Slice(line.Materials, func(i, j int) bool {
			a, b := line.Materials[i], line.Materials[j]
			if a.Count != b.Count {
				return a.Count > b.Count
			}
			return a.Material < b.Material
		})
		out = append(out, *line)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hosts != out[j].Hosts {
			return out[i].Hosts > out[j].Hosts
		}
		return out[i].Def < out[j].Def
	})
	return out
}

// Inspection is everything known about one host.
type Inspection struct {
	HostReport
	Context           host.Context  `json:"context"`
	State             host.Snapshot `json:"state"`
	ActiveDefinitions []string      `json:"active_definitions"`
}

// Inspect reports on a single host.
func Inspect(h *host.Host) Inspection {
	active := h.ActiveDefinitions()
	if active == nil {
		active = []string{}
	}
	return Inspection{
		HostReport:        hostReport(h),
		Context:           h.Context,
		State:             h.Snapshot(),
		ActiveDefinitions: active,
	}
}
