// Package catalog provides the immutable set of upgrade definitions a host can build.
package catalog

// SmartMode describes which directions a powered, target-seeking modifier can push
// the temperature.
type SmartMode uint8

const (
	SmartNone       SmartMode = iota // Not a smart modifier
	SmartHeaterOnly                  // Can only raise temperature
	SmartCoolerOnly                  // Can only lower temperature
	SmartDualMode                    // Heats or cools as needed
)

// String returns the JSON name of the mode.
func (m SmartMode) String() string {
	switch m {
	case SmartHeaterOnly:
		return "heater_only"
	case SmartCoolerOnly:
		return "cooler_only"
	case SmartDualMode:
		return "dual_mode"
	default:
		return "none"
	}
}

// CanHeat reports whether the mode can raise temperature.
func (m SmartMode) CanHeat() bool { return m == SmartHeaterOnly || m == SmartDualMode }

// CanCool reports whether the mode can lower temperature.
func (m SmartMode) CanCool() bool { return m == SmartCoolerOnly || m == SmartDualMode }

// ParseSmartMode converts a JSON name back to a SmartMode.
func ParseSmartMode(s string) (SmartMode, bool) {
	switch s {
	case "", "none":
		return SmartNone, true
	case "heater_only":
		return SmartHeaterOnly, true
	case "cooler_only":
		return SmartCoolerOnly, true
	case "dual_mode":
		return SmartDualMode, true
	}
	return SmartNone, false
}

// Category tags a definition with a role that other systems key off.
type Category uint8

const (
	CategoryNone     Category = iota
	CategoryBarracks          // Turns the host into shared barracks
	CategoryLuxury            // Decorative / comfort upgrades
	CategoryClimate           // Temperature control
)

// String returns the JSON name of the category.
func (c Category) String() string {
	switch c {
	case CategoryBarracks:
		return "barracks"
	case CategoryLuxury:
		return "luxury"
	case CategoryClimate:
		return "climate"
	default:
		return "none"
	}
}

// ParseCategory converts a JSON name back to a Category.
func ParseCategory(s string) (Category, bool) {
	switch s {
	case "", "none":
		return CategoryNone, true
	case "barracks":
		return CategoryBarracks, true
	case "luxury":
		return CategoryLuxury, true
	case "climate":
		return CategoryClimate, true
	}
	return CategoryNone, false
}

// CostItem is one line of an upgrade's construction bill.
type CostItem struct {
	Resource string `json:"resource"`
	Count    int    `json:"count"`
}

// Definition is one installable upgrade. Definitions are owned by a Catalog and
// never mutated after it is built.
type Definition struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Category Category `json:"-"`

	// Space and capacity
	SpaceCost          float64 `json:"space_cost"`
	SpaceCostPerBed    float64 `json:"space_cost_per_bed"`
	BedCountOffset     int     `json:"bed_count_offset"`
	BedCountMultiplier float64 `json:"bed_count_multiplier"` // 1 = no effect
	OnePerBed          bool    `json:"one_per_bed"`

	RequiredUpgrades []string `json:"required_upgrades,omitempty"`
	HostKinds        []string `json:"host_kinds,omitempty"` // Empty = any host

	// Resources
	FuelPerBed           float64 `json:"fuel_per_bed"` // Fuel per bed per day
	RequiresPower        bool    `json:"requires_power"`
	BasePowerConsumption float64 `json:"base_power_consumption"`

	// Passive temperature
	HeatOffset           float64 `json:"heat_offset"`
	MaxHeatCap           float64 `json:"max_heat_cap"`
	CoolOffset           float64 `json:"cool_offset"`
	MinCoolCap           float64 `json:"min_cool_cap"`
	InsulationAdjustment float64 `json:"insulation_adjustment"`
	InsulationTarget     float64 `json:"insulation_target"`

	// Active temperature
	SmartMode           SmartMode `json:"-"`
	SmartHeatEfficiency float64   `json:"smart_heat_efficiency"`
	SmartCoolEfficiency float64   `json:"smart_cool_efficiency"`

	// Comfort
	ImpressivenessLevel  int  `json:"impressiveness_level"`
	RemoveSleepDisturbed bool `json:"remove_sleep_disturbed"`

	// Construction bill
	Costs            []CostItem `json:"costs,omitempty"`
	MaterialCost     int        `json:"material_cost"`
	AllowedMaterials []string   `json:"allowed_materials,omitempty"`
}

// CanBeToggled reports whether the player may switch the upgrade off.
func (d *Definition) CanBeToggled() bool {
	return d.RequiresPower || d.FuelPerBed > 0
}

// IsSmart reports whether the upgrade is a target-seeking modifier.
func (d *Definition) IsSmart() bool {
	return d.SmartMode != SmartNone
}

// IsPassiveHeater reports whether the upgrade applies a fixed, capped heat offset.
func (d *Definition) IsPassiveHeater() bool {
	return d.HeatOffset > 0 && !d.RequiresPower
}

// IsPassiveCooler reports whether the upgrade applies a fixed, capped cool offset.
func (d *Definition) IsPassiveCooler() bool {
	return d.CoolOffset > 0 && !d.RequiresPower
}

// AffectsClimate reports whether the upgrade takes part in any climate pass.
func (d *Definition) AffectsClimate() bool {
	return d.InsulationAdjustment > 0 || d.HeatOffset > 0 || d.CoolOffset > 0 || d.IsSmart()
}

// Multiplier returns the bed count multiplier, treating an unset value as 1.
// Catalog files cannot express 0; Parse rejects it.
func (d *Definition) Multiplier() float64 {
	if d.BedCountMultiplier == 0 {
		return 1
	}
	return d.BedCountMultiplier
}

// Requires reports whether id is one of the definition's prerequisites.
func (d *Definition) Requires(id string) bool {
	for _, r := range d.RequiredUpgrades {
		if r == id {
			return true
		}
	}
	return false
}

// AllowsMaterial reports whether material may be chosen for this upgrade.
// An empty allow-list accepts any material, including none.
func (d *Definition) AllowsMaterial(material string) bool {
	if len(d.AllowedMaterials) == 0 {
		return true
	}
	for _, m := range d.AllowedMaterials {
		if m == material {
			return true
		}
	}
	return false
}

// AllowsHost reports whether the upgrade may be attached to a host of this kind.
func (d *Definition) AllowsHost(kind string) bool {
	if len(d.HostKinds) == 0 {
		return true
	}
	for _, k := range d.HostKinds {
		if k == kind {
			return true
		}
	}
	return false
}
