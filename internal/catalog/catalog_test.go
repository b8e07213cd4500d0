package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	c := Default()
	if c.Len() == 0 {
		t.Fatalf("expected built-in catalog to contain definitions")
	}
	for _, d := range c.Definitions() {
		for _, req := range d.RequiredUpgrades {
			if !c.Has(req) {
				t.Fatalf("%s requires unknown upgrade %s", d.ID, req)
			}
		}
	}
}

func TestCanBeToggled(t *testing.T) {
	cases := []struct {
		name string
		def  Definition
		want bool
	}{
		{"plain", Definition{ID: "a"}, false},
		{"powered", Definition{ID: "b", RequiresPower: true}, true},
		{"fueled", Definition{ID: "c", FuelPerBed: 0.5}, true},
	}
	for _, tc := range cases {
		if got := tc.def.CanBeToggled(); got != tc.want {
			t.Fatalf("%s: CanBeToggled = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNewRejectsBadSets(t *testing.T) {
	cases := []struct {
		name string
		defs []Definition
	}{
		{"empty id", []Definition{{}}},
		{"duplicate", []Definition{{ID: "a"}, {ID: "a"}}},
		{"unknown prerequisite", []Definition{{ID: "a", RequiredUpgrades: []string{"b"}}}},
		{"cycle", []Definition{
			{ID: "a", RequiredUpgrades: []string{"b"}},
			{ID: "b", RequiredUpgrades: []string{"a"}},
		}},
		{"negative space", []Definition{{ID: "a", SpaceCost: -1}}},
		{"unpowered smart", []Definition{{ID: "a", SmartMode: SmartHeaterOnly}}},
	}
	for _, tc := range cases {
		if _, err := New(tc.defs); !errors.Is(err, ErrInvalidDefinition) {
			t.Fatalf("%s: expected ErrInvalidDefinition, got %v", tc.name, err)
		}
	}
}

func TestParseReadsEnumsByName(t *testing.T) {
	data := []byte(`[
		{"id": "walls", "insulation_adjustment": 5, "insulation_target": 20},
		{"id": "pump", "requires_power": true, "base_power_consumption": 100,
		 "smart_mode": "dual_mode", "smart_heat_efficiency": 5, "category": "climate",
		 "required_upgrades": ["walls"]}
	]`)
	c, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	pump, ok := c.Lookup("pump")
	if !ok {
		t.Fatalf("expected pump in catalog")
	}
	if pump.SmartMode != SmartDualMode || pump.Category != CategoryClimate {
		t.Fatalf("enums not decoded: mode=%v category=%v", pump.SmartMode, pump.Category)
	}
	if pump.Multiplier() != 1 {
		t.Fatalf("unset multiplier should read as 1, got %v", pump.Multiplier())
	}

	if _, err := Parse([]byte(`[{"id": "x", "smart_mode": "turbo"}]`)); !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("expected unknown smart mode to be rejected, got %v", err)
	}
}

func TestParseBedCountMultiplier(t *testing.T) {
	c, err := Parse([]byte(`[{"id": "bunks", "bed_count_offset": 1}, {"id": "loft", "bed_count_multiplier": 1.5}]`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	bunks, _ := c.Lookup("bunks")
	loft, _ := c.Lookup("loft")
	if bunks.BedCountMultiplier != 1 || loft.BedCountMultiplier != 1.5 {
		t.Fatalf("multipliers = %v, %v", bunks.BedCountMultiplier, loft.BedCountMultiplier)
	}

	if _, err := Parse([]byte(`[{"id": "void", "bed_count_multiplier": 0}]`)); !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("expected explicit zero multiplier to be rejected, got %v", err)
	}
	if _, err := ParseYAML([]byte("- id: void\n  bed_count_multiplier: 0\n")); !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("expected zero multiplier in YAML to be rejected, got %v", err)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	c := Default()
	data, err := c.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := Parse(data)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if back.Len() != c.Len() {
		t.Fatalf("expected %d definitions, got %d", c.Len(), back.Len())
	}
	pump, _ := back.Lookup("heat_pump")
	if pump.SmartMode != SmartDualMode {
		t.Fatalf("smart mode lost in round trip: %v", pump.SmartMode)
	}
}

func TestSuggestFindsTypos(t *testing.T) {
	c := Default()
	if got := c.Suggest("wod_stove"); got != "wood_stove" {
		t.Fatalf("Suggest(wod_stove) = %q", got)
	}
	if got := c.Suggest("completely_unrelated_name"); got != "" {
		t.Fatalf("expected no suggestion, got %q", got)
	}
	err := c.UnknownError("heat_pumps")
	if !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("expected ErrInvalidDefinition, got %v", err)
	}
}

func TestAllowsMaterialAndHost(t *testing.T) {
	d := Definition{ID: "a", AllowedMaterials: []string{"wood"}, HostKinds: []string{"basement"}}
	if !d.AllowsMaterial("wood") || d.AllowsMaterial("gold") {
		t.Fatalf("material allow-list not applied")
	}
	if !d.AllowsHost("basement") || d.AllowsHost("loft") {
		t.Fatalf("host allow-list not applied")
	}
	open := Definition{ID: "b"}
	if !open.AllowsMaterial("") || !open.AllowsHost("loft") {
		t.Fatalf("empty allow-lists should accept anything")
	}
}

func TestLoadFileYAML(t *testing.T) {
	data := []byte(`
- id: walls
  insulation_adjustment: 5
  insulation_target: 20
- id: pump
  category: climate
  requires_power: true
  base_power_consumption: 100
  smart_mode: heater_only
  smart_heat_efficiency: 4.5
  required_upgrades: [walls]
  allowed_materials:
    - steel
`)
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	pump, ok := c.Lookup("pump")
	if !ok {
		t.Fatalf("expected pump in catalog")
	}
	if pump.SmartMode != SmartHeaterOnly || pump.SmartHeatEfficiency != 4.5 || !pump.Requires("walls") || !pump.AllowsMaterial("steel") {
		t.Fatalf("unexpected definition %+v", pump)
	}

	if _, err := ParseYAML([]byte("- id: a\n  required_upgrades: [ghost]\n")); !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("expected dangling prerequisite to be rejected, got %v", err)
	}
}
