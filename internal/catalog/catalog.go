package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"
)

// ErrInvalidDefinition is returned for malformed definitions and for references to
// ids the catalog does not contain.
var ErrInvalidDefinition = errors.New("invalid upgrade definition")

// Catalog is an immutable, ordered set of upgrade definitions.
type Catalog struct {
	defs  []*Definition
	index map[string]*Definition
}

// New builds a catalog from definitions, validating them as a set.
func New(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		defs:  make([]*Definition, 0, len(defs)),
		index: make(map[string]*Definition, len(defs)),
	}
	for i := range defs {
		d := defs[i]
		if d.ID == "" {
			return nil, fmt.Errorf("%w: definition %d has no id", ErrInvalidDefinition, i)
		}
		if _, dup := c.index[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidDefinition, d.ID)
		}
		if err := validate(&d); err != nil {
			return nil, err
		}
		d.RequiredUpgrades = append([]string(nil), d.RequiredUpgrades...)
		d.HostKinds = append([]string(nil), d.HostKinds...)
		d.Costs = append([]CostItem(nil), d.Costs...)
		d.AllowedMaterials = append([]string(nil), d.AllowedMaterials...)
		c.defs = append(c.defs, &d)
		c.index[d.ID] = &d
	}

	for _, d := range c.defs {
		for _, req := range d.RequiredUpgrades {
			if _, ok := c.index[req]; !ok {
				return nil, fmt.Errorf("%w: %q requires unknown upgrade %q", ErrInvalidDefinition, d.ID, req)
			}
		}
	}
	if id, ok := c.findCycle(); ok {
		return nil, fmt.Errorf("%w: prerequisite cycle through %q", ErrInvalidDefinition, id)
	}
	return c, nil
}

func validate(d *Definition) error {
	switch {
	case d.SpaceCost < 0 || d.SpaceCostPerBed < 0:
		return fmt.Errorf("%w: %q has negative space cost", ErrInvalidDefinition, d.ID)
	case d.BedCountMultiplier < 0:
		return fmt.Errorf("%w: %q has negative bed count multiplier", ErrInvalidDefinition, d.ID)
	case d.FuelPerBed < 0 || d.BasePowerConsumption < 0:
		return fmt.Errorf("%w: %q has negative consumption", ErrInvalidDefinition, d.ID)
	case d.HeatOffset < 0 || d.CoolOffset < 0 || d.InsulationAdjustment < 0:
		return fmt.Errorf("%w: %q has negative temperature offset", ErrInvalidDefinition, d.ID)
	case d.IsSmart() && !d.RequiresPower:
		return fmt.Errorf("%w: smart modifier %q must require power", ErrInvalidDefinition, d.ID)
	case d.MaterialCost < 0:
		return fmt.Errorf("%w: %q has negative material cost", ErrInvalidDefinition, d.ID)
	}
	for _, item := range d.Costs {
		if item.Resource == "" || item.Count < 0 {
			return fmt.Errorf("%w: %q has malformed cost line", ErrInvalidDefinition, d.ID)
		}
	}
	return nil
}

// findCycle runs a depth-first walk over prerequisites.
func (c *Catalog) findCycle() (string, bool) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(c.defs))

	var visit func(id string) bool
	visit = func(id string) bool {
		switch state[id] {
		case visiting:
			return true
		case done:
			return false
		}
		state[id] = visiting
		for _, req := range c.index[id].RequiredUpgrades {
			if visit(req) {
				return true
			}
		}
		state[id] = done
		return false
	}

	for _, d := range c.defs {
		if visit(d.ID) {
			return d.ID, true
		}
	}
	return "", false
}

// Lookup returns the definition with the given id.
func (c *Catalog) Lookup(id string) (*Definition, bool) {
	if c == nil {
		return nil, false
	}
	d, ok := c.index[id]
	return d, ok
}

// Has reports whether the catalog contains id.
func (c *Catalog) Has(id string) bool {
	_, ok := c.Lookup(id)
	return ok
}

// Definitions returns all definitions in catalog order.
func (c *Catalog) Definitions() []*Definition {
	out := make([]*Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Len returns the number of definitions.
func (c *Catalog) Len() int { return len(c.defs) }

// Suggest returns the known id closest to an unknown one, for error messages.
// Returns "" when nothing is close enough to be a plausible typo.
func (c *Catalog) Suggest(id string) string {
	if c == nil || id == "" {
		return ""
	}
	type scored struct {
		id   string
		dist int
	}
	var cands []scored
	for _, d := range c.defs {
		dist := levenshtein.ComputeDistance(id, d.ID)
		if dist <= suggestLimit(len(d.ID)) {
			cands = append(cands, scored{d.ID, dist})
		}
	}
	if len(cands) == 0 {
		return ""
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].dist == cands[j].dist {
			return cands[i].id < cands[j].id
		}
		return cands[i].dist < cands[j].dist
	})
	return cands[0].id
}

func suggestLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}

// UnknownError builds an ErrInvalidDefinition for an id missing from the catalog.
func (c *Catalog) UnknownError(id string) error {
	if s := c.Suggest(id); s != "" {
		return fmt.Errorf("%w: unknown upgrade %q (did you mean %q?)", ErrInvalidDefinition, id, s)
	}
	return fmt.Errorf("%w: unknown upgrade %q", ErrInvalidDefinition, id)
}

// fileDefinition is the on-disk shape; enums are stored by name.
type fileDefinition struct {
	Definition
	Category  string `json:"category"`
	SmartMode string `json:"smart_mode"`
}

// Parse decodes a JSON array of definitions into a catalog.
func Parse(data []byte) (*Catalog, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	defs := make([]Definition, 0, len(items))
	for _, item := range items {
		// An omitted multiplier means no effect; an explicit 0 is rejected.
		fd := fileDefinition{Definition: Definition{BedCountMultiplier: 1}}
		if err := json.Unmarshal(item, &fd); err != nil {
			return nil, fmt.Errorf("parse catalog: %w", err)
		}
		d := fd.Definition
		if d.BedCountMultiplier == 0 {
			return nil, fmt.Errorf("%w: %q has zero bed count multiplier; omit it for no effect", ErrInvalidDefinition, d.ID)
		}
		cat, ok := ParseCategory(fd.Category)
		if !ok {
			return nil, fmt.Errorf("%w: %q has unknown category %q", ErrInvalidDefinition, d.ID, fd.Category)
		}
		mode, ok := ParseSmartMode(fd.SmartMode)
		if !ok {
			return nil, fmt.Errorf("%w: %q has unknown smart mode %q", ErrInvalidDefinition, d.ID, fd.SmartMode)
		}
		d.Category = cat
		d.SmartMode = mode
		defs = append(defs, d)
	}
	return New(defs)
}

// ParseYAML decodes a YAML list of definitions. Keys are the same as in the
// JSON form.
func ParseYAML(data []byte) (*Catalog, error) {
	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog YAML: %w", err)
	}
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("parse catalog YAML: %w", err)
	}
	return Parse(asJSON)
}

// LoadFile reads a catalog from disk, as YAML for .yaml and .yml files and as
// JSON otherwise.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	}
	return Parse(data)
}

// MarshalJSON writes the catalog in the same shape Parse reads.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	out := make([]fileDefinition, 0, len(c.defs))
	for _, d := range c.defs {
		def := *d
		def.BedCountMultiplier = d.Multiplier()
		out = append(out, fileDefinition{
			Definition: def,
			Category:   d.Category.String(),
			SmartMode:  d.SmartMode.String(),
		})
	}
	return json.Marshal(out)
}
