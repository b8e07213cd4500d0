package engine

import (
	"github.com/talgya/bunkhouse/internal/host"
)

// Capability selects hosts by what their upgrades can do.
type Capability uint8

const (
	CapMultiBed Capability = iota // More than one bed
	CapClimate                    // At least one climate upgrade constructed
	CapPowered                    // At least one powered upgrade constructed
)

// String returns the capability's identifier.
func (c Capability) String() string {
	switch c {
	case CapMultiBed:
		return "multi_bed"
	case CapClimate:
		return "climate"
	case CapPowered:
		return "powered"
	default:
		return "unknown"
	}
}

// ParseCapability returns the capability with the given identifier.
func ParseCapability(s string) (Capability, bool) {
	for _, c := range []Capability{CapMultiBed, CapClimate, CapPowered} {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// Registry is the set of hosts a simulation owns, in registration order.
// Capability queries are evaluated on demand against each host's ledger, so
// they never go stale when upgrades change.
type Registry struct {
	hosts []*host.Host
	index map[string]int // host ID → position in hosts
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Add registers h. It reports false if a host with the same ID is present.
func (r *Registry) Add(h *host.Host) bool {
	if _, ok := r.index[h.ID]; ok {
		return false
	}
	r.index[h.ID] = len(r.hosts)
	r.hosts = append(r.hosts, h)
	return true
}

// Remove unregisters the host with the given ID and returns it.
func (r *Registry) Remove(id string) (*host.Host, bool) {
	pos, ok := r.index[id]
	if !ok {
		return nil, false
	}
	h := r.hosts[pos]
	r.hosts = append(r.hosts[:pos], r.hosts[pos+1:]...)
	delete(r.index, id)
	for i := pos; i < len(r.hosts); i++ {
		r.index[r.hosts[i].ID] = i
	}
	return h, true
}

// Get returns the host with the given ID.
func (r *Registry) Get(id string) (*host.Host, bool) {
	pos, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return r.hosts[pos], true
}

// All returns every host in registration order.
func (r *Registry) All() []*host.Host {
	out := make([]*host.Host, len(r.hosts))
	copy(out, r.hosts)
	return out
}

// Len returns the number of registered hosts.
func (r *Registry) Len() int { return len(r.hosts) }

// WithCapability returns the hosts that currently have capability c.
func (r *Registry) WithCapability(c Capability) []*host.Host {
	var out []*host.Host
	for _, h := range r.hosts {
		if hasCapability(h, c) {
			out = append(out, h)
		}
	}
	return out
}

func hasCapability(h *host.Host, c Capability) bool {
	if c == CapMultiBed {
		return h.BedCount() > 1
	}
	for _, rec := range h.Ledger().Records() {
		d, ok := h.Catalog().Lookup(rec.DefID)
		if !ok {
			continue
		}
		switch {
		case c == CapClimate && d.AffectsClimate():
			return true
		case c == CapPowered && d.RequiresPower:
			return true
		}
	}
	return false
}
