package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/talgya/bunkhouse/internal/catalog"
	"github.com/talgya/bunkhouse/internal/host"
	"github.com/talgya/bunkhouse/internal/weather"
)

// Event categories.
const (
	CategoryHost     = "host"
	CategoryUpgrade  = "upgrade"
	CategoryCapacity = "capacity"
	CategoryFuel     = "fuel"
	CategorySeason   = "season"
)

// MaxEvents is the number of recent events kept in memory.
const MaxEvents = 1000

// ErrUnknownHost is returned when no registered host has the requested ID.
var ErrUnknownHost = errors.New("unknown host")

// Simulation owns every host and advances them each tick. All access goes
// through its methods, which serialise on one mutex; hosts themselves are not
// safe for concurrent use.
type Simulation struct {
	mu sync.Mutex

	Catalog *catalog.Catalog
	Hosts   *Registry
	Weather weather.Source

	Events        []Event // Most recent last, at most MaxEvents
	LastTick      uint64  // Most recent tick processed
	CurrentSeason uint8   // 0=Spring, 1=Summer, 2=Autumn, 3=Winter
	OutdoorTemp   float64 // Last reading from Weather

	Stats SimStats
}

// Event is a notable occurrence in the simulation.
type Event struct {
	Tick        uint64 `json:"tick" db:"tick"`
	Description string `json:"description" db:"description"`
	Category    string `json:"category" db:"category"`
	HostID      string `json:"host_id,omitempty" db:"host_id"`
}

// SimStats tracks aggregate statistics over all hosts.
type SimStats struct {
	Hosts            int     `json:"hosts"`
	Spawned          int     `json:"spawned"`
	TotalBeds        int     `json:"total_beds"`
	AvgTemperature   float64 `json:"avg_temperature"` // Spawned hosts only
	TotalPowerDraw   float64 `json:"total_power_draw"`
	TotalFuelPerDay  float64 `json:"total_fuel_per_day"`
	TotalFuelReserve float64 `json:"total_fuel_reserve"`
	ActiveUpgrades   int     `json:"active_upgrades"`
	DisabledUpgrades int     `json:"disabled_upgrades"`
	SpaceShortages   int     `json:"space_shortages"`
}

// HostView is a consistent copy of one host's state.
type HostView struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Kind    string        `json:"kind"`
	Context host.Context  `json:"context"`
	State   host.Snapshot `json:"state"`
}

// Status summarises the simulation.
type Status struct {
	Tick        uint64   `json:"tick"`
	SimTime     string   `json:"sim_time"`
	Season      string   `json:"season"`
	OutdoorTemp float64  `json:"outdoor_temp"`
	Weather     string   `json:"weather,omitempty"`
	Stats       SimStats `json:"stats"`
}

// NewSimulation creates a Simulation over the given hosts.
func NewSimulation(cat *catalog.Catalog, src weather.Source, hosts []*host.Host) *Simulation {
	s := &Simulation{
		Catalog: cat,
		Hosts:   NewRegistry(),
		Weather: src,
	}
	for _, h := range hosts {
		if !s.Hosts.Add(h) {
			slog.Warn("duplicate host skipped", "id", h.ID, "name", h.Name)
			continue
		}
		h.OnCapacityChange = s.capacityChanged
	}
	s.updateStats()
	return s
}

// Locked runs fn while holding the simulation lock.
func (s *Simulation) Locked(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LastTick
}

func (s *Simulation) emit(e Event) {
	s.Events = append(s.Events, e)
	if len(s.Events) > MaxEvents {
		s.Events = s.Events[len(s.Events)-MaxEvents:]
	}
}

func (s *Simulation) capacityChanged(h *host.Host, before, after int) {
	desc := fmt.Sprintf("%s capacity changed from %d to %d beds", h.Name, before, after)
	if after < before {
		desc += "; occupants need reassigning"
	}
	s.emit(Event{Tick: s.LastTick, Description: desc, Category: CategoryCapacity, HostID: h.ID})
}

func viewOf(h *host.Host) HostView {
	return HostView{ID: h.ID, Name: h.Name, Kind: h.Kind, Context: h.Context, State: h.Snapshot()}
}

func (s *Simulation) get(id string) (*host.Host, error) {
	h, ok := s.Hosts.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHost, id)
	}
	return h, nil
}

// CreateHost registers a new host with an empty ledger.
func (s *Simulation) CreateHost(name, kind string, ctx host.Context) HostView {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := host.New(name, kind, s.Catalog, ctx)
	s.Hosts.Add(h)
	h.OnCapacityChange = s.capacityChanged
	s.emit(Event{Tick: s.LastTick, Description: fmt.Sprintf("%s registered as %s", h.Name, h.Kind), Category: CategoryHost, HostID: h.ID})
	return viewOf(h)
}

// RemoveHost unregisters a host.
func (s *Simulation) RemoveHost(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.Hosts.Remove(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHost, id)
	}
	h.OnCapacityChange = nil
	s.emit(Event{Tick: s.LastTick, Description: fmt.Sprintf("%s removed", h.Name), Category: CategoryHost, HostID: h.ID})
	return nil
}

// HostView returns the current state of one host.
func (s *Simulation) HostView(id string) (HostView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.get(id)
	if err != nil {
		return HostView{}, err
	}
	return viewOf(h), nil
}

// HostViews returns every host's state in registration order, or only the
// hosts with the given capabilities.
func (s *Simulation) HostViews(caps ...Capability) []HostView {
	s.mu.Lock()
	defer s.mu.Unlock()

	hosts := s.Hosts.All()
	for _, c := range caps {
		hosts = intersect(hosts, s.Hosts.WithCapability(c))
	}
	views := make([]HostView, 0, len(hosts))
	for _, h := range hosts {
		views = append(views, viewOf(h))
	}
	return views
}

func intersect(a, b []*host.Host) []*host.Host {
	keep := make(map[string]bool, len(b))
	for _, h := range b {
		keep[h.ID] = true
	}
	var out []*host.Host
	for _, h := range a {
		if keep[h.ID] {
			out = append(out, h)
		}
	}
	return out
}

// Install builds an upgrade on a host.
func (s *Simulation) Install(id, defID, material string) (HostView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.get(id)
	if err != nil {
		return HostView{}, err
	}
	if err := h.Install(defID, material); err != nil {
		return HostView{}, err
	}
	desc := fmt.Sprintf("%s built on %s", defID, h.Name)
	if material != "" {
		desc = fmt.Sprintf("%s (%s) built on %s", defID, material, h.Name)
	}
	if n := h.ConstructedCount(defID); n > 1 {
		desc = fmt.Sprintf("%s now has %d× %s", h.Name, n, defID)
	}
	s.emit(Event{Tick: s.LastTick, Description: desc, Category: CategoryUpgrade, HostID: h.ID})
	return viewOf(h), nil
}

// RemoveUpgrade deconstructs one instance, or every instance when all is set,
// and returns the refund at pct of the construction cost.
func (s *Simulation) RemoveUpgrade(id, defID string, all bool, pct float64) (host.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.get(id)
	if err != nil {
		return host.Refund{}, err
	}
	var ref host.Refund
	if all {
		ref, err = h.RemoveAllWithRefund(defID, pct)
	} else {
		ref, err = h.RemoveOneWithRefund(defID, pct)
	}
	if err != nil {
		return host.Refund{}, err
	}

	parts := make([]string, 0, len(ref.Lines))
	for _, l := range ref.Lines {
		parts = append(parts, fmt.Sprintf("%d %s", l.Amount, l.Resource))
	}
	desc := fmt.Sprintf("%d× %s removed from %s", ref.Instances, defID, h.Name)
	if len(parts) > 0 {
		desc += ", refunded " + strings.Join(parts, ", ")
	}
	s.emit(Event{Tick: s.LastTick, Description: desc, Category: CategoryUpgrade, HostID: h.ID})
	return ref, nil
}

// Toggle flips an upgrade on a host on or off.
func (s *Simulation) Toggle(id, defID string) (HostView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.get(id)
	if err != nil {
		return HostView{}, err
	}
	before, _ := h.Ledger().Get(defID)
	if err := h.Toggle(defID); err != nil {
		return HostView{}, err
	}
	if after, _ := h.Ledger().Get(defID); after.ToggledOff != before.ToggledOff {
		state := "on"
		if after.ToggledOff {
			state = "off"
		}
		s.emit(Event{Tick: s.LastTick, Description: fmt.Sprintf("%s switched %s on %s", defID, state, h.Name), Category: CategoryUpgrade, HostID: h.ID})
	}
	return viewOf(h), nil
}

// UpdateContext applies fn to a host's context. Capacity changes caused by a
// new base bed count are reported like any other.
func (s *Simulation) UpdateContext(id string, fn func(*host.Context)) (HostView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.get(id)
	if err != nil {
		return HostView{}, err
	}
	before := h.BedCount()
	fn(&h.Context)
	if after := h.BedCount(); after != before {
		s.capacityChanged(h, before, after)
	}
	return viewOf(h), nil
}

// RecentEvents returns up to n of the latest events, oldest first.
func (s *Simulation) RecentEvents(n int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	if n > 0 && len(s.Events) > n {
		start = len(s.Events) - n
	}
	out := make([]Event, len(s.Events)-start)
	copy(out, s.Events[start:])
	return out
}

// Status returns the current simulation summary.
func (s *Simulation) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateStats()

	st := Status{
		Tick:        s.LastTick,
		SimTime:     SimTime(s.LastTick),
		Season:      SeasonName(s.CurrentSeason),
		OutdoorTemp: s.OutdoorTemp,
		Stats:       s.Stats,
	}
	if d, ok := s.Weather.(weather.Describer); ok {
		st.Weather = d.Description(s.LastTick)
	}
	return st
}

// TickMinute runs every tick: polls the outdoor temperature, pushes it into
// every spawned host and burns one tick's worth of fuel.
func (s *Simulation) TickMinute(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastTick = tick
	s.OutdoorTemp = s.Weather.OutdoorTemp(tick)

	for _, h := range s.Hosts.All() {
		if !h.Context.Spawned {
			continue
		}
		h.Context.OutdoorTemp = s.OutdoorTemp

		had := h.Context.FuelReserve > 0
		h.ConsumeFuel(h.Usage().FuelPerTick(TicksPerSimDay))
		if had && h.Context.FuelReserve <= 0 {
			s.emit(Event{
				Tick:        tick,
				Description: fmt.Sprintf("%s ran out of fuel", h.Name),
				Category:    CategoryFuel,
				HostID:      h.ID,
			})
		}
	}
}

// TickHour runs every sim-hour: refreshes aggregate statistics.
func (s *Simulation) TickHour(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateStats()
}

// TickDay runs every sim-day: daily summary.
func (s *Simulation) TickDay(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateStats()

	eventCounts := make(map[string]int)
	for _, e := range s.Events {
		eventCounts[e.Category]++
	}

	slog.Info("daily report",
		"tick", tick,
		"time", SimTime(tick),
		"hosts", s.Stats.Hosts,
		"beds", humanize.Comma(int64(s.Stats.TotalBeds)),
		"outdoor", fmt.Sprintf("%.1f", s.OutdoorTemp),
		"avg_temp", fmt.Sprintf("%.1f", s.Stats.AvgTemperature),
		"power_draw", humanize.CommafWithDigits(s.Stats.TotalPowerDraw, 1),
		"fuel_per_day", humanize.CommafWithDigits(s.Stats.TotalFuelPerDay, 1),
		"fuel_reserve", humanize.CommafWithDigits(s.Stats.TotalFuelReserve, 1),
		"disabled_upgrades", s.Stats.DisabledUpgrades,
		"space_shortages", s.Stats.SpaceShortages,
		"events_capacity", eventCounts[CategoryCapacity],
		"events_fuel", eventCounts[CategoryFuel],
		"events_upgrade", eventCounts[CategoryUpgrade],
	)

	recentStart := 0
	if len(s.Events) > 20 {
		recentStart = len(s.Events) - 20
	}
	for _, e := range s.Events[recentStart:] {
		if e.Tick > tick-TicksPerSimDay && (e.Category == CategoryFuel || e.Category == CategoryCapacity) {
			slog.Info("event", "category", e.Category, "description", e.Description)
		}
	}
}

// TickWeek runs every sim-week: weekly summary.
func (s *Simulation) TickWeek(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slog.Info("weekly summary",
		"tick", tick,
		"time", SimTime(tick),
		"events_buffered", len(s.Events),
	)
}

// TickSeason runs every sim-season.
func (s *Simulation) TickSeason(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processSeason(tick)
}

func (s *Simulation) updateStats() {
	var st SimStats
	var tempSum float64
	for _, h := range s.Hosts.All() {
		snap := h.Snapshot()
		st.Hosts++
		st.TotalBeds += snap.BedCount
		if snap.SpaceShortage > 0 {
			st.SpaceShortages++
		}
		for _, u := range snap.Upgrades {
			if u.Reason == host.Active {
				st.ActiveUpgrades++
			} else {
				st.DisabledUpgrades++
			}
		}
		if !h.Context.Spawned {
			continue
		}
		st.Spawned++
		tempSum += snap.Climate.Current
		st.TotalPowerDraw += snap.Usage.PowerDraw
		st.TotalFuelPerDay += snap.Usage.FuelPerDay
		st.TotalFuelReserve += h.Context.FuelReserve
	}
	if st.Spawned > 0 {
		st.AvgTemperature = tempSum / float64(st.Spawned)
	}
	s.Stats = st
}
