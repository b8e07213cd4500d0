package engine

import (
	"fmt"
	"log/slog"
)

// Season constants.
const (
	SeasonSpring = 0
	SeasonSummer = 1
	SeasonAutumn = 2
	SeasonWinter = 3
)

// SeasonName returns a human-readable season name.
func SeasonName(season uint8) string {
	switch season {
	case SeasonSpring:
		return "Spring"
	case SeasonSummer:
		return "Summer"
	case SeasonAutumn:
		return "Autumn"
	case SeasonWinter:
		return "Winter"
	default:
		return "Unknown"
	}
}

// SeasonAt returns the season a tick falls in.
func SeasonAt(tick uint64) uint8 {
	return uint8((tick / TicksPerSimSeason) % 4)
}

// processSeason records a season change and warns about hosts that have no way
// to counter the coming weather.
func (s *Simulation) processSeason(tick uint64) {
	s.CurrentSeason = SeasonAt(tick)

	slog.Info("season change",
		"tick", tick,
		"time", SimTime(tick),
		"season", SeasonName(s.CurrentSeason),
		"hosts", s.Stats.Hosts,
	)
	s.emit(Event{
		Tick:        tick,
		Description: fmt.Sprintf("%s begins", SeasonName(s.CurrentSeason)),
		Category:    CategorySeason,
	})

	if s.CurrentSeason != SeasonWinter && s.CurrentSeason != SeasonSummer {
		return
	}
	climateHosts := make(map[string]bool)
	for _, h := range s.Hosts.WithCapability(CapClimate) {
		climateHosts[h.ID] = true
	}
	for _, h := range s.Hosts.All() {
		if climateHosts[h.ID] || !h.Context.Spawned {
			continue
		}
		s.emit(Event{
			Tick:        tick,
			Description: fmt.Sprintf("%s has no climate upgrades for the %s", h.Name, SeasonName(s.CurrentSeason)),
			Category:    CategorySeason,
			HostID:      h.ID,
		})
	}
}
