package host

import (
	"encoding/json"
	"fmt"

	"github.com/talgya/bunkhouse/internal/catalog"
	"github.com/talgya/bunkhouse/internal/climate"
)

// RoomType classifies how occupants experience the host.
type RoomType uint8

const (
	SingleBedroom RoomType = iota
	MultiplePrivateRooms
	Barracks
)

// PrivateRoomsBedCount is the capacity at which a host counts as several rooms.
const PrivateRoomsBedCount = 4

// MaxImpressiveness is the highest impressiveness stage.
const MaxImpressiveness = 9

func (t RoomType) String() string {
	switch t {
	case MultiplePrivateRooms:
		return "multiple_private_rooms"
	case Barracks:
		return "barracks"
	default:
		return "single_bedroom"
	}
}

// MarshalJSON writes the room type by name.
func (t RoomType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON reads a room type by name.
func (t *RoomType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, c := range []RoomType{SingleBedroom, MultiplePrivateRooms, Barracks} {
		if c.String() == s {
			*t = c
			return nil
		}
	}
	return fmt.Errorf("unknown room type %q", s)
}

// Comfort summarises how the active upgrades affect occupants.
type Comfort struct {
	Impressiveness           int      `json:"impressiveness"` // 0–9
	RoomType                 RoomType `json:"room_type"`
	Basement                 bool     `json:"basement"`
	SharedBed                bool     `json:"shared_bed"`
	SuppressesSleepDisturbed bool     `json:"suppresses_sleep_disturbed"`
}

// Comfort derives the comfort summary from the active upgrades.
func (h *Host) Comfort() Comfort {
	beds := h.BedCount()
	return comfortFor(h.Kind, h.activeModifiers(beds), beds)
}

func comfortFor(kind string, active []climate.Modifier, beds int) Comfort {
	c := Comfort{Basement: kind == KindBasement}

	bonus := 0
	barracks := false
	for _, m := range active {
		bonus += m.Def.ImpressivenessLevel
		if m.Def.Category == catalog.CategoryBarracks {
			barracks = true
		}
		if m.Def.RemoveSleepDisturbed {
			c.SuppressesSleepDisturbed = true
		}
	}
	c.Impressiveness = max(0, min(MaxImpressiveness, 1+bonus))

	switch {
	case barracks:
		c.RoomType = Barracks
	case beds >= PrivateRoomsBedCount:
		c.RoomType = MultiplePrivateRooms
	default:
		c.RoomType = SingleBedroom
	}
	// Two or three occupants in a single room share a bed.
	c.SharedBed = c.RoomType == SingleBedroom && beds > 1
	return c
}
