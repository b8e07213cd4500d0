package weather

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Calendar used by the model. A year is four 90-day seasons starting in spring.
const (
	TicksPerDay = 1440
	DaysPerYear = 360
)

// NoiseModel produces outdoor temperatures from a seasonal curve, a daily swing
// and fractal simplex noise. The same seed always yields the same series.
type NoiseModel struct {
	Mean              float64 // Annual mean, °C
	SeasonalAmplitude float64 // Mid-summer minus mean
	DiurnalAmplitude  float64 // Afternoon peak minus daily mean
	NoiseAmplitude    float64

	noise opensimplex.Noise
}

// NewNoiseModel returns a temperate climate seeded with seed.
func NewNoiseModel(seed int64) *NoiseModel {
	return &NoiseModel{
		Mean:              10,
		SeasonalAmplitude: 14,
		DiurnalAmplitude:  5,
		NoiseAmplitude:    4,
		noise:             opensimplex.NewNormalized(seed),
	}
}

// OutdoorTemp implements Source.
func (m *NoiseModel) OutdoorTemp(tick uint64) float64 {
	day := float64(tick) / TicksPerDay
	hour := math.Mod(day, 1) * 24

	// Warmest at day 135 (mid-summer), coldest at day 315 (mid-winter).
	seasonal := math.Sin(2 * math.Pi * (day - 45) / DaysPerYear)
	// Coldest at 03:00, warmest at 15:00.
	diurnal := -math.Cos(2 * math.Pi * (hour - 3) / 24)
	// Normalized noise is in [0,1]; recentre to [-1,1].
	drift := 2*octaveNoise(m.noise, day, 0.25, 3, 0.3, 0.5) - 1

	return m.Mean +
		m.SeasonalAmplitude*seasonal +
		m.DiurnalAmplitude*diurnal +
		m.NoiseAmplitude*drift
}

// Description implements Describer.
func (m *NoiseModel) Description(tick uint64) string {
	return seasonDefault(uint8(tick / TicksPerDay / (DaysPerYear / 4) % 4))
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

func seasonDefault(season uint8) string {
	switch season {
	case 0:
		return "mild spring weather"
	case 1:
		return "warm summer sun"
	case 2:
		return "cool autumn breeze"
	case 3:
		return "cold winter chill"
	default:
		return "fair weather"
	}
}

// Fixed is a constant source.
type Fixed float64

// OutdoorTemp implements Source.
func (f Fixed) OutdoorTemp(uint64) float64 { return float64(f) }
