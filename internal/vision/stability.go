package vision

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultStabilityTolerancePx is how far a box centre may drift across the
// stability window before the zone is considered unsettled.
const DefaultStabilityTolerancePx = 12.0

// stabilityTracker remembers the last N frames' box sets per zone so trigger
// conditions can require that motion has settled before firing.
type stabilityTracker struct {
	window    int
	tolerance float64
	perZone   map[string][]frameObservation
}

type frameObservation struct {
	count   int
	centers [][2]float64
}

func newStabilityTracker(window int, tolerance float64) *stabilityTracker {
	if window < 2 {
		window = 2
	}
	if tolerance <= 0 {
		tolerance = DefaultStabilityTolerancePx
	}
	return &stabilityTracker{
		window:    window,
		tolerance: tolerance,
		perZone:   make(map[string][]frameObservation),
	}
}

func (s *stabilityTracker) record(zoneID string, boxes []Box) {
	obs := frameObservation{count: len(boxes)}
	for _, b := range boxes {
		cx, cy := b.Center()
		obs.centers = append(obs.centers, [2]float64{cx, cy})
	}

	hist := append(s.perZone[zoneID], obs)
	if len(hist) > s.window {
		hist = hist[len(hist)-s.window:]
	}
	s.perZone[zoneID] = hist
}

// stable reports whether the zone's object count varied by at most 1 across
// a full window and every box centre in the newest frame sits within the
// pixel tolerance of some centre in the earliest frame.
func (s *stabilityTracker) stable(zoneID string) bool {
	hist := s.perZone[zoneID]
	if len(hist) < s.window {
		return false
	}

	counts := make([]float64, len(hist))
	for i, obs := range hist {
		counts[i] = float64(obs.count)
	}
	if floats.Max(counts)-floats.Min(counts) > 1 {
		return false
	}

	earliest := hist[0]
	newest := hist[len(hist)-1]
	for _, c := range newest.centers {
		if nearestDistance(c, earliest.centers) >= s.tolerance {
			return false
		}
	}
	return true
}

func (s *stabilityTracker) reset() {
	s.perZone = make(map[string][]frameObservation)
}

func nearestDistance(p [2]float64, candidates [][2]float64) float64 {
	if len(candidates) == 0 {
		return math.Inf(1)
	}
	best := math.Inf(1)
	for _, c := range candidates {
		dx := p[0] - c[0]
		dy := p[1] - c[1]
		if d := math.Hypot(dx, dy); d < best {
			best = d
		}
	}
	return best
}
