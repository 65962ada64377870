// Package geometry models the polygonal zones triggers watch within the
// camera frame.
package geometry

import (
	"encoding/json"
	"fmt"
)

// ZoneType classifies how a zone is used by trigger conditions.
type ZoneType string

const (
	ZoneTypeTrigger      ZoneType = "trigger"
	ZoneTypeCount        ZoneType = "count"
	ZoneTypeQualityCheck ZoneType = "quality_check"
)

// Valid reports whether t is one of the recognised zone types.
func (t ZoneType) Valid() bool {
	switch t {
	case ZoneTypeTrigger, ZoneTypeCount, ZoneTypeQualityCheck:
		return true
	}
	return false
}

// ValidationError describes why a zone definition was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid zone %s: %s", e.Field, e.Reason)
}

// Point is a vertex in pixel space. It marshals as a two-element [x, y]
// array to match the on-disk polygon format.
type Point struct {
	X float64
	Y float64
}

// MarshalJSON renders the point as [x, y].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// UnmarshalJSON accepts a two-element [x, y] array.
func (p *Point) UnmarshalJSON(data []byte) error {
	var raw []float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("polygon vertex must have exactly 2 coordinates, got %d", len(raw))
	}
	p.X, p.Y = raw[0], raw[1]
	return nil
}

// Zone is an immutable polygonal region of interest. Zones are owned by a
// trigger definition and consumed read-only by the detector and evaluator.
type Zone struct {
	ID      string   `json:"zone_id"`
	Name    string   `json:"name"`
	Polygon []Point  `json:"polygon"`
	Type    ZoneType `json:"zone_type"`
	Enabled bool     `json:"enabled"`
	Notes   string   `json:"notes,omitempty"`
}

// NewZone constructs a validated zone.
func NewZone(id, name string, polygon []Point, zoneType ZoneType) (*Zone, error) {
	z := &Zone{
		ID:      id,
		Name:    name,
		Polygon: polygon,
		Type:    zoneType,
		Enabled: true,
	}
	if err := z.Validate(); err != nil {
		return nil, err
	}
	return z, nil
}

// Validate applies the construction-time invariants. Deserialized zones go
// through the same checks so a malformed polygon on disk is rejected at load.
func (z *Zone) Validate() error {
	if z.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if len(z.Polygon) < 3 {
		return &ValidationError{
			Field:  "polygon",
			Reason: fmt.Sprintf("needs at least 3 vertices, got %d", len(z.Polygon)),
		}
	}
	if !z.Type.Valid() {
		return &ValidationError{
			Field:  "zone_type",
			Reason: fmt.Sprintf("unrecognised type %q", z.Type),
		}
	}
	return nil
}

// UnmarshalJSON decodes and validates in one step.
func (z *Zone) UnmarshalJSON(data []byte) error {
	type alias Zone
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*z = Zone(a)
	return z.Validate()
}

// Contains reports whether the point (x, y) lies inside the polygon using
// the even-odd ray-casting rule. A point exactly on an edge may be
// classified either way; callers must not depend on edge behaviour.
func (z *Zone) Contains(x, y float64) bool {
	inside := false
	n := len(z.Polygon)
	j := n - 1
	for i := 0; i < n; i++ {
		pi, pj := z.Polygon[i], z.Polygon[j]
		if (pi.Y > y) != (pj.Y > y) &&
			x < (pj.X-pi.X)*(y-pi.Y)/(pj.Y-pi.Y)+pi.X {
			inside = !inside
		}
		j = i
	}
	return inside
}

// BoundingBox returns the axis-aligned extent of the polygon.
func (z *Zone) BoundingBox() (minX, minY, maxX, maxY float64) {
	minX, minY = z.Polygon[0].X, z.Polygon[0].Y
	maxX, maxY = minX, minY
	for _, p := range z.Polygon[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return minX, minY, maxX, maxY
}

// Centroid returns the arithmetic mean of the polygon vertices.
func (z *Zone) Centroid() (x, y float64) {
	for _, p := range z.Polygon {
		x += p.X
		y += p.Y
	}
	n := float64(len(z.Polygon))
	return x / n, y / n
}
