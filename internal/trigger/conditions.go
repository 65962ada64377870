package trigger

import (
	"encoding/json"
	"fmt"
)

// Operator is a comparison used by count conditions.
type Operator string

const (
	OpGE Operator = ">="
	OpLE Operator = "<="
	OpEQ Operator = "=="
	OpGT Operator = ">"
	OpLT Operator = "<"
)

// Valid reports whether op is a recognised comparison.
func (op Operator) Valid() bool {
	switch op {
	case OpGE, OpLE, OpEQ, OpGT, OpLT:
		return true
	}
	return false
}

// Compare applies the operator to (value, target).
func (op Operator) Compare(value, target int) bool {
	switch op {
	case OpGE:
		return value >= target
	case OpLE:
		return value <= target
	case OpEQ:
		return value == target
	case OpGT:
		return value > target
	case OpLT:
		return value < target
	}
	return false
}

// PresenceCondition fires when a zone holds at least MinObjects blobs.
type PresenceCondition struct {
	Zone       string `json:"zone"`
	MinObjects int    `json:"min_objects"`

	// RequireStable additionally demands the zone's detections have
	// settled across the stability window before firing, to avoid
	// triggering on transient motion.
	RequireStable bool `json:"require_stable,omitempty"`
}

// CountCondition compares a zone's object count (or a running cumulative
// total) against a target.
type CountCondition struct {
	Zone       string   `json:"zone"`
	Target     int      `json:"target"`
	Op         Operator `json:"operator"`
	Cumulative bool     `json:"cumulative,omitempty"`
}

// ZoneRule is one presence requirement inside a multi-zone condition.
type ZoneRule struct {
	Zone       string `json:"zone"`
	MinObjects int    `json:"min_objects"`
}

// MultiZoneCondition combines per-zone presence rules with AND/OR logic.
type MultiZoneCondition struct {
	Logic string     `json:"logic"` // AND | OR
	Rules []ZoneRule `json:"rules"`
}

// Conditions is the closed union of condition payloads. Exactly the variant
// matching the trigger's Type is populated.
type Conditions struct {
	Presence  *PresenceCondition
	Count     *CountCondition
	MultiZone *MultiZoneCondition
}

// DecodeConditions parses the on-disk conditions payload, whose shape is
// selected by the trigger type from the manifest.
func DecodeConditions(typ Type, data []byte) (Conditions, error) {
	var c Conditions
	switch typ {
	case TypePresence:
		p := &PresenceCondition{}
		if err := json.Unmarshal(data, p); err != nil {
			return c, fmt.Errorf("presence conditions: %w", err)
		}
		c.Presence = p
	case TypeCount:
		cc := &CountCondition{}
		if err := json.Unmarshal(data, cc); err != nil {
			return c, fmt.Errorf("count conditions: %w", err)
		}
		c.Count = cc
	case TypeMultiZone:
		m := &MultiZoneCondition{}
		if err := json.Unmarshal(data, m); err != nil {
			return c, fmt.Errorf("multi_zone conditions: %w", err)
		}
		c.MultiZone = m
	default:
		return c, fmt.Errorf("unknown trigger type %q", typ)
	}
	if err := c.validateFor(typ); err != nil {
		return Conditions{}, err
	}
	return c, nil
}

// Encode serializes the populated variant back to its on-disk payload.
func (c Conditions) Encode(typ Type) ([]byte, error) {
	switch typ {
	case TypePresence:
		if c.Presence == nil {
			return nil, fmt.Errorf("presence trigger has no presence conditions")
		}
		return json.MarshalIndent(c.Presence, "", "  ")
	case TypeCount:
		if c.Count == nil {
			return nil, fmt.Errorf("count trigger has no count conditions")
		}
		return json.MarshalIndent(c.Count, "", "  ")
	case TypeMultiZone:
		if c.MultiZone == nil {
			return nil, fmt.Errorf("multi_zone trigger has no multi_zone conditions")
		}
		return json.MarshalIndent(c.MultiZone, "", "  ")
	}
	return nil, fmt.Errorf("unknown trigger type %q", typ)
}

// validateFor checks the populated variant matches the trigger type and its
// fields are well-formed.
func (c Conditions) validateFor(typ Type) error {
	switch typ {
	case TypePresence:
		if c.Presence == nil {
			return fmt.Errorf("presence trigger requires presence conditions")
		}
		if c.Presence.Zone == "" {
			return fmt.Errorf("presence condition names no zone")
		}
		if c.Presence.MinObjects < 1 {
			return fmt.Errorf("presence min_objects must be at least 1, got %d", c.Presence.MinObjects)
		}
	case TypeCount:
		if c.Count == nil {
			return fmt.Errorf("count trigger requires count conditions")
		}
		if c.Count.Zone == "" {
			return fmt.Errorf("count condition names no zone")
		}
		if !c.Count.Op.Valid() {
			return fmt.Errorf("count condition has unknown operator %q", c.Count.Op)
		}
	case TypeMultiZone:
		if c.MultiZone == nil {
			return fmt.Errorf("multi_zone trigger requires multi_zone conditions")
		}
		logic := c.MultiZone.Logic
		if logic != "AND" && logic != "OR" {
			return fmt.Errorf("multi_zone logic must be AND or OR, got %q", logic)
		}
		if len(c.MultiZone.Rules) == 0 {
			return fmt.Errorf("multi_zone condition has no rules")
		}
		for i, r := range c.MultiZone.Rules {
			if r.Zone == "" {
				return fmt.Errorf("multi_zone rule %d names no zone", i)
			}
			if r.MinObjects < 1 {
				return fmt.Errorf("multi_zone rule %d min_objects must be at least 1", i)
			}
		}
	default:
		return fmt.Errorf("unknown trigger type %q", typ)
	}
	return nil
}
