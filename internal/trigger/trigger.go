// Package trigger defines persisted trigger rules, their folder-per-trigger
// store, and the evaluator that turns per-zone detection counts into fire
// decisions.
package trigger

import (
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/visiond/internal/geometry"
)

// Type is the closed set of trigger variants. Unknown tags are rejected when
// a definition is loaded, not discovered at evaluation time.
type Type string

const (
	TypePresence  Type = "presence"
	TypeCount     Type = "count"
	TypeMultiZone Type = "multi_zone"
)

// Valid reports whether t names a known variant.
func (t Type) Valid() bool {
	switch t {
	case TypePresence, TypeCount, TypeMultiZone:
		return true
	}
	return false
}

// Action describes what the external sequencer should do when the trigger
// fires. The daemon only reports it; the sequencer interprets it.
type Action struct {
	Kind   string `json:"type"` // advance_sequence | start_sequence | stop | alert
	Target string `json:"target,omitempty"`
}

// ActiveWhen gates evaluation on the robot's reported state.
type ActiveWhen struct {
	RobotState string `json:"robot_state,omitempty"`
}

// Trigger is a persisted rule: zones to watch plus a condition payload
// shaped by Type. Loaded read-only by the daemon at startup.
type Trigger struct {
	Name          string
	ID            string // sanitized slug of Name, the storage key
	Type          Type
	Enabled       bool
	CheckInterval float64 // seconds
	Description   string
	Zones         []*geometry.Zone
	Conditions    Conditions
	Action        Action
	ActiveWhen    ActiveWhen
	CreatedAt     time.Time
	ModifiedAt    time.Time
}

// New creates an enabled trigger with its ID derived from the name.
func New(name string, typ Type) *Trigger {
	return &Trigger{
		Name:       name,
		ID:         Slug(name),
		Type:       typ,
		Enabled:    true,
		ActiveWhen: ActiveWhen{RobotState: "home"},
	}
}

// Slug derives the stable storage key from a trigger name: lowercase, runs
// of non-alphanumerics collapsed to single hyphens. Duplicate names collide
// deliberately; saving under an existing name overwrites it.
func Slug(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteRune('-')
				lastHyphen = true
			}
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "trigger"
	}
	return s
}

// Validate applies the load-time invariants: a nonempty name, a known type,
// valid zones, and a condition payload matching the type.
func (t *Trigger) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("trigger name must not be empty")
	}
	if !t.Type.Valid() {
		return fmt.Errorf("trigger %q has unknown type %q", t.Name, t.Type)
	}
	if t.ID == "" {
		return fmt.Errorf("trigger %q has empty id", t.Name)
	}
	for i, z := range t.Zones {
		if err := z.Validate(); err != nil {
			return fmt.Errorf("trigger %q zone %d: %w", t.Name, i, err)
		}
	}
	if err := t.Conditions.validateFor(t.Type); err != nil {
		return fmt.Errorf("trigger %q: %w", t.Name, err)
	}
	return nil
}
