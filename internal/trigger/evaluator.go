package trigger

import (
	"fmt"
	"sync"

	"github.com/banshee-data/visiond/internal/vision"
)

// Evaluation is the verdict for one trigger on one frame. Consumed
// immediately to build a vision event; never persisted.
type Evaluation struct {
	Triggered bool                   `json:"triggered"`
	Reason    string                 `json:"reason"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// CumulativeState holds the running totals for cumulative count triggers.
// It is the only mutable state in evaluation, owned explicitly by the
// daemon and injected here so tests get a fresh instance each time. Totals
// are in-memory only: a process restart loses cumulative progress.
type CumulativeState struct {
	mu     sync.Mutex
	totals map[string]int
}

// NewCumulativeState creates an empty state.
func NewCumulativeState() *CumulativeState {
	return &CumulativeState{totals: make(map[string]int)}
}

// Add increments the total for a trigger id and returns the new value.
func (s *CumulativeState) Add(triggerID string, n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals[triggerID] += n
	return s.totals[triggerID]
}

// Get returns the current total for a trigger id.
func (s *CumulativeState) Get(triggerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals[triggerID]
}

// Reset zeroes the total for a trigger id, e.g. when a sequence restarts.
func (s *CumulativeState) Reset(triggerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.totals, triggerID)
}

// StabilityFunc reports whether a zone's detections have settled. Wired to
// vision.Detector.Stable in production; tests substitute fixtures.
type StabilityFunc func(zoneID string) bool

// Evaluator maps a trigger definition plus the current frame's detection
// results to a verdict. Stateless per call except for the injected
// cumulative state.
type Evaluator struct {
	cum    *CumulativeState
	stable StabilityFunc
}

// NewEvaluator creates an evaluator around the given cumulative state.
func NewEvaluator(cum *CumulativeState) *Evaluator {
	if cum == nil {
		cum = NewCumulativeState()
	}
	return &Evaluator{cum: cum}
}

// WithStability attaches a stability oracle used by conditions that set
// require_stable.
func (e *Evaluator) WithStability(f StabilityFunc) *Evaluator {
	e.stable = f
	return e
}

// Cumulative exposes the running-total lifecycle for external control.
func (e *Evaluator) Cumulative() *CumulativeState { return e.cum }

// Evaluate returns the verdict for one trigger given this frame's per-zone
// results. Unknown trigger types evaluate to not-triggered with a
// diagnostic reason; they never panic or error.
func (e *Evaluator) Evaluate(t *Trigger, results []vision.DetectionResult) Evaluation {
	byZone := indexResults(results)

	switch t.Type {
	case TypePresence:
		return e.evaluatePresence(t, byZone)
	case TypeCount:
		return e.evaluateCount(t, byZone)
	case TypeMultiZone:
		return e.evaluateMultiZone(t, byZone)
	}

	return Evaluation{
		Triggered: false,
		Reason:    fmt.Sprintf("unknown trigger type %q", t.Type),
	}
}

// indexResults keys results by zone name, with zone id as a fallback key so
// conditions may reference either.
func indexResults(results []vision.DetectionResult) map[string]vision.DetectionResult {
	byZone := make(map[string]vision.DetectionResult, len(results))
	for _, r := range results {
		if r.ZoneName != "" {
			byZone[r.ZoneName] = r
		}
		if r.ZoneID != "" {
			if _, taken := byZone[r.ZoneID]; !taken {
				byZone[r.ZoneID] = r
			}
		}
	}
	return byZone
}

func (e *Evaluator) evaluatePresence(t *Trigger, byZone map[string]vision.DetectionResult) Evaluation {
	cond := t.Conditions.Presence
	if cond == nil {
		return Evaluation{Reason: "presence trigger has no conditions"}
	}

	r, ok := byZone[cond.Zone]
	if !ok {
		return Evaluation{Reason: fmt.Sprintf("zone %q not found in detection results", cond.Zone)}
	}

	details := map[string]interface{}{
		"zone":         cond.Zone,
		"object_count": r.ObjectCount,
		"min_objects":  cond.MinObjects,
		"boxes":        r.Boxes,
	}

	if r.ObjectCount < cond.MinObjects {
		return Evaluation{
			Reason:  fmt.Sprintf("%d object(s) in zone %q, need %d", r.ObjectCount, cond.Zone, cond.MinObjects),
			Details: details,
		}
	}

	if cond.RequireStable {
		if e.stable == nil || !e.stable(r.ZoneID) {
			details["stable"] = false
			return Evaluation{
				Reason:  fmt.Sprintf("%d object(s) in zone %q but not yet stable", r.ObjectCount, cond.Zone),
				Details: details,
			}
		}
		details["stable"] = true
	}

	return Evaluation{
		Triggered: true,
		Reason:    fmt.Sprintf("%d object(s) in zone %q (min %d)", r.ObjectCount, cond.Zone, cond.MinObjects),
		Details:   details,
	}
}

func (e *Evaluator) evaluateCount(t *Trigger, byZone map[string]vision.DetectionResult) Evaluation {
	cond := t.Conditions.Count
	if cond == nil {
		return Evaluation{Reason: "count trigger has no conditions"}
	}

	r, ok := byZone[cond.Zone]
	if !ok {
		return Evaluation{Reason: fmt.Sprintf("zone %q not found in detection results", cond.Zone)}
	}

	value := r.ObjectCount
	details := map[string]interface{}{
		"zone":        cond.Zone,
		"frame_count": r.ObjectCount,
		"target":      cond.Target,
		"operator":    string(cond.Op),
		"cumulative":  cond.Cumulative,
	}

	if cond.Cumulative {
		// Only add when this frame saw something: polling a stationary
		// object repeatedly must not inflate the total every cycle. This is
		// an anti-double-count heuristic, not an exactly-once guarantee.
		if r.ObjectCount > 0 {
			value = e.cum.Add(t.ID, r.ObjectCount)
		} else {
			value = e.cum.Get(t.ID)
		}
		details["cumulative_total"] = value
	}

	if !cond.Op.Compare(value, cond.Target) {
		return Evaluation{
			Reason:  fmt.Sprintf("count %d in zone %q does not satisfy %s %d", value, cond.Zone, cond.Op, cond.Target),
			Details: details,
		}
	}

	return Evaluation{
		Triggered: true,
		Reason:    fmt.Sprintf("count %d in zone %q satisfies %s %d", value, cond.Zone, cond.Op, cond.Target),
		Details:   details,
	}
}

func (e *Evaluator) evaluateMultiZone(t *Trigger, byZone map[string]vision.DetectionResult) Evaluation {
	cond := t.Conditions.MultiZone
	if cond == nil {
		return Evaluation{Reason: "multi_zone trigger has no conditions"}
	}

	satisfied := 0
	perRule := make([]map[string]interface{}, 0, len(cond.Rules))
	for _, rule := range cond.Rules {
		count := 0
		// An unknown zone is unsatisfied, not an error.
		if r, ok := byZone[rule.Zone]; ok {
			count = r.ObjectCount
		}
		ok := count >= rule.MinObjects
		if ok {
			satisfied++
		}
		perRule = append(perRule, map[string]interface{}{
			"zone":         rule.Zone,
			"object_count": count,
			"min_objects":  rule.MinObjects,
			"satisfied":    ok,
		})
	}

	details := map[string]interface{}{
		"logic":     cond.Logic,
		"rules":     perRule,
		"satisfied": satisfied,
	}

	var fired bool
	if cond.Logic == "AND" {
		fired = satisfied == len(cond.Rules)
	} else {
		fired = satisfied > 0
	}

	if !fired {
		return Evaluation{
			Reason:  fmt.Sprintf("%d of %d zone rules satisfied (logic %s)", satisfied, len(cond.Rules), cond.Logic),
			Details: details,
		}
	}
	return Evaluation{
		Triggered: true,
		Reason:    fmt.Sprintf("%d of %d zone rules satisfied (logic %s)", satisfied, len(cond.Rules), cond.Logic),
		Details:   details,
	}
}
