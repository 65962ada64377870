package trigger

import (
	"strings"
	"testing"

	"github.com/banshee-data/visiond/internal/geometry"
	"github.com/banshee-data/visiond/internal/vision"
)

// idleStandbyZone is a rectangle covering the middle of a 1280x720 frame.
func idleStandbyZone(t *testing.T) *geometry.Zone {
	t.Helper()
	z, err := geometry.NewZone("idle-standby", "Idle Standby", []geometry.Point{
		{X: 200, Y: 120}, {X: 1080, Y: 120}, {X: 1080, Y: 560}, {X: 200, Y: 560},
	}, geometry.ZoneTypeTrigger)
	if err != nil {
		t.Fatalf("NewZone: %v", err)
	}
	return z
}

func TestEvaluatePresence(t *testing.T) {
	zone := idleStandbyZone(t)

	tr := New("Idle Standby Watch", TypePresence)
	tr.Zones = []*geometry.Zone{zone}
	tr.Conditions.Presence = &PresenceCondition{Zone: "Idle Standby", MinObjects: 1}

	box := vision.Box{X: 600, Y: 260, W: 80, H: 80}
	cx, cy := box.Center()
	if !zone.Contains(cx, cy) {
		t.Fatalf("box center (%v,%v) should fall inside the zone", cx, cy)
	}

	ev := NewEvaluator(nil)

	got := ev.Evaluate(tr, []vision.DetectionResult{{
		ZoneID:      zone.ID,
		ZoneName:    zone.Name,
		Detected:    true,
		Boxes:       []vision.Box{box},
		ObjectCount: 1,
	}})
	if !got.Triggered {
		t.Fatalf("expected triggered, reason: %s", got.Reason)
	}
	if !strings.Contains(got.Reason, "1") {
		t.Errorf("reason %q should mention the object count", got.Reason)
	}

	// Same trigger, empty zone.
	got = ev.Evaluate(tr, []vision.DetectionResult{{
		ZoneID:   zone.ID,
		ZoneName: zone.Name,
	}})
	if got.Triggered {
		t.Errorf("empty zone must not trigger, reason: %s", got.Reason)
	}
}

func TestEvaluatePresenceMissingZone(t *testing.T) {
	tr := New("ghost", TypePresence)
	tr.Conditions.Presence = &PresenceCondition{Zone: "nowhere", MinObjects: 1}

	got := NewEvaluator(nil).Evaluate(tr, nil)
	if got.Triggered {
		t.Error("unknown zone must evaluate to not-triggered")
	}
	if !strings.Contains(got.Reason, "nowhere") {
		t.Errorf("reason %q should name the missing zone", got.Reason)
	}
}

func TestEvaluatePresenceRequireStable(t *testing.T) {
	tr := New("steady", TypePresence)
	tr.Conditions.Presence = &PresenceCondition{Zone: "dock", MinObjects: 1, RequireStable: true}

	result := []vision.DetectionResult{{
		ZoneID: "dock", ZoneName: "dock", Detected: true, ObjectCount: 1,
	}}

	stable := false
	ev := NewEvaluator(nil).WithStability(func(zoneID string) bool { return stable })

	if got := ev.Evaluate(tr, result); got.Triggered {
		t.Errorf("unstable zone must not trigger, reason: %s", got.Reason)
	}
	stable = true
	if got := ev.Evaluate(tr, result); !got.Triggered {
		t.Errorf("stable zone should trigger, reason: %s", got.Reason)
	}
}

func TestEvaluateCountCumulative(t *testing.T) {
	tr := New("third item", TypeCount)
	tr.Conditions.Count = &CountCondition{Zone: "belt", Target: 3, Op: OpGE, Cumulative: true}

	ev := NewEvaluator(NewCumulativeState())

	one := []vision.DetectionResult{{ZoneID: "belt", ZoneName: "belt", Detected: true, ObjectCount: 1}}
	empty := []vision.DetectionResult{{ZoneID: "belt", ZoneName: "belt"}}

	if got := ev.Evaluate(tr, one); got.Triggered {
		t.Fatalf("total 1 should not reach 3: %s", got.Reason)
	}
	// Empty frames must not change the running total.
	if got := ev.Evaluate(tr, empty); got.Triggered {
		t.Fatalf("empty frame should not advance the total: %s", got.Reason)
	}
	if got := ev.Evaluate(tr, one); got.Triggered {
		t.Fatalf("total 2 should not reach 3: %s", got.Reason)
	}
	if got := ev.Evaluate(tr, one); !got.Triggered {
		t.Fatalf("total 3 should trigger: %s", got.Reason)
	}

	ev.Cumulative().Reset(tr.ID)
	if got := ev.Evaluate(tr, one); got.Triggered {
		t.Fatalf("after reset total 1 should not trigger: %s", got.Reason)
	}
}

func TestEvaluateCountPerFrame(t *testing.T) {
	tr := New("exactly two", TypeCount)
	tr.Conditions.Count = &CountCondition{Zone: "belt", Target: 2, Op: OpEQ}

	ev := NewEvaluator(nil)
	cases := []struct {
		count int
		want  bool
	}{
		{0, false}, {1, false}, {2, true}, {3, false},
	}
	for _, c := range cases {
		got := ev.Evaluate(tr, []vision.DetectionResult{{
			ZoneID: "belt", ZoneName: "belt", Detected: c.count > 0, ObjectCount: c.count,
		}})
		if got.Triggered != c.want {
			t.Errorf("count %d: triggered = %v, want %v (%s)", c.count, got.Triggered, c.want, got.Reason)
		}
	}
}

func TestEvaluateMultiZone(t *testing.T) {
	results := []vision.DetectionResult{
		{ZoneID: "a", ZoneName: "a", Detected: true, ObjectCount: 1},
		{ZoneID: "b", ZoneName: "b", Detected: false, ObjectCount: 0},
	}

	mk := func(logic string) *Trigger {
		tr := New("pair", TypeMultiZone)
		tr.Conditions.MultiZone = &MultiZoneCondition{
			Logic: logic,
			Rules: []ZoneRule{
				{Zone: "a", MinObjects: 1},
				{Zone: "b", MinObjects: 1},
			},
		}
		return tr
	}

	ev := NewEvaluator(nil)

	if got := ev.Evaluate(mk("AND"), results); got.Triggered {
		t.Errorf("AND with one empty zone must not trigger: %s", got.Reason)
	}
	if got := ev.Evaluate(mk("OR"), results); !got.Triggered {
		t.Errorf("OR with one occupied zone should trigger: %s", got.Reason)
	}

	// A rule naming a zone absent from the results counts as unsatisfied,
	// never as an error.
	tr := mk("AND")
	tr.Conditions.MultiZone.Rules = append(tr.Conditions.MultiZone.Rules, ZoneRule{Zone: "ghost", MinObjects: 1})
	got := ev.Evaluate(tr, results)
	if got.Triggered {
		t.Errorf("unknown zone in AND must not trigger: %s", got.Reason)
	}
}

func TestEvaluateUnknownType(t *testing.T) {
	tr := &Trigger{Name: "odd", ID: "odd", Type: "motion"}
	got := NewEvaluator(nil).Evaluate(tr, nil)
	if got.Triggered {
		t.Error("unknown type must not trigger")
	}
	if !strings.Contains(got.Reason, "unknown trigger type") {
		t.Errorf("reason %q should flag the unknown type", got.Reason)
	}
}
