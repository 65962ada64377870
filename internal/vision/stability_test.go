package vision

import "testing"

func TestStabilityRequiresFullWindow(t *testing.T) {
	s := newStabilityTracker(3, 10)

	s.record("z", []Box{{X: 10, Y: 10, W: 4, H: 4}})
	s.record("z", []Box{{X: 10, Y: 10, W: 4, H: 4}})

	if s.stable("z") {
		t.Error("zone with partial history should not be stable")
	}

	s.record("z", []Box{{X: 10, Y: 10, W: 4, H: 4}})
	if !s.stable("z") {
		t.Error("stationary box across a full window should be stable")
	}
}

func TestStabilityCountVariation(t *testing.T) {
	s := newStabilityTracker(3, 100)

	// Counts 1, 2, 1: varies by 1, allowed.
	s.record("z", []Box{{X: 10, Y: 10, W: 4, H: 4}})
	s.record("z", []Box{{X: 10, Y: 10, W: 4, H: 4}, {X: 12, Y: 12, W: 4, H: 4}})
	s.record("z", []Box{{X: 10, Y: 10, W: 4, H: 4}})
	if !s.stable("z") {
		t.Error("count variation of 1 should be tolerated")
	}

	// Counts jump 0 -> 2: unstable.
	s2 := newStabilityTracker(3, 100)
	s2.record("z", nil)
	s2.record("z", []Box{{X: 10, Y: 10, W: 4, H: 4}})
	s2.record("z", []Box{{X: 10, Y: 10, W: 4, H: 4}, {X: 50, Y: 50, W: 4, H: 4}})
	if s2.stable("z") {
		t.Error("count jump of 2 across the window should be unstable")
	}
}

func TestStabilityCenterDrift(t *testing.T) {
	s := newStabilityTracker(3, 10)

	s.record("z", []Box{{X: 10, Y: 10, W: 4, H: 4}})
	s.record("z", []Box{{X: 12, Y: 10, W: 4, H: 4}})
	s.record("z", []Box{{X: 14, Y: 10, W: 4, H: 4}}) // drifted 4px from earliest
	if !s.stable("z") {
		t.Error("drift under tolerance should be stable")
	}

	fast := newStabilityTracker(3, 10)
	fast.record("z", []Box{{X: 10, Y: 10, W: 4, H: 4}})
	fast.record("z", []Box{{X: 30, Y: 10, W: 4, H: 4}})
	fast.record("z", []Box{{X: 50, Y: 10, W: 4, H: 4}}) // 40px from earliest
	if fast.stable("z") {
		t.Error("drift beyond tolerance should be unstable")
	}
}

func TestStabilityWindowSlides(t *testing.T) {
	s := newStabilityTracker(2, 10)

	s.record("z", []Box{{X: 0, Y: 0, W: 4, H: 4}})
	s.record("z", []Box{{X: 100, Y: 0, W: 4, H: 4}})
	if s.stable("z") {
		t.Error("large jump inside window should be unstable")
	}

	// After two more stationary frames the old jump ages out.
	s.record("z", []Box{{X: 100, Y: 0, W: 4, H: 4}})
	s.record("z", []Box{{X: 100, Y: 0, W: 4, H: 4}})
	if !s.stable("z") {
		t.Error("window should slide past old movement")
	}
}

func TestStabilityResetClearsHistory(t *testing.T) {
	s := newStabilityTracker(2, 10)
	s.record("z", []Box{{X: 0, Y: 0, W: 4, H: 4}})
	s.record("z", []Box{{X: 0, Y: 0, W: 4, H: 4}})
	if !s.stable("z") {
		t.Fatal("precondition: stable")
	}

	s.reset()
	if s.stable("z") {
		t.Error("reset should discard stability history")
	}
}
