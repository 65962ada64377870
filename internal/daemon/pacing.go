package daemon

import (
	"time"

	"github.com/banshee-data/visiond/internal/timeutil"
)

// pacer computes the loop's polling cadence. The daemon idles at a
// fractional frame rate when nothing is happening and jumps to the active
// rate the moment a zone shows objects, holding it for a quiet period
// before falling back. This bounds camera bandwidth and CPU for a process
// that runs unattended around the clock.
type pacer struct {
	idleFPS   float64
	activeFPS float64
	maxFPS    float64
	hold      time.Duration

	clock        timeutil.Clock
	lastActivity time.Time
}

func newPacer(idleFPS, activeFPS, maxFPS float64, hold time.Duration, clock timeutil.Clock) *pacer {
	if idleFPS <= 0 {
		idleFPS = 0.5
	}
	if activeFPS < idleFPS {
		activeFPS = idleFPS
	}
	if maxFPS > 0 && activeFPS > maxFPS {
		activeFPS = maxFPS
	}
	return &pacer{
		idleFPS:   idleFPS,
		activeFPS: activeFPS,
		maxFPS:    maxFPS,
		hold:      hold,
		clock:     clock,
	}
}

// markActivity records that the current frame saw objects, switching the
// loop to the active rate.
func (p *pacer) markActivity() {
	p.lastActivity = p.clock.Now()
}

// targetFPS is the current polling rate: active within the hold window of
// the last detection, idle otherwise.
func (p *pacer) targetFPS() float64 {
	if !p.lastActivity.IsZero() && p.clock.Since(p.lastActivity) < p.hold {
		return p.activeFPS
	}
	return p.idleFPS
}

// delay converts the target rate to a per-iteration sleep.
func (p *pacer) delay() time.Duration {
	fps := p.targetFPS()
	if p.maxFPS > 0 && fps > p.maxFPS {
		fps = p.maxFPS
	}
	return time.Duration(float64(time.Second) / fps)
}
