package daemon

import (
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/visiond/internal/monitoring"
	"github.com/banshee-data/visiond/internal/timeutil"
)

// FrameStats tracks loop statistics with thread-safe operations.
type FrameStats struct {
	mu         sync.Mutex
	frameCount int64
	gatedCount int64
	detections int64
	fired      int64
	errorCount int64
	lastReset  time.Time
	clock      timeutil.Clock
}

// NewFrameStats creates a new FrameStats instance.
func NewFrameStats(clock timeutil.Clock) *FrameStats {
	return &FrameStats{clock: clock, lastReset: clock.Now()}
}

// AddFrame counts one captured and processed frame.
func (fs *FrameStats) AddFrame() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.frameCount++
}

// AddGated counts one cycle skipped because the robot was not accepting.
func (fs *FrameStats) AddGated() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.gatedCount++
}

// AddDetections counts objects seen across all zones for one frame.
func (fs *FrameStats) AddDetections(n int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.detections += int64(n)
}

// AddFired counts one trigger firing.
func (fs *FrameStats) AddFired() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.fired++
}

// AddError counts one camera or IPC failure.
func (fs *FrameStats) AddError() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.errorCount++
}

// GetAndReset returns current stats and resets counters.
func (fs *FrameStats) GetAndReset() (frames, gated, detections, fired, errors int64, duration time.Duration) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	now := fs.clock.Now()
	duration = now.Sub(fs.lastReset)
	frames = fs.frameCount
	gated = fs.gatedCount
	detections = fs.detections
	fired = fs.fired
	errors = fs.errorCount

	fs.frameCount = 0
	fs.gatedCount = 0
	fs.detections = 0
	fs.fired = 0
	fs.errorCount = 0
	fs.lastReset = now

	return
}

// LogStats emits one periodic status line and resets the counters. Quiet
// intervals with no activity at all stay silent.
func (fs *FrameStats) LogStats(rssMB int) {
	frames, gated, detections, fired, errors, duration := fs.GetAndReset()
	if frames == 0 && gated == 0 && errors == 0 {
		return
	}

	secs := duration.Seconds()
	if secs <= 0 {
		secs = 1
	}
	msg := fmt.Sprintf("Loop stats: %.2f frames/sec, %d detections, %d fired, %d gated cycles",
		float64(frames)/secs, detections, fired, gated)
	if errors > 0 {
		msg += fmt.Sprintf(", %d errors", errors)
	}
	if rssMB > 0 {
		msg += fmt.Sprintf(", rss %dMB", rssMB)
	}
	monitoring.Logf("%s", msg)
}
