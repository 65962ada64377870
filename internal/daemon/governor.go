package daemon

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/banshee-data/visiond/internal/monitoring"
)

// governor is the memory circuit breaker: every cleanupEvery detections it
// forces a GC pass and samples resident memory, and when the ceiling is
// exceeded it requests a clean restart instead of letting a slow leak take
// the host down. It breaks the circuit; it does not fix leaks.
type governor struct {
	maxRSSMB     int
	cleanupEvery int

	detectionsSeen int
	rssMB          func() int

	cleanupHook func()
}

func newGovernor(maxRSSMB, cleanupEvery int, cleanupHook func()) *governor {
	if cleanupEvery <= 0 {
		cleanupEvery = 50
	}
	return &governor{
		maxRSSMB:     maxRSSMB,
		cleanupEvery: cleanupEvery,
		rssMB:        processRSSMB,
		cleanupHook:  cleanupHook,
	}
}

// afterDetections feeds the governor the detection count of one frame and
// reports whether a restart is now required.
func (g *governor) afterDetections(n int) bool {
	if n <= 0 {
		return false
	}
	g.detectionsSeen += n
	if g.detectionsSeen < g.cleanupEvery {
		return false
	}
	g.detectionsSeen = 0

	if g.cleanupHook != nil {
		g.cleanupHook()
	}
	runtime.GC()

	rss := g.rssMB()
	if g.maxRSSMB > 0 && rss > g.maxRSSMB {
		monitoring.Logf("memory ceiling exceeded: rss %dMB > limit %dMB, requesting restart", rss, g.maxRSSMB)
		return true
	}
	return false
}

// currentRSSMB samples resident memory for the periodic stats line.
func (g *governor) currentRSSMB() int {
	return g.rssMB()
}

// processRSSMB reads resident set size from /proc/self/statm. Returns 0 on
// platforms without procfs, which disables the ceiling check.
func processRSSMB() int {
	data, err := os.ReadFile("/proc/self/statm")
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0
	}
	pages, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return int(pages * int64(os.Getpagesize()) / (1024 * 1024))
}
