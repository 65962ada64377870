// Package daemon runs the main watch loop: gate on robot state, capture a
// frame, run detection over every trigger's zones, evaluate triggers, and
// publish the outcome over the IPC channel. The loop is single-threaded;
// all cross-process coordination happens through the channel files.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/visiond/internal/config"
	"github.com/banshee-data/visiond/internal/events"
	"github.com/banshee-data/visiond/internal/geometry"
	"github.com/banshee-data/visiond/internal/ipc"
	"github.com/banshee-data/visiond/internal/monitoring"
	"github.com/banshee-data/visiond/internal/timeutil"
	"github.com/banshee-data/visiond/internal/trigger"
	"github.com/banshee-data/visiond/internal/units"
	"github.com/banshee-data/visiond/internal/vision"
)

// ErrRestartRequested is returned by Run when the memory governor tripped.
// The process should exit and let its supervisor relaunch it.
var ErrRestartRequested = errors.New("restart requested by memory governor")

// FrameSource is the camera dependency of the loop.
type FrameSource interface {
	Read(ctx context.Context) (*vision.Frame, error)
	Name() string
	Close() error
}

// Detector is the presence-detection dependency of the loop.
type Detector interface {
	Process(frame *vision.Frame, zones []*geometry.Zone) []vision.DetectionResult
	Stable(zoneID string) bool
	Cleanup()
}

// Options collects the daemon's dependencies. Config, Source, Detector and
// Channel are required; History and Clock are optional.
type Options struct {
	Config   *config.DaemonConfig
	Source   FrameSource
	Detector Detector
	Triggers []*trigger.Trigger
	Channel  *ipc.Channel
	History  *events.Store
	Clock    timeutil.Clock
}

type Daemon struct {
	cfg      *config.DaemonConfig
	source   FrameSource
	det      Detector
	triggers []*trigger.Trigger
	zones    []*geometry.Zone
	channel  *ipc.Channel
	history  *events.Store
	clock    timeutil.Clock

	eval  *trigger.Evaluator
	pace  *pacer
	gov   *governor
	stats *FrameStats

	lastCheck map[string]time.Time
	lastStats time.Time
	restart   bool
}

// New assembles a daemon from its dependencies.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("daemon requires a configuration")
	}
	if opts.Source == nil {
		return nil, fmt.Errorf("daemon requires a frame source")
	}
	if opts.Detector == nil {
		return nil, fmt.Errorf("daemon requires a detector")
	}
	if opts.Channel == nil {
		return nil, fmt.Errorf("daemon requires an ipc channel")
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	cfg := opts.Config
	d := &Daemon{
		cfg:      cfg,
		source:   opts.Source,
		det:      opts.Detector,
		triggers: opts.Triggers,
		zones:    collectZones(opts.Triggers),
		channel:  opts.Channel,
		history:  opts.History,
		clock:    clock,
		pace: newPacer(cfg.GetIdleFPS(), cfg.GetActiveFPS(), cfg.GetMaxFPS(),
			cfg.GetActiveHold(), clock),
		stats:     NewFrameStats(clock),
		lastCheck: make(map[string]time.Time),
		lastStats: clock.Now(),
	}
	d.eval = trigger.NewEvaluator(trigger.NewCumulativeState()).
		WithStability(opts.Detector.Stable)
	d.gov = newGovernor(cfg.GetMaxRSSMB(), cfg.GetCleanupInterval(), opts.Detector.Cleanup)
	return d, nil
}

// collectZones returns the union of all trigger zones, deduplicated by id.
func collectZones(triggers []*trigger.Trigger) []*geometry.Zone {
	seen := make(map[string]bool)
	var zones []*geometry.Zone
	for _, t := range triggers {
		for _, z := range t.Zones {
			if z == nil || seen[z.ID] {
				continue
			}
			seen[z.ID] = true
			zones = append(zones, z)
		}
	}
	return zones
}

// Evaluator exposes the cumulative-state lifecycle, used by external reset
// requests.
func (d *Daemon) Evaluator() *trigger.Evaluator { return d.eval }

// Run executes the watch loop until the context is cancelled or the memory
// governor requests a restart. It releases the camera and clears the IPC
// event and pid files on the way out.
func (d *Daemon) Run(ctx context.Context) error {
	monitoring.Logf("daemon loop starting: camera=%s, triggers=%d, zones=%d",
		d.source.Name(), len(d.triggers), len(d.zones))

	for ctx.Err() == nil && !d.restart {
		d.iterate(ctx)
		d.maybeLogStats()
	}

	d.det.Cleanup()
	if err := d.source.Close(); err != nil {
		monitoring.Logf("close camera: %v", err)
	}
	if err := d.channel.ClearVisionEvent(); err != nil {
		monitoring.Logf("clear vision event on shutdown: %v", err)
	}
	d.channel.RemoveDaemonPid()

	if d.restart {
		return ErrRestartRequested
	}
	monitoring.Logf("daemon loop stopped")
	return nil
}

// iterate runs one loop cycle: gate, capture, detect, evaluate, publish,
// sleep. An iteration always finishes its frame before shutdown is checked.
func (d *Daemon) iterate(ctx context.Context) {
	st := d.channel.ReadRobotState()
	if st.State != ipc.RobotHome || !st.AcceptingTriggers {
		d.stats.AddGated()
		if err := d.channel.WriteVisionEvent(ipc.StatusIdle, nil, nil); err != nil {
			d.stats.AddError()
			monitoring.Logf("write idle event: %v", err)
		}
		d.sleep(ctx)
		return
	}

	frame, err := d.source.Read(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		d.stats.AddError()
		monitoring.Logf("camera read: %v", err)
		if werr := d.channel.WriteVisionEvent(ipc.StatusError, nil, nil); werr != nil {
			monitoring.Logf("write error event: %v", werr)
		}
		d.sleep(ctx)
		return
	}

	results := d.det.Process(frame, d.zones)
	d.stats.AddFrame()

	total := 0
	for _, r := range results {
		total += r.ObjectCount
	}
	if total > 0 {
		d.pace.markActivity()
		d.stats.AddDetections(total)
	}

	fired := d.evaluateTriggers(st, results)
	if !fired {
		if err := d.channel.WriteVisionEvent(ipc.StatusDetecting, nil, nil); err != nil {
			d.stats.AddError()
			monitoring.Logf("write detecting event: %v", err)
		}
	}

	if d.gov.afterDetections(total) {
		d.restart = true
		return
	}

	d.sleep(ctx)
}

// evaluateTriggers runs every due trigger against this frame's results and
// publishes the first firing. Returns whether anything fired.
func (d *Daemon) evaluateTriggers(st ipc.RobotState, results []vision.DetectionResult) bool {
	now := d.clock.Now()
	for _, t := range d.triggers {
		if !t.Enabled {
			continue
		}
		if t.ActiveWhen.RobotState != "" && st.State != t.ActiveWhen.RobotState {
			continue
		}
		if t.CheckInterval > 0 {
			interval := time.Duration(t.CheckInterval * float64(time.Second))
			if last, ok := d.lastCheck[t.ID]; ok && now.Sub(last) < interval {
				continue
			}
		}
		d.lastCheck[t.ID] = now

		ev := d.eval.Evaluate(t, results)
		if !ev.Triggered {
			continue
		}

		d.publishFiring(t, ev)
		return true
	}
	return false
}

// publishFiring writes the triggered event to the IPC channel and appends
// it to the local history. Neither failure stops the loop.
func (d *Daemon) publishFiring(t *trigger.Trigger, ev trigger.Evaluation) {
	d.stats.AddFired()
	monitoring.Logf("trigger %q fired: %s", t.Name, ev.Reason)

	now := d.clock.Now()
	action := map[string]interface{}{"type": t.Action.Kind}
	if t.Action.Target != "" {
		action["target"] = t.Action.Target
	}
	event := &ipc.TriggerEvent{
		Timestamp:    float64(now.UnixNano()) / 1e9,
		TimestampISO: units.FormatISO(now),
		Result:       true,
		Reason:       ev.Reason,
		Details:      ev.Details,
		Action:       action,
	}
	id := t.ID
	if err := d.channel.WriteVisionEvent(ipc.StatusTriggered, &id, event); err != nil {
		d.stats.AddError()
		monitoring.Logf("write triggered event: %v", err)
	}

	if d.history != nil {
		_, err := d.history.RecordEvent(events.Record{
			TriggerID:   t.ID,
			TriggerName: t.Name,
			Status:      ipc.StatusTriggered,
			Triggered:   true,
			Reason:      ev.Reason,
			Details:     ev.Details,
			CreatedAt:   now,
		})
		if err != nil {
			monitoring.Logf("record event history: %v", err)
		}
	}
}

func (d *Daemon) maybeLogStats() {
	interval := d.cfg.GetStatsInterval()
	if interval <= 0 || d.clock.Since(d.lastStats) < interval {
		return
	}
	d.lastStats = d.clock.Now()
	d.stats.LogStats(d.gov.currentRSSMB())
}

// sleep pauses for the pacer's current delay, waking early on cancel.
func (d *Daemon) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-d.clock.After(d.pace.delay()):
	}
}
