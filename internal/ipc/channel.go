// Package ipc implements the shared-directory file protocol between the
// vision daemon and the external sequencer process. The two processes never
// share memory: they coordinate through three files in one directory, each
// written atomically and guarded by a per-file advisory lock.
//
//	robot_state.json   written by the sequencer, read by the daemon
//	vision_events.json written by the daemon, read by the sequencer
//	vision_daemon.pid  written by the daemon, probed by external tooling
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/banshee-data/visiond/internal/fsutil"
	"github.com/banshee-data/visiond/internal/monitoring"
	"github.com/banshee-data/visiond/internal/timeutil"
	"github.com/banshee-data/visiond/internal/units"
)

const (
	robotStateFile  = "robot_state.json"
	visionEventFile = "vision_events.json"
	daemonPidFile   = "vision_daemon.pid"
)

// Robot states reported by the sequencer.
const (
	RobotHome    = "home"
	RobotMoving  = "moving"
	RobotWorking = "working"
	RobotError   = "error"
	RobotUnknown = "unknown"
)

// Vision event statuses written by the daemon.
const (
	StatusIdle      = "idle"
	StatusDetecting = "detecting"
	StatusTriggered = "triggered"
	StatusError     = "error"
)

// RobotState is the sequencer's published state. The daemon treats it as
// read-only and gates all trigger evaluation on State and
// AcceptingTriggers.
type RobotState struct {
	State             string  `json:"state"`
	Moving            bool    `json:"moving"`
	CurrentSequence   *string `json:"current_sequence"`
	AcceptingTriggers bool    `json:"accepting_triggers"`
	Timestamp         float64 `json:"timestamp"`
	TimestampISO      string  `json:"timestamp_iso"`
}

// DefaultRobotState is what a reader sees before the sequencer has ever
// written: unknown and not accepting, so the daemon starts gated closed.
func DefaultRobotState() RobotState {
	return RobotState{State: RobotUnknown, AcceptingTriggers: false}
}

// TriggerEvent is the payload attached to a triggered vision event.
type TriggerEvent struct {
	Timestamp    float64                `json:"timestamp"`
	TimestampISO string                 `json:"timestamp_iso"`
	Result       bool                   `json:"result"`
	Reason       string                 `json:"reason"`
	Details      map[string]interface{} `json:"details,omitempty"`
	Action       map[string]interface{} `json:"action,omitempty"`
}

// VisionEvent is the daemon's published check result. TriggerID and Event
// are null except when Status is "triggered".
type VisionEvent struct {
	LastCheck    float64       `json:"last_check"`
	LastCheckISO string        `json:"last_check_iso"`
	Status       string        `json:"status"`
	TriggerID    *string       `json:"trigger_id"`
	Event        *TriggerEvent `json:"event"`
}

// Channel mediates every access to the IPC directory. Writes go through an
// exclusive lock plus atomic rename; reads take a shared lock. Locks are
// bounded: a stuck peer makes the operation fail after half a second
// instead of hanging the daemon, and the caller skips that cycle.
type Channel struct {
	dir   string
	fs    fsutil.OSFileSystem
	clock timeutil.Clock
}

// NewChannel creates a channel rooted at dir, creating it if needed.
func NewChannel(dir string) (*Channel, error) {
	return NewChannelWithClock(dir, timeutil.RealClock{})
}

// NewChannelWithClock is NewChannel with an injected clock for tests.
func NewChannelWithClock(dir string, clock timeutil.Clock) (*Channel, error) {
	c := &Channel{dir: dir, clock: clock}
	if err := c.fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create ipc dir %s: %w", dir, err)
	}
	return c, nil
}

// Dir returns the channel's root directory.
func (c *Channel) Dir() string { return c.dir }

func (c *Channel) path(name string) string {
	return filepath.Join(c.dir, name)
}

// stamp fills the two timestamp representations from the channel clock.
func (c *Channel) stamp() (float64, string) {
	now := c.clock.Now()
	return float64(now.UnixNano()) / 1e9, units.FormatISO(now)
}

// WriteRobotState publishes the sequencer's state. The daemon never calls
// this in production; it exists for the sequencer side of the protocol and
// for tests exercising the round trip.
func (c *Channel) WriteRobotState(state string, moving bool, currentSequence *string, acceptingTriggers bool) error {
	ts, iso := c.stamp()
	st := RobotState{
		State:             state,
		Moving:            moving,
		CurrentSequence:   currentSequence,
		AcceptingTriggers: acceptingTriggers,
		Timestamp:         ts,
		TimestampISO:      iso,
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode robot state: %w", err)
	}

	path := c.path(robotStateFile)
	return withExclusiveLock(path, func() error {
		return c.fs.WriteFileAtomic(path, data, 0644)
	})
}

// ReadRobotState returns the sequencer's last published state. It never
// fails: a missing, unreadable, or lock-contended file degrades to the
// safe default so the daemon stays gated closed rather than crashing.
func (c *Channel) ReadRobotState() RobotState {
	path := c.path(robotStateFile)

	var st RobotState
	err := withSharedLock(path, func() error {
		data, err := c.fs.ReadFile(path)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, &st)
	})
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			monitoring.Logf("read robot state: %v (using safe default)", err)
		}
		return DefaultRobotState()
	}
	if st.State == "" {
		return DefaultRobotState()
	}
	return st
}

// WriteVisionEvent publishes a check result for the sequencer.
func (c *Channel) WriteVisionEvent(status string, triggerID *string, event *TriggerEvent) error {
	ts, iso := c.stamp()
	ev := VisionEvent{
		LastCheck:    ts,
		LastCheckISO: iso,
		Status:       status,
		TriggerID:    triggerID,
		Event:        event,
	}

	data, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		return fmt.Errorf("encode vision event: %w", err)
	}

	path := c.path(visionEventFile)
	return withExclusiveLock(path, func() error {
		return c.fs.WriteFileAtomic(path, data, 0644)
	})
}

// ReadVisionEvent returns the daemon's last published event, or nil if none
// has been written or it cannot be parsed. The daemon itself never reads
// this file; the method serves the sequencer side and tests.
func (c *Channel) ReadVisionEvent() *VisionEvent {
	path := c.path(visionEventFile)

	var ev VisionEvent
	err := withSharedLock(path, func() error {
		data, err := c.fs.ReadFile(path)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, &ev)
	})
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			monitoring.Logf("read vision event: %v", err)
		}
		return nil
	}
	return &ev
}

// ClearVisionEvent resets the event file to an idle marker with no trigger
// attached, used at startup and shutdown so the sequencer never acts on a
// stale event from a previous run.
func (c *Channel) ClearVisionEvent() error {
	return c.WriteVisionEvent(StatusIdle, nil, nil)
}

// WriteDaemonPid records this process's pid for external liveness checks.
func (c *Channel) WriteDaemonPid() error {
	data := []byte(strconv.Itoa(os.Getpid()) + "\n")
	path := c.path(daemonPidFile)
	return withExclusiveLock(path, func() error {
		return c.fs.WriteFileAtomic(path, data, 0644)
	})
}

// ReadDaemonPid returns the recorded daemon pid, or 0 if absent or
// malformed.
func (c *Channel) ReadDaemonPid() int {
	data, err := c.fs.ReadFile(c.path(daemonPidFile))
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

// IsDaemonRunning combines the pid file with a signal-0 probe of the
// process. A probe denied with EPERM still counts as running; the process
// exists, it just belongs to someone else.
func (c *Channel) IsDaemonRunning() bool {
	pid := c.ReadDaemonPid()
	if pid == 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}

// RemoveDaemonPid deletes the pid file on shutdown. Missing files are fine.
func (c *Channel) RemoveDaemonPid() {
	if err := c.fs.Remove(c.path(daemonPidFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		monitoring.Logf("remove pid file: %v", err)
	}
}

// Init prepares the directory for a fresh daemon run: seed the robot-state
// default if the sequencer has never written, clear any stale vision event,
// and record our pid.
func (c *Channel) Init() error {
	if !c.fs.Exists(c.path(robotStateFile)) {
		def := DefaultRobotState()
		if err := c.WriteRobotState(def.State, def.Moving, def.CurrentSequence, def.AcceptingTriggers); err != nil {
			return err
		}
	}
	if err := c.ClearVisionEvent(); err != nil {
		return err
	}
	return c.WriteDaemonPid()
}
