package trigger

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/banshee-data/visiond/internal/fsutil"
	"github.com/banshee-data/visiond/internal/geometry"
	"github.com/banshee-data/visiond/internal/monitoring"
	"github.com/banshee-data/visiond/internal/timeutil"
)

const (
	manifestFile   = "manifest.json"
	zonesFile      = "zones.json"
	conditionsFile = "conditions.json"
	backupDirName  = "backups"

	// maxBackupsPerTrigger is the rolling retention: older backups of the
	// same trigger id are deleted.
	maxBackupsPerTrigger = 10

	// backupStampLayout suffixes backup folders. Fixed width, so
	// lexicographic order is chronological order.
	backupStampLayout = "20060102_150405"
)

// unitFiles are the documents making up one trigger storage unit.
var unitFiles = []string{manifestFile, zonesFile, conditionsFile}

// manifest is the on-disk trigger header. Zones and conditions live in
// sibling documents so one corrupt file does not take the unit down whole.
type manifest struct {
	Name                 string     `json:"name"`
	TriggerID            string     `json:"trigger_id"`
	Type                 Type       `json:"type"`
	CreatedAt            string     `json:"created_at"`
	ModifiedAt           string     `json:"modified_at"`
	Description          string     `json:"description,omitempty"`
	Enabled              bool       `json:"enabled"`
	CheckIntervalSeconds float64    `json:"check_interval_seconds"`
	ActiveWhen           ActiveWhen `json:"active_when"`
	Action               Action     `json:"action"`
}

type zonesDoc struct {
	Zones []*geometry.Zone `json:"zones"`
}

// Store persists triggers as one folder per trigger under a root directory.
// Every operation is best-effort: failures are logged and surfaced as
// false/nil so a malformed definition can never crash the daemon.
type Store struct {
	fs    fsutil.FileSystem
	clock timeutil.Clock
	root  string
}

// NewStore creates a store over the real filesystem.
func NewStore(root string) *Store {
	return NewStoreWithDeps(root, fsutil.OSFileSystem{}, timeutil.RealClock{})
}

// NewStoreWithDeps creates a store with injected filesystem and clock, used
// by tests for determinism.
func NewStoreWithDeps(root string, fs fsutil.FileSystem, clock timeutil.Clock) *Store {
	return &Store{fs: fs, clock: clock, root: root}
}

func (s *Store) unitDir(id string) string {
	return filepath.Join(s.root, id)
}

func (s *Store) backupRoot() string {
	return filepath.Join(s.root, backupDirName)
}

// Save persists a trigger, backing up any existing unit with the same id
// first. Returns false (never panics or propagates) on validation or I/O
// failure.
func (s *Store) Save(t *Trigger) bool {
	if t == nil {
		return false
	}
	if t.ID == "" {
		t.ID = Slug(t.Name)
	}
	if err := t.Validate(); err != nil {
		monitoring.Logf("trigger save rejected: %v", err)
		return false
	}

	dir := s.unitDir(t.ID)
	if s.fs.Exists(filepath.Join(dir, manifestFile)) {
		s.backupUnit(t.ID)
	}

	now := s.clock.Now()
	if t.CreatedAt.IsZero() {
		// Preserve the original creation time across overwrites.
		if prev := s.loadManifest(t.ID); prev != nil && prev.CreatedAt != "" {
			if ts, err := time.Parse(time.RFC3339, prev.CreatedAt); err == nil {
				t.CreatedAt = ts
			}
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
	}
	t.ModifiedAt = now

	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		monitoring.Logf("trigger save %q: mkdir: %v", t.ID, err)
		return false
	}

	m := manifest{
		Name:                 t.Name,
		TriggerID:            t.ID,
		Type:                 t.Type,
		CreatedAt:            t.CreatedAt.Format(time.RFC3339),
		ModifiedAt:           t.ModifiedAt.Format(time.RFC3339),
		Description:          t.Description,
		Enabled:              t.Enabled,
		CheckIntervalSeconds: t.CheckInterval,
		ActiveWhen:           t.ActiveWhen,
		Action:               t.Action,
	}

	manifestData, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		monitoring.Logf("trigger save %q: manifest encode: %v", t.ID, err)
		return false
	}
	zonesData, err := json.MarshalIndent(zonesDoc{Zones: t.Zones}, "", "  ")
	if err != nil {
		monitoring.Logf("trigger save %q: zones encode: %v", t.ID, err)
		return false
	}
	condData, err := t.Conditions.Encode(t.Type)
	if err != nil {
		monitoring.Logf("trigger save %q: conditions encode: %v", t.ID, err)
		return false
	}

	for _, w := range []struct {
		file string
		data []byte
	}{
		{manifestFile, manifestData},
		{zonesFile, zonesData},
		{conditionsFile, condData},
	} {
		if err := s.fs.WriteFileAtomic(filepath.Join(dir, w.file), w.data, 0644); err != nil {
			monitoring.Logf("trigger save %q: write %s: %v", t.ID, w.file, err)
			return false
		}
	}
	return true
}

// Load reads a trigger by name. Returns nil if the unit does not exist or
// any of its documents fail to parse; a corrupt unit never crashes the
// caller.
func (s *Store) Load(name string) *Trigger {
	id := Slug(name)
	m := s.loadManifest(id)
	if m == nil {
		return nil
	}
	if !m.Type.Valid() {
		monitoring.Logf("trigger %q has unknown type %q, skipping", id, m.Type)
		return nil
	}

	dir := s.unitDir(id)

	zonesData, err := s.fs.ReadFile(filepath.Join(dir, zonesFile))
	if err != nil {
		monitoring.Logf("trigger %q: read zones: %v", id, err)
		return nil
	}
	var zd zonesDoc
	if err := json.Unmarshal(zonesData, &zd); err != nil {
		monitoring.Logf("trigger %q: parse zones: %v", id, err)
		return nil
	}

	condData, err := s.fs.ReadFile(filepath.Join(dir, conditionsFile))
	if err != nil {
		monitoring.Logf("trigger %q: read conditions: %v", id, err)
		return nil
	}
	conds, err := DecodeConditions(m.Type, condData)
	if err != nil {
		monitoring.Logf("trigger %q: %v", id, err)
		return nil
	}

	t := &Trigger{
		Name:          m.Name,
		ID:            m.TriggerID,
		Type:          m.Type,
		Enabled:       m.Enabled,
		CheckInterval: m.CheckIntervalSeconds,
		Description:   m.Description,
		Zones:         zd.Zones,
		Conditions:    conds,
		Action:        m.Action,
		ActiveWhen:    m.ActiveWhen,
	}
	if t.ID == "" {
		t.ID = id
	}
	if ts, err := time.Parse(time.RFC3339, m.CreatedAt); err == nil {
		t.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339, m.ModifiedAt); err == nil {
		t.ModifiedAt = ts
	}

	if err := t.Validate(); err != nil {
		monitoring.Logf("trigger %q failed validation on load: %v", id, err)
		return nil
	}
	return t
}

// List returns the names of all stored triggers, lexicographically sorted.
// A unit with an unreadable manifest falls back to its folder name.
func (s *Store) List() []string {
	entries, err := s.fs.ReadDir(s.root)
	if err != nil {
		return nil
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == backupDirName {
			continue
		}
		if m := s.loadManifest(e.Name()); m != nil && m.Name != "" {
			names = append(names, m.Name)
		} else {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// GetEnabled filters List down to triggers whose enabled flag is set.
func (s *Store) GetEnabled() []string {
	var enabled []string
	for _, name := range s.List() {
		if t := s.Load(name); t != nil && t.Enabled {
			enabled = append(enabled, name)
		}
	}
	return enabled
}

// LoadEnabled loads the full definitions of every enabled trigger. Units
// that fail to load are skipped with a logged diagnostic.
func (s *Store) LoadEnabled() []*Trigger {
	var out []*Trigger
	for _, name := range s.GetEnabled() {
		if t := s.Load(name); t != nil {
			out = append(out, t)
		}
	}
	return out
}

// Delete backs up and removes a trigger unit. Removing a nonexistent
// trigger returns false.
func (s *Store) Delete(name string) bool {
	id := Slug(name)
	dir := s.unitDir(id)
	if !s.fs.Exists(dir) {
		return false
	}

	s.backupUnit(id)

	if err := s.fs.RemoveAll(dir); err != nil {
		monitoring.Logf("trigger delete %q: %v", id, err)
		return false
	}
	return true
}

func (s *Store) loadManifest(id string) *manifest {
	data, err := s.fs.ReadFile(filepath.Join(s.unitDir(id), manifestFile))
	if err != nil {
		return nil
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		monitoring.Logf("trigger %q: parse manifest: %v", id, err)
		return nil
	}
	return &m
}

// backupUnit copies the live unit verbatim into the backup area under a
// timestamp-suffixed name, then applies the rolling retention.
func (s *Store) backupUnit(id string) {
	src := s.unitDir(id)
	stamp := s.clock.Now().Format(backupStampLayout)

	dst := filepath.Join(s.backupRoot(), id+"_"+stamp)
	// Two saves inside one second get distinct backup names.
	for n := 2; s.fs.Exists(dst); n++ {
		dst = filepath.Join(s.backupRoot(), fmt.Sprintf("%s_%s-%d", id, stamp, n))
	}

	if err := s.fs.MkdirAll(dst, 0755); err != nil {
		monitoring.Logf("trigger backup %q: mkdir: %v", id, err)
		return
	}

	for _, file := range unitFiles {
		data, err := s.fs.ReadFile(filepath.Join(src, file))
		if err != nil {
			continue // partial units back up what exists
		}
		if err := s.fs.WriteFile(filepath.Join(dst, file), data, 0644); err != nil {
			monitoring.Logf("trigger backup %q: write %s: %v", id, file, err)
		}
	}

	s.pruneBackups(id)
}

// pruneBackups keeps only the most recent maxBackupsPerTrigger backups for
// one trigger id. Slugs never contain underscores, so the id_stamp split is
// unambiguous.
func (s *Store) pruneBackups(id string) {
	entries, err := s.fs.ReadDir(s.backupRoot())
	if err != nil {
		return
	}

	prefix := id + "_"
	var mine []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			mine = append(mine, e.Name())
		}
	}
	if len(mine) <= maxBackupsPerTrigger {
		return
	}

	sort.Strings(mine) // fixed-width stamps: oldest first
	for _, name := range mine[:len(mine)-maxBackupsPerTrigger] {
		if err := s.fs.RemoveAll(filepath.Join(s.backupRoot(), name)); err != nil {
			monitoring.Logf("trigger backup prune %q: %v", name, err)
		}
	}
}
