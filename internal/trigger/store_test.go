package trigger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/visiond/internal/fsutil"
	"github.com/banshee-data/visiond/internal/geometry"
	"github.com/banshee-data/visiond/internal/timeutil"
)

func testStore(t *testing.T) (*Store, *fsutil.MemoryFileSystem, *timeutil.MockClock) {
	t.Helper()
	fs := fsutil.NewMemoryFileSystem()
	clock := timeutil.NewMockClock(time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC))
	return NewStoreWithDeps("/data/triggers", fs, clock), fs, clock
}

func sampleTrigger() *Trigger {
	tr := New("Idle Standby Watch", TypePresence)
	tr.Description = "fires when something parks in the standby area"
	tr.CheckInterval = 2
	tr.Action = Action{Kind: "advance_sequence", Target: "pickup"}
	tr.Zones = []*geometry.Zone{{
		ID:   "idle-standby",
		Name: "Idle Standby",
		Polygon: []geometry.Point{
			{X: 200, Y: 120}, {X: 1080, Y: 120}, {X: 1080, Y: 560}, {X: 200, Y: 560},
		},
		Type:    geometry.ZoneTypeTrigger,
		Enabled: true,
	}}
	tr.Conditions.Presence = &PresenceCondition{Zone: "Idle Standby", MinObjects: 1}
	return tr
}

func TestStoreRoundTrip(t *testing.T) {
	s, _, clock := testStore(t)

	orig := sampleTrigger()
	if !s.Save(orig) {
		t.Fatal("Save returned false")
	}

	got := s.Load("Idle Standby Watch")
	if got == nil {
		t.Fatal("Load returned nil")
	}
	if got.Name != orig.Name || got.ID != orig.ID || got.Type != orig.Type {
		t.Errorf("identity mismatch: got %q/%q/%q", got.Name, got.ID, got.Type)
	}
	if got.CheckInterval != 2 || got.Action.Kind != "advance_sequence" {
		t.Errorf("manifest fields lost: %+v", got)
	}
	if got.ActiveWhen.RobotState != "home" {
		t.Errorf("ActiveWhen = %+v, want home", got.ActiveWhen)
	}
	if len(got.Zones) != 1 || got.Zones[0].Name != "Idle Standby" || len(got.Zones[0].Polygon) != 4 {
		t.Errorf("zones lost: %+v", got.Zones)
	}
	if got.Conditions.Presence == nil || got.Conditions.Presence.MinObjects != 1 {
		t.Errorf("conditions lost: %+v", got.Conditions)
	}
	if !got.CreatedAt.Equal(clock.Now()) || !got.ModifiedAt.Equal(clock.Now()) {
		t.Errorf("timestamps: created %v modified %v, want %v", got.CreatedAt, got.ModifiedAt, clock.Now())
	}
}

func TestStoreLoadByDifferentNameForms(t *testing.T) {
	s, _, _ := testStore(t)
	s.Save(sampleTrigger())

	// Load resolves through the slug, so any name form hitting the same
	// slug finds the unit.
	for _, name := range []string{"Idle Standby Watch", "idle-standby-watch", "IDLE  STANDBY  WATCH"} {
		if s.Load(name) == nil {
			t.Errorf("Load(%q) = nil", name)
		}
	}
	if s.Load("other") != nil {
		t.Error("Load of a nonexistent trigger should be nil")
	}
}

func TestStoreSaveBacksUpExisting(t *testing.T) {
	s, fs, clock := testStore(t)

	tr := sampleTrigger()
	if !s.Save(tr) {
		t.Fatal("first save failed")
	}
	created := tr.CreatedAt

	clock.Advance(time.Hour)
	tr.Description = "updated"
	tr.CreatedAt = time.Time{} // stores re-derive it from the prior manifest
	if !s.Save(tr) {
		t.Fatal("second save failed")
	}

	backup := filepath.Join("/data/triggers/backups", tr.ID+"_20260314_102653")
	if !fs.IsDir(backup) {
		t.Fatalf("expected backup at %s", backup)
	}
	for _, f := range []string{"manifest.json", "zones.json", "conditions.json"} {
		if !fs.Exists(filepath.Join(backup, f)) {
			t.Errorf("backup missing %s", f)
		}
	}

	// Exactly one backup: one per overwrite, none for the initial save.
	entries, err := fs.ReadDir("/data/triggers/backups")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d backups, want exactly 1", len(entries))
	}

	got := s.Load(tr.Name)
	if got == nil {
		t.Fatal("Load after overwrite returned nil")
	}
	if got.Description != "updated" {
		t.Errorf("Description = %q, want updated", got.Description)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want original %v", got.CreatedAt, created)
	}
	if !got.ModifiedAt.Equal(clock.Now()) {
		t.Errorf("ModifiedAt = %v, want %v", got.ModifiedAt, clock.Now())
	}
}

func TestStoreBackupRetention(t *testing.T) {
	s, fs, clock := testStore(t)

	tr := sampleTrigger()
	if !s.Save(tr) {
		t.Fatal("initial save failed")
	}
	// 12 overwrites produce 12 backups; retention keeps the newest 10.
	for i := 0; i < 12; i++ {
		clock.Advance(time.Minute)
		if !s.Save(tr) {
			t.Fatalf("save %d failed", i)
		}
	}

	entries, err := fs.ReadDir("/data/triggers/backups")
	if err != nil {
		t.Fatalf("ReadDir backups: %v", err)
	}
	var mine []string
	for _, e := range entries {
		if e.IsDir() {
			mine = append(mine, e.Name())
		}
	}
	if len(mine) != 10 {
		t.Fatalf("got %d backups, want 10: %v", len(mine), mine)
	}
	// The two oldest backups should have been pruned.
	for _, stamp := range []string{"20260314_092753", "20260314_092853"} {
		if fs.IsDir(filepath.Join("/data/triggers/backups", tr.ID+"_"+stamp)) {
			t.Errorf("backup %s should have been pruned", stamp)
		}
	}
}

func TestStoreListAndGetEnabled(t *testing.T) {
	s, _, _ := testStore(t)

	a := sampleTrigger()
	s.Save(a)

	b := New("Belt Counter", TypeCount)
	b.Enabled = false
	b.Conditions.Count = &CountCondition{Zone: "belt", Target: 3, Op: OpGE}
	s.Save(b)

	names := s.List()
	want := []string{"Belt Counter", "Idle Standby Watch"}
	if len(names) != 2 || names[0] != want[0] || names[1] != want[1] {
		t.Errorf("List = %v, want %v", names, want)
	}

	enabled := s.GetEnabled()
	if len(enabled) != 1 || enabled[0] != "Idle Standby Watch" {
		t.Errorf("GetEnabled = %v", enabled)
	}
	loaded := s.LoadEnabled()
	if len(loaded) != 1 || loaded[0].ID != a.ID {
		t.Errorf("LoadEnabled = %+v", loaded)
	}
}

func TestStoreCorruptUnitSkipped(t *testing.T) {
	s, fs, _ := testStore(t)

	s.Save(sampleTrigger())

	bad := New("Broken One", TypePresence)
	bad.Conditions.Presence = &PresenceCondition{Zone: "x", MinObjects: 1}
	s.Save(bad)

	// Corrupt one document of the second unit.
	condPath := filepath.Join("/data/triggers", bad.ID, "conditions.json")
	if err := fs.WriteFile(condPath, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if s.Load("Broken One") != nil {
		t.Error("corrupt unit should load as nil")
	}
	// The healthy unit is unaffected, and listing still sees both folders.
	if s.Load("Idle Standby Watch") == nil {
		t.Error("healthy unit should still load")
	}
	if got := s.List(); len(got) != 2 {
		t.Errorf("List = %v, want both units", got)
	}
	// Enabled filtering drops the unloadable unit rather than failing.
	if got := s.GetEnabled(); len(got) != 1 || got[0] != "Idle Standby Watch" {
		t.Errorf("GetEnabled = %v", got)
	}
}

func TestStoreSaveRejectsInvalid(t *testing.T) {
	s, fs, _ := testStore(t)

	bad := New("No Conditions", TypePresence)
	if s.Save(bad) {
		t.Error("Save of an invalid trigger should return false")
	}
	if fs.Exists(filepath.Join("/data/triggers", bad.ID, "manifest.json")) {
		t.Error("rejected trigger should not be written")
	}
	if s.Save(nil) {
		t.Error("Save(nil) should return false")
	}
}

func TestStoreDelete(t *testing.T) {
	s, fs, _ := testStore(t)

	tr := sampleTrigger()
	s.Save(tr)

	if !s.Delete(tr.Name) {
		t.Fatal("Delete returned false")
	}
	if s.Load(tr.Name) != nil {
		t.Error("deleted trigger should not load")
	}
	// Deletion writes a final backup before removing the unit.
	entries, err := fs.ReadDir("/data/triggers/backups")
	if err != nil || len(entries) == 0 {
		t.Errorf("expected a pre-delete backup, got %v (%v)", entries, err)
	}
	if s.Delete(tr.Name) {
		t.Error("deleting twice should return false")
	}
}
