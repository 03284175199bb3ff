package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"econgrid.ai/internal/persistence/snapshot"
)

func writeDummy(t *testing.T, worldDir string, tick uint64) string {
	t.Helper()
	src := filepath.Join(worldDir, "snapshots", snapshot.FileName(tick))
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatalf("mkdir snapshots: %v", err)
	}
	if err := os.WriteFile(src, []byte("dummy"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}
	return src
}

func TestArchiveCycleSnapshot_CopiesCycleEndSnapshot(t *testing.T) {
	worldDir := filepath.Join(t.TempDir(), "worlds", "w1")
	src := writeDummy(t, worldDir, 20)

	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, WorldID: "w1", Tick: 20},
		Seed:   42,
		Agents: make([]snapshot.AgentV1, 4),
	}
	cycle, archivedPath, ok, err := ArchiveCycleSnapshot(worldDir, src, snap, 10)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !ok || cycle != 2 {
		t.Fatalf("ok=%v cycle=%d want cycle 2", ok, cycle)
	}
	if got, err := os.ReadFile(archivedPath); err != nil || string(got) != "dummy" {
		t.Fatalf("archived content: %q err=%v", got, err)
	}

	raw, err := os.ReadFile(filepath.Join(filepath.Dir(archivedPath), "meta.json"))
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	var meta CycleArchiveMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("meta json: %v", err)
	}
	if meta.EndTick != 20 || meta.Agents != 4 || meta.CycleTicks != 10 || meta.WorldID != "w1" {
		t.Fatalf("meta=%+v", meta)
	}
}

func TestArchiveCycleSnapshot_SkipsMidCycle(t *testing.T) {
	worldDir := t.TempDir()
	for _, tc := range []struct {
		tick       uint64
		cycleTicks int
	}{
		{tick: 15, cycleTicks: 10},
		{tick: 0, cycleTicks: 10},
		{tick: 20, cycleTicks: 0},
	} {
		src := writeDummy(t, worldDir, tc.tick)
		snap := snapshot.SnapshotV1{Header: snapshot.Header{Tick: tc.tick}}
		_, _, ok, err := ArchiveCycleSnapshot(worldDir, src, snap, tc.cycleTicks)
		if err != nil || ok {
			t.Fatalf("tick=%d cycle=%d: ok=%v err=%v", tc.tick, tc.cycleTicks, ok, err)
		}
	}
	if _, err := os.Stat(filepath.Join(worldDir, "archives")); !os.IsNotExist(err) {
		t.Fatalf("archives dir should not exist: %v", err)
	}
}
