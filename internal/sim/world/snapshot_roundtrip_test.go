package world

import (
	"path/filepath"
	"testing"

	"econgrid.ai/internal/persistence/snapshot"
)

func TestSnapshotRoundTripResumesIdentically(t *testing.T) {
	cfg := foragingConfig()
	w := mustNew(t, cfg)
	for i := 0; i < 12; i++ {
		mustStep(t, w)
	}

	path := filepath.Join(t.TempDir(), snapshot.FileName(w.CurrentTick()))
	if err := snapshot.WriteSnapshot(path, w.ExportSnapshot()); err != nil {
		t.Fatalf("write: %v", err)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	resumed := mustNew(t, cfg)
	if err := resumed.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if resumed.CurrentTick() != w.CurrentTick() {
		t.Fatalf("tick %d vs %d", resumed.CurrentTick(), w.CurrentTick())
	}
	for i := 0; i < 15; i++ {
		t1, d1 := mustStep(t, w)
		t2, d2 := mustStep(t, resumed)
		if t1 != t2 || d1 != d2 {
			t.Fatalf("diverged after resume at tick %d/%d", t1, t2)
		}
	}
}

func TestSnapshotSinkReceivesPeriodicSnapshots(t *testing.T) {
	cfg := twoAgentConfig()
	cfg.SnapshotEveryTicks = 5
	w := mustNew(t, cfg)
	ch := make(chan snapshot.SnapshotV1, 4)
	w.SetSnapshotSink(ch)
	for i := 0; i < 11; i++ {
		mustStep(t, w)
	}
	if len(ch) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(ch))
	}
	if s := <-ch; s.Header.Tick != 5 || len(s.Agents) != 2 {
		t.Fatalf("first snapshot header=%+v", s.Header)
	}
}

func TestImportRejectsForeignSnapshot(t *testing.T) {
	w := mustNew(t, twoAgentConfig())
	snap := w.ExportSnapshot()
	snap.Width = 99
	if err := mustNew(t, twoAgentConfig()).ImportSnapshot(snap); err == nil {
		t.Fatalf("expected shape mismatch error")
	}
}
