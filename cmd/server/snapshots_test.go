package main

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"econgrid.ai/internal/persistence/snapshot"
	"econgrid.ai/internal/sim/world"
)

func TestSnapshotWriterArchivesCycleEnds(t *testing.T) {
	w := testWorld(t)
	worldDir := t.TempDir()
	modes := world.ModeSchedule{Mode: world.ModeAlternating, ForageTicks: 3, TradeTicks: 2}
	sw := newSnapshotWriter(worldDir, nil, modes, log.New(io.Discard, "", 0))

	snap := w.ExportSnapshot()
	snap.Header.Tick = 5
	path, err := sw.persist(snap)
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if filepath.Base(path) != snapshot.FileName(5) {
		t.Fatalf("path=%s", path)
	}
	if _, err := os.Stat(filepath.Join(worldDir, "archives", "cycle_001", snapshot.FileName(5))); err != nil {
		t.Fatalf("expected archived snapshot: %v", err)
	}

	snap.Header.Tick = 7
	if _, err := sw.persist(snap); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(worldDir, "archives", "cycle_002")); !os.IsNotExist(err) {
		t.Fatalf("mid-cycle snapshot archived: %v", err)
	}
}

func TestFinalSnapshotResumes(t *testing.T) {
	w := testWorld(t)
	worldDir := t.TempDir()
	sw := newSnapshotWriter(worldDir, nil, world.ModeSchedule{Mode: world.ModeBoth}, log.New(io.Discard, "", 0))
	sw.final(w)

	path, tick, err := snapshot.Latest(filepath.Join(worldDir, "snapshots"))
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if tick != w.CurrentTick() {
		t.Fatalf("tick=%d want %d", tick, w.CurrentTick())
	}
	if _, err := os.Stat(filepath.Join(worldDir, "archives")); !os.IsNotExist(err) {
		t.Fatalf("archives written without alternating modes: %v", err)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	resumed := testWorld(t)
	if err := resumed.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if resumed.CurrentTick() != w.CurrentTick() {
		t.Fatalf("resumed tick=%d", resumed.CurrentTick())
	}
}
