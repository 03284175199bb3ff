package main

import (
	"log"
	"path/filepath"

	"econgrid.ai/internal/persistence/archive"
	"econgrid.ai/internal/persistence/snapshot"
	"econgrid.ai/internal/sim/world"
)

type snapshotWriter struct {
	worldDir   string
	dir        string
	idx        runtimeIndex
	cycleTicks int
	logger     *log.Logger
}

func newSnapshotWriter(worldDir string, idx runtimeIndex, modes world.ModeSchedule, logger *log.Logger) *snapshotWriter {
	s := &snapshotWriter{
		worldDir: worldDir,
		dir:      filepath.Join(worldDir, "snapshots"),
		idx:      idx,
		logger:   logger,
	}
	if modes.Mode == world.ModeAlternating {
		s.cycleTicks = modes.ForageTicks + modes.TradeTicks
	}
	return s
}

// persist writes snap, records it in the index and archives it when it closes
// an alternating forage/trade cycle.
func (s *snapshotWriter) persist(snap snapshot.SnapshotV1) (string, error) {
	path := filepath.Join(s.dir, snapshot.FileName(snap.Header.Tick))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	if s.idx != nil {
		s.idx.RecordSnapshot(path, snap)
	}
	if cycle, dst, ok, err := archive.ArchiveCycleSnapshot(s.worldDir, path, snap, s.cycleTicks); err != nil {
		s.logger.Printf("archive snapshot: %v", err)
	} else if ok {
		s.logger.Printf("archived cycle %d snapshot to %s", cycle, dst)
	}
	return path, nil
}

// final persists the stopped world so the next start resumes it.
// Only call once the tick loop has returned.
func (s *snapshotWriter) final(w *world.World) {
	path, err := s.persist(w.ExportSnapshot())
	if err != nil {
		s.logger.Printf("final snapshot: %v", err)
		return
	}
	s.logger.Printf("final snapshot %s", filepath.Base(path))
}
