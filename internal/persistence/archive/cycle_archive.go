package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"econgrid.ai/internal/persistence/snapshot"
)

type CycleArchiveMeta struct {
	Cycle      int    `json:"cycle"`
	WorldID    string `json:"world_id"`
	EndTick    uint64 `json:"end_tick"`
	Seed       int64  `json:"seed"`
	Snapshot   string `json:"snapshot"`
	CycleTicks int    `json:"cycle_ticks"`
	Agents     int    `json:"agents"`
	Markets    int    `json:"markets"`
	CreatedAt  string `json:"created_at"`
}

// ArchiveCycleSnapshot copies a snapshot taken at the end of an alternating
// forage/trade cycle into `worldDir/archives/cycle_<NNN>/`. Snapshot ticks are
// the next tick to run, so a cycle ends when Tick is a multiple of cycleTicks.
func ArchiveCycleSnapshot(worldDir, snapshotPath string, snap snapshot.SnapshotV1, cycleTicks int) (cycle int, archivedPath string, archived bool, err error) {
	if cycleTicks <= 0 || snap.Header.Tick == 0 {
		return 0, "", false, nil
	}
	if snap.Header.Tick%uint64(cycleTicks) != 0 {
		return 0, "", false, nil
	}
	cycle = int(snap.Header.Tick / uint64(cycleTicks))

	archiveDir := filepath.Join(worldDir, "archives", fmt.Sprintf("cycle_%03d", cycle))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return 0, "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return 0, "", false, err
	}

	meta := CycleArchiveMeta{
		Cycle:      cycle,
		WorldID:    snap.Header.WorldID,
		EndTick:    snap.Header.Tick,
		Seed:       snap.Seed,
		Snapshot:   filepath.Base(dst),
		CycleTicks: cycleTicks,
		Agents:     len(snap.Agents),
		Markets:    len(snap.Markets),
		CreatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}

	return cycle, dst, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
