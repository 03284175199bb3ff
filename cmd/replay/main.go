package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	persistlog "econgrid.ai/internal/persistence/log"
	"econgrid.ai/internal/persistence/snapshot"
	"econgrid.ai/internal/sim/tuning"
	"econgrid.ai/internal/sim/world"
)

func main() {
	var (
		scenarioPath = flag.String("scenario", "", "scenario yaml the run was started with")
		snapPath     = flag.String("snapshot", "", "path to .snap.zst to start from (optional; default tick 0)")
		eventsDir    = flag.String("events", "", "events dir containing events-*.jsonl.zst")
		fromTick     = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick       = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *scenarioPath == "" || *eventsDir == "" {
		fmt.Fprintln(os.Stderr, "usage: replay -scenario <yaml> -events <dir> [-snapshot <file>]")
		os.Exit(2)
	}

	w, err := buildWorld(*scenarioPath, *snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	files, err := persistlog.ListEventFiles(*eventsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no events files found in", *eventsDir)
		os.Exit(1)
	}

	start := w.CurrentTick()
	checked, err := replay(w, files, *fromTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d ticks (from tick=%d, now=%d)\n", checked, start, w.CurrentTick())
}

func buildWorld(scenarioPath, snapPath string) (*world.World, error) {
	scn, err := tuning.LoadScenario(scenarioPath)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	cfg, err := scn.WorldConfig()
	if err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	w, err := world.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	if snapPath == "" {
		return w, nil
	}
	snap, err := snapshot.ReadSnapshot(snapPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	fmt.Printf("snapshot v%d world=%s tick=%d seed=%d agents=%d markets=%d cells=%d\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.Seed,
		len(snap.Agents), len(snap.Markets), len(snap.Cells))
	if err := w.ImportSnapshot(snap); err != nil {
		return nil, fmt.Errorf("import snapshot: %w", err)
	}
	return w, nil
}

var errDone = persistlog.ErrStop

// replay steps w once per logged tick and compares digests. Entries before the
// world's current tick are skipped; a resumed run logs some ticks twice.
func replay(w *world.World, files []string, verifyFrom, toTick uint64) (uint64, error) {
	var checked uint64
	stop := false
	for _, path := range files {
		err := persistlog.ReadTicks(path, func(entry world.TickLogEntry) error {
			if entry.Tick < w.CurrentTick() {
				return nil
			}
			if toTick != 0 && entry.Tick > toTick {
				stop = true
				return errDone
			}
			if entry.Tick != w.CurrentTick() {
				return fmt.Errorf("tick gap: want=%d got=%d", w.CurrentTick(), entry.Tick)
			}
			tick, digest, err := w.StepOnce()
			if err != nil {
				return err
			}
			if tick >= verifyFrom {
				checked++
				if digest != entry.Digest {
					return &mismatchError{Tick: tick, Got: digest, Want: entry.Digest}
				}
			}
			return nil
		})
		if err != nil {
			return checked, fmt.Errorf("%s: %w", path, err)
		}
		if stop {
			break
		}
	}
	return checked, nil
}

type mismatchError struct {
	Tick      uint64
	Got, Want string
}

func (e *mismatchError) Error() string {
	return fmt.Sprintf("digest mismatch at tick %d: got=%s want=%s", e.Tick, e.Got, e.Want)
}

func isMismatch(err error) bool {
	var m *mismatchError
	return errors.As(err, &m)
}
