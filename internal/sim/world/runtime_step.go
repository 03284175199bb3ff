package world

import (
	"errors"
	"fmt"
	"time"

	"econgrid.ai/internal/sim/world/kernel/model"
)

var ErrInvariant = errors.New("invariant violation")

const (
	phasePerception   = "perception"
	phaseDecision     = "decision"
	phaseMovement     = "movement"
	phaseTrade        = "trade"
	phaseForaging     = "foraging"
	phaseRegeneration = "regeneration"
	phaseHousekeeping = "housekeeping"
)

// StepOnce runs exactly one tick on the caller's goroutine. It must not be
// called while Run is active.
func (w *World) StepOnce() (tick uint64, digest string, err error) {
	entry, err := w.step()
	if err != nil {
		return w.tick.Load(), "", err
	}
	return entry.Tick, entry.Digest, nil
}

func (w *World) beginTick(now uint64, mode Mode) {
	w.cur = tickScratch{
		claims:  map[model.CellID]AgentID{},
		summary: TickSummary{Tick: now, Mode: mode},
	}
}

func (w *World) step() (TickLogEntry, error) {
	start := time.Now()
	now := w.tick.Load()
	mode := w.cfg.Modes.At(now)
	w.beginTick(now, mode)

	// Fixed phase order; every phase sees the previous phase's committed state.
	views := w.systemPerception(now)
	w.systemDecision(now, mode, views)
	w.cur.summary.Moved = w.systemMovement()
	if mode.AllowsTrade() {
		w.systemTrade(now)
	}
	if mode.AllowsForage() {
		w.systemForage()
	}
	w.systemRegeneration(now)
	if err := w.systemHousekeeping(now); err != nil {
		return TickLogEntry{}, fmt.Errorf("tick %d: %w", now, err)
	}

	w.fillSummary()
	entry := TickLogEntry{
		Tick:    now,
		Mode:    mode,
		Effects: w.cur.effects,
		Summary: w.cur.summary,
		Digest:  w.stateDigest(now),
	}

	if w.tickLogger != nil {
		if err := w.tickLogger.WriteTick(entry); err != nil {
			w.logger.Printf("tick log write failed: tick=%d err=%v", now, err)
		}
	}
	if w.observer != nil {
		w.observer.ObserveTick(entry.Summary, time.Since(start))
	}

	w.tick.Store(now + 1)
	w.publishRenderState(now+1, w.cfg.Modes.At(now+1))

	if w.snapshotSink != nil && w.cfg.SnapshotEveryTicks > 0 && (now+1)%uint64(w.cfg.SnapshotEveryTicks) == 0 {
		snap := w.ExportSnapshot()
		select {
		case w.snapshotSink <- snap:
		default:
			w.logger.Printf("snapshot sink full; dropping snapshot at tick %d", now+1)
		}
	}
	return entry, nil
}
