package world

import (
	"context"
	"time"
)

// Run drives the tick loop at TickRateHz until ctx is done, Stop is called or a
// tick fails. Only the loop goroutine touches world state.
func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case <-ticker.C:
			if _, err := w.step(); err != nil {
				w.logger.Printf("world stopped: %v", err)
				return err
			}
		}
	}
}

// RunTicks executes n ticks back to back, without pacing.
func (w *World) RunTicks(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := w.step(); err != nil {
			return err
		}
	}
	return nil
}

func (w *World) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}
