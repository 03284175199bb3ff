package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"econgrid.ai/internal/persistence/indexdb"
	"econgrid.ai/internal/persistence/snapshot"
	"econgrid.ai/internal/sim/world"
	"econgrid.ai/internal/sim/world/kernel/model"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func seedIndex(t *testing.T) string {
	t.Helper()
	dataDir := t.TempDir()
	path := filepath.Join(dataDir, "worlds", "village", "index", "world.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	require.NoError(t, err)

	require.NoError(t, idx.RecordRun("run-a", "village", 7, 0, map[string]string{"id": "village"}))
	price := decimal.RequireFromString("2.5")
	for tick := uint64(0); tick < 3; tick++ {
		require.NoError(t, idx.WriteTick(world.TickLogEntry{
			Tick:   tick,
			Mode:   world.ModeBoth,
			Digest: "0123456789abcdef0123",
			Effects: []model.Effect{
				model.Trade(1, 2, "berries", decimal.NewFromInt(1), price, price, model.OriginBilateral, 0),
			},
			Summary: world.TickSummary{Tick: tick, Mode: world.ModeBoth, Trades: 1, BilateralTrades: 1},
		}))
	}
	require.NoError(t, idx.WriteTick(world.TickLogEntry{
		Tick:   3,
		Mode:   world.ModeBoth,
		Digest: "ffff",
		Effects: []model.Effect{
			model.MarketFormation(4, model.Vec2{X: 3, Y: 3}, 6),
			model.MarketDissolution(4, "below_sustain"),
		},
		Summary: world.TickSummary{Tick: 3, Mode: world.ModeBoth},
	}))
	require.NoError(t, idx.Close())
	return dataDir
}

func TestOverviewAndTicks(t *testing.T) {
	dataDir := seedIndex(t)

	out, _, err := execute(t, "overview", "--data", dataDir, "--world", "village")
	require.NoError(t, err)
	assert.Contains(t, out, "ticks:         4 (0..3)")
	assert.Contains(t, out, "trades:        3")
	assert.Contains(t, out, "1 formed, 1 dissolved")

	out, _, err = execute(t, "ticks", "--data", dataDir, "--world", "village", "--from", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "0123456789ab")
	assert.NotContains(t, out, "0123456789abc")
	assert.Contains(t, out, "ffff")
}

func TestTradesMarketsRuns(t *testing.T) {
	dataDir := seedIndex(t)
	db := filepath.Join(dataDir, "worlds", "village", "index", "world.sqlite")

	out, _, err := execute(t, "trades", "--db", db, "--agent", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "berries")
	assert.Contains(t, out, "bilateral")

	out, _, err = execute(t, "trades", "--db", db, "--agent", "9")
	require.NoError(t, err)
	assert.NotContains(t, out, "berries")

	out, _, err = execute(t, "markets", "--db", db, "--market", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "market_formation")
	assert.Contains(t, out, "below_sustain")

	out, _, err = execute(t, "runs", "--db", db)
	require.NoError(t, err)
	// Started just now, so humanize may print "now" or "N seconds ago".
	assert.Regexp(t, `run-a\s+village\s+7\s+0\s+(now|\d+ seconds? ago)`, out)
}

func TestStartedAgo(t *testing.T) {
	past := time.Now().Add(-3 * time.Hour).UTC().Format(time.RFC3339Nano)
	assert.Equal(t, "3 hours ago", startedAgo(past))
	assert.Equal(t, "not-a-time", startedAgo("not-a-time"))
}

func TestMissingWorld(t *testing.T) {
	_, errOut, err := execute(t, "ticks")
	require.Error(t, err)
	assert.Contains(t, errOut, "missing --world or --db")
}

func TestSnapshotCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), snapshot.FileName(12))
	require.NoError(t, snapshot.WriteSnapshot(path, snapshot.SnapshotV1{
		Header:    snapshot.Header{Version: snapshot.Version, WorldID: "village", Tick: 12},
		Seed:      7,
		Width:     8,
		Height:    4,
		Goods:     []string{"berries", "coin"},
		Numeraire: "coin",
		Agents:    make([]snapshot.AgentV1, 3),
	}))

	out, _, err := execute(t, "snapshot", path)
	require.NoError(t, err)
	assert.Contains(t, out, "world=village tick=12")
	assert.Contains(t, out, "grid=8x4 goods=berries,coin numeraire=coin")
	assert.Contains(t, out, "agents=3 markets=0 cells=0")
}

func TestStateCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/state", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tick":9,"mode":"both","agents":[{"id":1,"partner":2},{"id":2,"partner":1},{"id":3,"market":1}],
			"markets":[{"id":1,"participants":[3],"prices":{"x":"1.25","w":"0.5"}}]}`))
	}))
	defer srv.Close()

	out, _, err := execute(t, "state", "--url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "tick=9 mode=both")
	assert.Contains(t, out, "agents=3 paired=2 in_market=1")
	assert.Contains(t, out, "prices=[w=0.5 x=1.25]")
}
