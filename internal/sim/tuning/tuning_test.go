package tuning

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"econgrid.ai/internal/sim/world"
)

func scenarioPath(name string) string {
	return filepath.Join("..", "..", "..", "configs", "scenarios", name)
}

func TestBundledScenariosBuildWorlds(t *testing.T) {
	for _, name := range []string{"two_agents.yaml", "two_markets.yaml", "village.yaml"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(scenarioPath(name))
			require.NoError(t, err)
			assert.Len(t, s.Digest(), 64)
			require.NoError(t, s.Validate())

			cfg, err := s.WorldConfig()
			require.NoError(t, err)
			w, err := world.New(cfg)
			require.NoError(t, err)
			for i := 0; i < 3; i++ {
				_, _, err := w.StepOnce()
				require.NoError(t, err)
			}
		})
	}
}

func TestTwoAgentScenarioTradesOnFirstTick(t *testing.T) {
	s, err := LoadScenario(scenarioPath("two_agents.yaml"))
	require.NoError(t, err)
	cfg, err := s.WorldConfig()
	require.NoError(t, err)
	require.Len(t, cfg.Agents, 2)
	assert.Equal(t, "8", cfg.Agents[0].Inventory["x"].String())

	w, err := world.New(cfg)
	require.NoError(t, err)
	var got []world.TickLogEntry
	w.SetTickLogger(tickSink(func(e world.TickLogEntry) { got = append(got, e) }))
	_, _, err = w.StepOnce()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Summary.Trades)
}

type tickSink func(world.TickLogEntry)

func (f tickSink) WriteTick(e world.TickLogEntry) error {
	f(e)
	return nil
}

func TestDecimalsAcceptNumbersAndStrings(t *testing.T) {
	s, err := ParseScenario([]byte(`
grid: {width: 3, height: 3}
goods: [a, b]
tatonnement: {adjustment_speed: 0.1, order_cap: "2.50"}
`))
	require.NoError(t, err)
	assert.Equal(t, "0.1", s.Tatonnement.AdjustmentSpeed.String())
	assert.Equal(t, "2.5", s.Tatonnement.OrderCap.String())
}

func TestSchemaRejections(t *testing.T) {
	cases := map[string]string{
		"missing grid":    `goods: [a]`,
		"unknown field":   "grid: {width: 3, height: 3}\ngoods: [a]\nwat: 1\n",
		"bad utility":     "grid: {width: 3, height: 3}\ngoods: [a]\nagents: [{id: 1, pos: [0,0], utility: {kind: leontief}}]\n",
		"bad pos":         "grid: {width: 3, height: 3}\ngoods: [a]\nagents: [{id: 1, pos: [0], utility: {kind: linear}}]\n",
		"duplicate goods": "grid: {width: 3, height: 3}\ngoods: [a, a]\n",
		"bad decimal":     "grid: {width: 3, height: 3}\ngoods: [a]\nforage: {rate: \"1e3x\"}\n",
		"bad mode":        "grid: {width: 3, height: 3}\ngoods: [a]\nmodes: {mode: sometimes}\n",
		"empty":           ``,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseScenario([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestSemanticErrorsSurfaceAsConfigErrors(t *testing.T) {
	s, err := ParseScenario([]byte(`
grid: {width: 5, height: 5}
goods: [x, y]
markets: {enabled: true, formation_threshold: 3, sustain_threshold: 3}
agents:
  - {id: 1, pos: [0, 0], inventory: {x: "1", y: "1"}, utility: {kind: linear, weights: {x: 1, y: 1}}}
`))
	require.NoError(t, err)
	assert.True(t, errors.Is(s.Validate(), world.ErrConfig))

	cfg, err := s.WorldConfig()
	require.NoError(t, err)
	_, err = world.New(cfg)
	assert.True(t, errors.Is(err, world.ErrConfig), "err=%v", err)
}

func TestPopulationsAreSeededAndBounded(t *testing.T) {
	doc := []byte(`
seed: 9
grid: {width: 10, height: 8}
goods: [x, y]
agents:
  - {id: 4, pos: [0, 0], inventory: {x: "1"}, utility: {kind: linear, weights: {x: 1}}}
populations:
  - count: 12
    region: [2, 3, 5, 6]
    inventory: {x: "2", y: "2"}
    utility: {kind: linear, weights: {x: 1, y: 1}}
`)
	s, err := ParseScenario(doc)
	require.NoError(t, err)
	a, err := s.WorldConfig()
	require.NoError(t, err)
	b, err := s.WorldConfig()
	require.NoError(t, err)

	require.Len(t, a.Agents, 13)
	assert.Equal(t, a.Agents, b.Agents)
	for i, ag := range a.Agents[1:] {
		assert.EqualValues(t, 5+i, ag.ID)
		assert.GreaterOrEqual(t, ag.Pos.X, 2)
		assert.LessOrEqual(t, ag.Pos.X, 5)
		assert.GreaterOrEqual(t, ag.Pos.Y, 3)
		assert.LessOrEqual(t, ag.Pos.Y, 6)
	}

	s.Seed = 10
	c, err := s.WorldConfig()
	require.NoError(t, err)
	assert.NotEqual(t, a.Agents, c.Agents)
}

func TestPopulationRegionOutsideGrid(t *testing.T) {
	s, err := ParseScenario([]byte(`
grid: {width: 4, height: 4}
goods: [x]
populations: [{count: 1, region: [0, 0, 9, 9], utility: {kind: linear, weights: {x: 1}}}]
`))
	require.NoError(t, err)
	_, err = s.WorldConfig()
	assert.ErrorIs(t, err, world.ErrConfig)
}
