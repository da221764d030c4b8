package smoothpwd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPosEstimator checks Position and InvPosition on a hand-computed
// sample set. With probabilities {0.4, 0.2, 0.2, 0.1, 0.1} and N = 5, the
// rank prefix sums are 0, 0.5, 1.5, 2.5, 4.5, 6.5.
func TestPosEstimator(t *testing.T) {
	t.Parallel()
	samples := []StrProb{
		{Str: "a", Prob: 0.2},
		{Str: "b", Prob: 0.4},
		{Str: "c", Prob: 0.1},
		{Str: "d", Prob: 0.2},
		{Str: "e", Prob: 0.1},
	}
	e := NewPosEstimator(samples)

	require.InDelta(t, 0.0, e.Position(0.4), 1e-12)
	require.InDelta(t, 0.5, e.Position(0.3), 1e-12)
	require.InDelta(t, 0.5, e.Position(0.2), 1e-12)
	require.InDelta(t, 2.5, e.Position(0.1), 1e-12)
	require.InDelta(t, 6.5, e.Position(0.05), 1e-12)

	require.InDelta(t, 1.0, e.InvPosition(0.0), 1e-12)
	require.InDelta(t, 0.4, e.InvPosition(0.4), 1e-12)
	require.InDelta(t, 0.2, e.InvPosition(1.0), 1e-12)
	require.InDelta(t, 0.1, e.InvPosition(3.0), 1e-12)
	require.InDelta(t, 0.1, e.InvPosition(6.5), 1e-12)
	require.Zero(t, e.InvPosition(7.0))
}

// TestPosEstimatorRoundTrip checks that on samples drawn from a real model,
// InvPosition inverts Position at the sampled probabilities.
func TestPosEstimatorRoundTrip(t *testing.T) {
	t.Parallel()
	model := trainedKN(t, passwordCorpus(), 3)
	model.Seed(23)

	samples := make([]StrProb, 0, 1000)
	for i := 0; i < 1000; i++ {
		s, p := model.Sample()
		samples = append(samples, StrProb{Str: s, Prob: p})
	}
	e := NewPosEstimator(samples)

	for _, sp := range samples[:50] {
		pos := e.Position(sp.Prob)
		inv := e.InvPosition(pos)
		// InvPosition lands on the smallest sampled probability still
		// ranked above sp.Prob, or 1.0 at the very top.
		require.GreaterOrEqual(t, inv, sp.Prob)
	}
}

func TestPosEstimatorEmpty(t *testing.T) {
	t.Parallel()
	e := NewPosEstimator(nil)
	require.Zero(t, e.Position(0.5))
	require.InDelta(t, 1.0, e.InvPosition(0.0), 1e-12)
	require.Zero(t, e.InvPosition(1.0))
}
