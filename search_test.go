package smoothpwd

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func requireSortedDesc(t *testing.T, guesses []StrProb) {
	t.Helper()
	require.True(t, sort.SliceIsSorted(guesses, func(i, j int) bool {
		return guesses[i].Prob > guesses[j].Prob
	}))
}

// TestThresholdCompleteness draws samples and checks that every sampled
// string whose probability falls in a fixed window is enumerated exactly
// once by the threshold search, and that everything enumerated re-scores
// inside the window.
func TestThresholdCompleteness(t *testing.T) {
	t.Parallel()
	model := trainedKN(t, []string{"ab", "ab", "ac"}, 3)
	model.Seed(7)

	for _, window := range []struct{ min, max float64 }{
		{0.01, 1.0},
		{0.001, 0.01},
	} {
		guesses := model.GenerateByThreshold(window.min, window.max)
		seen := map[string]int{}
		for _, g := range guesses {
			seen[g.Str]++
			require.Greater(t, g.Prob, window.min)
			require.LessOrEqual(t, g.Prob, window.max)
			require.InDelta(t, model.Prob(g.Str), g.Prob, eps)
		}

		sampled := map[string]bool{}
		for i := 0; i < 500; i++ {
			s, p := model.Sample()
			if sampled[s] || p <= window.min || p > window.max {
				continue
			}
			sampled[s] = true
			require.Equal(t, 1, seen[s], "sampled %q with prob %v not enumerated exactly once", s, p)
		}
	}
}

// TestThresholdSearchOracle checks that ThresholdSearch feeds the installed
// oracle the same set of results GenerateByThreshold returns.
func TestThresholdSearchOracle(t *testing.T) {
	t.Parallel()
	model := trainedKN(t, []string{"ab", "ab", "ac"}, 3)

	got := map[string]float64{}
	model.SetOracle(func(s string, p float64) { got[s] = p })
	model.ThresholdSearch(0.001, 1.0)

	want := map[string]float64{}
	for _, g := range model.GenerateByThreshold(0.001, 1.0) {
		want[g.Str] = g.Prob
	}
	require.Equal(t, want, got)
}

func TestGenerateByThresholdContains(t *testing.T) {
	t.Parallel()
	model := trainedKatz(t, passwordCorpus(), 5, 1)
	p := model.Prob("password")
	require.Greater(t, p, 0.0)

	guesses := model.GenerateByThreshold(p*0.999, 1.0)
	requireSortedDesc(t, guesses)
	found := false
	for _, g := range guesses {
		if g.Str == "password" {
			found = true
		}
	}
	require.True(t, found)
}

// TestGenerateStrict generates a strict batch of guesses and checks count,
// order, and that the most common training password ranks near the top.
func TestGenerateStrict(t *testing.T) {
	t.Parallel()
	model := trainedKatz(t, passwordCorpus(), 5, 1)

	guesses := model.Generate(100, true)
	require.Len(t, guesses, 100)
	requireSortedDesc(t, guesses)

	top := guesses[:3]
	found := false
	for _, g := range top {
		if g.Str == "password" {
			found = true
		}
	}
	require.True(t, found, "password not in top 3: %+v", top)
}

func TestGenerateLoose(t *testing.T) {
	t.Parallel()
	model := trainedKN(t, passwordCorpus(), 3)
	guesses := model.Generate(50, false)
	require.GreaterOrEqual(t, len(guesses), 50)
	requireSortedDesc(t, guesses)
}

func TestGenerateZero(t *testing.T) {
	t.Parallel()
	model := trainedKN(t, []string{"ab", "ab", "ac"}, 3)
	require.Empty(t, model.Generate(0, false))
	require.Empty(t, model.Generate(0, true))
}

// TestGenerateExhaustedSupport trains a model whose support is a single
// string; Generate must terminate and return that support.
func TestGenerateExhaustedSupport(t *testing.T) {
	t.Parallel()
	model, err := NewKatzBackoff(MaxGramSize, 0)
	require.NoError(t, err)
	require.NoError(t, model.TrainCounts(map[string]uint64{"": 5}))

	guesses := model.Generate(10, false)
	require.Len(t, guesses, 1)
	require.Equal(t, "", guesses[0].Str)
}

// TestGenerateByMonteCarlo checks that the Monte-Carlo threshold produces at
// least the requested number of guesses and that each of the top cnt guesses
// re-scores to its reported probability.
func TestGenerateByMonteCarlo(t *testing.T) {
	t.Parallel()
	model := trainedKN(t, passwordCorpus(), 3)
	model.Seed(11)

	const cnt = 30
	guesses := model.GenerateByMonteCarlo(cnt, 5000)
	require.GreaterOrEqual(t, len(guesses), cnt)
	requireSortedDesc(t, guesses)
	for _, g := range guesses[:cnt] {
		require.InDelta(t, model.Prob(g.Str), g.Prob, eps)
	}
}

// TestSampleScoreConsistency checks that every drawn sample re-scores to the
// probability reported by the sampler.
func TestSampleScoreConsistency(t *testing.T) {
	t.Parallel()
	for _, model := range []*Model{
		trainedKN(t, passwordCorpus(), 4),
		trainedKatz(t, passwordCorpus(), 5, 1),
	} {
		model.Seed(13)
		for i := 0; i < 2000; i++ {
			s, p := model.Sample()
			if math.Abs(p-model.Prob(s)) >= eps {
				t.Fatalf("sample %q: %v != %v", s, p, model.Prob(s))
			}
		}
	}
}

// TestSampleStatistics draws a batch of samples and checks the basic shape
// of the outcome: positive probabilities, plausible mean, and that frequent
// training strings dominate.
func TestSampleStatistics(t *testing.T) {
	t.Parallel()
	model := trainedKN(t, passwordCorpus(), 4)
	model.Seed(17)

	const n = 10000
	var avr float64
	hits := 0
	for i := 0; i < n; i++ {
		s, p := model.Sample()
		if p <= 0 || p > 1 {
			t.Fatalf("sample %q has probability %v", s, p)
		}
		avr += p
		if s == "password" || s == "123456" {
			hits++
		}
	}
	avr /= n
	if avr <= 0 || avr > 1 {
		t.Errorf("mean sampled probability %v", avr)
	}
	// password and 123456 carry half the training mass; with smoothing they
	// must still account for a substantial share of the draws.
	if hits < n/10 {
		t.Errorf("frequent passwords drawn only %d/%d times", hits, n)
	}
}
