package smoothpwd

import (
	"log"
	"sort"

	"github.com/bits-and-blooms/bitset"
)

// chSearch enumerates every string whose probability falls in
// (minThres, maxThres], depth first from idx. v is the set of ordinals
// already handled at an earlier fail level; banning them guarantees each
// string is discovered along exactly one direct-child/backoff decomposition.
// p is the probability of the path accumulated so far.
func (m *Model) chSearch(idx int, s *[]byte, v *bitset.BitSet, p, minThres, maxThres float64, oracle func(string, float64)) {
	nd := &m.tree[idx]
	if p*nd.pf <= pruneEps*minThres {
		return // no completion can reach the window
	}

	if !v.Test(endOrd) {
		if chP := p * nd.probEnd; chP > minThres && chP <= maxThres {
			oracle(string(*s), chP)
		}
	}

	for _, chIdx := range nd.ch {
		curCh := &m.tree[chIdx]
		if v.Test(uint(ord(curCh.c))) {
			continue
		}
		chP := p * curCh.prob
		if chP <= minThres {
			continue
		}
		*s = append(*s, curCh.c)
		m.chSearch(chIdx, s, emptyBset, chP, minThres, maxThres, oracle)
		*s = (*s)[:len(*s)-1]
	}

	failP := p * nd.b
	if failP <= minThres {
		return // not enough probability mass left
	}

	failV := v.Union(nd.v)
	failV.Set(endOrd)
	if failV.All() {
		return // every continuation already handled directly
	}

	if idx == m.root {
		// The root falls back to the uniform distribution.
		failP *= nd.prob
		if failP <= minThres {
			return
		}
		for x := 0; x < charNum; x++ {
			if failV.Test(uint(x)) {
				continue
			}
			*s = append(*s, chr(x))
			m.chSearch(m.root, s, emptyBset, failP, minThres, maxThres, oracle)
			*s = (*s)[:len(*s)-1]
		}
	} else {
		m.chSearch(nd.fail, s, failV, failP, minThres, maxThres, oracle)
	}
}

// SetOracle installs the sink that ThresholdSearch feeds with
// (string, probability) pairs.
func (m *Model) SetOracle(oracle func(s string, p float64)) {
	m.oracle = oracle
}

// ThresholdSearch enumerates every string whose model probability lies in
// (minThres, maxThres] and reports each exactly once to the oracle installed
// by SetOracle, in a deterministic order.
func (m *Model) ThresholdSearch(minThres, maxThres float64) {
	if len(m.tree) == 0 || m.oracle == nil {
		return
	}
	var s []byte
	m.chSearch(m.startIdx, &s, emptyBset, 1.0, minThres, maxThres, m.oracle)
}

// GenerateByThreshold returns every string whose probability lies in
// (minThres, maxThres], sorted by descending probability.
func (m *Model) GenerateByThreshold(minThres, maxThres float64) []StrProb {
	guesses := []StrProb{}
	if len(m.tree) == 0 {
		return guesses
	}
	var s []byte
	m.chSearch(m.startIdx, &s, emptyBset, 1.0, minThres, maxThres, func(str string, p float64) {
		guesses = append(guesses, StrProb{Str: str, Prob: p})
	})
	sort.Slice(guesses, func(i, j int) bool { return guesses[i].Prob > guesses[j].Prob })
	return guesses
}

// Generate returns at least cnt guesses in descending probability order by
// running the threshold search over a shrinking window, starting from
// (1/cnt, 1]. When the model's whole support holds fewer than cnt strings,
// the search stops once the window floor reaches zero and returns that
// support. When strict, the result is truncated to at most cnt.
// A small number of duplicates across windows is possible.
func (m *Model) Generate(cnt uint64, strict bool) []StrProb {
	guesses := []StrProb{}
	if cnt == 0 || len(m.tree) == 0 {
		return guesses
	}
	sink := func(str string, p float64) {
		guesses = append(guesses, StrProb{Str: str, Prob: p})
	}

	minThres, maxThres := 1.0/float64(cnt), 1.0
	for uint64(len(guesses)) < cnt {
		var s []byte
		m.chSearch(m.startIdx, &s, emptyBset, 1.0, minThres, maxThres, sink)
		if minThres == 0 {
			break // the whole support has been enumerated
		}

		guessesSize := len(guesses)
		if guessesSize < 1 {
			guessesSize = 1
		}
		shrink := 1.5 * float64(cnt) / float64(guessesSize)
		if shrink < 2 {
			shrink = 2
		}
		maxThres = minThres
		minThres = minThres / shrink
	}

	sort.Slice(guesses, func(i, j int) bool { return guesses[i].Prob > guesses[j].Prob })
	if strict && uint64(len(guesses)) > cnt {
		guesses = guesses[:cnt]
	}
	return guesses
}

// GenerateByMonteCarlo draws numSamples random samples, estimates the
// probability threshold at which roughly 1.1*cnt strings rank above, and
// enumerates down to that threshold.
func (m *Model) GenerateByMonteCarlo(cnt uint64, numSamples int) []StrProb {
	if len(m.tree) == 0 {
		return []StrProb{}
	}
	samples := make([]StrProb, 0, numSamples)
	for i := 0; i < numSamples; i++ {
		s, p := m.Sample()
		samples = append(samples, StrProb{Str: s, Prob: p})
	}
	prob := NewPosEstimator(samples).InvPosition(1.1 * float64(cnt))
	log.Printf("monte carlo threshold: %g", prob)
	return m.GenerateByThreshold(prob, 1.0)
}

// sampleCh selects one outgoing transition at idx by subtracting transition
// probabilities from randVal in ordinal order, the end symbol first. When the
// direct transitions at idx do not absorb randVal, the residual is rescaled
// by the backoff weight and the selection recurses at the fail node with the
// directly handled ordinals banned. A non-positive returned probability means
// randVal failed to settle, which floating point rounding makes possible.
func (m *Model) sampleCh(idx int, v *bitset.BitSet, randVal float64) (byte, float64, int) {
	nd := &m.tree[idx]

	if !v.Test(endOrd) {
		randVal -= nd.probEnd
		if randVal < 0 {
			return 0, nd.probEnd, idx
		}
	}

	for _, chIdx := range nd.ch {
		curCh := &m.tree[chIdx]
		if v.Test(uint(ord(curCh.c))) {
			continue
		}
		randVal -= curCh.prob
		if randVal < 0 {
			return curCh.c, curCh.prob, chIdx
		}
	}

	failV := v.Union(nd.v)
	failV.Set(endOrd)
	if failV.All() {
		return 0, -1.0, idx
	}

	if idx == m.root {
		prob := nd.b * nd.prob
		for x := 0; x < charNum; x++ {
			if failV.Test(uint(x)) {
				continue
			}
			randVal -= prob
			if randVal < 0 {
				return chr(x), prob, idx
			}
		}
		return 0, -1.0, idx
	}

	c, p, nt := m.sampleCh(nd.fail, failV, randVal/nd.b)
	return c, p * nd.b, nt
}

// Sample draws one random string with probability proportional to the model,
// returning the string and its probability. It returns ("", 0) on an
// untrained model. Draws that fail to settle are retried with fresh
// randomness, observable only as extra random-state consumption.
func (m *Model) Sample() (string, float64) {
	if len(m.tree) == 0 {
		return "", 0
	}
	var s []byte
	p := 1.0
	idx := m.startIdx
	for {
		c, transProb, nt := m.sampleCh(idx, emptyBset, m.rng.Float64())
		if transProb <= 0 {
			continue
		}
		p *= transProb
		if c == 0 {
			break
		}
		s = append(s, c)
		idx = nt
	}
	return string(s), p
}
