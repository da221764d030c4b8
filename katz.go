package smoothpwd

import (
	"github.com/pkg/errors"
)

// katzBackoff computes Katz backoff probabilities over the raw counts.
// The count mass absorbed by the pruning threshold k becomes the backoff
// mass, normalized by the probability the fail context assigns to
// characters unseen here.
type katzBackoff struct {
	k uint64
}

func (kz *katzBackoff) preprocess(m *Model) error {
	m.buildTrie(kz.k)

	root := &m.tree[m.root]
	root.prob = 1.0 / charNum
	if m.startIdx == m.root || root.cntEnd <= kz.k {
		return errors.Errorf("pruning threshold %d leaves no end mass at the root (end count %d)", kz.k, root.cntEnd)
	}
	kz.getProbs(m, m.root)
	m.interpolateProbEnd()
	return nil
}

// getProbs fills prob, probEnd, b and pf top down from idx.
func (kz *katzBackoff) getProbs(m *Model, idx int) {
	nd := &m.tree[idx]
	failNd := &m.tree[nd.fail]

	nd.probEnd = float64(nd.cntEnd) / float64(nd.cnt)
	pf := nd.probEnd

	disc := nd.cnt - nd.cntEnd
	var lowpNom uint64
	if nd.cntEnd > 0 {
		lowpNom = failNd.cntEnd
	}
	for _, chIdx := range nd.ch {
		chNd := &m.tree[chIdx]
		chNd.prob = float64(chNd.cnt) / float64(nd.cnt)
		disc -= chNd.cnt
		lowpNom += m.tree[chNd.fail].cnt

		kz.getProbs(m, chIdx)
		if chpf := chNd.prob * chNd.pf; chpf > pf {
			pf = chpf
		}
	}

	leftover := float64(disc) / float64(nd.cnt)
	var lowerProb float64
	if idx == m.root {
		// The start node is no longer among the root's children; its
		// probabilities are still needed for scoring from the start state.
		kz.getProbs(m, m.startIdx)

		nom := len(nd.ch) + 1 // +1 for the detached start child
		if nom == charNum {
			lowerProb = 1.0
		} else {
			lowerProb = 1.0 - float64(nom)/charNum
		}
	} else {
		if lowpNom == failNd.cnt {
			lowerProb = 1.0
		} else {
			lowerProb = 1 - float64(lowpNom)/float64(failNd.cnt)
		}
	}

	nd.b = leftover / lowerProb
	if leftover > pf {
		pf = leftover
	}
	nd.pf = pf
}
