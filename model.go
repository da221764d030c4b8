package smoothpwd

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DefaultDiscountParams is the number of discount parameters of the modified
// Kneser-Ney scheme. 1 degenerates to original Kneser-Ney.
const DefaultDiscountParams = 3

// A node of the smoothed trie, the frozen model structure.
type node struct {
	childSet
	c      byte // edge character into this node; NUL for the root and the start node
	level  int  // depth from the root
	cnt    uint64
	cntEnd uint64

	fail    int     // longest proper suffix of this node's path present in the trie
	prob    float64 // transition probability from the parent into this node
	probEnd float64 // probability of emitting the end symbol at this node
	b       float64 // backoff weight applied when falling to fail
	pf      float64 // upper bound on any completion probability from this node
}

// A smoother turns the raw counts of a freshly built trie into transition
// probabilities, backoff weights and pruning factors.
type smoother interface {
	preprocess(m *Model) error
}

// A Model is a smoothed n-gram model over printable ASCII strings.
// Feed it training data with Add or Train, freeze it with Preprocess, and
// then query it with Prob, Sample and the Generate family. A frozen model is
// never mutated by queries, except for the sampler's private random state.
type Model struct {
	strie *simpleTrie
	tree  []node

	root     int
	startIdx int
	gramSize int

	sm     smoother
	oracle func(s string, p float64)
	rng    *rand.Rand
}

func newModel(gramSize int, sm smoother) *Model {
	return &Model{
		strie:    newSimpleTrie(gramSize),
		gramSize: gramSize,
		sm:       sm,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewKatzBackoff returns a model of order gramSize smoothed with Katz
// backoff. Pass MaxGramSize for effectively unbounded contexts. k is the
// count pruning threshold: substrings seen at most k times are absorbed
// into the backoff mass.
func NewKatzBackoff(gramSize, k int) (*Model, error) {
	if gramSize < 2 || gramSize > MaxGramSize {
		return nil, errors.Errorf("gram size %d out of range [2, %d]", gramSize, MaxGramSize)
	}
	if k < 0 {
		return nil, errors.Errorf("negative pruning threshold %d", k)
	}
	return newModel(gramSize, &katzBackoff{k: uint64(k)}), nil
}

// NewModifiedKneserNey returns an n-gram model of order gramSize smoothed
// with modified Kneser-Ney. numDiscountParams is the number of discount
// parameters, normally DefaultDiscountParams.
func NewModifiedKneserNey(gramSize, numDiscountParams int) (*Model, error) {
	if gramSize < 2 || gramSize > MaxGramSize {
		return nil, errors.Errorf("gram size %d out of range [2, %d]", gramSize, MaxGramSize)
	}
	if numDiscountParams < 1 {
		return nil, errors.Errorf("need at least one discount parameter, got %d", numDiscountParams)
	}
	return newModel(gramSize, &kneserNey{numDiscountParams: numDiscountParams}), nil
}

// GramSize returns the model's context window size in characters,
// counting the start symbol.
func (m *Model) GramSize() int {
	return m.gramSize
}

// Seed pins the sampler's random state for reproducible draws.
func (m *Model) Seed(seed int64) {
	m.rng = rand.New(rand.NewSource(seed))
}

// Add accumulates a training string with multiplicity cnt.
// s must consist of printable ASCII only, see IsPrintable.
// Add panics if the model has already been trained.
func (m *Model) Add(s string, cnt uint64) {
	if m.strie == nil {
		panic("smoothpwd: Add on a trained model")
	}
	m.strie.addSub([]byte(s), cnt)
}

// Train counts the rows of data and freezes the model.
// It fails on an empty training set and on a model that is already trained.
func (m *Model) Train(data []string) error {
	counter := make(map[string]uint64, len(data))
	for _, s := range data {
		counter[s]++
	}
	if err := m.TrainCounts(counter); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// TrainCounts is Train for training data that is already a multiset.
func (m *Model) TrainCounts(counts map[string]uint64) error {
	if m.strie == nil {
		return errors.Errorf("model already trained")
	}
	for s, c := range counts {
		m.Add(s, c)
	}
	if err := m.Preprocess(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// Preprocess converts the accumulated counts into the frozen smoothed trie.
// The model must not be used further after a Preprocess error.
func (m *Model) Preprocess() error {
	if m.strie == nil {
		return errors.Errorf("model already trained")
	}
	if m.strie.tree[m.strie.root].cnt == 0 {
		return errors.Errorf("empty training set")
	}
	if err := m.sm.preprocess(m); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func (m *Model) addNode(c byte, level int, cnt, cntEnd uint64) int {
	m.tree = append(m.tree, node{
		childSet: newChildSet(),
		c:        c,
		level:    level,
		cnt:      cnt,
		cntEnd:   cntEnd,
		b:        1.0,
		pf:       1.0,
	})
	return len(m.tree) - 1
}

// addFromTrie copies the counting-trie subtree at tx into the smoothed trie,
// skipping children whose count does not exceed prune and materializing
// compressed tails as chains of unary nodes.
func (m *Model) addFromTrie(c byte, tx int, prune uint64, level int) int {
	sn := &m.strie.tree[tx]
	cntEnd := uint64(0)
	if sn.cntEnd > prune {
		cntEnd = sn.cntEnd
	}
	idx := m.addNode(c, level, sn.cnt, cntEnd)

	if len(sn.ch) == 0 { // leaf; expand the tail, end count goes to the last link
		if len(sn.tail) == 0 {
			return idx
		}
		m.tree[idx].cntEnd = 0

		prev, chIdx := idx, idx
		chLevel := level + 1
		for _, tc := range sn.tail {
			chIdx = m.addNode(tc, chLevel, sn.cnt, 0)
			m.tree[prev].add(ord(tc), chIdx)
			prev = chIdx
			chLevel++
		}
		m.tree[chIdx].cntEnd = cntEnd
		return idx
	}

	ith := 0
	for x := 0; x < charNum && ith < len(sn.ch); x++ {
		if !sn.has(x) {
			continue
		}
		snCh := sn.ch[ith]
		ith++
		if m.strie.tree[snCh].cnt <= prune {
			continue
		}
		chIdx := m.addFromTrie(chr(x), snCh, prune, level+1)
		m.tree[idx].add(x, chIdx)
	}
	return idx
}

// getFail computes fail links breadth first. A node's fail is found among the
// children of its parent's fail; the lookup always succeeds because a suffix
// is counted at least as often as any path it ends, so it survives pruning
// whenever that path does.
func (m *Model) getFail() {
	queue := make([]int, 0, len(m.tree))
	for _, chIdx := range m.tree[m.root].ch {
		m.tree[chIdx].fail = m.root
		queue = append(queue, chIdx)
	}

	for len(queue) > 0 {
		curIdx := queue[0]
		queue = queue[1:]

		curFail := m.tree[curIdx].fail
		for _, chIdx := range m.tree[curIdx].ch {
			chNode := &m.tree[chIdx]
			chNode.fail = m.tree[curFail].find(ord(chNode.c))
			queue = append(queue, chIdx)
		}
	}
}

// buildTrie converts the counting trie into the smoothed trie, releases the
// counting trie, computes fail links, and detaches the start node from the
// root's children, leaving its count behind as the root's end count.
func (m *Model) buildTrie(prune uint64) {
	m.root = m.addFromTrie(0, m.strie.root, prune, 0)
	m.strie = nil

	m.startIdx = m.tree[m.root].find(endOrd)
	m.tree[m.root].fail = m.root
	m.getFail()

	m.tree[m.root].remove(endOrd)
	m.tree[m.root].cntEnd = m.tree[m.startIdx].cnt
}

// chProb returns the probability of emitting c at node pred together with
// the node to advance to. A missing child falls through the fail chain,
// multiplying in backoff weights; at the root the fallback is uniform.
func (m *Model) chProb(pred int, c byte) (float64, int) {
	nd := &m.tree[pred]
	if c == 0 {
		return nd.probEnd, pred
	}
	if x := ord(c); nd.has(x) {
		chIdx := nd.find(x)
		return m.tree[chIdx].prob, chIdx
	}
	if pred == m.root {
		return nd.b * nd.prob, nd.fail
	}
	p, nt := m.chProb(nd.fail, c)
	return nd.b * p, nt
}

// Prob returns the model probability of s, including the end symbol.
// It returns 0 on an untrained model.
func (m *Model) Prob(s string) float64 {
	if len(m.tree) == 0 {
		return 0
	}
	p := 1.0
	nt := m.startIdx
	for i := 0; i <= len(s) && p > 0; i++ {
		var c byte
		if i < len(s) {
			c = s[i]
		}
		var cp float64
		cp, nt = m.chProb(nt, c)
		p *= cp
	}
	return p
}

// interpolateProbEnd fills in the end probability of nodes that never
// terminate a training string, by backing off through the fail link.
// Breadth-first order guarantees a node's fail is filled before the node.
func (m *Model) interpolateProbEnd() {
	queue := make([]int, 0, len(m.tree))
	queue = append(queue, m.tree[m.root].ch...)
	queue = append(queue, m.startIdx)
	for len(queue) > 0 {
		curIdx := queue[0]
		queue = queue[1:]

		cur := &m.tree[curIdx]
		if cur.cntEnd == 0 {
			cur.probEnd = cur.b * m.tree[cur.fail].probEnd
		}
		queue = append(queue, cur.ch...)
	}
}

// SanityCheck verifies that at every node the transition probabilities over
// the whole alphabet sum to one within tolerance. On violation it returns an
// error naming the node and its full probability row.
func (m *Model) SanityCheck() error {
	for idx := range m.tree {
		var cumProb float64
		for x := 0; x < charNum; x++ {
			p, _ := m.chProb(idx, chr(x))
			cumProb += p
		}
		if math.Abs(1-cumProb) >= eps {
			var row strings.Builder
			for x := 0; x < charNum; x++ {
				p, _ := m.chProb(idx, chr(x))
				fmt.Fprintf(&row, " %d:%g", x, p)
			}
			return errors.Errorf("node %d: probabilities sum to %v:%s", idx, cumProb, row.String())
		}
	}
	return nil
}
