package smoothpwd

// The modified Kneser-Ney implementation follows Chen and Goodman's
// formulation: probabilities at each order are estimated from continuation
// counts, the number of distinct one-character left extensions, rather than
// raw frequencies, with per-order discounts redistributed by interpolation.
// Because the trie stores each suffix once, the per-level view required by
// the continuation counts is materialized in a temporary node table that is
// released once the probabilities are filled.

// An interimNode is one node table entry: the adjusted count at this level
// plus the entry interpolated against when discount mass is redistributed.
// For entries expanded from a shallower trie node, fail points at the
// entry's own index, selecting the same node's estimate one level down.
type interimNode struct {
	cnt  uint64
	fail int
}

// A nodeTable maps trie indices, and their end variants offset by treeSize,
// to per-level adjusted counts. tb[k] covers the k-gram level.
type nodeTable struct {
	gramSize          int
	numDiscountParams int
	treeSize          int
	root              int
	tb                []map[int]interimNode

	// numCount[k][t] is the number of k-gram entries with adjusted count t;
	// discounts[k][t] the discount for k-grams with count t.
	numCount  [][]uint64
	discounts [][]float64
}

func newNodeTable(gramSize, numDiscountParams, treeSize, root int) *nodeTable {
	table := &nodeTable{
		gramSize:          gramSize,
		numDiscountParams: numDiscountParams,
		treeSize:          treeSize,
		root:              root,
		tb:                make([]map[int]interimNode, gramSize+1),
	}
	for k := range table.tb {
		table.tb[k] = make(map[int]interimNode)
	}
	return table
}

func (table *nodeTable) endIdx(idx int) int    { return idx + table.treeSize }
func (table *nodeTable) isEndIdx(idx int) bool { return idx >= table.treeSize }
func (table *nodeTable) invEndIdx(idx int) int { return idx - table.treeSize }

func (table *nodeTable) addItem(level, idx int, cnt uint64, fail int, expand bool) {
	var initialCnt uint64
	if level == table.gramSize {
		initialCnt = cnt // highest order keeps raw counts
	}
	if expand {
		fail = idx
	}
	table.tb[level][idx] = interimNode{cnt: initialCnt, fail: fail}
}

// addNode registers nd at baseLevel, plus an end variant one level deeper
// when nd terminates training strings. Levels above the node's own depth
// mark the entry as expanded.
func (table *nodeTable) addNode(baseLevel int, nd *node, idx int) {
	table.addItem(baseLevel, idx, nd.cnt, nd.fail, baseLevel > nd.level)
	endLevel := baseLevel + 1
	if nd.cntEnd > 0 && endLevel <= table.gramSize {
		endFail := table.endIdx(nd.fail)
		if idx == table.root {
			endFail = idx
		}
		table.addItem(endLevel, table.endIdx(idx), nd.cntEnd, endFail, endLevel > nd.level+1)
	}
}

// calcDiscount derives the per-level modified discounts from the count-of-
// counts statistics: with Y = N1/(N1+2*N2), the discount for count t is
// max(0, t - (t+1)*Y*N_{t+1}/N_t), and counts above the last parameter share
// its discount.
func (table *nodeTable) calcDiscount() {
	d := table.numDiscountParams
	table.numCount = make([][]uint64, table.gramSize+1)
	table.discounts = make([][]float64, table.gramSize+1)
	for k := 0; k <= table.gramSize; k++ {
		table.numCount[k] = make([]uint64, d+2)
		table.discounts[k] = make([]float64, d+1)
		for _, item := range table.tb[k] {
			if item.cnt < uint64(d)+2 {
				table.numCount[k][item.cnt]++
			}
		}
	}

	for k := 1; k <= table.gramSize; k++ {
		kCount := table.numCount[k]
		denom := kCount[1] + 2*kCount[2]
		factor := 1.0
		if denom > 0 {
			factor = float64(kCount[1]) / float64(denom)
		}

		for t := 1; t <= d; t++ {
			var tDisc float64
			if kCount[t] != 0 {
				tDisc = float64(t) - (float64(t+1)*factor*float64(kCount[t+1]))/float64(kCount[t])
			}
			if tDisc < 0 {
				tDisc = 0
			}
			table.discounts[k][t] = tDisc
		}
	}
}

func (table *nodeTable) discount(level int, cnt uint64) float64 {
	t := int(cnt)
	if t > table.numDiscountParams {
		t = table.numDiscountParams
	}
	return table.discounts[level][t]
}

// kneserNey smooths the trie with modified Kneser-Ney interpolation.
type kneserNey struct {
	numDiscountParams int
}

func (kn *kneserNey) preprocess(m *Model) error {
	m.buildTrie(0)
	table := newNodeTable(m.gramSize, kn.numDiscountParams, len(m.tree), m.root)
	kn.buildTable(m, table)
	kn.getProbs(m, table)
	kn.getPf(m, m.root)
	return nil
}

// buildTable populates the per-level table and computes adjusted counts.
// Every trie node enters at its own level. The start node and its subtree
// are additionally replicated at every deeper level they can head a context
// at, standing in for the suffix nodes the trie shares; replicas interpolate
// against themselves one level down.
func (kn *kneserNey) buildTable(m *Model, table *nodeTable) {
	for idx := range m.tree {
		table.addNode(m.tree[idx].level, &m.tree[idx], idx)
	}

	startNd := &m.tree[m.startIdx]
	for j := 2; j < m.gramSize; j++ { // a context holds at most n-1 start symbols
		table.addNode(j, startNd, m.startIdx)
	}
	queue := append([]int{}, startNd.ch...)
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]

		nd := &m.tree[idx]
		for j := nd.level + 1; j <= m.gramSize; j++ {
			table.addNode(j, nd, idx)
		}
		queue = append(queue, nd.ch...)
	}

	// Adjusted counts: every entry contributes one distinct left extension
	// to its fail at the level below.
	for level := 2; level < len(table.tb); level++ {
		lastRow := table.tb[level-1]
		for _, item := range table.tb[level] {
			failItem := lastRow[item.fail]
			failItem.cnt++
			lastRow[item.fail] = failItem
		}
	}

	table.calcDiscount()
}

// getProbs fills transition and end probabilities level by level, lowest
// order first so that each level interpolates against already-final
// estimates one order down. A context's backoff weight accumulates the
// discount mass it gives up across the levels it appears at.
func (kn *kneserNey) getProbs(m *Model, table *nodeTable) {
	m.tree[m.root].prob = 1.0 / charNum
	m.tree[m.startIdx].prob = 0.0

	for level := 1; level < len(table.tb); level++ {
		row := table.tb[level-1]
		nextRow := table.tb[level]
		for idx := range row {
			if table.isEndIdx(idx) {
				continue
			}
			nd := &m.tree[idx]

			ch := append([]int{}, nd.ch...)
			if _, ok := nextRow[table.endIdx(idx)]; ok {
				ch = append(ch, table.endIdx(idx))
			}

			var prefCnt uint64
			boProb := 0.0
			probs := make([]float64, len(ch))
			for i, chIdx := range ch {
				adjCnt := nextRow[chIdx].cnt
				disc := table.discount(level, adjCnt)
				probs[i] = float64(adjCnt) - disc
				prefCnt += adjCnt
				boProb += disc
			}
			if prefCnt > 0 {
				boProb /= float64(prefCnt)
			} else {
				boProb = 1.0
			}

			for i, chIdx := range ch {
				chFailIdx := nextRow[chIdx].fail
				var transProb float64
				if prefCnt > 0 {
					transProb = probs[i] / float64(prefCnt)
				}
				var failProb float64
				if table.isEndIdx(chFailIdx) {
					failProb = m.tree[table.invEndIdx(chFailIdx)].probEnd
				} else {
					failProb = m.tree[chFailIdx].prob
				}
				transProb += boProb * failProb

				if table.isEndIdx(chIdx) {
					m.tree[table.invEndIdx(chIdx)].probEnd = transProb
				} else {
					m.tree[chIdx].prob = transProb
				}
			}
			nd.b *= boProb
		}
	}

	m.interpolateProbEnd()
}

// getPf computes pruning factors post order: the best completion from a node
// is an immediate end, a backoff, or the best completion of a child.
func (kn *kneserNey) getPf(m *Model, idx int) {
	nd := &m.tree[idx]
	pf := nd.probEnd
	if nd.b > pf {
		pf = nd.b
	}

	for _, chIdx := range nd.ch {
		chNd := &m.tree[chIdx]
		kn.getPf(m, chIdx)
		if chpf := chNd.prob * chNd.pf; chpf > pf {
			pf = chpf
		}
	}
	nd.pf = pf
}
