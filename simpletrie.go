package smoothpwd

// A simpleNode is a counting-trie node. A node whose prefix has been seen
// with a single continuation stores that continuation verbatim in tail
// instead of allocating a chain of one-child nodes; the chain is
// materialized lazily by pushdown when a later insertion needs to branch.
type simpleNode struct {
	childSet
	cnt    uint64
	cntEnd uint64
	tail   []byte
}

// A simpleTrie counts every substring of the training strings up to
// gramSize characters. It exists only during ingestion and is discarded
// once the smoothed trie has been built from it.
type simpleTrie struct {
	tree     []simpleNode
	root     int
	startCh  int
	gramSize int
}

func newSimpleTrie(gramSize int) *simpleTrie {
	t := &simpleTrie{gramSize: gramSize}
	t.root = t.addNode(0, nil)
	// Pre-create every child of the root so that fail-link lookups always
	// succeed with the root as the universal fallback.
	for x := 0; x < charNum; x++ {
		nd := t.addNode(0, nil)
		t.tree[t.root].add(x, nd)
	}
	t.startCh = t.tree[t.root].find(endOrd)
	return t
}

func (t *simpleTrie) addNode(cnt uint64, tail []byte) int {
	t.tree = append(t.tree, simpleNode{childSet: newChildSet(), cnt: cnt, tail: tail})
	return len(t.tree) - 1
}

// pushdown materializes the first character of x's compressed tail as a
// child carrying x's count, shifts the remaining tail to that child and
// transfers cntEnd. It is a no-op on nodes without a tail.
func (t *simpleTrie) pushdown(x int) {
	xs := t.tree[x].tail
	if len(xs) == 0 {
		return
	}
	t.tree[x].tail = nil

	var rest []byte
	if len(xs) > 1 {
		rest = xs[1:]
	}
	kid := t.addNode(t.tree[x].cnt, rest)
	t.tree[x].add(ord(xs[0]), kid)
	t.tree[kid].cntEnd = t.tree[x].cntEnd
	t.tree[x].cntEnd = 0
}

// addPfx adds every prefix of s to the trie starting at idx, up to the gram
// size. Only strings short enough to terminate within the gram window update
// cntEnd; longer strings contribute counts but no end mass.
func (t *simpleTrie) addPfx(s []byte, cnt uint64, idx int) {
	cur := idx
	realLimit := t.gramSize
	if idx != t.root {
		realLimit-- // the start symbol occupies one slot of the gram window
	}
	pfxLen := len(s)
	if pfxLen > realLimit {
		pfxLen = realLimit
	}
	reachEnd := len(s) < realLimit

	for i := 0; i < pfxLen; i++ {
		x := ord(s[i])

		t.pushdown(cur)
		t.tree[cur].cnt += cnt

		if kid := t.tree[cur].find(x); kid != 0 {
			cur = kid
			continue
		}

		var nd int
		if i == pfxLen-1 {
			nd = t.addNode(cnt, nil)
		} else {
			tail := make([]byte, pfxLen-i-1)
			copy(tail, s[i+1:pfxLen])
			nd = t.addNode(cnt, tail)
		}
		t.tree[cur].add(x, nd)
		if reachEnd {
			t.tree[nd].cntEnd = cnt
		}
		return
	}

	t.pushdown(cur)
	t.tree[cur].cnt += cnt
	if reachEnd {
		t.tree[cur].cntEnd += cnt
	}
}

// addSub adds all substrings of s to the trie: the prefixes of s anchored at
// the start symbol, and the prefixes of every proper suffix anchored at the
// root. Every insertion that terminates within the gram window, anchored or
// not, carries end counts, so suffix contexts hold end counts too.
func (t *simpleTrie) addSub(s []byte, cnt uint64) {
	t.tree[t.root].cnt += cnt
	t.addPfx(s, cnt, t.startCh)
	for i := 0; i < len(s); i++ {
		t.addPfx(s[i:], cnt, t.root)
	}
}
