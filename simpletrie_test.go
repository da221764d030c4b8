package smoothpwd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// walk follows the child chain for the bytes of s starting at idx.
func (tr *simpleTrie) walk(idx int, s string) int {
	for i := 0; i < len(s); i++ {
		idx = tr.tree[idx].find(ord(s[i]))
	}
	return idx
}

// TestTailCompression checks that a unique continuation is stored as a
// compressed tail instead of a node chain, and that a branching insertion
// pushes the tail down one character at a time.
func TestTailCompression(t *testing.T) {
	t.Parallel()
	st := newSimpleTrie(MaxGramSize)

	st.addSub([]byte("abc"), 2)
	a := st.walk(st.startCh, "a")
	require.NotZero(t, a)
	require.Equal(t, []byte("bc"), st.tree[a].tail)
	require.Equal(t, uint64(2), st.tree[a].cnt)
	require.Equal(t, uint64(2), st.tree[a].cntEnd)
	require.Empty(t, st.tree[a].ch)

	st.addSub([]byte("abd"), 1)
	require.Empty(t, st.tree[a].tail)
	require.Equal(t, uint64(3), st.tree[a].cnt)
	require.Zero(t, st.tree[a].cntEnd)

	b := st.walk(a, "b")
	require.NotZero(t, b)
	require.Equal(t, uint64(3), st.tree[b].cnt)
	require.Zero(t, st.tree[b].cntEnd)
	require.Len(t, st.tree[b].ch, 2)

	c := st.walk(b, "c")
	require.Equal(t, uint64(2), st.tree[c].cnt)
	require.Equal(t, uint64(2), st.tree[c].cntEnd)

	d := st.walk(b, "d")
	require.Equal(t, uint64(1), st.tree[d].cnt)
	require.Equal(t, uint64(1), st.tree[d].cntEnd)
}

// TestSuffixCounts checks that every suffix of an added string is counted
// from the root, and the counts this leaves at the root and the start child.
func TestSuffixCounts(t *testing.T) {
	t.Parallel()
	st := newSimpleTrie(MaxGramSize)
	st.addSub([]byte("abc"), 2)

	// One root child per distinct character, each counted once per position.
	for _, s := range []string{"a", "b", "c"} {
		idx := st.walk(st.root, s)
		require.NotZero(t, idx, s)
		require.Equal(t, uint64(2), st.tree[idx].cnt, s)
	}
	// The root counts the string once, plus once per suffix insertion.
	require.Equal(t, uint64(8), st.tree[st.root].cnt)
	// The start child counts the anchored insertion.
	require.Equal(t, uint64(2), st.tree[st.startCh].cnt)
}

// TestGramTruncation checks that insertions stop at the gram window and
// that truncated prefixes carry no end counts.
func TestGramTruncation(t *testing.T) {
	t.Parallel()
	st := newSimpleTrie(3)
	st.addSub([]byte("abcd"), 1)

	// Anchored insertion holds gramSize-1 characters.
	a := st.walk(st.startCh, "a")
	require.NotZero(t, a)
	require.Equal(t, []byte("b"), st.tree[a].tail)
	require.Zero(t, st.tree[a].cntEnd)

	// The suffix "cd" fits the window and genuinely terminates.
	cd := st.walk(st.root, "cd")
	require.NotZero(t, cd)
	require.Equal(t, uint64(1), st.tree[cd].cntEnd)

	// The suffix "abcd" is truncated to "abc" and carries no end count.
	abc := st.walk(st.root, "ab")
	require.NotZero(t, abc)
	require.Equal(t, []byte("c"), st.tree[abc].tail)
	require.Zero(t, st.tree[abc].cntEnd)
}
