// Package smoothpwd implements smoothed character-level n-gram models over
// short strings such as passwords.
// A model is trained once on a multiset of strings and is then frozen; the
// frozen model scores arbitrary strings, draws random samples proportional to
// model probability, and enumerates strings in roughly descending probability
// order. Two smoothing schemes are provided, Katz backoff and modified
// Kneser-Ney, both built on a shared character trie with Aho-Corasick style
// fail links.
//
// References:
// Ma, Yang, Luo and Li, A Study of Probabilistic Password Models, IEEE S&P 2014.
// Chen and Goodman, An Empirical Study of Smoothing Techniques for Language Modeling, Harvard TR-10-98.
// Dell'Amico and Filippone, Monte Carlo Strength Evaluation: Fast and Reliable Password Checking, CCS 2015.
package smoothpwd

import (
	"github.com/bits-and-blooms/bitset"
)

const (
	// maxLength is the maximum string length.
	maxLength = 1024
	// MaxGramSize bounds the context length. A Katz model built with this
	// gram size has effectively unbounded contexts.
	MaxGramSize = maxLength + 10

	// pruneEps is the pruning tolerance of the threshold search.
	// Closer to 1 is faster but may lose candidates near the threshold.
	pruneEps = 0.999
	// eps is the relative error tolerance of probability computations.
	eps = 1e-8

	// charNum is the alphabet size: 95 printable ASCII bytes plus one
	// sentinel ordinal shared by the start and end symbols.
	// The two symbols never collide: the start symbol occurs only as the
	// distinguished child of the root, the end symbol everywhere else.
	charNum = 96
	endOrd  = charNum - 1
)

// chr maps an ordinal back to its byte. The sentinel ordinal maps to NUL.
func chr(x int) byte {
	if x == endOrd {
		return 0
	}
	return byte(x + 0x20)
}

// ord maps a byte to its ordinal. NUL maps to the sentinel ordinal.
func ord(c byte) int {
	if c == 0 {
		return endOrd
	}
	return int(c) - 0x20
}

// IsPrintable reports whether s consists only of bytes in the model alphabet,
// that is printable ASCII 0x20 through 0x7E.
func IsPrintable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// A StrProb pairs a string with its model probability.
type StrProb struct {
	Str  string
	Prob float64
}

// emptyBset is the shared all-clear character set. It must never be mutated.
var emptyBset = bitset.New(charNum)

// A childSet is the sparse child map of a trie node: a bitset over the
// alphabet for O(1) membership plus an index array ordered by ordinal for
// deterministic iteration. The two are kept in sync.
type childSet struct {
	v  *bitset.BitSet
	ch []int
}

func newChildSet() childSet {
	return childSet{v: bitset.New(charNum)}
}

// rankBelow returns the number of children with ordinal strictly below x.
func (cs *childSet) rankBelow(x int) int {
	r := int(cs.v.Rank(uint(x)))
	if cs.v.Test(uint(x)) {
		r--
	}
	return r
}

func (cs *childSet) has(x int) bool {
	return cs.v.Test(uint(x))
}

// find returns the node index of the child on ordinal x, or 0 when absent.
// Index 0 is the root, which is never anyone's child.
func (cs *childSet) find(x int) int {
	if !cs.v.Test(uint(x)) {
		return 0
	}
	return cs.ch[cs.rankBelow(x)]
}

func (cs *childSet) add(x, nd int) {
	if cs.v.Test(uint(x)) {
		return
	}
	cs.v.Set(uint(x))
	pos := cs.rankBelow(x)
	cs.ch = append(cs.ch, 0)
	copy(cs.ch[pos+1:], cs.ch[pos:])
	cs.ch[pos] = nd
}

func (cs *childSet) remove(x int) {
	if !cs.v.Test(uint(x)) {
		return
	}
	pos := cs.rankBelow(x)
	cs.ch = append(cs.ch[:pos], cs.ch[pos+1:]...)
	cs.v.Clear(uint(x))
}
