// Package darts implements a double-array trie: a compact finite-state
// encoding of a keyed byte-string set supporting O(key length)
// exact-match and common-prefix queries. It is the on-disk search
// structure behind dict.Dictionary; values stored at each key encode a
// Dictionary token-run count and token-table offset (see dict's
// tokenCountBits / tokenOffsetMask).
package darts

import "github.com/pkg/errors"

// Unit is one double-array cell. Base and Check together encode the
// trie's transition function; a node n is a child of s via byte c iff
// Check[base(s)+c+1] == s. A node is terminal when its Base holds the
// stored value negated minus one (its Check still names its parent) —
// the classic double-array "leaf" encoding, chosen
// so Base==0 unambiguously means "no transitions yet" during
// construction.
type Unit struct {
	Base  int32
	Check int32
}

const rootState = 0

// terminal marks a unit whose Base encodes a stored value rather than a
// child base. We reserve the sign bit: Base < 0 means leaf, with the
// value recovered as ^Base (bitwise NOT, avoiding the MinInt32 overflow
// of negation).
func isLeaf(u Unit) bool { return u.Base < 0 }

func leafValue(u Unit) int32 { return ^u.Base }

func makeLeaf(value int32) Unit { return Unit{Base: ^value} }

// Match is one common-prefix search hit: Value is the stored payload and
// Length is the byte length of the matched key.
type Match struct {
	Value  int32
	Length int
}

// MaxMatches bounds the number of hits commonPrefixSearch will return;
// the scratch array backing a search is fixed-size (see the scratch
// slice tokenizer.New allocates), matching the original's 512-slot
// Results buffer. Additional matches beyond this are silently dropped.
const MaxMatches = 512

// Trie is a read-only double-array trie. The zero value is not usable;
// construct with New (from raw units) or Build (from a key set).
type Trie struct {
	units []Unit
}

// New wraps a pre-built (or mmap'd) unit array. It does not copy units.
func New(units []Unit) *Trie {
	return &Trie{units: units}
}

// Units exposes the backing array, e.g. for serialisation by a test
// fixture builder.
func (t *Trie) Units() []Unit { return t.units }

// ExactMatch looks up key and reports its stored value and length, or
// ok=false if key is not present.
func (t *Trie) ExactMatch(key []byte) (value int32, length int, ok bool) {
	state := int32(rootState)
	for _, c := range key {
		next, ok2 := t.transition(state, c)
		if !ok2 {
			return 0, 0, false
		}
		state = next
	}
	if int(state) >= len(t.units) {
		return 0, 0, false
	}
	u := t.units[state]
	if !isLeaf(u) {
		return 0, 0, false
	}
	return leafValue(u), len(key), true
}

// CommonPrefixSearch enumerates every key stored in the trie that is a
// byte-prefix of key, writing hits into out in increasing length order
// (one match per distinct length — the trie encodes at most one value
// per exact key). It returns the number of matches written; at most
// len(out) matches are written, and any beyond that capacity are
// silently dropped, matching the original's fixed 512-slot results
// array.
func (t *Trie) CommonPrefixSearch(key []byte, out []Match) int {
	state := int32(rootState)
	n := 0
	for i, c := range key {
		next, ok := t.transition(state, c)
		if !ok {
			break
		}
		state = next
		if int(state) < len(t.units) {
			if u := t.units[state]; isLeaf(u) {
				if n < len(out) {
					out[n] = Match{Value: leafValue(u), Length: i + 1}
					n++
				}
			}
		}
	}
	return n
}

// transition returns the child of state reached by byte c, validating
// the Check back-pointer.
func (t *Trie) transition(state int32, c byte) (int32, bool) {
	if int(state) >= len(t.units) {
		return 0, false
	}
	u := t.units[state]
	if isLeaf(u) {
		return 0, false
	}
	next := u.Base + int32(c) + 1
	if next < 0 || int(next) >= len(t.units) {
		return 0, false
	}
	if t.units[next].Check != state {
		return 0, false
	}
	return next, true
}

// Builder constructs a Trie from a sorted set of (key, value) pairs
// using a straightforward incremental double-array insertion. It is
// test/fixture infrastructure — not the compiler referenced by spec.md's
// "dictionary compilation" Non-goal, which covers CSV-to-binary
// pipelines, not assembling a handful of keys for a unit test — and
// favours a simple free-slot scan over the base-relocation heuristics a
// production compiler would use, since fixtures are small.
type Builder struct {
	units []Unit
	used  []bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	b := &Builder{units: make([]Unit, 1), used: make([]bool, 1)}
	b.units[0] = Unit{Base: 0, Check: 0}
	return b
}

// Insert adds key with the given value. Keys are expected in
// lexicographic order (matching how a real double-array compiler
// streams sorted keys); Insert does not check the order.
func (b *Builder) Insert(key []byte, value int32) error {
	state := int32(rootState)
	for _, c := range key {
		next := b.ensureChild(state, c)
		state = next
	}
	if isLeaf(b.units[state]) {
		return errors.Errorf("darts: duplicate key %q", key)
	}
	if b.hasChildren(state) {
		return errors.Errorf("darts: key %q is a prefix of an already-inserted longer key sharing its node; builder requires a free leaf node", key)
	}
	b.units[state] = Unit{Base: ^value, Check: b.units[state].Check}
	return nil
}

func (b *Builder) grow(n int32) {
	for int32(len(b.units)) <= n {
		b.units = append(b.units, Unit{})
		b.used = append(b.used, false)
	}
}

func (b *Builder) hasChildren(state int32) bool {
	u := b.units[state]
	if u.Base == 0 {
		return false
	}
	for c := 0; c < 256; c++ {
		next := u.Base + int32(c) + 1
		if next >= 0 && int(next) < len(b.units) && b.units[next].Check == state {
			return true
		}
	}
	return false
}

// ensureChild returns the child of state for byte c, allocating a base
// offset and/or relocating state's existing children if necessary.
func (b *Builder) ensureChild(state int32, c byte) int32 {
	u := b.units[state]
	if u.Base != 0 && !isLeaf(u) {
		next := u.Base + int32(c) + 1
		b.grow(next)
		if b.units[next].Check == state {
			return next
		}
		if !b.used[next] {
			b.units[next].Check = state
			b.used[next] = true
			return next
		}
		// Collision: relocate state's base. Fixture-scale only.
	}

	base := b.findFreeBase(state)
	b.relocateChildren(state, base)
	b.units[state].Base = base
	next := base + int32(c) + 1
	b.grow(next)
	b.units[next].Check = state
	b.used[next] = true
	return next
}

func (b *Builder) findFreeBase(state int32) int32 {
	existing := b.childBytes(state)
	for base := int32(1); ; base++ {
		ok := true
		for _, c := range existing {
			next := base + int32(c) + 1
			if next < 0 {
				ok = false
				break
			}
			if int(next) < len(b.used) && b.used[next] {
				ok = false
				break
			}
		}
		slot := base + int32(255) + 1
		if ok && (int(slot) >= len(b.used) || !b.used[slot]) {
			return base
		}
	}
}

func (b *Builder) childBytes(state int32) []byte {
	u := b.units[state]
	var out []byte
	if u.Base == 0 || isLeaf(u) {
		return out
	}
	for c := 0; c < 256; c++ {
		next := u.Base + int32(c) + 1
		if next >= 0 && int(next) < len(b.units) && b.units[next].Check == state {
			out = append(out, byte(c))
		}
	}
	return out
}

func (b *Builder) relocateChildren(state int32, newBase int32) {
	children := b.childBytes(state)
	if len(children) == 0 {
		return
	}
	oldBase := b.units[state].Base
	type saved struct {
		c    byte
		unit Unit
		idx  int32
	}
	var items []saved
	for _, c := range children {
		oldIdx := oldBase + int32(c) + 1
		items = append(items, saved{c: c, unit: b.units[oldIdx], idx: oldIdx})
		b.used[oldIdx] = false
		b.units[oldIdx] = Unit{}
	}
	for _, it := range items {
		newIdx := newBase + int32(it.c) + 1
		b.grow(newIdx)
		b.units[newIdx] = Unit{Base: it.unit.Base, Check: state}
		b.used[newIdx] = true
		// Children of the relocated node must repoint their Check to
		// newIdx, since their parent moved.
		if !isLeaf(it.unit) && it.unit.Base != 0 {
			for c2 := 0; c2 < 256; c2++ {
				gc := it.unit.Base + int32(c2) + 1
				if gc >= 0 && int(gc) < len(b.units) && b.units[gc].Check == it.idx {
					b.units[gc].Check = newIdx
				}
			}
		}
	}
}

// Build finalises the trie, trimming trailing unused units.
func (b *Builder) Build() *Trie {
	last := len(b.units) - 1
	for last > 0 && !b.used[last] {
		last--
	}
	return &Trie{units: append([]Unit(nil), b.units[:last+1]...)}
}
