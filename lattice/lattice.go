package lattice

import "strings"

// RequestType is a bitmask of parse modes a Lattice is built for,
// mirroring the original's MECAB_LATTICE_* request flags.
type RequestType uint32

const (
	RequestOneBest RequestType = 1 << iota
	RequestNBest
	RequestPartial
	RequestMarginalProb
	RequestAllMorphs
	RequestAllocateSentence
)

// BoundaryConstraint restricts where a token boundary may fall at a
// given byte offset, used by partial parsing.
type BoundaryConstraint uint8

const (
	// AnyBoundary means ordinary tokenization applies at this offset.
	AnyBoundary BoundaryConstraint = iota
	// TokenBoundaryConstraint forces a token boundary at this offset.
	TokenBoundaryConstraint
	// InsideTokenConstraint forbids a token boundary at this offset.
	InsideTokenConstraint
)

// FeatureConstraint pins the feature string emitted for tokens that
// exactly span [Begin, Begin+Length); Pattern follows the partial_match
// CSV-field semantics where "*" matches any value in that column.
type FeatureConstraint struct {
	Begin   int
	Length  int
	Pattern string
}

// Lattice holds one sentence's analysis state: the byte buffer being
// parsed, begin/end node adjacency chains indexed by byte offset, the
// arena all of that is allocated from, and the request-specific
// parsing constraints.
type Lattice struct {
	Arena *Arena

	sentence []byte

	// beginNodes[i] is the head of the BNext chain of every node whose
	// span starts at byte offset i; endNodes[i] is the head of the
	// ENext chain of every node whose span ends at byte offset i.
	beginNodes []NodeIndex
	endNodes   []NodeIndex

	bos NodeIndex
	eos NodeIndex

	Request RequestType
	Theta   float64
	Z       float64

	boundary []BoundaryConstraint
	features map[int]FeatureConstraint
}

// New returns an empty Lattice backed by arena. Call SetSentence before
// building any nodes.
func New(arena *Arena) *Lattice {
	return &Lattice{Arena: arena, bos: NoIndex, eos: NoIndex, Theta: 1.0}
}

// SetSentence resets the lattice for a new input sentence, resetting
// the arena and sizing the begin/end chains to sentence's byte length.
func (l *Lattice) SetSentence(sentence []byte) {
	l.Arena.Reset()
	l.sentence = sentence
	n := len(sentence) + 1
	if cap(l.beginNodes) >= n {
		l.beginNodes = l.beginNodes[:n]
	} else {
		l.beginNodes = make([]NodeIndex, n)
	}
	if cap(l.endNodes) >= n {
		l.endNodes = l.endNodes[:n]
	} else {
		l.endNodes = make([]NodeIndex, n)
	}
	for i := range l.beginNodes {
		l.beginNodes[i] = NoIndex
		l.endNodes[i] = NoIndex
	}
	l.boundary = nil
	l.features = nil
	l.bos = NoIndex
	l.eos = NoIndex
	l.Z = 0
}

// Sentence returns the byte buffer currently being parsed.
func (l *Lattice) Sentence() []byte { return l.sentence }

// Size is the sentence's byte length.
func (l *Lattice) Size() int { return len(l.sentence) }

// AddNode links node into the begin-chain at offset begin and the
// end-chain at offset begin+length. length is the full span from begin
// to the node's true end, including any leading whitespace a caller
// will go on to report separately via a shorter Node.Length — AddNode
// itself sets both Node.Length and Node.RLength to length, so a caller
// with nothing to distinguish (the common case) needs no further setup,
// and a caller like the tokenizer that does distinguish them just
// overwrites Node.Length afterward. A node whose Stat is already
// StatEOS is linked into the begin-chain only, so EOS never appears
// among the predecessors ending at the sentence's last offset.
func (l *Lattice) AddNode(idx NodeIndex, begin, length int) {
	n := l.Arena.Node(idx)
	n.Begin = begin
	n.Length = length
	n.RLength = length
	end := begin + length

	n.BNext = l.beginNodes[begin]
	l.beginNodes[begin] = idx

	if n.Stat == StatEOS {
		n.ENext = NoIndex
		return
	}
	n.ENext = l.endNodes[end]
	l.endNodes[end] = idx
}

// BeginNodes returns the head of the begin-chain at offset i.
func (l *Lattice) BeginNodes(i int) NodeIndex {
	if i < 0 || i >= len(l.beginNodes) {
		return NoIndex
	}
	return l.beginNodes[i]
}

// EndNodes returns the head of the end-chain at offset i.
func (l *Lattice) EndNodes(i int) NodeIndex {
	if i < 0 || i >= len(l.endNodes) {
		return NoIndex
	}
	return l.endNodes[i]
}

// SetBOS and SetEOS record the synthetic sentence-boundary nodes so
// Viterbi and the writer can find them without a linear scan.
func (l *Lattice) SetBOS(idx NodeIndex) { l.bos = idx }
func (l *Lattice) SetEOS(idx NodeIndex) { l.eos = idx }
func (l *Lattice) BOS() NodeIndex       { return l.bos }
func (l *Lattice) EOS() NodeIndex       { return l.eos }

// SetRequestType, AddRequestType, RemoveRequestType and HasRequestType
// manage the bitmask of parse modes this lattice is built for, the Go
// equivalent of the original's set_request_type/add_request_type/
// remove_request_type/has_request_type.
func (l *Lattice) SetRequestType(r RequestType)    { l.Request = r }
func (l *Lattice) AddRequestType(r RequestType)    { l.Request |= r }
func (l *Lattice) RemoveRequestType(r RequestType) { l.Request &^= r }
func (l *Lattice) HasRequestType(r RequestType) bool {
	return l.Request&r != 0
}

// SetTheta and SetZ set the temperature used by marginal scoring and
// the partition function it computes, respectively; both are normally
// written by viterbi.RunMarginal, but are exposed so a caller can seed
// Theta before parsing or read back Z afterward.
func (l *Lattice) SetTheta(theta float64) { l.Theta = theta }
func (l *Lattice) SetZ(z float64)         { l.Z = z }

// Clear resets the lattice to an empty state without discarding the
// sentence buffer, releasing every node/path back to the arena. Unlike
// SetSentence it does not resize the begin/end chains or clear partial
// constraints, matching the original's clear() which is a cheaper reset
// used between successive N-best-style re-derivations of the same
// sentence.
func (l *Lattice) Clear() {
	l.Arena.Reset()
	for i := range l.beginNodes {
		l.beginNodes[i] = NoIndex
		l.endNodes[i] = NoIndex
	}
	l.bos = NoIndex
	l.eos = NoIndex
	l.Z = 0
}

// HasConstraint reports whether any partial-parsing boundary or feature
// constraint is currently set on this lattice.
func (l *Lattice) HasConstraint() bool {
	return l.boundary != nil || len(l.features) > 0
}

// SetBoundaryConstraint records that a token boundary at byte offset i
// must (TokenBoundaryConstraint) or must not (InsideTokenConstraint)
// occur; used only when Request has RequestPartial set.
func (l *Lattice) SetBoundaryConstraint(i int, c BoundaryConstraint) {
	if l.boundary == nil {
		l.boundary = make([]BoundaryConstraint, len(l.sentence)+1)
	}
	if i >= 0 && i < len(l.boundary) {
		l.boundary[i] = c
	}
}

// BoundaryConstraintAt reports the constraint in force at offset i.
func (l *Lattice) BoundaryConstraintAt(i int) BoundaryConstraint {
	if l.boundary == nil || i < 0 || i >= len(l.boundary) {
		return AnyBoundary
	}
	return l.boundary[i]
}

// AddFeatureConstraint pins the feature string for any token starting
// at begin, once a single node ends up spanning exactly
// [begin, begin+length). It also forces that span's boundaries: a token
// boundary is required at begin and at begin+length, and every offset
// strictly between them is marked as forbidden for a boundary, so the
// tokenizer can only ever produce one node filling the whole span -
// mirroring the original's set_feature_constraint, which sets these same
// three boundary constraints before recording the feature.
func (l *Lattice) AddFeatureConstraint(begin, length int, pattern string) {
	if l.features == nil {
		l.features = make(map[int]FeatureConstraint)
	}
	end := begin + length
	l.features[begin] = FeatureConstraint{Begin: begin, Length: length, Pattern: pattern}

	l.SetBoundaryConstraint(begin, TokenBoundaryConstraint)
	l.SetBoundaryConstraint(end, TokenBoundaryConstraint)
	for i := begin + 1; i < end; i++ {
		l.SetBoundaryConstraint(i, InsideTokenConstraint)
	}
}

// FeatureConstraintAt returns the feature pattern pinned at begin, if
// any was set, keyed only by the start offset - matching the original's
// feature_constraint(begin_pos), which is indexed by position rather
// than by a (begin, length) span.
func (l *Lattice) FeatureConstraintAt(begin int) (string, bool) {
	fc, ok := l.features[begin]
	if !ok {
		return "", false
	}
	return fc.Pattern, true
}

// PartialMatch reports whether feature (a comma-separated field list)
// satisfies pattern, where each field in pattern may be "*" to match
// any corresponding field in feature — the CSV partial_match semantics
// partial parsing's feature constraints use.
func PartialMatch(pattern, feature string) bool {
	pf := strings.Split(pattern, ",")
	ff := strings.Split(feature, ",")
	if len(pf) > len(ff) {
		return false
	}
	for i, p := range pf {
		if p == "*" {
			continue
		}
		if p != ff[i] {
			return false
		}
	}
	return true
}

// IsValidNode reports whether a candidate node spanning
// [begin, begin+length) and carrying feature is permitted under the
// current partial-parsing constraints, mirroring the original's
// is_valid_node: the span is rejected outright if its end offset falls
// strictly inside another pinned span (InsideTokenConstraint); otherwise,
// if a feature constraint is pinned at begin, the candidate is valid
// only when both ends of its span sit exactly on a required token
// boundary and its feature satisfies the pinned pattern - a feature
// constraint at begin, once set, rules out every candidate starting
// there except the one it names.
func (l *Lattice) IsValidNode(begin, length int, feature string) bool {
	end := begin + length
	if l.BoundaryConstraintAt(end) == InsideTokenConstraint {
		return false
	}
	pattern, ok := l.FeatureConstraintAt(begin)
	if !ok {
		return true
	}
	return l.BoundaryConstraintAt(begin) == TokenBoundaryConstraint &&
		l.BoundaryConstraintAt(end) == TokenBoundaryConstraint &&
		PartialMatch(pattern, feature)
}
