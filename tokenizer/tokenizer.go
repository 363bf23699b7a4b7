// Package tokenizer generates lattice node candidates for one begin
// position: every dictionary entry that is a byte-prefix of the
// remaining sentence, plus, where the dictionaries found nothing (or
// the character itself demands it), a run of unknown-word candidates
// built from the character-property table.
package tokenizer

import (
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/steosofficial/mecabkit/charprop"
	"github.com/steosofficial/mecabkit/darts"
	"github.com/steosofficial/mecabkit/dict"
	"github.com/steosofficial/mecabkit/lattice"
)

// DefaultMaxGroupingSize bounds, in characters, how long an
// unknown-word candidate built from a same-category run may be: the
// whole grouped run is only proposed when it fits, and the per-length
// candidates stop at that many characters. It matches the original's
// DEFAULT_MAX_GROUPING_SIZE.
const DefaultMaxGroupingSize = 24

// Tokenizer generates candidates against a fixed set of dictionaries
// and a character-property table. The unknown-word pseudo dictionary
// is keyed by category name (e.g. "KANJI", "ALPHA") rather than by
// surface text: each entry holds the POS/cost templates used to
// synthesize a node for any run of characters belonging to that
// category.
type Tokenizer struct {
	Dics            []*dict.Dictionary
	Unknown         *dict.Dictionary
	Chars           *charprop.CharProperty
	MaxGroupingSize int

	scratch []darts.Match
}

// New returns a Tokenizer over dics (system dictionary first, user
// dictionaries after) and the unknown-word pseudo dictionary unk.
func New(dics []*dict.Dictionary, unk *dict.Dictionary, chars *charprop.CharProperty) *Tokenizer {
	return &Tokenizer{
		Dics:            dics,
		Unknown:         unk,
		Chars:           chars,
		MaxGroupingSize: DefaultMaxGroupingSize,
		scratch:         make([]darts.Match, darts.MaxMatches),
	}
}

// Lookup adds every candidate node starting at byte offset begin to
// lat, including unknown-word candidates where needed, and reports
// whether at least one candidate was added. Per tokenizer.h's lookup(),
// it first skips a leading run of SPACE-category characters: dictionary
// and unknown-word matching run against the sentence past that run, but
// every node it adds still reports Begin at the original offset (so
// predecessors that end there keep finding it) while RLength covers the
// skipped whitespace too, so the lattice's end-chain placement reflects
// the true span consumed.
func (tz *Tokenizer) Lookup(lat *lattice.Lattice, begin int) (bool, error) {
	sentence := lat.Sentence()
	remaining := sentence[begin:]
	if len(remaining) == 0 {
		return false, nil
	}

	skip := tz.skipSpace(remaining)
	matched := remaining[skip:]
	if len(matched) == 0 {
		return tz.addTrailingSpace(lat, begin, remaining)
	}

	added := false
	var matches []dict.Match
	for _, d := range tz.Dics {
		matches = d.CommonPrefixLookup(matched, tz.scratch, matches[:0])
		for _, m := range matches {
			for i := range m.Tokens {
				tok := &m.Tokens[i]
				feature := d.Feature(tok.Feature)
				if !lat.IsValidNode(begin, skip+m.Length, feature) {
					continue
				}
				tz.addNode(lat, begin, skip, matched[:m.Length], d, tok, lattice.StatNormal)
				added = true
			}
		}
	}

	r, _ := utf8.DecodeRune(matched)
	info := tz.Chars.GetCharInfo(r)
	if !added || info.Invoke() {
		n, err := tz.addUnknown(lat, begin, skip, matched, info)
		if err != nil {
			return added, err
		}
		added = added || n > 0
	}

	if !added && lat.HasRequestType(lattice.RequestPartial) {
		n, err := tz.addPartialFallback(lat, begin, skip, matched)
		if err != nil {
			return false, err
		}
		added = n
	}

	if !added {
		return false, errors.Errorf("tokenizer: no candidate (including unknown-word fallback) could be generated at offset %d", begin)
	}
	return true, nil
}

// spaceCategoryIndex returns the category index of the SPACE category,
// or -1 if no character-property table is configured.
func (tz *Tokenizer) spaceCategoryIndex() int {
	if tz.Chars == nil {
		return -1
	}
	for i, name := range tz.Chars.CategoryNames() {
		if name == charprop.CategorySpace {
			return i
		}
	}
	return -1
}

// skipSpace returns the byte length of the leading run of SPACE-category
// characters in input, mirroring tokenizer.h's lookup() call to
// seekToOtherType with a fixed SPACE CharInfo rather than the first
// character's own category.
func (tz *Tokenizer) skipSpace(input []byte) int {
	idx := tz.spaceCategoryIndex()
	if idx < 0 {
		return 0
	}
	skip := 0
	for skip < len(input) {
		r, w := utf8.DecodeRune(input[skip:])
		if r == utf8.RuneError && w <= 1 {
			break
		}
		if !tz.Chars.GetCharInfo(r).HasCategory(idx) {
			break
		}
		skip += w
	}
	return skip
}

// addTrailingSpace handles the edge case where everything remaining at
// begin is SPACE-category with no further character to attach the skip
// to: it emits a single unknown-word node spanning the whole run under
// that run's default category, so the lattice stays connected through
// to EOS instead of leaving begin unreachable.
func (tz *Tokenizer) addTrailingSpace(lat *lattice.Lattice, begin int, remaining []byte) (bool, error) {
	if tz.Unknown == nil {
		return false, errors.New("tokenizer: no unknown-word dictionary configured")
	}
	r, _ := utf8.DecodeRune(remaining)
	info := tz.Chars.GetCharInfo(r)
	names := tz.Chars.CategoryNames()
	idx := int(info.DefaultType())
	if idx < 0 || idx >= len(names) {
		return false, errors.Errorf("tokenizer: default category index %d out of range (have %d categories)", idx, len(names))
	}
	toks, ok := tz.Unknown.ExactLookup([]byte(names[idx]))
	if !ok {
		return false, nil
	}
	added := false
	for i := range toks {
		tok := &toks[i]
		feature := tz.Unknown.Feature(tok.Feature)
		if !lat.IsValidNode(begin, len(remaining), feature) {
			continue
		}
		tz.addNode(lat, begin, 0, remaining, tz.Unknown, tok, lattice.StatUnknown)
		added = true
	}
	return added, nil
}

// addNode appends a node spanning surface (the matched text, after any
// leading-whitespace skip) starting at begin. skip is the number of
// whitespace bytes consumed immediately before surface; the node's
// RLength (and the span linked into the lattice's begin/end chains)
// covers skip+len(surface), while Begin stays at the original offset so
// predecessors ending there still find this node, matching the
// begin2/rlength bookkeeping in the original tokenizer's lookup().
func (tz *Tokenizer) addNode(lat *lattice.Lattice, begin, skip int, surface []byte, d *dict.Dictionary, tok *dict.TokenEntry, stat lattice.Stat) {
	idx := lat.Arena.NewNode()
	n := lat.Arena.Node(idx)
	n.Surface = surface
	n.PosID = tok.PosID
	n.LeftAttr = tok.LeftAttr
	n.RightAttr = tok.RightAttr
	n.WordCost = tok.WordCost
	n.Stat = stat
	n.Feature = d.Feature(tok.Feature)
	rlength := skip + len(surface)
	lat.AddNode(idx, begin, rlength)
	n.Length = len(surface)
	n.RLength = rlength
}

// addUnknown generates unknown-word candidates over matched (the
// sentence past any leading-whitespace skip) starting at begin, keyed
// solely by the leading rune's default category (CharInfo.DefaultType) —
// the single category the original's addUnknown() looks up via
// unk_tokens_[cinfo.default_type], not every category bit the rune
// happens to carry. When the leading character's category groups
// adjacent same-category characters (CharInfo.Group), it tries the full
// grouped run first (when it is at most MaxGroupingSize characters) and
// then every prefix of up to MaxGroupingSize characters within the group
// boundary, skipping the group-length prefix a second time — the
// begin3 == group_begin3 dedup from the original tokenizer's lookup().
// skip is threaded through to addNode so every candidate's RLength
// covers the whitespace too. It returns the number of candidate nodes
// added.
func (tz *Tokenizer) addUnknown(lat *lattice.Lattice, begin, skip int, matched []byte, info charprop.CharInfo) (int, error) {
	if tz.Unknown == nil {
		return 0, errors.New("tokenizer: no unknown-word dictionary configured")
	}

	names := tz.Chars.CategoryNames()
	defaultIdx := int(info.DefaultType())
	if defaultIdx < 0 || defaultIdx >= len(names) {
		return 0, errors.Errorf("tokenizer: default category index %d out of range (have %d categories)", defaultIdx, len(names))
	}
	toks, ok := tz.Unknown.ExactLookup([]byte(names[defaultIdx]))
	if !ok {
		return 0, nil
	}

	groupLen, _ := tz.Chars.SeekToOtherType(matched)
	if groupLen <= 0 {
		groupLen = len(matched)
	}

	emit := func(end int) int {
		n := 0
		for i := range toks {
			tok := &toks[i]
			feature := tz.Unknown.Feature(tok.Feature)
			if !lat.IsValidNode(begin, skip+end, feature) {
				continue
			}
			tz.addNode(lat, begin, skip, matched[:end], tz.Unknown, tok, lattice.StatUnknown)
			n++
		}
		return n
	}

	added := 0
	groupEnd := -1
	if info.Group() {
		end := clampRuneBoundary(matched, groupLen)
		if end > 0 && (tz.MaxGroupingSize <= 0 || utf8.RuneCount(matched[:end]) <= tz.MaxGroupingSize) {
			added += emit(end)
			groupEnd = end
		}
	}

	end := 0
	for chars := 0; end < groupLen && (tz.MaxGroupingSize <= 0 || chars < tz.MaxGroupingSize); chars++ {
		_, w := utf8.DecodeRune(matched[end:])
		if w <= 0 {
			break
		}
		end += w
		if end == groupEnd {
			continue
		}
		added += emit(end)
	}
	return added, nil
}

// addPartialFallback implements the last-resort partial-mode candidate
// from the tokeniser's lookup(): when nothing else produced a valid
// candidate at begin, emit a single UNK node spanning up to the next
// byte offset that is not InsideTokenConstraint, carrying the pinned
// feature constraint at begin if one was set. matched is the sentence
// past any leading-whitespace skip; skip is folded into RLength the
// same way addNode does for every other candidate.
func (tz *Tokenizer) addPartialFallback(lat *lattice.Lattice, begin, skip int, matched []byte) (bool, error) {
	end := 0
	for end < len(matched) {
		_, w := utf8.DecodeRune(matched[end:])
		if w <= 0 {
			w = 1
		}
		end += w
		if lat.BoundaryConstraintAt(begin+skip+end) != lattice.InsideTokenConstraint {
			break
		}
	}
	if end <= 0 {
		return false, nil
	}

	feature, hasFeature := lat.FeatureConstraintAt(begin)

	idx := lat.Arena.NewNode()
	n := lat.Arena.Node(idx)
	n.Surface = matched[:end]
	n.Stat = lattice.StatUnknown
	if hasFeature {
		n.Feature = feature
	} else if tz.Unknown != nil {
		if toks, ok := tz.Unknown.ExactLookup([]byte(charprop.CategoryDefault)); ok && len(toks) > 0 {
			n.PosID = toks[0].PosID
			n.LeftAttr = toks[0].LeftAttr
			n.RightAttr = toks[0].RightAttr
			n.WordCost = toks[0].WordCost
			n.Feature = tz.Unknown.Feature(toks[0].Feature)
		}
	}
	rlength := skip + end
	lat.AddNode(idx, begin, rlength)
	n.Length = end
	n.RLength = rlength
	return true, nil
}

// clampRuneBoundary returns the largest value <= n that lands on a rune
// boundary within b, guarding against a seek result that split a
// multi-byte rune.
func clampRuneBoundary(b []byte, n int) int {
	if n > len(b) {
		n = len(b)
	}
	for n > 0 && n < len(b) && !utf8.RuneStart(b[n]) {
		n--
	}
	return n
}
