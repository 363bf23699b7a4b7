package model

import (
	"bytes"
	"sync"

	"github.com/pkg/errors"

	"github.com/steosofficial/mecabkit/connector"
	"github.com/steosofficial/mecabkit/lattice"
	"github.com/steosofficial/mecabkit/nbest"
	"github.com/steosofficial/mecabkit/tokenizer"
	"github.com/steosofficial/mecabkit/viterbi"
	"github.com/steosofficial/mecabkit/writer"
)

// Tagger is a single-caller-at-a-time analyzer bound to one Model
// snapshot at creation time. Parse calls are serialized internally
// (mirroring the teacher's per-call mutex around its shared DAWG
// state), so a Tagger may safely be shared across goroutines, but
// concurrent callers queue rather than run in parallel — create one
// Tagger per worker goroutine for real concurrency, the same tradeoff
// the original documents for its Tagger class.
type Tagger struct {
	st           *state
	conn         *connector.Matrix
	tz           *tokenizer.Tokenizer
	lat          *lattice.Lattice
	w            *writer.Writer
	mu           sync.Mutex
	latticeLevel int
}

// NewTagger returns a Tagger bound to m's current snapshot.
func (m *Model) NewTagger() *Tagger {
	st := m.cur.Load()
	tz := tokenizer.New(st.dics, st.unk, st.chars)
	tz.MaxGroupingSize = st.opts.MaxGroupingSize
	lat := lattice.New(lattice.NewArena())

	w := writer.New()
	if st.opts.NodeFormat != "" {
		w.NodeFormat = st.opts.NodeFormat
	}
	if st.opts.UnkFormat != "" {
		w.UnkFormat = st.opts.UnkFormat
	}
	if st.opts.BOSFormat != "" {
		w.BOSFormat = st.opts.BOSFormat
	}
	if st.opts.EOSFormat != "" {
		w.EOSFormat = st.opts.EOSFormat
	}

	return &Tagger{st: st, conn: st.conn, tz: tz, lat: lat, w: w, latticeLevel: -1}
}

// SetLatticeLevel configures the deprecated lattice-level compatibility
// knob the original tool's "-l" flag exposed, mapped onto the modern
// RequestType bits set_lattice_level derives from it: 0 is one-best
// only, 1 additionally requests n-best output, 2 additionally requests
// marginal probability scoring on top of n-best. It takes effect on the
// next Parse-family call. Only the lattice's request bits change: Parse
// still renders just the 1-best path and computes no marginals, which
// only ParseNBest and ParseToProb produce.
func (t *Tagger) SetLatticeLevel(level int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latticeLevel = level
}

// ensureSentence (re)initializes the lattice for sentence unless it is
// already set to the exact same bytes, so a caller that configured
// partial-parsing constraints via SetBoundaryConstraint/
// SetFeatureConstraint before calling Parse does not have those
// constraints wiped out by Parse's own lattice setup.
func (t *Tagger) ensureSentence(sentence []byte) {
	if t.lat.Sentence() == nil || !bytes.Equal(t.lat.Sentence(), sentence) {
		t.lat.SetSentence(sentence)
	}
}

// buildLattice resets t's lattice for sentence, adds BOS/EOS sentinel
// nodes, and generates every candidate node at every byte offset.
func (t *Tagger) buildLattice(sentence []byte) error {
	t.ensureSentence(sentence)
	t.lat.Clear()

	t.lat.SetRequestType(lattice.RequestOneBest)
	if t.st.opts.Partial || t.lat.HasConstraint() {
		t.lat.AddRequestType(lattice.RequestPartial)
	}
	if t.st.opts.AllMorphs {
		t.lat.AddRequestType(lattice.RequestAllMorphs)
	}
	if t.st.opts.MarginalProb {
		t.lat.AddRequestType(lattice.RequestMarginalProb)
	}
	switch t.latticeLevel {
	case 1:
		t.lat.AddRequestType(lattice.RequestNBest)
	case 2:
		t.lat.AddRequestType(lattice.RequestNBest | lattice.RequestMarginalProb)
	}
	t.lat.SetTheta(t.st.opts.Theta)

	bos := t.lat.Arena.NewNode()
	bn := t.lat.Arena.Node(bos)
	bn.Stat = lattice.StatBOS
	t.lat.AddNode(bos, 0, 0)
	t.lat.SetBOS(bos)

	eos := t.lat.Arena.NewNode()
	en := t.lat.Arena.Node(eos)
	en.Stat = lattice.StatEOS
	t.lat.AddNode(eos, len(sentence), 0)
	t.lat.SetEOS(eos)

	partial := t.lat.HasRequestType(lattice.RequestPartial)
	for begin := 0; begin < len(sentence); begin++ {
		if t.lat.BoundaryConstraintAt(begin) == lattice.InsideTokenConstraint {
			continue
		}
		// Outside partial mode, skip offsets nothing can actually reach:
		// the tokenizer's leading-whitespace skip means a node's end can
		// land past several intermediate byte offsets, so (unlike a
		// plain byte scan) not every offset necessarily has a
		// predecessor ending there. Partial mode still visits every
		// offset since a boundary constraint can force a token to start
		// anywhere.
		if !partial && t.lat.EndNodes(begin) == lattice.NoIndex {
			continue
		}
		if _, err := t.tz.Lookup(t.lat, begin); err != nil {
			return errors.Wrapf(err, "model: tokenizing at offset %d", begin)
		}
	}
	return nil
}

// Parse runs a 1-best analysis of sentence and returns it formatted
// with the Tagger's node/unk/bos/eos templates.
func (t *Tagger) Parse(sentence []byte) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.buildLattice(sentence); err != nil {
		return "", err
	}
	if err := viterbi.Run(t.lat, t.conn); err != nil {
		return "", err
	}
	return t.w.WritePath(t.lat), nil
}

// ParseToProb runs a marginal (all-paths) analysis, additionally
// populating each node's forward/backward probability, then renders
// the 1-best path the same way Parse does — callers needing individual
// node probabilities should read them off t.Lattice() after calling
// this instead of Parse.
func (t *Tagger) ParseToProb(sentence []byte) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.buildLattice(sentence); err != nil {
		return "", err
	}
	if err := viterbi.Run(t.lat, t.conn); err != nil {
		return "", err
	}
	if err := viterbi.RunMarginal(t.lat, t.conn); err != nil {
		return "", err
	}
	return t.w.WritePath(t.lat), nil
}

// ParseNBest returns up to n distinct analyses of sentence, in
// increasing cost order, each rendered with the Tagger's templates.
func (t *Tagger) ParseNBest(sentence []byte, n int) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.buildLattice(sentence); err != nil {
		return nil, err
	}
	if err := viterbi.Run(t.lat, t.conn); err != nil {
		return nil, err
	}

	gen := nbest.New(t.lat, t.conn)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		path, ok := gen.Next()
		if !ok {
			break
		}
		out = append(out, t.w.WriteNodes(t.lat, path))
	}
	return out, nil
}

// Lattice exposes the Tagger's internal lattice for callers that need
// direct node-level access (probabilities, positions) beyond what the
// rendered string output carries. The returned value is only valid
// until the next Parse-family call on this Tagger.
func (t *Tagger) Lattice() *lattice.Lattice { return t.lat }

// SetBoundaryConstraint and SetFeatureConstraint configure partial
// parsing ahead of the next Parse-family call; call one or more of
// them, then call Parse with the exact same sentence bytes — Parse only
// resets the lattice's sentence buffer (and any constraints on it) when
// the sentence it is given differs from the one already loaded.
func (t *Tagger) SetBoundaryConstraint(sentence []byte, offset int, c lattice.BoundaryConstraint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensureSentence(sentence)
	t.lat.SetBoundaryConstraint(offset, c)
}

// SetFeatureConstraint pins the feature string for any token spanning
// exactly [begin, begin+length) of sentence under partial parsing.
func (t *Tagger) SetFeatureConstraint(sentence []byte, begin, length int, pattern string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensureSentence(sentence)
	t.lat.AddFeatureConstraint(begin, length, pattern)
}

// ParseAll runs Parse over every sentence in sentences using a small
// worker pool, the same fan-out-over-a-channel pattern the teacher's
// ParseList/InflectList use for batch requests, returning results in
// input order.
func (t *Model) ParseAll(sentences [][]byte, workers int) ([]string, error) {
	if workers <= 0 {
		workers = 1
	}

	type job struct {
		idx int
		s   []byte
	}
	type res struct {
		idx int
		out string
		err error
	}

	jobs := make(chan job)
	results := make(chan res)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tagger := t.NewTagger()
			for j := range jobs {
				out, err := tagger.Parse(j.s)
				results <- res{idx: j.idx, out: out, err: err}
			}
		}()
	}

	go func() {
		for i, s := range sentences {
			jobs <- job{idx: i, s: s}
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]string, len(sentences))
	var firstErr error
	for r := range results {
		if r.err != nil && firstErr == nil {
			firstErr = r.err
			continue
		}
		out[r.idx] = r.out
	}
	return out, firstErr
}
