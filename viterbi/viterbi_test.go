package viterbi

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/steosofficial/mecabkit/connector"
	"github.com/steosofficial/mecabkit/lattice"
	"github.com/steosofficial/mecabkit/mmapfile"
)

// buildMatrix writes a trivial 1x1 connection matrix (every transition
// costs 0) so tests can isolate word cost behavior.
func buildMatrix(t *testing.T) *connector.Matrix {
	t.Helper()
	buf := make([]byte, 4+2)
	binary.LittleEndian.PutUint16(buf[0:2], 1) // lsize
	binary.LittleEndian.PutUint16(buf[2:4], 1) // rsize
	binary.LittleEndian.PutUint16(buf[4:6], 0) // cost[0][0] = 0

	path := filepath.Join(t.TempDir(), "matrix.bin")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	mt, err := mmapfile.Open(path, mmapfile.ModeRead)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mt.Close() })

	m, err := connector.Open(mt)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func addNode(l *lattice.Lattice, begin, length int, cost int16) lattice.NodeIndex {
	idx := l.Arena.NewNode()
	n := l.Arena.Node(idx)
	n.WordCost = cost
	l.AddNode(idx, begin, length)
	return idx
}

// buildLattice assembles a 2-byte sentence with two competing
// segmentations: one node spanning both bytes at cost 10, or two
// one-byte nodes at cost 3 each (total 6). Every node shares the same
// (zero-cost) connector attributes so the only thing distinguishing the
// two segmentations is their summed word cost.
func buildLattice() (*lattice.Lattice, lattice.NodeIndex /*two-byte node*/, []lattice.NodeIndex /*one-byte nodes*/) {
	l := lattice.New(lattice.NewArena())
	l.SetSentence([]byte("ab"))

	bos := l.Arena.NewNode()
	l.Arena.Node(bos).Stat = lattice.StatBOS
	l.AddNode(bos, 0, 0)
	l.SetBOS(bos)

	eos := l.Arena.NewNode()
	l.Arena.Node(eos).Stat = lattice.StatEOS
	l.AddNode(eos, 2, 0)
	l.SetEOS(eos)

	whole := addNode(l, 0, 2, 10)
	a := addNode(l, 0, 1, 3)
	b := addNode(l, 1, 1, 3)

	return l, whole, []lattice.NodeIndex{a, b}
}

func TestRunPicksCheaperSegmentation(t *testing.T) {
	conn := buildMatrix(t)
	lat, whole, parts := buildLattice()

	if err := Run(lat, conn); err != nil {
		t.Fatal(err)
	}

	eos := lat.Arena.Node(lat.EOS())
	if !eos.IsBest {
		t.Fatal("EOS should be on the best path")
	}

	bestAtWhole := lat.Arena.Node(whole).IsBest
	bestAtParts := lat.Arena.Node(parts[0]).IsBest && lat.Arena.Node(parts[1]).IsBest
	if bestAtWhole {
		t.Error("the costlier single-span segmentation should not be on the best path")
	}
	if !bestAtParts {
		t.Error("the cheaper two-node segmentation should be on the best path")
	}

	if eos.Cost != 6 {
		t.Errorf("EOS.Cost = %d, want 6", eos.Cost)
	}
}

func TestRunMarginalProbabilitiesSumNearOne(t *testing.T) {
	conn := buildMatrix(t)
	lat, whole, parts := buildLattice()
	lat.Theta = 1.0

	if err := Run(lat, conn); err != nil {
		t.Fatal(err)
	}
	if err := RunMarginal(lat, conn); err != nil {
		t.Fatal(err)
	}

	wholeProb := lat.Arena.Node(whole).Prob
	// Every node ending the sentence and starting it competes for the
	// same probability mass; the cheaper segmentation should dominate.
	if wholeProb <= 0 || wholeProb >= 1 {
		t.Errorf("whole-span node probability out of (0,1) range: %v", wholeProb)
	}
	aProb := lat.Arena.Node(parts[0]).Prob
	if aProb <= wholeProb {
		t.Errorf("the cheaper path's node should carry more probability mass: a=%v whole=%v", aProb, wholeProb)
	}
	// a and whole are the two mutually exclusive ways to cover offset 0,
	// so their marginals partition the whole probability mass.
	if sum := aProb + wholeProb; math.Abs(sum-1) > 1e-9 {
		t.Errorf("competing segmentations' probabilities should sum to 1, got %v", sum)
	}
}
