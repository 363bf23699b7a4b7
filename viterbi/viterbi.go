// Package viterbi computes the lowest-cost path through a lattice (the
// conventional "1-best" parse) and, when requested, the forward and
// backward log-probabilities every node needs to report a marginal
// ("all paths") probability.
package viterbi

import (
	"math"

	"github.com/pkg/errors"

	"github.com/steosofficial/mecabkit/connector"
	"github.com/steosofficial/mecabkit/lattice"
)

// Run executes the forward Viterbi pass over lat: for every node, in
// increasing begin-position order, it finds the cheapest predecessor
// ending at that node's begin offset and accumulates Node.Cost and
// Node.Prev accordingly. It then walks the cheapest path back from EOS
// to BOS, filling in Node.Next / Node.IsBest so writer and nbest can
// read the winning sequence directly off the lattice.
func Run(lat *lattice.Lattice, conn *connector.Matrix) error {
	bos := lat.BOS()
	eos := lat.EOS()
	if bos == lattice.NoIndex || eos == lattice.NoIndex {
		return errors.New("viterbi: lattice has no BOS/EOS node")
	}

	size := lat.Size()
	for begin := 0; begin <= size; begin++ {
		for idx := lat.BeginNodes(begin); idx != lattice.NoIndex; idx = lat.Arena.Node(idx).BNext {
			if idx == bos {
				continue
			}
			if err := bestPredecessor(lat, conn, idx); err != nil {
				return err
			}
		}
	}

	return tracePath(lat)
}

func bestPredecessor(lat *lattice.Lattice, conn *connector.Matrix, idx lattice.NodeIndex) error {
	n := lat.Arena.Node(idx)
	bestCost := int64(math.MaxInt64)
	best := lattice.NodeIndex(lattice.NoIndex)

	for pidx := lat.EndNodes(n.Begin); pidx != lattice.NoIndex; {
		p := lat.Arena.Node(pidx)
		edge := conn.Cost(p.RightAttr, n.LeftAttr, n.WordCost)
		total := p.Cost + edge
		if total < bestCost {
			bestCost = total
			best = pidx
		}
		pidx = p.ENext
	}

	if best == lattice.NoIndex {
		return errors.Errorf("viterbi: node at offset %d has no reachable predecessor", n.Begin)
	}

	n.Cost = bestCost
	n.Prev = best
	return nil
}

func tracePath(lat *lattice.Lattice) error {
	eos := lat.EOS()
	bos := lat.BOS()

	for idx := eos; idx != lattice.NoIndex; {
		n := lat.Arena.Node(idx)
		n.IsBest = true
		prev := n.Prev
		if prev == lattice.NoIndex {
			if idx != bos {
				return errors.New("viterbi: best path does not terminate at BOS")
			}
			break
		}
		lat.Arena.Node(prev).Next = idx
		idx = prev
	}
	return nil
}

// RunMarginal computes, in addition to the 1-best path, the forward
// (Alpha) and backward (Beta) log-probabilities at every node and the
// partition function lat.Z, using temperature lat.Theta the way the
// original's all-paths mode does: costs are treated as
// negative-log-probabilities scaled by Theta, combined with
// logsumexp instead of min.
func RunMarginal(lat *lattice.Lattice, conn *connector.Matrix) error {
	bos := lat.BOS()
	eos := lat.EOS()
	if bos == lattice.NoIndex || eos == lattice.NoIndex {
		return errors.New("viterbi: lattice has no BOS/EOS node")
	}
	theta := lat.Theta
	if theta <= 0 {
		theta = 1.0
	}

	size := lat.Size()

	lat.Arena.Node(bos).Alpha = 0
	for begin := 0; begin <= size; begin++ {
		for idx := lat.BeginNodes(begin); idx != lattice.NoIndex; idx = lat.Arena.Node(idx).BNext {
			if idx == bos {
				continue
			}
			n := lat.Arena.Node(idx)
			var logs []float64
			for pidx := lat.EndNodes(n.Begin); pidx != lattice.NoIndex; {
				p := lat.Arena.Node(pidx)
				edge := float64(conn.Cost(p.RightAttr, n.LeftAttr, n.WordCost))
				logs = append(logs, p.Alpha-edge/theta)
				pidx = p.ENext
			}
			n.Alpha = logSumExp(logs)
		}
	}

	lat.Arena.Node(eos).Beta = 0
	for begin := size; begin >= 0; begin-- {
		for idx := lat.BeginNodes(begin); idx != lattice.NoIndex; idx = lat.Arena.Node(idx).BNext {
			if idx == eos {
				continue
			}
			n := lat.Arena.Node(idx)
			end := n.Begin + n.RLength
			var logs []float64
			for sidx := lat.BeginNodes(end); sidx != lattice.NoIndex; sidx = lat.Arena.Node(sidx).BNext {
				s := lat.Arena.Node(sidx)
				edge := float64(conn.Cost(n.RightAttr, s.LeftAttr, s.WordCost))
				logs = append(logs, s.Beta-edge/theta)
			}
			n.Beta = logSumExp(logs)
		}
	}

	lat.Z = lat.Arena.Node(eos).Alpha

	for begin := 0; begin <= size; begin++ {
		for idx := lat.BeginNodes(begin); idx != lattice.NoIndex; idx = lat.Arena.Node(idx).BNext {
			n := lat.Arena.Node(idx)
			n.Prob = math.Exp(n.Alpha+n.Beta-lat.Z) / theta
		}
	}

	buildPaths(lat, conn, theta)

	return nil
}

// buildPaths materializes every edge between adjoining nodes as a Path,
// chained into LNode.RPath and RNode.LPath, with Path.Prob holding that
// specific transition's marginal probability — the "keep all incoming
// Paths" half of all-paths mode that the node-level Alpha/Beta/Prob
// fields alone don't capture. It must run after Alpha, Beta and Z are
// all populated, since a path's probability depends on the Beta of the
// node downstream of it.
func buildPaths(lat *lattice.Lattice, conn *connector.Matrix, theta float64) {
	bos := lat.BOS()
	size := lat.Size()
	for begin := 0; begin <= size; begin++ {
		for idx := lat.BeginNodes(begin); idx != lattice.NoIndex; idx = lat.Arena.Node(idx).BNext {
			if idx == bos {
				continue
			}
			n := lat.Arena.Node(idx)
			for pidx := lat.EndNodes(n.Begin); pidx != lattice.NoIndex; {
				p := lat.Arena.Node(pidx)
				edge := conn.Cost(p.RightAttr, n.LeftAttr, n.WordCost)

				pathIdx := lat.Arena.NewPath()
				path := lat.Arena.Path(pathIdx)
				path.LNode = pidx
				path.RNode = idx
				path.Cost = int64(edge)
				path.Prob = math.Exp(p.Alpha-float64(edge)/theta+n.Beta-lat.Z) / theta

				path.RNext = p.RPath
				p.RPath = pathIdx
				path.LNext = n.LPath
				n.LPath = pathIdx

				pidx = p.ENext
			}
		}
	}
}

// logSumExp computes log(sum(exp(x))) in a numerically stable way. An
// empty input (a node with no predecessors/successors) returns
// negative infinity, the log of zero probability.
func logSumExp(xs []float64) float64 {
	if len(xs) == 0 {
		return math.Inf(-1)
	}
	max := xs[0]
	for _, x := range xs[1:] {
		if x > max {
			max = x
		}
	}
	if math.IsInf(max, -1) {
		return max
	}
	sum := 0.0
	for _, x := range xs {
		sum += math.Exp(x - max)
	}
	return max + math.Log(sum)
}
