// Package nbest enumerates lattice paths in increasing cost order using
// an A* search seeded by the 1-best Viterbi costs already present on
// each node, so the first path it yields is identical to the ordinary
// Viterbi result.
package nbest

import (
	"container/heap"

	"github.com/steosofficial/mecabkit/connector"
	"github.com/steosofficial/mecabkit/lattice"
)

// chainLink is one entry in a singly linked list of nodes from the
// current search frontier element back out to EOS. Each queueElement
// owns its own chain — unlike Node.Next (which viterbi.Run sets once
// for the single 1-best path), many in-flight candidate paths can
// share a node while disagreeing about what comes after it, so the
// chain cannot live on the shared Node record.
type chainLink struct {
	node lattice.NodeIndex
	next int // index into Generator.chain, or -1 at EOS
}

// queueElement is one partial backward path in the search frontier:
// node is the lattice node currently at the front of the (partially
// built) path, chain is the index of this node's chainLink (its
// path-so-far toward EOS), gx is the real accumulated cost from EOS
// back to node, and fx is gx plus node.Cost — an admissible estimate of
// the full path's total cost, since node.Cost already holds the true
// cheapest cost from BOS to node.
type queueElement struct {
	node  lattice.NodeIndex
	chain int
	fx    int64
	gx    int64
}

type priorityQueue []queueElement

func (q priorityQueue) Len() int            { return len(q) }
func (q priorityQueue) Less(i, j int) bool  { return q[i].fx < q[j].fx }
func (q priorityQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *priorityQueue) Push(x interface{}) { *q = append(*q, x.(queueElement)) }
func (q *priorityQueue) Pop() interface{} {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}

// Generator produces successive best paths through a lattice on which
// viterbi.Run has already been called (so every node's Cost field holds
// its true best cost from BOS).
type Generator struct {
	lat   *lattice.Lattice
	conn  *connector.Matrix
	queue priorityQueue
	chain []chainLink
}

// New prepares a Generator over lat. Next must not be called until
// viterbi.Run(lat, conn) has populated lat's node costs.
func New(lat *lattice.Lattice, conn *connector.Matrix) *Generator {
	g := &Generator{lat: lat, conn: conn}
	eos := lat.EOS()
	g.chain = append(g.chain, chainLink{node: eos, next: -1})
	g.queue = priorityQueue{{node: eos, chain: 0, fx: lat.Arena.Node(eos).Cost, gx: 0}}
	heap.Init(&g.queue)
	return g
}

// Next pops the next-best complete path (as a slice of node indices in
// sentence order, BOS through EOS inclusive) or returns ok=false once
// the search frontier is exhausted (no further distinct paths exist).
func (g *Generator) Next() (path []lattice.NodeIndex, ok bool) {
	bos := g.lat.BOS()

	for g.queue.Len() > 0 {
		el := heap.Pop(&g.queue).(queueElement)

		if el.node == bos {
			return g.reconstruct(el.chain), true
		}

		n := g.lat.Arena.Node(el.node)
		for pidx := g.lat.EndNodes(n.Begin); pidx != lattice.NoIndex; {
			p := g.lat.Arena.Node(pidx)
			edge := g.conn.Cost(p.RightAttr, n.LeftAttr, n.WordCost)
			gx := el.gx + edge
			fx := gx + p.Cost

			g.chain = append(g.chain, chainLink{node: pidx, next: el.chain})
			heap.Push(&g.queue, queueElement{node: pidx, chain: len(g.chain) - 1, fx: fx, gx: gx})

			pidx = p.ENext
		}
	}
	return nil, false
}

// reconstruct walks the chain starting at BOS's chain link forward to
// EOS, producing node indices in sentence order.
func (g *Generator) reconstruct(chainIdx int) []lattice.NodeIndex {
	var path []lattice.NodeIndex
	for chainIdx != -1 {
		link := g.chain[chainIdx]
		path = append(path, link.node)
		chainIdx = link.next
	}
	return path
}
