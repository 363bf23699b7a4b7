// Package connector reads the connection-cost matrix: a dense table of
// bigram transition costs between a left token's right-context
// attribute and a right token's left-context attribute, used by
// Viterbi to score adjacency between two candidate tokens.
package connector

import (
	"github.com/pkg/errors"

	"github.com/steosofficial/mecabkit/mmapfile"
)

// Matrix is a memory-mapped connection-cost table. The binary layout is
//
//	u16 lsize
//	u16 rsize
//	i16[lsize*rsize] costs, row-major by left attribute
//
// grounded on original_source/include/mecab/connector.h.
type Matrix struct {
	table *mmapfile.Table
	lsize int
	rsize int
	costs []int16
}

// Open parses a connection matrix out of t.
func Open(t *mmapfile.Table) (*Matrix, error) {
	lsize, err := t.Uint16(0)
	if err != nil {
		return nil, errors.Wrap(err, "connector: reading lsize")
	}
	rsize, err := t.Uint16(2)
	if err != nil {
		return nil, errors.Wrap(err, "connector: reading rsize")
	}
	costs, err := mmapfile.TypedView[int16](t, 4, int(lsize)*int(rsize))
	if err != nil {
		return nil, errors.Wrap(err, "connector: reading cost matrix")
	}
	return &Matrix{table: t, lsize: int(lsize), rsize: int(rsize), costs: costs}, nil
}

// LSize and RSize report the matrix's left/right attribute counts; a
// Dictionary's token attribute IDs must stay within these bounds.
func (m *Matrix) LSize() int { return m.lsize }
func (m *Matrix) RSize() int { return m.rsize }

// TransitionCost returns the bigram cost of a left token whose right
// context attribute is rightAttrOfLeft adjoining a right token whose
// left context attribute is leftAttrOfRight.
func (m *Matrix) TransitionCost(rightAttrOfLeft, leftAttrOfRight uint16) int16 {
	idx := int(rightAttrOfLeft)*m.rsize + int(leftAttrOfRight)
	if idx < 0 || idx >= len(m.costs) {
		return 0
	}
	return m.costs[idx]
}

// Cost combines the transition cost between two adjoining tokens with
// the right token's own word cost — the quantity Viterbi accumulates
// along an edge of the lattice.
func (m *Matrix) Cost(rightAttrOfLeft, leftAttrOfRight uint16, wordCost int16) int64 {
	return int64(m.TransitionCost(rightAttrOfLeft, leftAttrOfRight)) + int64(wordCost)
}

// Close releases the underlying memory mapping.
func (m *Matrix) Close() error { return m.table.Close() }
