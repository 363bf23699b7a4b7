// Package writer renders a parsed lattice's best path (or, in
// nbest/all-morphs mode, each candidate path) into the textual output
// format callers expect, using the same %-directive template language
// as the original tool.
package writer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/steosofficial/mecabkit/lattice"
)

// Directives recognised by Format:
//
//	%m  surface form
//	%H  feature string
//	%h  POS id
//	%c  word cost
//	%p  marginal probability (only meaningful after RunMarginal)
//	%%  a literal percent sign
//
// Anything else following a %% is copied through unchanged. %s is
// accepted as a synonym for %m for compatibility with callers used to
// the original's node-format strings, which used %s for "surface" in
// some builds.
const (
	DefaultNodeFormat = "%m\t%H\n"
	DefaultEOSFormat  = "EOS\n"
	DefaultUnkFormat  = "%m\t%H\n"
	DefaultBOSFormat  = ""
)

// Writer renders nodes according to a configurable set of templates,
// one per node role (ordinary, unknown, BOS, EOS) — the same
// bos-format/eos-format/unk-format/node-format split the original
// tool's Tagger exposes as resource options.
type Writer struct {
	NodeFormat string
	UnkFormat  string
	BOSFormat  string
	EOSFormat  string
}

// New returns a Writer using the default MeCab-style tab-separated
// format.
func New() *Writer {
	return &Writer{
		NodeFormat: DefaultNodeFormat,
		UnkFormat:  DefaultUnkFormat,
		BOSFormat:  DefaultBOSFormat,
		EOSFormat:  DefaultEOSFormat,
	}
}

// WritePath renders every node from BOS (exclusive) to EOS (inclusive)
// along the Next chain left behind by viterbi.Run, in order, into a
// single string.
func (w *Writer) WritePath(lat *lattice.Lattice) string {
	var b strings.Builder
	for idx := lat.Arena.Node(lat.BOS()).Next; idx != lattice.NoIndex; {
		n := lat.Arena.Node(idx)
		b.WriteString(w.formatNode(n))
		if idx == lat.EOS() {
			break
		}
		idx = n.Next
	}
	return b.String()
}

// WriteNodes renders an arbitrary, caller-supplied path (e.g. one
// nbest candidate) in sentence order.
func (w *Writer) WriteNodes(lat *lattice.Lattice, path []lattice.NodeIndex) string {
	var b strings.Builder
	for _, idx := range path {
		if idx == lat.BOS() {
			continue
		}
		b.WriteString(w.formatNode(lat.Arena.Node(idx)))
	}
	return b.String()
}

func (w *Writer) formatNode(n *lattice.Node) string {
	switch n.Stat {
	case lattice.StatEOS:
		return w.EOSFormat
	case lattice.StatBOS:
		return w.BOSFormat
	case lattice.StatUnknown:
		return w.render(w.UnkFormat, n)
	default:
		return w.render(w.NodeFormat, n)
	}
}

func (w *Writer) render(format string, n *lattice.Node) string {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 >= len(format) {
			b.WriteByte(c)
			continue
		}
		i++
		switch format[i] {
		case 'm', 's':
			b.Write(n.Surface)
		case 'H':
			b.WriteString(n.Feature)
		case 'h':
			b.WriteString(strconv.Itoa(int(n.PosID)))
		case 'c':
			b.WriteString(strconv.Itoa(int(n.WordCost)))
		case 'p':
			b.WriteString(fmt.Sprintf("%.6f", n.Prob))
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteByte(format[i])
		}
	}
	return b.String()
}
