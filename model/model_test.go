package model

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/steosofficial/mecabkit/config"
	"github.com/steosofficial/mecabkit/darts"
	"github.com/steosofficial/mecabkit/dict"
)

type fixtureEntry struct {
	key  string
	toks []dict.TokenEntry
}

func writeDic(t *testing.T, dir, name string, dtype dict.Type, lsize, rsize uint32, entries []fixtureEntry) string {
	t.Helper()

	b := darts.NewBuilder()
	var tokens []dict.TokenEntry
	for _, e := range entries {
		base := len(tokens)
		tokens = append(tokens, e.toks...)
		value := int32(uint32(len(e.toks))<<24 | uint32(base)&0xffffff)
		if err := b.Insert([]byte(e.key), value); err != nil {
			t.Fatalf("Insert(%q): %v", e.key, err)
		}
	}
	trie := b.Build()

	const headerSize = 72
	dsize := len(trie.Units()) * 8
	tsize := len(tokens) * 16
	total := headerSize + dsize + tsize

	buf := make([]byte, total)
	putu32 := func(off int, v uint32) { binary.LittleEndian.PutUint32(buf[off:], v) }
	putu32(4, 102)
	putu32(8, uint32(dtype))
	putu32(12, uint32(len(entries)))
	putu32(16, lsize)
	putu32(20, rsize)
	putu32(24, uint32(dsize))
	putu32(28, uint32(tsize))
	putu32(32, 0)
	copy(buf[40:72], "UTF-8")
	putu32(0, 0xef718f77^uint32(total))

	off := headerSize
	for _, u := range trie.Units() {
		binary.LittleEndian.PutUint32(buf[off:], uint32(u.Base))
		binary.LittleEndian.PutUint32(buf[off+4:], uint32(u.Check))
		off += 8
	}
	for _, tok := range tokens {
		binary.LittleEndian.PutUint16(buf[off:], tok.LeftAttr)
		binary.LittleEndian.PutUint16(buf[off+2:], tok.RightAttr)
		binary.LittleEndian.PutUint16(buf[off+4:], tok.PosID)
		binary.LittleEndian.PutUint16(buf[off+6:], uint16(tok.WordCost))
		binary.LittleEndian.PutUint32(buf[off+8:], tok.Feature)
		binary.LittleEndian.PutUint32(buf[off+12:], tok.Compound)
		off += 16
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeMatrix(t *testing.T, dir string, lsize, rsize uint16, costs []int16) string {
	t.Helper()
	buf := make([]byte, 4+len(costs)*2)
	binary.LittleEndian.PutUint16(buf[0:2], lsize)
	binary.LittleEndian.PutUint16(buf[2:4], rsize)
	for i, c := range costs {
		binary.LittleEndian.PutUint16(buf[4+i*2:], uint16(c))
	}
	path := filepath.Join(dir, "matrix.bin")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// writeChars builds a char.bin that treats every code point as DEFAULT
// (category bit 0), ungrouped, so a fixture sentence never needs
// anything beyond the toy dictionaries to produce a complete lattice.
func writeChars(t *testing.T, dir string) string {
	t.Helper()
	const mapSize = 0x10000
	mapOff := 4 + 2*32
	buf := make([]byte, mapOff+mapSize*4)
	binary.LittleEndian.PutUint32(buf[0:4], 2)
	copy(buf[4:36], "DEFAULT")
	copy(buf[36:68], "SPACE")
	for i := 0; i < mapSize; i++ {
		binary.LittleEndian.PutUint32(buf[mapOff+i*4:], 1) // category bit 0 = DEFAULT
	}
	path := filepath.Join(dir, "char.bin")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// buildToyModel assembles a minimal but complete dictionary set: a
// system dictionary recognizing "tokyo" and "tower" as single tokens
// (and "to" as a shorter, costlier alternative) plus a pass-through
// unknown-word dictionary so any ASCII byte not otherwise covered still
// produces a candidate.
func buildToyModel(t *testing.T) *Model {
	t.Helper()
	dir := t.TempDir()

	sys := writeDic(t, dir, "sys.dic", dict.TypeSystem, 1, 1, []fixtureEntry{
		{key: "to", toks: []dict.TokenEntry{{LeftAttr: 0, RightAttr: 0, PosID: 2, WordCost: 8}}},
		{key: "tokyo", toks: []dict.TokenEntry{{LeftAttr: 0, RightAttr: 0, PosID: 1, WordCost: 10}}},
		{key: "tower", toks: []dict.TokenEntry{{LeftAttr: 0, RightAttr: 0, PosID: 1, WordCost: 10}}},
	})
	unk := writeDic(t, dir, "unk.dic", dict.TypeUnknown, 1, 1, []fixtureEntry{
		{key: "DEFAULT", toks: []dict.TokenEntry{{LeftAttr: 0, RightAttr: 0, PosID: 9, WordCost: 100}}},
		{key: "SPACE", toks: []dict.TokenEntry{{LeftAttr: 0, RightAttr: 0, PosID: 9, WordCost: 100}}},
	})
	matrix := writeMatrix(t, dir, 1, 1, []int16{0})
	chars := writeChars(t, dir)

	m, err := Open(config.Default(), sys, unk, matrix, chars)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestTaggerParsePrefersFullWord(t *testing.T) {
	m := buildToyModel(t)
	tg := m.NewTagger()

	out, err := tg.Parse([]byte("tokyo"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.Contains(out, "tokyo") || strings.Contains(out, "to\t") {
		t.Errorf("expected the full word \"tokyo\" to win over the shorter \"to\" token, got:\n%s", out)
	}
	if !strings.HasSuffix(out, "EOS\n") {
		t.Errorf("expected output to end with an EOS line, got:\n%s", out)
	}
}

func TestTaggerParseNBestStartsWithOneBest(t *testing.T) {
	m := buildToyModel(t)
	tg := m.NewTagger()

	oneBest, err := tg.Parse([]byte("tower"))
	if err != nil {
		t.Fatal(err)
	}

	results, err := tg.ParseNBest([]byte("tower"), 3)
	if err != nil {
		t.Fatalf("ParseNBest: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one nbest result")
	}
	if results[0] != oneBest {
		t.Errorf("first nbest result should match the 1-best output:\nnbest[0] = %q\n1best    = %q", results[0], oneBest)
	}
}

func TestModelParseAllPreservesOrder(t *testing.T) {
	m := buildToyModel(t)

	sentences := [][]byte{[]byte("tokyo"), []byte("tower"), []byte("to")}
	out, err := m.ParseAll(sentences, 2)
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d results, want 3", len(out))
	}
	if !strings.Contains(out[0], "tokyo") {
		t.Errorf("result 0 should analyze %q, got %q", "tokyo", out[0])
	}
	if !strings.Contains(out[1], "tower") {
		t.Errorf("result 1 should analyze %q, got %q", "tower", out[1])
	}
	if !strings.Contains(out[2], "to") {
		t.Errorf("result 2 should analyze %q, got %q", "to", out[2])
	}
}

func TestDictionaryInfos(t *testing.T) {
	m := buildToyModel(t)
	infos := m.DictionaryInfos()
	if len(infos) != 1 {
		t.Fatalf("got %d dictionary infos, want 1 (system only, unk.dic is not stacked as a lookup dictionary)", len(infos))
	}
	if infos[0].Type != dict.TypeSystem {
		t.Errorf("infos[0].Type = %v, want TypeSystem", infos[0].Type)
	}
}
