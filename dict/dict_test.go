package dict

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/steosofficial/mecabkit/darts"
)

type fixtureToken struct {
	key   string
	count int
	toks  []TokenEntry
}

// writeDictionary assembles a complete on-disk dictionary file from a
// sorted set of (surface, token run) pairs and returns its path.
func writeDictionary(t *testing.T, dir, name string, dtype Type, lsize, rsize uint32, charset string, entries []fixtureToken) string {
	t.Helper()

	b := darts.NewBuilder()
	var tokens []TokenEntry
	for _, e := range entries {
		base := len(tokens)
		tokens = append(tokens, e.toks...)
		value := int32(uint32(len(e.toks))<<24 | uint32(base)&tokenOffsetMask)
		if err := b.Insert([]byte(e.key), value); err != nil {
			t.Fatalf("Insert(%q): %v", e.key, err)
		}
	}
	trie := b.Build()

	var features []byte

	dsize := len(trie.Units()) * 8
	tsize := len(tokens) * 16
	fsize := len(features)

	total := headerSize + dsize + tsize + fsize

	buf := make([]byte, total)
	magic := dicMagicXOR ^ uint32(total)
	putu32 := func(off int, v uint32) { binary.LittleEndian.PutUint32(buf[off:], v) }
	putu32(0, magic)
	putu32(4, DictionaryVersion)
	putu32(8, uint32(dtype))
	putu32(12, uint32(len(entries)))
	putu32(16, lsize)
	putu32(20, rsize)
	putu32(24, uint32(dsize))
	putu32(28, uint32(tsize))
	putu32(32, uint32(fsize))
	putu32(36, 0)
	copy(buf[40:40+charsetFieldLen], charset)

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
	copy(buf[off:], features)

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenAndLookup(t *testing.T) {
	dir := t.TempDir()
	path := writeDictionary(t, dir, "sys.dic", TypeSystem, 4, 4, "UTF-8", []fixtureToken{
		{key: "a", toks: []TokenEntry{{LeftAttr: 1, RightAttr: 2, PosID: 10, WordCost: 5}}},
		{key: "ab", toks: []TokenEntry{{LeftAttr: 1, RightAttr: 3, PosID: 11, WordCost: 7}}},
	})

	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	if d.Type() != TypeSystem {
		t.Errorf("Type() = %v, want TypeSystem", d.Type())
	}
	if d.LSize() != 4 || d.RSize() != 4 {
		t.Errorf("LSize/RSize = %d/%d, want 4/4", d.LSize(), d.RSize())
	}

	toks, ok := d.ExactLookup([]byte("ab"))
	if !ok || len(toks) != 1 || toks[0].WordCost != 7 {
		t.Fatalf("ExactLookup(ab) = %+v, %v", toks, ok)
	}

	scratch := make([]darts.Match, darts.MaxMatches)
	matches := d.CommonPrefixLookup([]byte("abc"), scratch, nil)
	if len(matches) != 2 {
		t.Fatalf("CommonPrefixLookup(abc) found %d matches, want 2", len(matches))
	}
	if matches[0].Length != 1 || matches[1].Length != 2 {
		t.Errorf("unexpected match lengths: %+v", matches)
	}
}

func TestOpenRejectsTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeDictionary(t, dir, "sys.dic", TypeSystem, 1, 1, "UTF-8", []fixtureToken{
		{key: "a", toks: []TokenEntry{{WordCost: 1}}},
	})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	truncated := filepath.Join(dir, "truncated.dic")
	if err := os.WriteFile(truncated, data[:len(data)-1], 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(truncated); err == nil {
		t.Fatal("expected an error opening a truncated dictionary")
	}
}

func TestCompatibleWith(t *testing.T) {
	dir := t.TempDir()
	sysPath := writeDictionary(t, dir, "sys.dic", TypeSystem, 4, 4, "UTF-8", []fixtureToken{
		{key: "a", toks: []TokenEntry{{WordCost: 1}}},
	})
	userPath := writeDictionary(t, dir, "user.dic", TypeUser, 4, 4, "UTF-8", []fixtureToken{
		{key: "b", toks: []TokenEntry{{WordCost: 1}}},
	})
	badPath := writeDictionary(t, dir, "bad.dic", TypeUser, 8, 8, "UTF-8", []fixtureToken{
		{key: "c", toks: []TokenEntry{{WordCost: 1}}},
	})

	sys, err := Open(sysPath)
	if err != nil {
		t.Fatal(err)
	}
	defer sys.Close()
	user, err := Open(userPath)
	if err != nil {
		t.Fatal(err)
	}
	defer user.Close()
	bad, err := Open(badPath)
	if err != nil {
		t.Fatal(err)
	}
	defer bad.Close()

	if err := sys.CompatibleWith(user); err != nil {
		t.Errorf("expected compatible dictionaries, got %v", err)
	}
	if err := sys.CompatibleWith(bad); err == nil {
		t.Error("expected an incompatibility error for mismatched connector sizes")
	}
}
