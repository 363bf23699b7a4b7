package charprop

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/steosofficial/mecabkit/mmapfile"
)

// buildTable assembles a minimal char.bin with the given category names
// (DEFAULT and SPACE are required and prepended if missing) and writes
// assignments mapping a rune to a CharInfo, returning the opened table.
func buildTable(t *testing.T, categories []string, assign map[rune]CharInfo) *CharProperty {
	t.Helper()

	names := []string{CategoryDefault, CategorySpace}
	for _, c := range categories {
		if c != CategoryDefault && c != CategorySpace {
			names = append(names, c)
		}
	}

	buf := make([]byte, 0, 4+len(names)*CategoryNameLength+mapSize*4)
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(names)))
	buf = append(buf, hdr[:]...)

	for _, n := range names {
		rec := make([]byte, CategoryNameLength)
		copy(rec, n)
		buf = append(buf, rec...)
	}

	table := make([]uint32, mapSize)
	for r, info := range assign {
		table[int(r)] = uint32(info)
	}
	for _, v := range table {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		buf = append(buf, b[:]...)
	}

	path := filepath.Join(t.TempDir(), "char.bin")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	mt, err := mmapfile.Open(path, mmapfile.ModeRead)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mt.Close() })

	cp, err := Open(mt)
	if err != nil {
		t.Fatal(err)
	}
	return cp
}

func categoryBit(names []string, name string) uint32 {
	for i, n := range names {
		if n == name {
			return 1 << uint(i)
		}
	}
	return 0
}

func TestOpenRejectsMissingRequiredCategories(t *testing.T) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, 1)
	buf = append(buf, make([]byte, CategoryNameLength)...)
	copy(buf[4:], "ONLY_ONE")
	buf = append(buf, make([]byte, mapSize*4)...)

	path := filepath.Join(t.TempDir(), "char.bin")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	mt, err := mmapfile.Open(path, mmapfile.ModeRead)
	if err != nil {
		t.Fatal(err)
	}
	defer mt.Close()

	if _, err := Open(mt); err == nil {
		t.Fatal("expected error for a table missing DEFAULT/SPACE")
	}
}

func TestGetCharInfoAndGrouping(t *testing.T) {
	names := []string{CategoryDefault, CategorySpace, "KANJI"}
	kanjiBit := categoryBit(names, "KANJI")

	info := Pack(kanjiBit, 2, 0, true, false)
	cp := buildTable(t, names, map[rune]CharInfo{
		'漢': info,
		'字': info,
	})

	got := cp.GetCharInfo('漢')
	if got.Type()&kanjiBit == 0 {
		t.Errorf("expected KANJI bit set, got type=%b", got.Type())
	}
	if !got.Group() {
		t.Error("expected Group() true")
	}

	runLen, first := cp.SeekToOtherType([]byte("漢字"))
	if runLen != len("漢字") {
		t.Errorf("SeekToOtherType grouped run = %d bytes, want %d", runLen, len("漢字"))
	}
	if first.Type()&kanjiBit == 0 {
		t.Error("SeekToOtherType should return the leading rune's CharInfo")
	}
}

func TestSeekToOtherTypeStopsAtCategoryBoundary(t *testing.T) {
	names := []string{CategoryDefault, CategorySpace, "KANJI", "ALPHA"}
	kanjiBit := categoryBit(names, "KANJI")
	alphaBit := categoryBit(names, "ALPHA")

	cp := buildTable(t, names, map[rune]CharInfo{
		'漢': Pack(kanjiBit, 2, 0, true, false),
		'a': Pack(alphaBit, 3, 0, true, false),
	})

	runLen, _ := cp.SeekToOtherType([]byte("漢a"))
	if runLen != len("漢") {
		t.Errorf("run should stop before the ALPHA character, got %d bytes", runLen)
	}
}

func TestDecodeCharsetFallback(t *testing.T) {
	if got := DecodeCharset("UTF-8"); got != UTF8 {
		t.Errorf("DecodeCharset(UTF-8) = %v, want UTF8", got)
	}
	if got := DecodeCharset("totally-bogus"); got != UTF8 {
		t.Errorf("DecodeCharset(bogus) = %v, want fallback UTF8", got)
	}
	if got := DecodeCharset("EUC-JP"); got != EUCJP {
		t.Errorf("DecodeCharset(EUC-JP) = %v, want EUCJP", got)
	}
}
