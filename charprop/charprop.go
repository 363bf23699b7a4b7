// Package charprop implements the character-property table: a mapping
// from Unicode code point to a bitmask of character categories (KANJI,
// ALPHA, HIRAGANA, ...) plus the per-category rules the unknown-word
// generator uses to decide how many characters of a run to group into
// a single candidate.
package charprop

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"

	"github.com/steosofficial/mecabkit/mmapfile"
)

// MaxCategories bounds the number of distinct character categories a
// table may define. CharInfo packs a per-category bit into an 18-bit
// mask, so 18 is a hard ceiling, not a tuning knob.
const MaxCategories = 18

// CategoryNameLength is the fixed width, in bytes, of a category name
// record in the binary table.
const CategoryNameLength = 32

// Required category names; every table must define both, matching the
// original's compile-time check that DEFAULT and SPACE are always
// present regardless of what char.def customizes.
const (
	CategoryDefault = "DEFAULT"
	CategorySpace   = "SPACE"
)

// CharInfo is the per-code-point record, packed identically to the
// original's 32-bit C bitfield struct:
//
//	unsigned int type        : 18; // bitmask of category membership
//	unsigned int default_type: 8;  // category used for default lookup
//	unsigned int length      : 4;  // max run length to group, 0 = unbounded
//	unsigned int group       : 1;  // group adjacent same-category chars
//	unsigned int invoke      : 1;  // always try unknown-word generation
//
// We keep the packed uint32 as the storage representation (so the
// mapped table can be viewed directly via mmapfile.TypedView) and
// expose the fields through accessors.
type CharInfo uint32

func (c CharInfo) Type() uint32        { return uint32(c) & 0x3ffff }
func (c CharInfo) DefaultType() uint8  { return uint8((uint32(c) >> 18) & 0xff) }
func (c CharInfo) Length() uint8       { return uint8((uint32(c) >> 26) & 0xf) }
func (c CharInfo) Group() bool         { return (uint32(c)>>30)&0x1 != 0 }
func (c CharInfo) Invoke() bool        { return (uint32(c)>>31)&0x1 != 0 }
func (c CharInfo) HasCategory(i int) bool {
	if i < 0 || i >= MaxCategories {
		return false
	}
	return c.Type()&(1<<uint(i)) != 0
}

// Pack assembles a CharInfo from its logical fields; used by table
// builders (tests, and any future compiler) rather than at lookup time.
func Pack(typeMask uint32, defaultType uint8, length uint8, group, invoke bool) CharInfo {
	v := typeMask & 0x3ffff
	v |= uint32(defaultType&0xff) << 18
	v |= uint32(length&0xf) << 26
	if group {
		v |= 1 << 30
	}
	if invoke {
		v |= 1 << 31
	}
	return CharInfo(v)
}

// mapSize is the number of BMP code points a table covers. Code points
// above the BMP are clamped to the last slot, matching the original's
// ucs2 truncation.
const mapSize = 0x10000

// CharProperty is a read-only character property table opened from a
// memory-mapped char.bin file.
type CharProperty struct {
	table      *mmapfile.Table
	categories []string
	charInfo   []uint32
}

// Open parses a CharProperty table out of t. The binary layout is:
//
//	u32 categoryCount
//	categoryCount * 32-byte NUL-padded category name
//	0x10000 * u32 CharInfo, indexed by code point
func Open(t *mmapfile.Table) (*CharProperty, error) {
	count, err := t.Uint32(0)
	if err != nil {
		return nil, errors.Wrap(err, "charprop: reading category count")
	}
	if count == 0 || count > MaxCategories {
		return nil, errors.Errorf("charprop: category count %d out of range (1..%d)", count, MaxCategories)
	}

	namesOff := 4
	names := make([]string, count)
	haveDefault, haveSpace := false, false
	for i := uint32(0); i < count; i++ {
		raw, err := t.Slice(namesOff+int(i)*CategoryNameLength, CategoryNameLength)
		if err != nil {
			return nil, errors.Wrap(err, "charprop: reading category name")
		}
		name := cString(raw)
		names[i] = name
		switch name {
		case CategoryDefault:
			haveDefault = true
		case CategorySpace:
			haveSpace = true
		}
	}
	if !haveDefault || !haveSpace {
		return nil, errors.Errorf("charprop: table must define both %s and %s categories", CategoryDefault, CategorySpace)
	}

	mapOff := namesOff + int(count)*CategoryNameLength
	view, err := mmapfile.TypedView[uint32](t, mapOff, mapSize)
	if err != nil {
		return nil, errors.Wrap(err, "charprop: reading code point table")
	}

	return &CharProperty{table: t, categories: names, charInfo: view}, nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Close releases the underlying memory mapping.
func (p *CharProperty) Close() error { return p.table.Close() }

// CategoryNames returns the table's category names in index order; the
// index is what CharInfo.HasCategory and DefaultType refer to.
func (p *CharProperty) CategoryNames() []string { return p.categories }

// GetCharInfo returns the CharInfo for r, clamping code points outside
// the BMP to the table's last slot.
func (p *CharProperty) GetCharInfo(r rune) CharInfo {
	idx := int(r)
	if idx < 0 || idx >= mapSize {
		idx = mapSize - 1
	}
	return CharInfo(p.charInfo[idx])
}

// SeekToOtherType scans forward from the start of input, grouping
// consecutive runes that share at least one category bit with the
// first rune's CharInfo, and stopping as soon as a rune's type mask no
// longer intersects the initial mask. It mirrors
// CharProperty::seekToOtherType in the original tokenizer: the run is
// not capped by the first rune's Length field here, and the tokenizer
// does not read Length either — both its grouped candidate and its
// per-length candidates are bounded only by its max-grouping-size.
//
// It returns the byte length of the grouped run (always >= the width
// of the first rune) and the CharInfo of the first rune, which the
// caller uses to decide whether to invoke unknown-word generation at
// all.
func (p *CharProperty) SeekToOtherType(input []byte) (runLen int, info CharInfo) {
	if len(input) == 0 {
		return 0, 0
	}
	r0, w0 := utf8.DecodeRune(input)
	info = p.GetCharInfo(r0)
	runLen = w0

	if !info.Group() {
		return runLen, info
	}

	for runLen < len(input) {
		r, w := utf8.DecodeRune(input[runLen:])
		if r == utf8.RuneError && w <= 1 {
			break
		}
		next := p.GetCharInfo(r)
		if next.Type()&info.Type() == 0 {
			break
		}
		runLen += w
	}
	return runLen, info
}

// Charset identifies a text encoding a Tagger may be asked to read or
// write in. UTF8 is the default and the only charset the rest of this
// module assumes internally; Encoding exposes the matching
// golang.org/x/text encoding for EUC-JP, Shift_JIS and UTF-16, but the
// Tagger does no conversion and treats its input as UTF-8.
type Charset int

const (
	UTF8 Charset = iota
	EUCJP
	ShiftJIS
	UTF16LE
	UTF16BE
)

func (c Charset) String() string {
	switch c {
	case UTF8:
		return "UTF-8"
	case EUCJP:
		return "EUC-JP"
	case ShiftJIS:
		return "SHIFT-JIS"
	case UTF16LE:
		return "UTF-16LE"
	case UTF16BE:
		return "UTF-16BE"
	default:
		return fmt.Sprintf("Charset(%d)", int(c))
	}
}

// DecodeCharset maps a dictionary or configuration charset name to a
// Charset value. Unrecognized names fall back to UTF-8, logging a
// warning rather than failing outright — the original's
// decode_charset() silently does the same; we keep the fallback but
// make it observable.
func DecodeCharset(name string) Charset {
	switch normalizeCharsetName(name) {
	case "utf8", "utf-8":
		return UTF8
	case "eucjp", "euc-jp":
		return EUCJP
	case "shiftjis", "shift-jis", "sjis":
		return ShiftJIS
	case "utf16le", "utf-16le":
		return UTF16LE
	case "utf16be", "utf-16be":
		return UTF16BE
	default:
		log.Warn().Str("charset", name).Msg("charprop: unrecognized charset, falling back to UTF-8")
		return UTF8
	}
}

func normalizeCharsetName(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c == '_' {
			c = '-'
		}
		out = append(out, c)
	}
	return string(out)
}

// Encoding returns the golang.org/x/text encoding implementing c, or
// nil for UTF8 (the pass-through case).
func (c Charset) Encoding() encoding.Encoding {
	switch c {
	case EUCJP:
		return japanese.EUCJP
	case ShiftJIS:
		return japanese.ShiftJIS
	case UTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case UTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	default:
		return nil
	}
}
