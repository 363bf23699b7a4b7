// Package dict reads a compiled morphological dictionary: a header, a
// double-array trie mapping surface forms to token runs, a fixed-size
// token table, and a feature-string blob. Multiple dictionaries (one
// system dictionary plus zero or more user dictionaries) are stacked
// together by a Model provided they report compatible headers.
package dict

import (
	"github.com/pkg/errors"

	"github.com/steosofficial/mecabkit/charprop"
	"github.com/steosofficial/mecabkit/darts"
	"github.com/steosofficial/mecabkit/mmapfile"
)

// DictionaryVersion is the only binary format version this reader
// understands.
const DictionaryVersion = 102

// dicMagicXOR is XORed with the stored magic and the file size; a
// well-formed file satisfies (magic ^ fileSize) == dicMagicXOR. Tying
// the magic to the file size catches truncation that a plain constant
// magic would miss.
const dicMagicXOR = 0xef718f77

// Type distinguishes a system dictionary (the sole required base
// dictionary a Model loads) from a user dictionary (an optional
// supplementary word list stacked on top) or the unknown-word pseudo
// dictionary consumed directly by the tokenizer's fallback path.
type Type uint32

const (
	TypeSystem Type = iota
	TypeUser
	TypeUnknown
)

const headerSize = 40 + charsetFieldLen

const charsetFieldLen = 32

// Header mirrors the on-disk dictionary header, a fixed 72-byte
// (10 little-endian uint32 fields + 32-byte charset name) record
// grounded on original_source/include/mecab/dictionary.h.
type Header struct {
	Magic   uint32
	Version uint32
	Type    uint32
	LexSize uint32
	LSize   uint32
	RSize   uint32
	DSize   uint32
	TSize   uint32
	FSize   uint32
	Dummy   uint32
	Charset [charsetFieldLen]byte
}

// TokenEntry is the fixed 16-byte on-disk token record. It is read
// directly as a typed mmap view, so its Go layout must not diverge from
// the C struct it mirrors (no added/reordered fields).
type TokenEntry struct {
	LeftAttr  uint16
	RightAttr uint16
	PosID     uint16
	WordCost  int16
	Feature   uint32
	Compound  uint32
}

// ErrBadMagic is returned when a dictionary file's self-referential
// magic check fails, indicating truncation or a non-dictionary file.
var ErrBadMagic = errors.New("dict: bad magic (file truncated or not a dictionary)")

// ErrBadVersion is returned for a dictionary compiled against a format
// version this reader does not understand.
var ErrBadVersion = errors.New("dict: unsupported dictionary version")

// ErrIncompatible is returned by CompatibleWith when dictionaries disagree on
// the attributes that must match for their tokens to share one
// connection matrix (charset and connector dimensions).
var ErrIncompatible = errors.New("dict: incompatible dictionary (charset or connector size mismatch)")

// Dictionary is one opened, memory-mapped dictionary file.
type Dictionary struct {
	table    *mmapfile.Table
	header   Header
	trie     *darts.Trie
	tokens   []TokenEntry
	features []byte
	charset  charprop.Charset
}

// Open memory-maps path and parses its header, trie, token table and
// feature blob.
func Open(path string) (*Dictionary, error) {
	t, err := mmapfile.Open(path, mmapfile.ModeRead)
	if err != nil {
		return nil, err
	}
	d, err := load(t)
	if err != nil {
		t.Close()
		return nil, err
	}
	return d, nil
}

func load(t *mmapfile.Table) (*Dictionary, error) {
	raw, err := t.Slice(0, headerSize)
	if err != nil {
		return nil, errors.Wrap(err, "dict: reading header")
	}

	var h Header
	h.Magic = le32(raw[0:4])
	h.Version = le32(raw[4:8])
	h.Type = le32(raw[8:12])
	h.LexSize = le32(raw[12:16])
	h.LSize = le32(raw[16:20])
	h.RSize = le32(raw[20:24])
	h.DSize = le32(raw[24:28])
	h.TSize = le32(raw[28:32])
	h.FSize = le32(raw[32:36])
	h.Dummy = le32(raw[36:40])
	copy(h.Charset[:], raw[40:40+charsetFieldLen])

	if (h.Magic ^ uint32(t.Size())) != dicMagicXOR {
		return nil, ErrBadMagic
	}
	if h.Version != DictionaryVersion {
		return nil, errors.Wrapf(ErrBadVersion, "got %d, want %d", h.Version, DictionaryVersion)
	}

	off := headerSize
	darr, err := mmapfile.TypedView[darts.Unit](t, off, int(h.DSize)/8)
	if err != nil {
		return nil, errors.Wrap(err, "dict: reading trie")
	}
	off += int(h.DSize)

	tokens, err := mmapfile.TypedView[TokenEntry](t, off, int(h.TSize)/16)
	if err != nil {
		return nil, errors.Wrap(err, "dict: reading token table")
	}
	off += int(h.TSize)

	features, err := t.Slice(off, int(h.FSize))
	if err != nil {
		return nil, errors.Wrap(err, "dict: reading feature blob")
	}

	return &Dictionary{
		table:    t,
		header:   h,
		trie:     darts.New(darr),
		tokens:   tokens,
		features: features,
		charset:  charprop.DecodeCharset(cString(h.Charset[:])),
	}, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Type reports whether this is a system, user, or unknown-word
// dictionary.
func (d *Dictionary) Type() Type { return Type(d.header.Type) }

// Charset is the character encoding surface forms and features were
// compiled in.
func (d *Dictionary) Charset() charprop.Charset { return d.charset }

// LSize and RSize are the left/right connector attribute counts this
// dictionary's tokens index into; every dictionary stacked into one
// Model must agree on both so they share one connection matrix.
func (d *Dictionary) LSize() uint32 { return d.header.LSize }
func (d *Dictionary) RSize() uint32 { return d.header.RSize }

// tokenCountBits and tokenOffsetBits split a trie leaf value into a
// token-run length (how many TokenEntry records share this surface
// form, e.g. homograph readings) and a base offset into the token
// table.
const (
	tokenCountBits  = 8
	tokenOffsetMask = 1<<24 - 1
)

// CommonPrefixLookup finds every dictionary entry that is a byte-prefix
// of key and appends the token runs for each to out, returning the
// extended slice. Each Match's Length is in bytes.
type Match struct {
	Length int
	Tokens []TokenEntry
}

func (d *Dictionary) CommonPrefixLookup(key []byte, scratch []darts.Match, out []Match) []Match {
	n := d.trie.CommonPrefixSearch(key, scratch)
	for i := 0; i < n; i++ {
		m := scratch[i]
		count := int(uint32(m.Value) >> 24 & 0xff)
		base := int(uint32(m.Value) & tokenOffsetMask)
		if base < 0 || base+count > len(d.tokens) {
			continue
		}
		out = append(out, Match{Length: m.Length, Tokens: d.tokens[base : base+count]})
	}
	return out
}

// ExactLookup finds the token run for an exact match of key, if any.
func (d *Dictionary) ExactLookup(key []byte) ([]TokenEntry, bool) {
	value, _, ok := d.trie.ExactMatch(key)
	if !ok {
		return nil, false
	}
	count := int(uint32(value) >> 24 & 0xff)
	base := int(uint32(value) & tokenOffsetMask)
	if base < 0 || base+count > len(d.tokens) {
		return nil, false
	}
	return d.tokens[base : base+count], true
}

// Feature returns the NUL-terminated feature string at off.
func (d *Dictionary) Feature(off uint32) string {
	b := d.features
	if int(off) >= len(b) {
		return ""
	}
	return cString(b[off:])
}

// Close releases the underlying memory mapping.
func (d *Dictionary) Close() error { return d.table.Close() }

// CompatibleWith reports whether d and other can be stacked into the
// same Model — they must agree on charset and on the connector
// dimensions their tokens' attribute IDs index into.
func (d *Dictionary) CompatibleWith(other *Dictionary) error {
	if d.charset != other.charset {
		return errors.Wrapf(ErrIncompatible, "charset %s vs %s", d.charset, other.charset)
	}
	if d.header.LSize != other.header.LSize || d.header.RSize != other.header.RSize {
		return errors.Wrapf(ErrIncompatible, "connector size %dx%d vs %dx%d",
			d.header.LSize, d.header.RSize, other.header.LSize, other.header.RSize)
	}
	return nil
}
