// Package model assembles a system dictionary, optional user
// dictionaries, the connection matrix and the character-property table
// into a ready-to-use analyzer, and hands out Taggers that each parse
// sentences against the Model's current snapshot.
package model

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/steosofficial/mecabkit/charprop"
	"github.com/steosofficial/mecabkit/config"
	"github.com/steosofficial/mecabkit/connector"
	"github.com/steosofficial/mecabkit/dict"
	"github.com/steosofficial/mecabkit/mmapfile"
)

func openTable(path string) (*mmapfile.Table, error) {
	return mmapfile.Open(path, mmapfile.ModeRead)
}

// DictionaryInfo describes one loaded dictionary for introspection —
// the Go analogue of the original's DictionaryInfo linked list exposed
// through Model::dictionary_info().
type DictionaryInfo struct {
	Type    dict.Type
	Charset charprop.Charset
	LSize   uint32
	RSize   uint32
}

// state is everything a parse needs, swapped atomically by Swap so
// in-flight Taggers keep using a consistent snapshot even while a
// reload is in progress.
type state struct {
	dics    []*dict.Dictionary
	unk     *dict.Dictionary
	conn    *connector.Matrix
	chars   *charprop.CharProperty
	infos   []DictionaryInfo
	opts    config.Options
}

// ErrResource is returned when a Model cannot be opened or reloaded
// because a required resource (system dictionary, connection matrix,
// character property table) is missing or invalid.
var ErrResource = errors.New("model: resource error")

// Model is a hot-swappable, immutable analyzer snapshot. The zero value
// is not usable; construct with Open.
type Model struct {
	cur atomic.Pointer[state]
}

// Open loads a Model from opts: a system dictionary, a char-property
// table and a connection matrix are required; user dictionaries and an
// unknown-word pseudo dictionary are optional but, if their paths are
// unset, unknown-word generation will fail at parse time rather than at
// Open time, mirroring the original's lazy resource checks.
func Open(opts config.Options, sysDicPath, unkDicPath, matrixPath, charPath string) (*Model, error) {
	st, err := buildState(opts, sysDicPath, unkDicPath, matrixPath, charPath)
	if err != nil {
		return nil, err
	}
	m := &Model{}
	m.cur.Store(st)
	return m, nil
}

func buildState(opts config.Options, sysDicPath, unkDicPath, matrixPath, charPath string) (*state, error) {
	sysDic, err := dict.Open(sysDicPath)
	if err != nil {
		return nil, errors.Wrap(ErrResource, err.Error())
	}

	dics := []*dict.Dictionary{sysDic}
	infos := []DictionaryInfo{{Type: sysDic.Type(), Charset: sysDic.Charset(), LSize: sysDic.LSize(), RSize: sysDic.RSize()}}

	for _, up := range opts.UserDictionary {
		ud, err := dict.Open(up)
		if err != nil {
			closeAll(dics)
			return nil, errors.Wrapf(ErrResource, "opening user dictionary %s: %v", up, err)
		}
		if err := sysDic.CompatibleWith(ud); err != nil {
			ud.Close()
			closeAll(dics)
			return nil, errors.Wrapf(ErrResource, "user dictionary %s incompatible: %v", up, err)
		}
		dics = append(dics, ud)
		infos = append(infos, DictionaryInfo{Type: ud.Type(), Charset: ud.Charset(), LSize: ud.LSize(), RSize: ud.RSize()})
	}

	var unk *dict.Dictionary
	if unkDicPath != "" {
		unk, err = dict.Open(unkDicPath)
		if err != nil {
			closeAll(dics)
			return nil, errors.Wrapf(ErrResource, "opening unknown-word dictionary: %v", err)
		}
	}

	matrixTable, err := openTable(matrixPath)
	if err != nil {
		closeAll(dics)
		closeOpt(unk)
		return nil, errors.Wrapf(ErrResource, "opening connection matrix: %v", err)
	}
	conn, err := connector.Open(matrixTable)
	if err != nil {
		closeAll(dics)
		closeOpt(unk)
		return nil, errors.Wrapf(ErrResource, "parsing connection matrix: %v", err)
	}

	charTable, err := openTable(charPath)
	if err != nil {
		closeAll(dics)
		closeOpt(unk)
		conn.Close()
		return nil, errors.Wrapf(ErrResource, "opening character property table: %v", err)
	}
	chars, err := charprop.Open(charTable)
	if err != nil {
		closeAll(dics)
		closeOpt(unk)
		conn.Close()
		return nil, errors.Wrapf(ErrResource, "parsing character property table: %v", err)
	}

	return &state{dics: dics, unk: unk, conn: conn, chars: chars, infos: infos, opts: opts}, nil
}

func closeAll(dics []*dict.Dictionary) {
	for _, d := range dics {
		d.Close()
	}
}

func closeOpt(d *dict.Dictionary) {
	if d != nil {
		d.Close()
	}
}

// Swap atomically replaces the Model's snapshot with a freshly loaded
// one, letting a long-running process pick up a recompiled dictionary
// without restarting. Taggers created before Swap keep using their own
// already-captured snapshot for any parse already in flight; new
// Tagger calls see the new snapshot.
func (m *Model) Swap(opts config.Options, sysDicPath, unkDicPath, matrixPath, charPath string) error {
	st, err := buildState(opts, sysDicPath, unkDicPath, matrixPath, charPath)
	if err != nil {
		return err
	}
	old := m.cur.Swap(st)
	if old != nil {
		log.Info().Msg("model: swapped in new dictionary snapshot")
		closeAll(old.dics)
		closeOpt(old.unk)
		old.conn.Close()
		old.chars.Close()
	}
	return nil
}

// DictionaryInfos reports metadata for every dictionary currently
// loaded, system dictionary first.
func (m *Model) DictionaryInfos() []DictionaryInfo {
	st := m.cur.Load()
	out := make([]DictionaryInfo, len(st.infos))
	copy(out, st.infos)
	return out
}

// Options returns the Options this snapshot was opened with.
func (m *Model) Options() config.Options { return m.cur.Load().opts }

// Close releases every resource held by the Model's current snapshot.
func (m *Model) Close() error {
	st := m.cur.Load()
	if st == nil {
		return nil
	}
	closeAll(st.dics)
	closeOpt(st.unk)
	if st.conn != nil {
		st.conn.Close()
	}
	if st.chars != nil {
		st.chars.Close()
	}
	return nil
}
