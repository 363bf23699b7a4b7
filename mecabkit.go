// Package mecabkit is the convenience entry point: open a Model from a
// directory of compiled dictionary files and start tagging sentences
// without touching the lower-level dict/connector/lattice packages
// directly.
package mecabkit

import (
	"path/filepath"

	"github.com/steosofficial/mecabkit/config"
	"github.com/steosofficial/mecabkit/model"
)

// Standard file names a dictionary directory is expected to contain,
// matching the original tool's on-disk layout.
const (
	SystemDictionaryFile  = "sys.dic"
	UnknownDictionaryFile = "unk.dic"
	MatrixFile            = "matrix.bin"
	CharPropertyFile      = "char.bin"
)

// Open resolves config from the environment (MECABRC / $HOME/.mecabrc)
// layered under overrides, then loads a Model from the standard files
// inside dicdir (or overrides.DictionaryDir if set).
func Open(overrides config.Options) (*model.Model, error) {
	opts, err := config.Resolve(config.ResolveRCPath(), "", overrides)
	if err != nil {
		return nil, err
	}
	dir := opts.DictionaryDir
	return model.Open(
		opts,
		filepath.Join(dir, SystemDictionaryFile),
		filepath.Join(dir, UnknownDictionaryFile),
		filepath.Join(dir, MatrixFile),
		filepath.Join(dir, CharPropertyFile),
	)
}

// Parse is a one-shot convenience wrapper: open m's default tagger,
// parse sentence, and return the formatted analysis.
func Parse(m *model.Model, sentence string) (string, error) {
	t := m.NewTagger()
	return t.Parse([]byte(sentence))
}
