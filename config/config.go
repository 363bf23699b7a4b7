// Package config resolves the options a Model is opened with: built-in
// defaults, an optional legacy rcfile (mecabrc), an optional modern
// structured config file, and finally whatever the caller sets
// explicitly — each tier overriding the one before it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

// Options controls how a Model loads its dictionaries and how its
// Taggers format and score output.
type Options struct {
	DictionaryDir   string   `mapstructure:"dicdir"`
	UserDictionary  []string `mapstructure:"userdic"`
	OutputFormat    string   `mapstructure:"output-format-type"`
	NodeFormat      string   `mapstructure:"node-format"`
	UnkFormat       string   `mapstructure:"unk-format"`
	BOSFormat       string   `mapstructure:"bos-format"`
	EOSFormat       string   `mapstructure:"eos-format"`
	Theta           float64  `mapstructure:"theta"`
	CostFactor      int      `mapstructure:"cost-factor"`
	MaxGroupingSize int      `mapstructure:"max-grouping-size"`
	NBest           int      `mapstructure:"nbest"`
	AllMorphs       bool     `mapstructure:"all-morphs"`
	Partial         bool     `mapstructure:"partial"`
	MarginalProb    bool     `mapstructure:"marginal"`
}

// String renders opts as "key\tvalue" lines keyed by the same option
// names mecab_options lists (dicdir, userdic, theta, ...), the Go
// analogue of the original tool's --dump-config output.
func (o Options) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "dicdir\t%s\n", o.DictionaryDir)
	fmt.Fprintf(&b, "userdic\t%s\n", strings.Join(o.UserDictionary, ","))
	fmt.Fprintf(&b, "output-format-type\t%s\n", o.OutputFormat)
	fmt.Fprintf(&b, "node-format\t%s\n", o.NodeFormat)
	fmt.Fprintf(&b, "unk-format\t%s\n", o.UnkFormat)
	fmt.Fprintf(&b, "bos-format\t%s\n", o.BOSFormat)
	fmt.Fprintf(&b, "eos-format\t%s\n", o.EOSFormat)
	fmt.Fprintf(&b, "theta\t%g\n", o.Theta)
	fmt.Fprintf(&b, "cost-factor\t%d\n", o.CostFactor)
	fmt.Fprintf(&b, "max-grouping-size\t%d\n", o.MaxGroupingSize)
	fmt.Fprintf(&b, "nbest\t%d\n", o.NBest)
	fmt.Fprintf(&b, "all-morphs\t%t\n", o.AllMorphs)
	fmt.Fprintf(&b, "partial\t%t\n", o.Partial)
	fmt.Fprintf(&b, "marginal\t%t\n", o.MarginalProb)
	return b.String()
}

// Default returns the built-in defaults every Options resolution starts
// from.
func Default() Options {
	return Options{
		OutputFormat:    "wakati",
		Theta:           1.0,
		CostFactor:      700,
		MaxGroupingSize: 24,
		NBest:           1,
	}
}

// EnvRCFile is the environment variable the original tool consults for
// an rcfile path override.
const EnvRCFile = "MECABRC"

// ResolveRCPath finds the rcfile to load: MECABRC if set, otherwise
// $HOME/.mecabrc, matching the original's search order.
func ResolveRCPath() string {
	if p := os.Getenv(EnvRCFile); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".mecabrc")
}

// LoadRCFile reads path (if it exists) as a legacy key/value rcfile and
// merges recognized keys into opts. A missing file is not an error —
// the rcfile is optional at every tier.
func LoadRCFile(opts *Options, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "config: reading rcfile %s", path)
	}
	kv := ParseRCFile(data)
	applyRCKeys(opts, kv)
	return nil
}

func applyRCKeys(opts *Options, kv map[string]string) {
	if v, ok := kv["dicdir"]; ok {
		opts.DictionaryDir = v
	}
	if v, ok := kv["userdic"]; ok {
		opts.UserDictionary = append(opts.UserDictionary, v)
	}
	if v, ok := kv["output-format-type"]; ok {
		opts.OutputFormat = v
	}
	if v, ok := kv["node-format"]; ok {
		opts.NodeFormat = v
	}
	if v, ok := kv["unk-format"]; ok {
		opts.UnkFormat = v
	}
	if v, ok := kv["bos-format"]; ok {
		opts.BOSFormat = v
	}
	if v, ok := kv["eos-format"]; ok {
		opts.EOSFormat = v
	}
}

// LoadStructuredFile reads an INI-style structured config file (the
// modern counterpart to the legacy rcfile, for settings the legacy
// format has no room for, like theta or nbest) and merges it into
// opts.
func LoadStructuredFile(opts *Options, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "config: statting %s", path)
	}

	cfg, err := ini.Load(path)
	if err != nil {
		return errors.Wrapf(err, "config: parsing %s", path)
	}

	raw := make(map[string]interface{})
	section := cfg.Section("")
	for _, key := range section.Keys() {
		raw[key.Name()] = key.Value()
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           opts,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "config: building decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return errors.Wrapf(err, "config: decoding %s", path)
	}
	return nil
}

// Resolve builds the final Options by layering, in order: built-in
// defaults, the legacy rcfile, an optional structured config file, and
// finally overrides, whose non-zero fields win over everything before
// them.
func Resolve(rcPath, structuredPath string, overrides Options) (Options, error) {
	opts := Default()
	if err := LoadRCFile(&opts, rcPath); err != nil {
		return Options{}, err
	}
	if err := LoadStructuredFile(&opts, structuredPath); err != nil {
		return Options{}, err
	}
	mergeOverrides(&opts, overrides)
	return opts, nil
}

func mergeOverrides(opts *Options, o Options) {
	if o.DictionaryDir != "" {
		opts.DictionaryDir = o.DictionaryDir
	}
	if len(o.UserDictionary) > 0 {
		opts.UserDictionary = o.UserDictionary
	}
	if o.OutputFormat != "" {
		opts.OutputFormat = o.OutputFormat
	}
	if o.NodeFormat != "" {
		opts.NodeFormat = o.NodeFormat
	}
	if o.UnkFormat != "" {
		opts.UnkFormat = o.UnkFormat
	}
	if o.BOSFormat != "" {
		opts.BOSFormat = o.BOSFormat
	}
	if o.EOSFormat != "" {
		opts.EOSFormat = o.EOSFormat
	}
	if o.Theta != 0 {
		opts.Theta = o.Theta
	}
	if o.CostFactor != 0 {
		opts.CostFactor = o.CostFactor
	}
	if o.MaxGroupingSize != 0 {
		opts.MaxGroupingSize = o.MaxGroupingSize
	}
	if o.NBest != 0 {
		opts.NBest = o.NBest
	}
	opts.AllMorphs = opts.AllMorphs || o.AllMorphs
	opts.Partial = opts.Partial || o.Partial
	opts.MarginalProb = opts.MarginalProb || o.MarginalProb
}
