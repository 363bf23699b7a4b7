package config

import "strings"

// ParseRCFile parses a legacy mecabrc-style key/value file: one
// "key = value" (or "key value") pair per line, ';' or '#' starting a
// comment that runs to end of line, blank lines ignored.
//
// Trimming is deliberately asymmetric, replicating
// original_source/Includes/mecab/param.h's load(): the key has only
// its *trailing* whitespace trimmed (so a key can't accidentally
// absorb leading indentation meant as formatting, but any space before
// '=' disappears) while the value has only its *leading* whitespace
// trimmed (so trailing spaces in a value — e.g. inside a format string
// — survive verbatim). This is why config deliberately does not use
// gopkg.in/ini.v1 for this file: ini.v1 trims both sides of a value
// symmetrically, which would silently strip meaningful trailing
// whitespace a node-format value relies on.
func ParseRCFile(data []byte) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = stripComment(line)
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, ok := splitKV(line)
		if !ok {
			continue
		}
		out[key] = value
	}
	return out
}

func stripComment(line string) string {
	for i, c := range line {
		if c == ';' || c == '#' {
			return line[:i]
		}
	}
	return line
}

func splitKV(line string) (key, value string, ok bool) {
	idx := strings.IndexAny(line, "= \t")
	if idx < 0 {
		return "", "", false
	}
	key = trimTrailing(line[:idx])
	if key == "" {
		return "", "", false
	}

	rest := line[idx:]
	rest = strings.TrimLeft(rest, " \t")
	rest = strings.TrimPrefix(rest, "=")
	value = trimLeading(rest)
	return key, value, true
}

func trimTrailing(s string) string {
	return strings.TrimRight(s, " \t\r")
}

func trimLeading(s string) string {
	return strings.TrimLeft(s, " \t\r")
}
