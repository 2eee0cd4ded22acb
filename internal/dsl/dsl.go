// Package dsl parses the inline dataflow reference grammar embedded as
// strings inside releaserc.toml's [cfg] tables (spec §6):
//
//	value_def := from_ref | literal
//	from_ref  := "from:" [ "env:" ] [ "required_at=" step ":" ] key
//	literal   := any_string_not_matching_from_ref
//
// The original project parses this with a PEG grammar (pest); the pack has
// no combinator/PEG parsing library, so this is a small hand-rolled scanner
// in the idiom the teacher uses for its own embedded mini-grammars (see
// internal/config/types.go's templateVarNamePattern use of regexp for
// structured string fields).
package dsl

import (
	"fmt"
	"strings"

	"github.com/relrun/relrun/internal/step"
)

// Ref is a parsed "from:" reference.
type Ref struct {
	FromEnv     bool
	RequiredAt  step.Step
	HasRequired bool
	Key         string
}

const prefix = "from:"

// IsReference reports whether raw looks like a "from:" reference rather than a literal.
func IsReference(raw string) bool {
	return strings.HasPrefix(raw, prefix)
}

// Parse parses a "from:" reference body. Callers should first check
// IsReference; values that don't start with "from:" are literals, not a
// parse error.
func Parse(raw string) (Ref, error) {
	if !strings.HasPrefix(raw, prefix) {
		return Ref{}, fmt.Errorf("dsl: not a reference: %q", raw)
	}
	rest := raw[len(prefix):]

	var ref Ref

	rest, ok := consumeTag(rest, "env:")
	if ok {
		ref.FromEnv = true
	}

	rest, reqStep, hasReq, err := consumeRequiredAt(rest)
	if err != nil {
		return Ref{}, err
	}
	if hasReq {
		ref.RequiredAt = reqStep
		ref.HasRequired = true
	}

	if rest == "" {
		return Ref{}, fmt.Errorf("dsl: missing key in reference %q", raw)
	}
	if strings.Contains(rest, "=") || strings.Contains(rest, ":") {
		return Ref{}, fmt.Errorf("dsl: unknown metadata field in reference %q", raw)
	}

	ref.Key = rest
	return ref, nil
}

func consumeTag(s, tag string) (string, bool) {
	if strings.HasPrefix(s, tag) {
		return s[len(tag):], true
	}
	return s, false
}

const requiredAtTag = "required_at="

func consumeRequiredAt(s string) (rest string, s2 step.Step, has bool, err error) {
	if !strings.HasPrefix(s, requiredAtTag) {
		return s, 0, false, nil
	}
	s = s[len(requiredAtTag):]
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return "", 0, false, fmt.Errorf("dsl: required_at= is missing its trailing ':' before the key")
	}
	name := s[:idx]
	parsed, err := step.Parse(name)
	if err != nil {
		return "", 0, false, fmt.Errorf("dsl: invalid required_at step %q: %w", name, err)
	}
	return s[idx+1:], parsed, true, nil
}
