// Package overrides parses `--section.key value` tokens from the command line
// and from the D_CONFIG_OVERRIDES environment variable.
package overrides

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/dproject-io/dproject/internal/logging"
	"github.com/mattn/go-shellwords"
)

// EnvVar holds shell-quoted override tokens applied to every run.
const EnvVar = "D_CONFIG_OVERRIDES"

// Overrides maps a dotted key (e.g. "vars.batch_size") to its decoded value.
type Overrides map[string]any

// Source tells Parse where the tokens came from; it only changes error wording.
type Source int

const (
	SourceCLI Source = iota
	SourceEnv
)

// Error describes an invalid override token.
type Error struct {
	Token string
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid config override '%s': %s", e.Token, e.Msg)
}

// Parse turns tokens into overrides. A token must start with "--" and name a
// dotted key. "--a.b=v" splits at the first "="; "--a.b v" consumes the next
// token unless it is itself a flag, in which case the value is true.
func Parse(tokens []string, source Source) (Overrides, error) {
	result := Overrides{}
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if !strings.HasPrefix(tok, "--") {
			return nil, &Error{Token: tok, Msg: "name should start with --"}
		}
		opt := strings.TrimPrefix(tok, "--")
		if !strings.Contains(opt, ".") {
			if source == SourceCLI {
				return nil, &Error{Token: tok, Msg: "no such option"}
			}
			return nil, &Error{Token: tok, Msg: "can't override top-level sections"}
		}

		var raw string
		if key, value, ok := strings.Cut(opt, "="); ok {
			opt = strings.ReplaceAll(key, "-", "_")
			raw = value
		} else if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "--") {
			i++
			raw = tokens[i]
		} else {
			raw = "true"
		}
		result[opt] = Decode(raw)
	}
	return result, nil
}

// ParseEnv splits value with shell-word rules and parses the resulting tokens.
func ParseEnv(value string) (Overrides, error) {
	if strings.TrimSpace(value) == "" {
		return Overrides{}, nil
	}
	tokens, err := shellwords.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("failed to split %s: %w", EnvVar, err)
	}
	return Parse(tokens, SourceEnv)
}

// Decode interprets raw as a JSON literal (number, bool, null, quoted string,
// array or object) and falls back to the raw string when that fails.
func Decode(raw string) any {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return raw
	}
	// Anything after the value, including a stray closing bracket, makes the
	// input something other than a JSON literal.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return raw
	}
	return normalizeNumbers(v)
}

// normalizeNumbers converts json.Number leaves to int64 when integral and
// float64 otherwise.
func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		for k, item := range val {
			val[k] = normalizeNumbers(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = normalizeNumbers(item)
		}
		return val
	default:
		return val
	}
}

// Merge combines override sets. Later sets win on key collision.
func Merge(sets ...Overrides) Overrides {
	result := Overrides{}
	for _, set := range sets {
		maps.Copy(result, set)
	}
	return result
}

// FromSources parses CLI tokens and the environment variable value and merges
// them with CLI entries taking precedence.
func FromSources(cliTokens []string, envValue string) (Overrides, error) {
	envOverrides, err := ParseEnv(envValue)
	if err != nil {
		return nil, err
	}
	cliOverrides, err := Parse(cliTokens, SourceCLI)
	if err != nil {
		return nil, err
	}
	if len(envOverrides) > 0 {
		logging.Debug("config overrides from env", "var", EnvVar, "keys", envOverrides.Keys())
	}
	if len(cliOverrides) > 0 {
		logging.Debug("config overrides from CLI", "keys", cliOverrides.Keys())
	}
	return Merge(envOverrides, cliOverrides), nil
}

// Keys returns the override keys in sorted order.
func (o Overrides) Keys() []string {
	return slices.Sorted(maps.Keys(o))
}
