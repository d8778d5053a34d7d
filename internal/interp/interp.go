// Package interp substitutes ${vars.NAME} and ${env.NAME} placeholders in a
// generic manifest tree and applies dotted-key overrides.
package interp

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/dproject-io/dproject/internal/overrides"
)

// Namespaces placeholders may refer to.
const (
	VarsSection = "vars"
	EnvSection  = "env"
)

// Sections whose string leaves are left untouched.
var skipSections = map[string]bool{
	EnvSection: true,
	"assets":   true,
}

var ErrInterpolation = errors.New("interpolation failed")

// Error names the manifest field that could not be interpolated.
type Error struct {
	Path string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("interpolation error in [%s]: %s", e.Path, e.Msg)
}

func (e *Error) Unwrap() error { return ErrInterpolation }

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

var refPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*(\.[A-Za-z0-9_-]+)+$`)

// ResolveEnv replaces every env entry (local name -> OS variable name) with
// the decoded value of that OS variable. Unset variables decode to "".
func ResolveEnv(tree map[string]any, lookup LookupFunc) error {
	raw, ok := tree[EnvSection]
	if !ok || raw == nil {
		tree[EnvSection] = map[string]any{}
		return nil
	}
	env, ok := raw.(map[string]any)
	if !ok {
		return &Error{Path: EnvSection, Msg: "expected a mapping"}
	}
	for local, name := range env {
		osName, ok := name.(string)
		if !ok {
			return &Error{Path: EnvSection + "." + local, Msg: "environment variable name must be a string"}
		}
		value, _ := lookup(osName)
		env[local] = overrides.Decode(value)
	}
	return nil
}

// ApplyOverrides sets each dotted key inside its top-level section. Missing
// vars and env sections are created; any other section must already exist.
// Intermediate keys must name existing mappings; the leaf may be new.
func ApplyOverrides(tree map[string]any, ov overrides.Overrides) error {
	for _, key := range ov.Keys() {
		parts := strings.Split(key, ".")
		if len(parts) < 2 {
			return &Error{Path: key, Msg: "can't override top-level sections"}
		}
		section, ok := tree[parts[0]]
		if !ok || section == nil {
			if parts[0] != VarsSection && parts[0] != EnvSection {
				return &Error{Path: key, Msg: fmt.Sprintf("unknown section '%s'", parts[0])}
			}
			section = map[string]any{}
			tree[parts[0]] = section
		}
		current, ok := section.(map[string]any)
		if !ok {
			return &Error{Path: key, Msg: fmt.Sprintf("section '%s' is not a mapping", parts[0])}
		}
		for i, part := range parts[1 : len(parts)-1] {
			next, ok := current[part].(map[string]any)
			if !ok {
				return &Error{
					Path: key,
					Msg:  fmt.Sprintf("'%s' is not a mapping", strings.Join(parts[:i+2], ".")),
				}
			}
			current = next
		}
		current[parts[len(parts)-1]] = ov[key]
	}
	return nil
}

// Resolve substitutes placeholders in every string leaf of tree except the env
// and assets sections and command names. A string that consists of exactly one
// placeholder takes the referenced value with its native type; otherwise the
// value is rendered into the surrounding text. "$$" renders a literal "$".
func Resolve(tree map[string]any) error {
	r := &resolver{
		root:      tree,
		cache:     map[string]any{},
		resolving: map[string]bool{},
	}

	resolved := make(map[string]any, len(tree))
	for _, key := range slices.Sorted(maps.Keys(tree)) {
		value := tree[key]
		if skipSections[key] {
			resolved[key] = value
			continue
		}
		v, err := r.value(key, value)
		if err != nil {
			return err
		}
		resolved[key] = v
	}
	for key, value := range resolved {
		tree[key] = value
	}
	return nil
}

type resolver struct {
	root      map[string]any
	cache     map[string]any
	resolving map[string]bool
}

func (r *resolver) value(path string, v any) (any, error) {
	switch val := v.(type) {
	case string:
		return r.text(path, val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for _, k := range slices.Sorted(maps.Keys(val)) {
			resolved, err := r.value(path+"."+k, val[k])
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			itemPath := path + "." + strconv.Itoa(i)
			if m, ok := item.(map[string]any); ok && path == "commands" {
				cmd, err := r.command(itemPath, m)
				if err != nil {
					return nil, err
				}
				out[i] = cmd
				continue
			}
			resolved, err := r.value(itemPath, item)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

// command resolves a command entry, leaving its name as written.
func (r *resolver) command(path string, cmd map[string]any) (any, error) {
	out := make(map[string]any, len(cmd))
	for k, item := range cmd {
		if k == "name" {
			out[k] = item
			continue
		}
		resolved, err := r.value(path+"."+k, item)
		if err != nil {
			return nil, err
		}
		out[k] = resolved
	}
	return out, nil
}

func (r *resolver) text(path, s string) (any, error) {
	if !strings.Contains(s, "$") {
		return s, nil
	}

	if ref, ok := singlePlaceholder(s); ok {
		return r.lookup(path, ref)
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '$' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		switch s[i+1] {
		case '$':
			b.WriteByte('$')
			i++
		case '{':
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				return nil, &Error{Path: path, Msg: fmt.Sprintf("unterminated placeholder in %q", s)}
			}
			ref := s[i+2 : i+2+end]
			v, err := r.lookup(path, ref)
			if err != nil {
				return nil, err
			}
			b.WriteString(Render(v))
			i += end + 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// singlePlaceholder reports whether s is exactly one "${...}" placeholder.
func singlePlaceholder(s string) (string, bool) {
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return "", false
	}
	inner := s[2 : len(s)-1]
	if strings.ContainsAny(inner, "${}") {
		return "", false
	}
	return inner, true
}

func (r *resolver) lookup(path, ref string) (any, error) {
	ref = strings.TrimSpace(ref)
	if !refPattern.MatchString(ref) {
		return nil, &Error{Path: path, Msg: fmt.Sprintf("malformed placeholder '${%s}'", ref)}
	}
	parts := strings.Split(ref, ".")
	if parts[0] != VarsSection && parts[0] != EnvSection {
		return nil, &Error{
			Path: path,
			Msg:  fmt.Sprintf("'${%s}' must refer to %s or %s", ref, VarsSection, EnvSection),
		}
	}

	if v, ok := r.cache[ref]; ok {
		return v, nil
	}

	var current any = r.root[parts[0]]
	for _, part := range parts[1:] {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, &Error{Path: path, Msg: fmt.Sprintf("can't resolve '${%s}': not defined", ref)}
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, &Error{Path: path, Msg: fmt.Sprintf("can't resolve '${%s}': index out of range", ref)}
			}
			current = node[idx]
		default:
			return nil, &Error{Path: path, Msg: fmt.Sprintf("can't resolve '${%s}': not defined", ref)}
		}
	}

	// env values come straight from the process environment and are never
	// interpolated themselves.
	if parts[0] == EnvSection {
		r.cache[ref] = current
		return current, nil
	}

	if r.resolving[ref] {
		return nil, &Error{Path: path, Msg: fmt.Sprintf("circular reference to '${%s}'", ref)}
	}
	r.resolving[ref] = true
	v, err := r.value(ref, current)
	delete(r.resolving, ref)
	if err != nil {
		return nil, err
	}
	r.cache[ref] = v
	return v, nil
}

// Render formats a resolved value for inclusion in a larger string.
func Render(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case json.Number:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}
