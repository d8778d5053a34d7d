package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/dproject-io/dproject/internal/interp"
	"github.com/dproject-io/dproject/internal/logging"
	"github.com/dproject-io/dproject/internal/overrides"
	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
)

// Loader reads the manifest of one project directory.
type Loader struct {
	projectDir string
	lookupEnv  interp.LookupFunc
}

func NewLoader(projectDir string) *Loader {
	return &Loader{
		projectDir: projectDir,
		lookupEnv:  os.LookupEnv,
	}
}

// WithLookupEnv replaces the environment lookup used to resolve the env section.
func (l *Loader) WithLookupEnv(fn interp.LookupFunc) *Loader {
	l.lookupEnv = fn
	return l
}

// Path returns the manifest path.
func (l *Loader) Path() string {
	return filepath.Join(l.projectDir, FileName)
}

// LoadRaw parses and validates the manifest without interpolating variables
// and without touching the filesystem.
func (l *Loader) LoadRaw() (*Config, error) {
	tree, order, err := l.readTree()
	if err != nil {
		return nil, err
	}
	return l.finish(tree, order)
}

// Load parses, validates and interpolates the manifest with the given
// overrides applied. The declared directories are created as soon as the
// schema check passes, so they exist even when a later step fails.
func (l *Loader) Load(ov overrides.Overrides) (*Config, error) {
	return l.resolve(ov, true)
}

// Resolve is Load without the directory side effect.
func (l *Loader) Resolve(ov overrides.Overrides) (*Config, error) {
	return l.resolve(ov, false)
}

func (l *Loader) resolve(ov overrides.Overrides, createDirs bool) (*Config, error) {
	tree, order, err := l.readTree()
	if err != nil {
		return nil, err
	}

	// Entries holding a placeholder are created once interpolation succeeds.
	if createDirs {
		var literal []string
		for _, dir := range treeDirectories(tree) {
			if !strings.Contains(dir, "$") {
				literal = append(literal, dir)
			}
		}
		if err := EnsureDirectories(l.projectDir, literal); err != nil {
			return nil, err
		}
	}

	if err := interp.ResolveEnv(tree, l.lookupEnv); err != nil {
		return nil, err
	}
	if err := interp.ApplyOverrides(tree, ov); err != nil {
		return nil, err
	}
	if err := interp.Resolve(tree); err != nil {
		return nil, err
	}

	if createDirs {
		if err := EnsureDirectories(l.projectDir, treeDirectories(tree)); err != nil {
			return nil, err
		}
	}
	return l.finish(tree, order)
}

// treeDirectories returns the directories section of a schema-valid tree.
func treeDirectories(tree map[string]any) []string {
	list, _ := tree["directories"].([]any)
	dirs := make([]string, 0, len(list))
	for _, item := range list {
		dirs = append(dirs, interp.Render(item))
	}
	return dirs
}

// readTree reads, parses and schema-validates the manifest. It returns the
// generic tree and the declaration order of workflows.
func (l *Loader) readTree() (map[string]any, []string, error) {
	path := l.Path()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("can't find %s: %w", path, ErrManifestNotFound)
		}
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	tree, order, err := Parse(data)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Path = FileName
		}
		return nil, nil, err
	}
	logging.Debug("parsed manifest", "path", path, "sections", len(tree))

	issues, err := ValidateSchema(tree)
	if err != nil {
		return nil, nil, err
	}
	if len(issues) > 0 {
		return nil, nil, &SchemaError{Path: FileName, Issues: issues}
	}
	return tree, order, nil
}

func (l *Loader) finish(tree map[string]any, order []string) (*Config, error) {
	cfg, err := decode(tree)
	if err != nil {
		return nil, err
	}
	cfg.WorkflowOrder = order

	warnings, err := Validate(cfg)
	cfg.Warnings = warnings
	for _, w := range warnings {
		logging.Debug("manifest warning", "warning", w)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

var goccyPosition = regexp.MustCompile(`^\[(\d+):(\d+)\]\s*(.*)`)

// Parse decodes YAML manifest bytes into a generic tree. Mappings are
// normalized to map[string]any; the declaration order of the workflows
// mapping is returned separately.
func Parse(data []byte) (map[string]any, []string, error) {
	var doc any
	if err := yaml.UnmarshalWithOptions(data, &doc, yaml.UseOrderedMap()); err != nil {
		perr := &ParseError{Msg: err.Error()}
		if m := goccyPosition.FindStringSubmatch(err.Error()); m != nil {
			perr.Line, _ = strconv.Atoi(m[1])
			perr.Column, _ = strconv.Atoi(m[2])
			perr.Msg = firstLine(m[3])
		}
		return nil, nil, perr
	}

	if doc == nil {
		return map[string]any{}, nil, nil
	}
	ms, ok := doc.(yaml.MapSlice)
	if !ok {
		return nil, nil, &ParseError{Msg: "top level must be a mapping"}
	}

	var order []string
	for _, item := range ms {
		if fmt.Sprintf("%v", item.Key) != "workflows" {
			continue
		}
		if wf, ok := item.Value.(yaml.MapSlice); ok {
			for _, w := range wf {
				order = append(order, fmt.Sprintf("%v", w.Key))
			}
		}
	}

	return normalizeValue(ms).(map[string]any), order, nil
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}

// normalizeValue converts ordered and any-keyed YAML mappings into
// map[string]any recursively.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case yaml.MapSlice:
		newMap := make(map[string]any, len(val))
		for _, item := range val {
			newMap[fmt.Sprintf("%v", item.Key)] = normalizeValue(item.Value)
		}
		return newMap
	case map[any]any:
		newMap := make(map[string]any, len(val))
		for k, v := range val {
			newMap[fmt.Sprintf("%v", k)] = normalizeValue(v)
		}
		return newMap
	case map[string]any:
		newMap := make(map[string]any, len(val))
		for k, v := range val {
			newMap[k] = normalizeValue(v)
		}
		return newMap
	case []any:
		newSlice := make([]any, len(val))
		for i, v := range val {
			newSlice[i] = normalizeValue(v)
		}
		return newSlice
	default:
		return val
	}
}

func decode(tree map[string]any) (*Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "yaml",
		ErrorUnused: true,
		DecodeHook:  renderScalarToString,
		Result:      &cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(tree); err != nil {
		return nil, &SchemaError{
			Path:   FileName,
			Issues: []Issue{{Path: "root", Messages: []string{err.Error()}}},
		}
	}
	if cfg.Vars == nil {
		cfg.Vars = map[string]any{}
	}
	if cfg.Env == nil {
		cfg.Env = map[string]any{}
	}
	if cfg.Workflows == nil {
		cfg.Workflows = map[string][]string{}
	}
	return &cfg, nil
}

// renderScalarToString lets a placeholder that resolved to a number or bool
// fill a string field.
func renderScalarToString(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String || from.Kind() == reflect.String {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return interp.Render(data), nil
	}
	return data, nil
}

// EnsureDirectories creates every listed directory, with parents, relative to
// the project root.
func EnsureDirectories(projectDir string, dirs []string) error {
	for _, dir := range dirs {
		path := filepath.Join(projectDir, dir)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		logging.Debug("created directory", "path", path)
	}
	return nil
}
