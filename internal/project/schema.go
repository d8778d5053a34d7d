package project

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema/project.schema.json
var schemaJSON []byte

const schemaURL = "project.schema.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add embedded schema: %w", err)
	}
	return c.Compile(schemaURL)
})

var printer = message.NewPrinter(language.English)

// ValidateSchema checks a generic manifest tree against the embedded schema and
// returns every issue found, grouped by field path and sorted by path. A nil
// result means the tree is valid.
func ValidateSchema(tree map[string]any) ([]Issue, error) {
	sch, err := compiledSchema()
	if err != nil {
		return nil, err
	}

	// Round-trip through JSON so numbers and maps have the shapes the
	// validator expects.
	raw, err := json.Marshal(finiteNumbers(tree))
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest for validation: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode manifest for validation: %w", err)
	}

	err = sch.Validate(inst)
	if err == nil {
		return nil, nil
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return nil, err
	}

	grouped := map[string][]string{}
	collectIssues(verr, grouped)

	paths := make([]string, 0, len(grouped))
	for p := range grouped {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	issues := make([]Issue, 0, len(paths))
	for _, p := range paths {
		issues = append(issues, Issue{Path: p, Messages: grouped[p]})
	}
	return issues, nil
}

// finiteNumbers returns a copy of v with .inf and .nan replaced by 0. JSON
// cannot encode them, and the schema only checks that they are numbers.
func finiteNumbers(v any) any {
	switch val := v.(type) {
	case float64:
		if math.IsInf(val, 0) || math.IsNaN(val) {
			return float64(0)
		}
		return val
	case float32:
		return finiteNumbers(float64(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = finiteNumbers(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = finiteNumbers(item)
		}
		return out
	default:
		return val
	}
}

func collectIssues(verr *jsonschema.ValidationError, grouped map[string][]string) {
	if len(verr.Causes) > 0 {
		for _, cause := range verr.Causes {
			collectIssues(cause, grouped)
		}
		return
	}

	add := func(path []string, msg string) {
		key := fieldPath(path)
		if !slices.Contains(grouped[key], msg) {
			grouped[key] = append(grouped[key], msg)
		}
	}

	switch k := verr.ErrorKind.(type) {
	case *kind.AdditionalProperties:
		for _, prop := range k.Properties {
			add(append(slices.Clone(verr.InstanceLocation), prop), "extra fields not permitted")
		}
	case *kind.Required:
		for _, missing := range k.Missing {
			add(append(slices.Clone(verr.InstanceLocation), missing), "field required")
		}
	default:
		add(verr.InstanceLocation, verr.ErrorKind.LocalizedString(printer))
	}
}

func fieldPath(location []string) string {
	if len(location) == 0 {
		return "root"
	}
	return strings.Join(location, ".")
}
