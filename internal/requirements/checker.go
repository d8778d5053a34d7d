package requirements

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/Masterminds/semver/v3"
	"github.com/dproject-io/dproject/internal/logging"
)

// ProblemKind classifies a requirement that is not satisfied.
type ProblemKind string

const (
	Missing     ProblemKind = "missing"
	Conflicting ProblemKind = "conflicting"
	Unchecked   ProblemKind = "unchecked"
)

// Problem describes one unsatisfied requirement. Problems are warnings; they
// never stop a run.
type Problem struct {
	Requirement Requirement
	Kind        ProblemKind
	Installed   string
	Detail      string
}

func (p Problem) String() string {
	switch p.Kind {
	case Missing:
		return fmt.Sprintf("Missing package requirement: %s", p.Requirement)
	case Conflicting:
		return fmt.Sprintf("Conflicting package requirement: %s (installed: %s)", p.Requirement, p.Installed)
	default:
		return fmt.Sprintf("Can't check package requirement: %s (%s)", p.Requirement, p.Detail)
	}
}

// VersionLookup returns the installed version of each named distribution.
// Names that are not installed are absent from the result.
type VersionLookup func(ctx context.Context, names []string) (map[string]string, error)

// Checker compares requirements with installed packages.
type Checker struct {
	lookup VersionLookup
}

// NewChecker returns a Checker that asks the given Python interpreter for
// installed versions.
func NewChecker(python string) *Checker {
	return &Checker{lookup: PythonLookup(python)}
}

// NewCheckerWithLookup returns a Checker backed by a custom lookup.
func NewCheckerWithLookup(lookup VersionLookup) *Checker {
	return &Checker{lookup: lookup}
}

// CheckFile parses path and checks every requirement in it.
func (c *Checker) CheckFile(ctx context.Context, path string) ([]Problem, error) {
	reqs, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return c.Check(ctx, reqs)
}

// Check reports every requirement that is missing or whose installed version
// does not satisfy its specifier.
func (c *Checker) Check(ctx context.Context, reqs []Requirement) ([]Problem, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(reqs))
	for _, r := range reqs {
		names = append(names, r.Name)
	}
	installed, err := c.lookup(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("failed to look up installed packages: %w", err)
	}
	normalized := make(map[string]string, len(installed))
	for name, version := range installed {
		normalized[NormalizeName(name)] = version
	}

	var problems []Problem
	for _, req := range reqs {
		version, ok := normalized[NormalizeName(req.Name)]
		if !ok {
			problems = append(problems, Problem{Requirement: req, Kind: Missing})
			continue
		}
		if req.Constraint == nil {
			continue
		}
		v, err := semver.NewVersion(version)
		if err != nil {
			problems = append(problems, Problem{
				Requirement: req,
				Kind:        Unchecked,
				Installed:   version,
				Detail:      fmt.Sprintf("installed version %q is not comparable", version),
			})
			continue
		}
		if !req.Constraint.Check(v) {
			problems = append(problems, Problem{Requirement: req, Kind: Conflicting, Installed: version})
		}
	}
	logging.Debug("checked requirements", "count", len(reqs), "problems", len(problems))
	return problems, nil
}

const lookupScript = `import json, sys
from importlib import metadata
out = {}
for name in sys.argv[1:]:
    try:
        out[name] = metadata.version(name)
    except metadata.PackageNotFoundError:
        pass
print(json.dumps(out))
`

// PythonLookup queries installed distributions through importlib.metadata of
// the given interpreter.
func PythonLookup(python string) VersionLookup {
	return func(ctx context.Context, names []string) (map[string]string, error) {
		args := append([]string{"-c", lookupScript}, names...)
		out, err := exec.CommandContext(ctx, python, args...).Output()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", python, err)
		}
		versions := map[string]string{}
		if err := json.Unmarshal(out, &versions); err != nil {
			return nil, fmt.Errorf("unexpected output from %s: %w", python, err)
		}
		return versions, nil
	}
}
