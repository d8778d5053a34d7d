// Package requirements checks a pip requirements.txt file against the
// packages installed for the project's Python interpreter.
package requirements

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// FileName is the requirements listing looked up in the project root.
const FileName = "requirements.txt"

// Requirement is one parsed line of a requirements file.
type Requirement struct {
	Name       string
	Specifier  string
	Constraint *semver.Constraints
	Line       int
}

func (r Requirement) String() string {
	return r.Name + r.Specifier
}

var (
	linePattern = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)\s*(\[[^\]]*\])?\s*(.*)$`)
	specPattern = regexp.MustCompile(`^(===|==|!=|~=|>=|<=|>|<)\s*([^\s]+)$`)
	nameSep     = regexp.MustCompile(`[-_.]+`)
)

// NormalizeName lowercases a distribution name and collapses separators.
func NormalizeName(name string) string {
	return nameSep.ReplaceAllString(strings.ToLower(name), "-")
}

// ParseFile parses the requirements file at path.
func ParseFile(path string) ([]Requirement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads requirement lines. Comments, blank lines, pip options (-r, -e,
// --index-url, ...) and URL or path requirements are skipped. Environment
// markers after ";" are ignored.
func Parse(r io.Reader) ([]Requirement, error) {
	var reqs []Requirement
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		if i := strings.Index(line, ";"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "-") || strings.Contains(line, "://") ||
			strings.HasPrefix(line, ".") || strings.HasPrefix(line, "/") || strings.Contains(line, " @ ") {
			continue
		}

		m := linePattern.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("line %d: invalid requirement %q", lineNo, line)
		}
		req := Requirement{Name: m[1], Specifier: strings.ReplaceAll(m[3], " ", ""), Line: lineNo}
		if req.Specifier != "" {
			c, err := toConstraint(req.Specifier)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid version specifier %q: %w", lineNo, req.Specifier, err)
			}
			req.Constraint = c
		}
		reqs = append(reqs, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return reqs, nil
}

// toConstraint translates a PEP 440 specifier list into a semver constraint.
func toConstraint(spec string) (*semver.Constraints, error) {
	var parts []string
	for _, clause := range strings.Split(spec, ",") {
		m := specPattern.FindStringSubmatch(clause)
		if m == nil {
			return nil, fmt.Errorf("unsupported clause %q", clause)
		}
		op, version := m[1], m[2]
		switch op {
		case "===", "==":
			parts = append(parts, "="+version)
		case "~=":
			upper, err := compatibleUpperBound(version)
			if err != nil {
				return nil, err
			}
			parts = append(parts, ">="+version, "<"+upper)
		default:
			parts = append(parts, op+version)
		}
	}
	return semver.NewConstraint(strings.Join(parts, ", "))
}

// compatibleUpperBound returns the exclusive upper bound of "~=version": the
// last release segment is dropped and the one before it incremented.
func compatibleUpperBound(version string) (string, error) {
	segments := strings.Split(version, ".")
	if len(segments) < 2 {
		return "", fmt.Errorf("~= needs at least two release segments, got %q", version)
	}
	prefix := segments[:len(segments)-1]
	v, err := semver.NewVersion(strings.Join(prefix, "."))
	if err != nil {
		return "", err
	}
	switch len(prefix) {
	case 1:
		return v.IncMajor().String(), nil
	case 2:
		return v.IncMinor().String(), nil
	default:
		return v.IncPatch().String(), nil
	}
}
