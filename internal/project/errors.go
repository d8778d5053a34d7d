package project

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrManifestNotFound = errors.New("manifest not found")
	ErrManifestParse    = errors.New("manifest is not valid YAML")
	ErrManifestSchema   = errors.New("manifest does not match the schema")
	ErrManifestSemantic = errors.New("manifest has inconsistent commands or workflows")
)

// ParseError is returned when the manifest is not a well-formed YAML mapping.
type ParseError struct {
	Path   string
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid %s at line %d, column %d: %s. Double-check that the YAML is correct",
			e.Path, e.Line, e.Column, e.Msg)
	}
	return fmt.Sprintf("invalid %s: %s. Double-check that the YAML is correct", e.Path, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrManifestParse }

// Issue groups every schema message reported for one field path.
type Issue struct {
	Path     string
	Messages []string
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s", i.Path, strings.Join(i.Messages, ", "))
}

// SchemaError carries all schema issues found in the manifest.
type SchemaError struct {
	Path   string
	Issues []Issue
}

func (e *SchemaError) Error() string {
	lines := make([]string, 0, len(e.Issues)+1)
	lines = append(lines, fmt.Sprintf("invalid %s:", e.Path))
	for _, issue := range e.Issues {
		lines = append(lines, issue.String())
	}
	return strings.Join(lines, "\n")
}

func (e *SchemaError) Unwrap() error { return ErrManifestSchema }

// SemanticError lists name collisions and workflow steps that do not resolve.
type SemanticError struct {
	Problems []string
}

func (e *SemanticError) Error() string {
	return strings.Join(e.Problems, "\n")
}

func (e *SemanticError) Unwrap() error { return ErrManifestSemantic }
