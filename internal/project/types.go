// Package project loads, validates and interpolates project.yml manifests.
package project

import (
	"maps"
	"slices"
)

// FileName is the manifest file name inside a project directory.
const FileName = "project.yml"

// Config is a parsed project manifest.
type Config struct {
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Vars        map[string]any `yaml:"vars"`
	// Env maps a local name to an OS environment variable name in the raw
	// manifest; after interpolation it holds the decoded variable values.
	Env               map[string]any      `yaml:"env"`
	Directories       []string            `yaml:"directories"`
	Assets            any                 `yaml:"assets"`
	CheckRequirements *bool               `yaml:"check_requirements"`
	Commands          []*Command          `yaml:"commands"`
	Workflows         map[string][]string `yaml:"workflows"`

	// WorkflowOrder lists workflow names in declaration order.
	WorkflowOrder []string `yaml:"-"`
	// Warnings holds non-fatal problems found while validating.
	Warnings []string `yaml:"-"`
}

// Command is a named, ordered list of script lines with tracked paths.
type Command struct {
	Name           string   `yaml:"name"`
	Help           string   `yaml:"help"`
	Script         []string `yaml:"script"`
	Deps           []string `yaml:"deps"`
	Outputs        []string `yaml:"outputs"`
	OutputsNoCache []string `yaml:"outputs_no_cache"`
	NoSkip         bool     `yaml:"no_skip"`
}

// AllOutputs returns outputs followed by outputs_no_cache.
func (c *Command) AllOutputs() []string {
	outs := make([]string, 0, len(c.Outputs)+len(c.OutputsNoCache))
	outs = append(outs, c.Outputs...)
	return append(outs, c.OutputsNoCache...)
}

// ShouldCheckRequirements reports whether requirements.txt is checked before
// running. It defaults to true.
func (c *Config) ShouldCheckRequirements() bool {
	return c.CheckRequirements == nil || *c.CheckRequirements
}

// Command returns the command with the given name. When a name is declared
// more than once the last declaration wins.
func (c *Config) Command(name string) (*Command, bool) {
	for i := len(c.Commands) - 1; i >= 0; i-- {
		if c.Commands[i].Name == name {
			return c.Commands[i], true
		}
	}
	return nil, false
}

// CommandNames returns command names in declaration order without duplicates.
func (c *Config) CommandNames() []string {
	seen := make(map[string]bool, len(c.Commands))
	names := make([]string, 0, len(c.Commands))
	for _, cmd := range c.Commands {
		if seen[cmd.Name] {
			continue
		}
		seen[cmd.Name] = true
		names = append(names, cmd.Name)
	}
	return names
}

// WorkflowNames returns workflow names in declaration order.
func (c *Config) WorkflowNames() []string {
	if len(c.WorkflowOrder) == len(c.Workflows) {
		return c.WorkflowOrder
	}
	names := make([]string, 0, len(c.Workflows))
	seen := make(map[string]bool, len(c.Workflows))
	for _, name := range c.WorkflowOrder {
		if _, ok := c.Workflows[name]; ok && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(c.Workflows)) {
		if !seen[name] {
			names = append(names, name)
		}
	}
	return names
}
