package engine

import (
	"fmt"
	"strings"

	"github.com/dproject-io/dproject/internal/project"
)

// Kind tells whether a name refers to a command or a workflow.
type Kind int

const (
	KindCommand Kind = iota + 1
	KindWorkflow
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindWorkflow:
		return "workflow"
	default:
		return "unknown"
	}
}

// ResolveName looks name up among the commands and workflows of cfg.
func ResolveName(cfg *project.Config, name string) (Kind, error) {
	if _, ok := cfg.Command(name); ok {
		return KindCommand, nil
	}
	if _, ok := cfg.Workflows[name]; ok {
		return KindWorkflow, nil
	}
	return 0, &UnknownSubcommandError{
		Name:      name,
		Commands:  cfg.CommandNames(),
		Workflows: cfg.WorkflowNames(),
	}
}

// Expand resolves name to the ordered list of commands it runs. A command
// expands to itself. Every step is resolved before anything is returned, and a
// workflow that reaches itself again fails with ErrWorkflowCycle.
func Expand(cfg *project.Config, name string) ([]string, error) {
	return expand(cfg, name, nil)
}

func expand(cfg *project.Config, name string, stack []string) ([]string, error) {
	kind, err := ResolveName(cfg, name)
	if err != nil {
		return nil, err
	}
	if kind == KindCommand {
		return []string{name}, nil
	}

	for _, active := range stack {
		if active == name {
			return nil, fmt.Errorf("%w: %s", ErrWorkflowCycle, strings.Join(append(stack, name), " -> "))
		}
	}
	stack = append(stack, name)

	var commands []string
	for _, step := range cfg.Workflows[name] {
		sub, err := expand(cfg, step, stack)
		if err != nil {
			return nil, err
		}
		commands = append(commands, sub...)
	}
	return commands, nil
}
