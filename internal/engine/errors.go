package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dproject-io/dproject/internal/project"
)

// ErrWorkflowCycle is returned when a workflow is reached again while it is
// still being expanded.
var ErrWorkflowCycle = errors.New("workflow cycle detected")

// UnknownSubcommandError is returned when a name matches no command or workflow.
type UnknownSubcommandError struct {
	Name      string
	Commands  []string
	Workflows []string
}

func (e *UnknownSubcommandError) Error() string {
	if len(e.Commands) == 0 && len(e.Workflows) == 0 {
		return fmt.Sprintf("No commands or workflows defined in %s", project.FileName)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Can't find command or workflow '%s' in %s.", e.Name, project.FileName)
	if len(e.Commands) > 0 {
		fmt.Fprintf(&b, " Available commands: %s.", strings.Join(e.Commands, ", "))
	}
	if len(e.Workflows) > 0 {
		fmt.Fprintf(&b, " Available workflows: %s.", strings.Join(e.Workflows, ", "))
	}
	return b.String()
}

// MissingDependencyError is returned when a declared dependency does not exist.
type MissingDependencyError struct {
	Command string
	Path    string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("Missing dependency specified by command '%s': %s. "+
		"Maybe you forgot to fetch the project assets or to run a previous step?", e.Command, e.Path)
}

// ProcessError is returned when a script line exits with a non-zero status or
// cannot be started.
type ProcessError struct {
	Command  string
	ExitCode int
	// Output holds the combined stdout and stderr when the run was captured.
	Output []byte
	// Err is set when the process could not be started.
	Err error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to run '%s': %v", e.Command, e.Err)
	}
	return fmt.Sprintf("command '%s' exited with status %d", e.Command, e.ExitCode)
}

func (e *ProcessError) Unwrap() error { return e.Err }
