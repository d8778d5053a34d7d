package project

import (
	"fmt"
	"strings"
)

// Validate checks command and workflow names. Duplicate command names are
// returned as warnings. A workflow named like a command, or a workflow step
// that names no command, is returned as a *SemanticError listing every problem.
func Validate(cfg *Config) ([]string, error) {
	var warnings []string

	counts := make(map[string]int, len(cfg.Commands))
	for _, cmd := range cfg.Commands {
		counts[cmd.Name]++
	}
	var duplicates []string
	for _, name := range cfg.CommandNames() {
		if counts[name] > 1 {
			duplicates = append(duplicates, name)
		}
	}
	if len(duplicates) > 0 {
		warnings = append(warnings, fmt.Sprintf("Duplicate commands defined in %s: %s",
			FileName, strings.Join(duplicates, ", ")))
	}

	var problems []string
	for _, wf := range cfg.WorkflowNames() {
		if counts[wf] > 0 {
			problems = append(problems,
				fmt.Sprintf("Can't use workflow name '%s': name already exists as a command", wf))
		}
		for _, step := range cfg.Workflows[wf] {
			if counts[step] == 0 {
				problems = append(problems, fmt.Sprintf(
					"Unknown command specified in workflow '%s': %s. "+
						"Workflows can only refer to commands defined in the 'commands' section of the %s",
					wf, step, FileName))
			}
		}
	}
	if len(problems) > 0 {
		return warnings, &SemanticError{Problems: problems}
	}
	return warnings, nil
}
