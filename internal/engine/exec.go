package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

// Runner starts a script line and waits for it to exit.
type Runner interface {
	// Run executes argv. With capture set, stdout and stderr are collected and
	// returned; otherwise the child shares the caller's stdio. A non-zero exit
	// is reported as a *ProcessError.
	Run(ctx context.Context, argv []string, capture bool) ([]byte, error)
}

// ExecRunner runs script lines as child processes that inherit the current
// environment and working directory.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, argv []string, capture bool) ([]byte, error) {
	if len(argv) == 0 {
		return nil, nil
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = os.Environ()

	var out bytes.Buffer
	if capture {
		cmd.Stdout = &out
		cmd.Stderr = &out
	} else {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	err := cmd.Run()
	if err == nil {
		return out.Bytes(), nil
	}
	line := joinCommand(argv)
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out.Bytes(), &ProcessError{Command: line, ExitCode: exitErr.ExitCode(), Output: out.Bytes()}
	}
	return out.Bytes(), &ProcessError{Command: line, ExitCode: 1, Output: out.Bytes(), Err: err}
}

// Rewriter maps the first word of a script line onto a replacement command.
// The default rules pin python and pip to one interpreter so that scripts run
// under the same environment as the rest of the project.
type Rewriter struct {
	rules map[string][]string
}

// NewRewriter returns the default rule table for the given interpreter.
func NewRewriter(python string) *Rewriter {
	r := &Rewriter{rules: map[string][]string{}}
	if python == "" {
		return r
	}
	r.Add("python", python)
	r.Add("python3", python)
	r.Add("pip", python, "-m", "pip")
	r.Add("pip3", python, "-m", "pip")
	return r
}

// Add registers or replaces the rule for alias.
func (r *Rewriter) Add(alias string, replacement ...string) {
	r.rules[alias] = replacement
}

// Remove drops the rule for alias.
func (r *Rewriter) Remove(alias string) {
	delete(r.rules, alias)
}

// Rewrite returns argv with its first word replaced when a rule matches.
func (r *Rewriter) Rewrite(argv []string) []string {
	if r == nil || len(argv) == 0 {
		return argv
	}
	replacement, ok := r.rules[argv[0]]
	if !ok {
		return argv
	}
	out := make([]string, 0, len(replacement)+len(argv)-1)
	out = append(out, replacement...)
	return append(out, argv[1:]...)
}

// splitCommand splits a script line into words using shell quoting rules.
// Variables are not expanded and no shell is involved.
func splitCommand(line string) ([]string, error) {
	argv, err := shellwords.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("can't split script line %q: %w", line, err)
	}
	return argv, nil
}

// joinCommand renders argv for display, quoting words that need it.
func joinCommand(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = quoteArg(arg)
	}
	return strings.Join(quoted, " ")
}

func quoteArg(arg string) string {
	if arg == "" {
		return "''"
	}
	if !strings.ContainsAny(arg, " \t\n'\"\\$`|&;<>()*?[]{}!#~") {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'"'"'`) + "'"
}
