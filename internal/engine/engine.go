package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dproject-io/dproject/internal/console"
	"github.com/dproject-io/dproject/internal/interp"
	"github.com/dproject-io/dproject/internal/lockfile"
	"github.com/dproject-io/dproject/internal/logging"
	"github.com/dproject-io/dproject/internal/overrides"
	"github.com/dproject-io/dproject/internal/project"
	"github.com/dproject-io/dproject/internal/requirements"
)

// Event represents a progress event during a run.
type Event struct {
	Name     string
	Kind     Kind
	Status   string // "started", "skipped", "completed", "failed"
	Duration time.Duration
	Error    error
}

// EventCallback is called for each run event if set.
type EventCallback func(event Event)

// RequirementsChecker checks a requirements file and reports problems.
type RequirementsChecker interface {
	CheckFile(ctx context.Context, path string) ([]requirements.Problem, error)
}

// Engine runs the commands and workflows of a project.
type Engine struct {
	Runner       Runner
	Rewriter     *Rewriter
	Out          io.Writer
	LockTimeout  time.Duration
	Requirements RequirementsChecker
	LookupEnv    interp.LookupFunc
	OnEvent      EventCallback
}

// NewEngine returns an engine that runs script lines as child processes with
// python and pip pinned to the given interpreter.
func NewEngine(python string) *Engine {
	return &Engine{
		Runner:       ExecRunner{},
		Rewriter:     NewRewriter(python),
		Out:          os.Stdout,
		LockTimeout:  lockfile.DefaultLockTimeout,
		Requirements: requirements.NewChecker(python),
	}
}

// RunOptions controls a single Run.
type RunOptions struct {
	Overrides overrides.Overrides
	// Force runs commands even when nothing changed.
	Force bool
	// Dry prints script lines without running them and leaves the lockfile alone.
	Dry bool
	// Capture collects child output instead of sharing the terminal.
	Capture bool
}

// run carries the state shared by the nested calls of one top-level Run.
type run struct {
	projectDir string
	opts       RunOptions
	log        *slog.Logger
	lock       *lockfile.Manager
	workflows  []string
	checkedReq bool
}

// Run executes the command or workflow called name in projectDir.
func (e *Engine) Run(ctx context.Context, projectDir, name string, opts RunOptions) error {
	dir, err := filepath.Abs(projectDir)
	if err != nil {
		return fmt.Errorf("failed to resolve project directory: %w", err)
	}
	log, runID := logging.WithRunID()
	log = log.With("project", dir)
	log.Debug("starting run", "name", name, "force", opts.Force, "dry", opts.Dry)

	r := &run{
		projectDir: dir,
		opts:       opts,
		log:        log,
		lock:       lockfile.NewManager(dir).WithLockTimeout(e.lockTimeout()),
	}
	err = e.run(ctx, r, name, true)
	log.Debug("finished run", "name", name, "run_id", runID, "error", err)
	return err
}

func (e *Engine) run(ctx context.Context, r *run, name string, top bool) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run cancelled: %w", err)
	}

	loader := project.NewLoader(r.projectDir)
	if e.LookupEnv != nil {
		loader = loader.WithLookupEnv(e.LookupEnv)
	}
	cfg, err := loader.Load(r.opts.Overrides)
	if err != nil {
		return err
	}
	if top {
		for _, w := range cfg.Warnings {
			e.printf("%s\n", console.FormatWarningMessage(w))
		}
	}

	kind, err := ResolveName(cfg, name)
	if err != nil {
		return err
	}

	if !r.checkedReq {
		r.checkedReq = true
		e.checkRequirements(ctx, r, cfg)
	}

	if kind == KindWorkflow {
		return e.runWorkflow(ctx, r, cfg, name)
	}
	cmd, _ := cfg.Command(name)
	return e.runCommand(ctx, r, cmd)
}

func (e *Engine) runWorkflow(ctx context.Context, r *run, cfg *project.Config, name string) error {
	if slices.Contains(r.workflows, name) {
		return fmt.Errorf("%w: %s", ErrWorkflowCycle, strings.Join(append(slices.Clone(r.workflows), name), " -> "))
	}
	if _, err := Expand(cfg, name); err != nil {
		return err
	}
	r.workflows = append(r.workflows, name)
	defer func() { r.workflows = r.workflows[:len(r.workflows)-1] }()

	e.printf("%s\n", console.FormatInfoMessage(fmt.Sprintf("Running workflow '%s'", name)))
	start := time.Now()
	e.emit(Event{Name: name, Kind: KindWorkflow, Status: "started"})
	for _, step := range cfg.Workflows[name] {
		if err := e.run(ctx, r, step, false); err != nil {
			e.emit(Event{Name: name, Kind: KindWorkflow, Status: "failed", Duration: time.Since(start), Error: err})
			return err
		}
	}
	e.emit(Event{Name: name, Kind: KindWorkflow, Status: "completed", Duration: time.Since(start)})
	return nil
}

func (e *Engine) runCommand(ctx context.Context, r *run, cmd *project.Command) error {
	for _, dep := range missingDeps(r.projectDir, cmd) {
		depErr := &MissingDependencyError{Command: cmd.Name, Path: dep}
		if !r.opts.Dry {
			return depErr
		}
		e.printf("%s\n", console.FormatWarningMessage(depErr.Error()))
	}

	return withWorkingDir(r.projectDir, func() error {
		lock, err := r.lock.Read()
		if err != nil {
			return err
		}
		rerun, reason, err := RerunReason(r.projectDir, cmd, lock)
		if err != nil {
			return fmt.Errorf("failed to check '%s': %w", cmd.Name, err)
		}
		r.log.Debug("rerun decision", "command", cmd.Name, "rerun", rerun, "reason", reason, "force", r.opts.Force)
		if !rerun && !r.opts.Force {
			e.printf("%s\n", console.FormatInfoMessage(fmt.Sprintf("Skipping '%s': nothing changed", cmd.Name)))
			e.emit(Event{Name: cmd.Name, Kind: KindCommand, Status: "skipped"})
			return nil
		}

		e.printf("%s\n", console.Rule(cmd.Name, 0))
		start := time.Now()
		e.emit(Event{Name: cmd.Name, Kind: KindCommand, Status: "started"})
		if err := e.runScript(ctx, r, cmd); err != nil {
			e.emit(Event{Name: cmd.Name, Kind: KindCommand, Status: "failed", Duration: time.Since(start), Error: err})
			return err
		}
		if !r.opts.Dry {
			if err := UpdateLockfile(ctx, r.projectDir, cmd, r.lock); err != nil {
				return err
			}
		}
		e.emit(Event{Name: cmd.Name, Kind: KindCommand, Status: "completed", Duration: time.Since(start)})
		return nil
	})
}

func (e *Engine) runScript(ctx context.Context, r *run, cmd *project.Command) error {
	runner := e.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	for _, line := range cmd.Script {
		argv, err := splitCommand(line)
		if err != nil {
			return err
		}
		argv = e.Rewriter.Rewrite(argv)
		if len(argv) == 0 {
			continue
		}
		joined := joinCommand(argv)
		e.printf("%s\n", console.FormatCommandMessage("Running command: "+joined))
		if r.opts.Dry {
			continue
		}
		r.log.Debug("running script line", "command", cmd.Name, "argv", argv)
		out, err := runner.Run(ctx, argv, r.opts.Capture)
		if r.opts.Capture && len(out) > 0 {
			e.printf("%s", out)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) checkRequirements(ctx context.Context, r *run, cfg *project.Config) {
	if !cfg.ShouldCheckRequirements() || e.Requirements == nil {
		return
	}
	path := filepath.Join(r.projectDir, requirements.FileName)
	if _, err := os.Stat(path); err != nil {
		return
	}
	problems, err := e.Requirements.CheckFile(ctx, path)
	if err != nil {
		r.log.Debug("requirements check failed", "error", err)
		e.printf("%s\n", console.FormatWarningMessage(fmt.Sprintf("Could not check %s: %v", requirements.FileName, err)))
		return
	}
	for _, p := range problems {
		e.printf("%s\n", console.FormatWarningMessage(p.String()))
	}
}

// missingDeps returns the declared dependencies of cmd that do not exist under
// projectDir.
func missingDeps(projectDir string, cmd *project.Command) []string {
	var missing []string
	for _, dep := range cmd.Deps {
		if _, err := os.Stat(filepath.Join(projectDir, dep)); errors.Is(err, os.ErrNotExist) {
			missing = append(missing, dep)
		}
	}
	return missing
}

func (e *Engine) lockTimeout() time.Duration {
	if e.LockTimeout > 0 {
		return e.LockTimeout
	}
	return lockfile.DefaultLockTimeout
}

func (e *Engine) emit(event Event) {
	if e.OnEvent != nil {
		e.OnEvent(event)
	}
}

func (e *Engine) printf(format string, args ...any) {
	out := e.Out
	if out == nil {
		out = io.Discard
	}
	fmt.Fprintf(out, format, args...)
}
