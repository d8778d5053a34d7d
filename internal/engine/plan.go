package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/dproject-io/dproject/internal/checksum"
	"github.com/dproject-io/dproject/internal/lockfile"
	"github.com/dproject-io/dproject/internal/logging"
	"github.com/dproject-io/dproject/internal/project"
)

// Rerun reasons reported by RerunReason.
const (
	ReasonNoSkip       = "no_skip is set"
	ReasonNoLockfile   = "no lockfile yet"
	ReasonNoEntry      = "never run"
	ReasonNoOutputs    = "no outputs declared"
	ReasonChanged      = "inputs, outputs or script changed"
	ReasonUpToDate     = "nothing changed"
	ReasonMissingInput = "missing dependency"
)

// BuildLockEntry computes the lock entry of cmd from the current state of the
// project directory.
func BuildLockEntry(projectDir string, cmd *project.Command) (*lockfile.Entry, error) {
	deps, err := fileInfos(projectDir, cmd.Deps)
	if err != nil {
		return nil, err
	}
	outs, err := fileInfos(projectDir, cmd.AllOutputs())
	if err != nil {
		return nil, err
	}
	entry := &lockfile.Entry{
		Cmd:    "run " + cmd.Name,
		Script: slices.Clone(cmd.Script),
		Deps:   deps,
		Outs:   outs,
	}
	return entry.Normalize(), nil
}

func fileInfos(projectDir string, paths []string) ([]lockfile.FileInfo, error) {
	infos := make([]lockfile.FileInfo, 0, len(paths))
	for _, p := range paths {
		sum, err := checksum.Path(filepath.Join(projectDir, p))
		if err != nil {
			return nil, err
		}
		infos = append(infos, lockfile.FileInfo{Path: p, MD5: sum})
	}
	return infos, nil
}

// ShouldRerun decides whether cmd has to run. lock is the lockfile as read
// from disk, nil when there is none.
func ShouldRerun(projectDir string, cmd *project.Command, lock lockfile.Lockfile) (bool, error) {
	rerun, _, err := RerunReason(projectDir, cmd, lock)
	return rerun, err
}

// RerunReason is ShouldRerun with a short explanation of the decision.
func RerunReason(projectDir string, cmd *project.Command, lock lockfile.Lockfile) (bool, string, error) {
	if cmd.NoSkip {
		return true, ReasonNoSkip, nil
	}
	if lock == nil {
		return true, ReasonNoLockfile, nil
	}
	stored, ok := lock[cmd.Name]
	if !ok || stored == nil {
		return true, ReasonNoEntry, nil
	}
	if len(stored.Outs) == 0 {
		return true, ReasonNoOutputs, nil
	}

	fresh, err := BuildLockEntry(projectDir, cmd)
	if err != nil {
		return false, "", err
	}
	freshHash, err := checksum.Canonical(fresh)
	if err != nil {
		return false, "", err
	}
	storedHash, err := checksum.Canonical(stored.Normalize())
	if err != nil {
		return false, "", err
	}
	logging.Debug("compared lock entries", "command", cmd.Name, "fresh", freshHash, "stored", storedHash)
	if freshHash != storedHash {
		return true, ReasonChanged, nil
	}
	return false, ReasonUpToDate, nil
}

// UpdateLockfile records a fresh lock entry for cmd, replacing the previous
// one, and rewrites the whole lockfile.
func UpdateLockfile(ctx context.Context, projectDir string, cmd *project.Command, mgr *lockfile.Manager) error {
	entry, err := BuildLockEntry(projectDir, cmd)
	if err != nil {
		return fmt.Errorf("failed to build lock entry for '%s': %w", cmd.Name, err)
	}
	if err := mgr.Put(ctx, cmd.Name, entry); err != nil {
		return err
	}
	logging.Debug("updated lockfile", "command", cmd.Name, "path", mgr.Path())
	return nil
}

// CommandStatus is the rerun decision for one command without running it.
type CommandStatus struct {
	Name    string
	Rerun   bool
	Reason  string
	Missing []string
}

// Status reports, for every command of cfg in declaration order, whether the
// next run would execute it. It reads the lockfile and the filesystem only.
func Status(projectDir string, cfg *project.Config, mgr *lockfile.Manager) ([]CommandStatus, error) {
	lock, err := mgr.Read()
	if err != nil {
		return nil, err
	}

	statuses := make([]CommandStatus, 0, len(cfg.Commands))
	for _, name := range cfg.CommandNames() {
		cmd, _ := cfg.Command(name)
		status := CommandStatus{Name: name, Missing: missingDeps(projectDir, cmd)}
		rerun, reason, err := RerunReason(projectDir, cmd, lock)
		if err != nil {
			return nil, fmt.Errorf("failed to check '%s': %w", name, err)
		}
		status.Rerun, status.Reason = rerun, reason
		if len(status.Missing) > 0 {
			status.Reason = ReasonMissingInput
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
