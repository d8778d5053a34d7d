// Package lockfile reads and writes project.lock, the record of the last
// successful run of every command.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/dproject-io/dproject/internal/logging"
	"github.com/goccy/go-yaml"
)

// FileName is the lockfile name inside a project directory.
const FileName = "project.lock"

const header = "# Generated by dproject. Entries are rewritten after every successful run.\n"

// FileInfo records the digest of a path. A nil MD5 means the path did not exist.
type FileInfo struct {
	Path string  `yaml:"path" json:"path"`
	MD5  *string `yaml:"md5" json:"md5"`
}

// Entry is the lock record of one command.
type Entry struct {
	Cmd    string     `yaml:"cmd" json:"cmd"`
	Script []string   `yaml:"script" json:"script"`
	Deps   []FileInfo `yaml:"deps" json:"deps"`
	Outs   []FileInfo `yaml:"outs" json:"outs"`
}

// Normalize replaces nil lists with empty ones so that an entry read back from
// disk compares equal to the entry that was written.
func (e *Entry) Normalize() *Entry {
	if e.Script == nil {
		e.Script = []string{}
	}
	if e.Deps == nil {
		e.Deps = []FileInfo{}
	}
	if e.Outs == nil {
		e.Outs = []FileInfo{}
	}
	return e
}

// Lockfile maps command names to their lock entries.
type Lockfile map[string]*Entry

// Names returns the command names in sorted order.
func (l Lockfile) Names() []string {
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Manager handles reading and writing of the lockfile of one project.
type Manager struct {
	path        string
	lockTimeout time.Duration
}

func NewManager(projectDir string) *Manager {
	return &Manager{
		path:        filepath.Join(projectDir, FileName),
		lockTimeout: DefaultLockTimeout,
	}
}

// WithLockTimeout sets how long Update waits for the advisory lock.
func (m *Manager) WithLockTimeout(d time.Duration) *Manager {
	if d > 0 {
		m.lockTimeout = d
	}
	return m
}

// Path returns the lockfile path.
func (m *Manager) Path() string {
	return m.path
}

// Read loads the lockfile. It returns nil and no error when the file does not
// exist yet.
func (m *Manager) Read() (Lockfile, error) {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read lockfile %s: %w", m.path, err)
	}

	lf := Lockfile{}
	if err := yaml.Unmarshal(raw, &lf); err != nil {
		return nil, fmt.Errorf("failed to parse lockfile %s: %w", m.path, err)
	}
	for name, entry := range lf {
		if entry == nil {
			delete(lf, name)
			continue
		}
		entry.Normalize()
	}
	return lf, nil
}

// Write replaces the lockfile with lf. The content is written to a temporary
// file in the same directory and renamed into place.
//
// Entries are encoded in JSON style, which is still YAML but quotes every
// string, so script lines such as "yes", ".inf" or ones holding a tab read
// back unchanged.
func (m *Manager) Write(lf Lockfile) error {
	content, err := yaml.MarshalWithOptions(lf, yaml.JSON())
	if err != nil {
		return fmt.Errorf("failed to encode lockfile: %w", err)
	}

	dir := filepath.Dir(m.path)
	tmp, err := os.CreateTemp(dir, "."+FileName+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary lockfile: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(header); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write lockfile: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write lockfile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write lockfile: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to set lockfile permissions: %w", err)
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		return fmt.Errorf("failed to write lockfile %s: %w", m.path, err)
	}

	logging.Debug("wrote lockfile", "path", m.path, "entries", len(lf))
	return nil
}

// errSkipWrite lets an Update callback leave the lockfile untouched.
var errSkipWrite = errors.New("skip write")

// Update runs fn on the current lockfile while holding the advisory lock and
// writes the result back. fn receives an empty map when no lockfile exists.
func (m *Manager) Update(ctx context.Context, fn func(Lockfile) error) error {
	unlock, err := m.Lock(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(); err != nil {
			logging.Warn("failed to release lockfile lock", "path", m.lockPath(), "error", err)
		}
	}()

	lf, err := m.Read()
	if err != nil {
		return err
	}
	if lf == nil {
		lf = Lockfile{}
	}
	if err := fn(lf); err != nil {
		if errors.Is(err, errSkipWrite) {
			return nil
		}
		return err
	}
	return m.Write(lf)
}

// Put stores entry under name, replacing any previous entry.
func (m *Manager) Put(ctx context.Context, name string, entry *Entry) error {
	return m.Update(ctx, func(lf Lockfile) error {
		lf[name] = entry
		return nil
	})
}

// Remove deletes the entry for name. It reports whether an entry existed.
func (m *Manager) Remove(ctx context.Context, name string) (bool, error) {
	found := false
	err := m.Update(ctx, func(lf Lockfile) error {
		if _, ok := lf[name]; !ok {
			return errSkipWrite
		}
		found = true
		delete(lf, name)
		return nil
	})
	return found, err
}
