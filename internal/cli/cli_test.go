package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/dproject-io/dproject/internal/console"
	"github.com/dproject-io/dproject/internal/docs"
	"github.com/dproject-io/dproject/internal/engine"
	"github.com/dproject-io/dproject/internal/lockfile"
	"github.com/dproject-io/dproject/internal/project"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shellManifest = `title: Demo
vars:
  msg: hello
commands:
  - name: build
    help: Write the greeting
    script:
      - sh -c "echo ${vars.msg} > out.txt"
    outputs:
      - out.txt
  - name: publish
    help: Copy the greeting
    script:
      - sh -c "cp out.txt published.txt"
    deps:
      - out.txt
    outputs:
      - published.txt
  - name: crash
    script:
      - sh -c "exit 4"
workflows:
  all:
    - build
    - publish
`

func TestMain(m *testing.M) {
	console.SetColor(false)
	os.Exit(m.Run())
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("D_CONFIG_OVERRIDES", "")
	documentOutput, documentNoEmoji, documentLanguage = docs.Stdout, false, string(docs.Chinese)
	initForce = false
	lockDir = ""

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func newProject(t *testing.T, manifest string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, project.FileName), []byte(manifest), 0644))
	return dir
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestParseRunArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want runArgs
	}{
		{
			name: "name and dir",
			args: []string{"train", "proj"},
			want: runArgs{name: "train", projectDir: "proj"},
		},
		{
			name: "own flags",
			args: []string{"-D", "train", "--force", "--capture"},
			want: runArgs{name: "train", dry: true, force: true, capture: true},
		},
		{
			name: "help",
			args: []string{"train", "-h"},
			want: runArgs{name: "train", help: true},
		},
		{
			name: "overrides",
			args: []string{"train", "--vars.epochs", "20", "--vars.gpu=1", "--vars.flag", "--env.x", "-1", "proj"},
			want: runArgs{
				name:       "train",
				projectDir: "proj",
				overrides:  []string{"--vars.epochs", "20", "--vars.gpu=1", "--vars.flag", "--env.x", "-1"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRunArgs(tt.args, pflag.NewFlagSet("test", pflag.ContinueOnError))
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseRunArgsGlobalFlags(t *testing.T) {
	global := pflag.NewFlagSet("test", pflag.ContinueOnError)
	global.String("log-level", "info", "")
	global.Bool("no-color", false, "")

	got, err := parseRunArgs([]string{"train", "--log-level", "debug", "--no-color"}, global)
	require.NoError(t, err)
	assert.Equal(t, "train", got.name)
	assert.Empty(t, got.overrides)
	level, _ := global.GetString("log-level")
	assert.Equal(t, "debug", level)
	noColor, _ := global.GetBool("no-color")
	assert.True(t, noColor)

	_, err = parseRunArgs([]string{"train", "--log-level"}, global)
	assert.Error(t, err)
	_, err = parseRunArgs([]string{"a", "b", "c"}, global)
	assert.EqualError(t, err, `unexpected argument "c"`)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, 4, ExitCode(fmt.Errorf("wrapped: %w", &engine.ProcessError{ExitCode: 4})))
	assert.Equal(t, 1, ExitCode(&engine.ProcessError{ExitCode: -1}))
}

func TestRunCommandAndSkip(t *testing.T) {
	requireShell(t)
	dir := newProject(t, shellManifest)

	out, err := execute(t, "run", "all", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Running workflow 'all'")
	assert.Contains(t, out, "Running command: sh -c 'echo hello > out.txt'")
	content, err := os.ReadFile(filepath.Join(dir, "published.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(content))

	out, err = execute(t, "run", "all", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Skipping 'build': nothing changed")
	assert.Contains(t, out, "Skipping 'publish': nothing changed")
}

func TestRunOverrides(t *testing.T) {
	requireShell(t)
	dir := newProject(t, shellManifest)
	t.Setenv("D_CONFIG_OVERRIDES", "")

	_, err := execute(t, "run", "build", dir, "--vars.msg", "bonjour")
	require.NoError(t, err)
	content, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "bonjour\n", string(content))

	_, err = execute(t, "run", "build", dir, "--nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such option")
}

func TestRunFailurePassesExitCode(t *testing.T) {
	requireShell(t)
	dir := newProject(t, shellManifest)

	_, err := execute(t, "run", "crash", dir)
	require.Error(t, err)
	assert.Equal(t, 4, ExitCode(err))

	_, statErr := os.Stat(filepath.Join(dir, lockfile.FileName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunDry(t *testing.T) {
	dir := newProject(t, shellManifest)

	out, err := execute(t, "run", "publish", dir, "--dry")
	require.NoError(t, err)
	assert.Contains(t, out, "Missing dependency specified by command 'publish': out.txt")
	assert.Contains(t, out, "Running command: sh -c 'cp out.txt published.txt'")
	_, statErr := os.Stat(filepath.Join(dir, "published.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunUnknownName(t *testing.T) {
	dir := newProject(t, shellManifest)

	_, err := execute(t, "run", "deploy", dir)
	var unknown *engine.UnknownSubcommandError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, 1, ExitCode(err))
}

func TestRunHelp(t *testing.T) {
	dir := newProject(t, shellManifest)
	t.Chdir(dir)

	out, err := execute(t, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "commands in project.yml")
	assert.Contains(t, out, "dproject run build")
	assert.Contains(t, out, "Write the greeting")
	assert.Contains(t, out, "build -> publish")

	out, err = execute(t, "run", "all", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "build -> publish")
	assert.Contains(t, out, "Copy the greeting")
	assert.NotContains(t, out, "crash")
}

func TestInitAndValidate(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Created")
	assert.FileExists(t, filepath.Join(dir, project.FileName))

	_, err = execute(t, "init", dir)
	assert.ErrorContains(t, err, "already exists")

	out, err = execute(t, "validate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Checking project.yml... OK")
	assert.Contains(t, out, "Configuration is valid: 2 command(s), 1 workflow(s)")

	cfg, err := project.NewLoader(dir).Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"python scripts/command1.py demo"}, cfg.Commands[0].Script)
}

func TestValidateReportsErrorsAndOrderWarnings(t *testing.T) {
	dir := newProject(t, "commands:\n  - name: a\n    bogus: 1\n")
	out, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Contains(t, out, "FAILED")
	assert.ErrorIs(t, err, project.ErrManifestSchema)

	dir = newProject(t, `commands:
  - name: make
    outputs: [data]
  - name: use
    deps: [data/file.txt]
workflows:
  backwards: [use, make]
`)
	out, err = execute(t, "validate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Workflow 'backwards' runs 'use' before 'make'")
}

func TestStatus(t *testing.T) {
	requireShell(t)
	dir := newProject(t, shellManifest)

	out, err := execute(t, "status", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "3 of 3 command(s) would run")

	_, err = execute(t, "run", "build", dir)
	require.NoError(t, err)
	out, err = execute(t, "status", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")
	assert.Contains(t, out, "2 of 3 command(s) would run")
}

func TestLockCommands(t *testing.T) {
	requireShell(t)
	dir := newProject(t, shellManifest)
	_, err := execute(t, "run", "all", dir)
	require.NoError(t, err)

	out, err := execute(t, "lock", "list", "-C", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "build")
	assert.Contains(t, out, "publish")
	assert.Contains(t, out, "Total: 2 entries")

	out, err = execute(t, "lock", "show", "build", "-C", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "cmd: run build")
	assert.Contains(t, out, "path: out.txt")

	_, err = execute(t, "lock", "show", "nope", "-C", dir)
	assert.ErrorContains(t, err, "no entry for 'nope'")

	out, err = execute(t, "lock", "rm", "pub*", "-C", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed publish")

	lf, err := lockfile.NewManager(dir).Read()
	require.NoError(t, err)
	assert.Equal(t, []string{"build"}, lf.Names())

	out, err = execute(t, "lock", "rm", "zzz", "-C", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No matching entries")
}

func TestDocument(t *testing.T) {
	dir := newProject(t, shellManifest)
	readme := filepath.Join(dir, "README.md")

	_, err := execute(t, "document", dir, "-o", readme, "--lang", "en")
	require.NoError(t, err)
	content, err := os.ReadFile(readme)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Project: Demo")
	assert.Contains(t, string(content), "`build` &rarr; `publish`")

	out, err := execute(t, "document", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "项目: Demo")

	_, err = execute(t, "document", dir, "--lang", "fr")
	assert.Error(t, err)
}

func TestGraph(t *testing.T) {
	dir := newProject(t, shellManifest)

	out, err := execute(t, "graph", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "digraph dproject {")
	assert.Contains(t, out, `"build" -> "publish";`)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "dproject version dev")

	_, err = execute(t, "version", "extra")
	assert.Error(t, err)
}
