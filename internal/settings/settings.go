// Package settings holds configuration for the dproject tool itself (as opposed
// to the project manifest), read from command-line flags and D_* environment
// variables.
package settings

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "D"

// Keys understood by Load.
const (
	KeyLogLevel    = "log-level"
	KeyPython      = "python"
	KeyNoColor     = "no-color"
	KeyLockTimeout = "lock-timeout"
)

// DefaultLockTimeout bounds how long a run waits for the lockfile lock.
const DefaultLockTimeout = 30 * time.Second

// Settings is the resolved tool configuration.
type Settings struct {
	LogLevel    string
	Python      string
	NoColor     bool
	LockTimeout time.Duration
}

// New returns a viper instance with defaults and environment binding set up.
// D_LOG_LEVEL, D_PYTHON and D_LOCK_TIMEOUT are read from the environment; NO_COLOR
// follows the no-color.org convention.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLockTimeout, DefaultLockTimeout)
	v.SetDefault(KeyNoColor, false)
	_ = v.BindEnv(KeyLogLevel, "D_LOG_LEVEL")
	_ = v.BindEnv(KeyPython, "D_PYTHON")
	_ = v.BindEnv(KeyLockTimeout, "D_LOCK_TIMEOUT")
	_ = v.BindEnv(KeyNoColor, "NO_COLOR")
	return v
}

// BindFlags registers persistent flags and binds them to v.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	flags.String(KeyLogLevel, "info", "Log level (debug, info, warn, error)")
	flags.String(KeyPython, "", "Python interpreter used for python/pip script lines")
	flags.Bool(KeyNoColor, false, "Disable colored output")
	flags.Duration(KeyLockTimeout, DefaultLockTimeout, "How long to wait for the lockfile lock")
	for _, key := range []string{KeyLogLevel, KeyPython, KeyNoColor, KeyLockTimeout} {
		if err := v.BindPFlag(key, flags.Lookup(key)); err != nil {
			return err
		}
	}
	return nil
}

// Load resolves the settings from v.
func Load(v *viper.Viper) Settings {
	s := Settings{
		LogLevel:    v.GetString(KeyLogLevel),
		Python:      v.GetString(KeyPython),
		NoColor:     v.GetBool(KeyNoColor) || os.Getenv("NO_COLOR") != "",
		LockTimeout: v.GetDuration(KeyLockTimeout),
	}
	if s.LockTimeout <= 0 {
		s.LockTimeout = DefaultLockTimeout
	}
	if s.Python == "" {
		s.Python = DetectPython()
	}
	return s
}

// DetectPython picks the interpreter that python/pip script lines are pinned to:
// the active virtualenv's interpreter if there is one, then python3 or python
// from PATH.
func DetectPython() string {
	if venv := os.Getenv("VIRTUAL_ENV"); venv != "" {
		bin := "bin"
		name := "python"
		if runtime.GOOS == "windows" {
			bin = "Scripts"
			name = "python.exe"
		}
		candidate := filepath.Join(venv, bin, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	for _, name := range []string{"python3", "python"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return "python"
}
