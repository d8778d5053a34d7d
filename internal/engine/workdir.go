package engine

import (
	"fmt"
	"os"

	"github.com/dproject-io/dproject/internal/logging"
)

// withWorkingDir runs fn with the process working directory set to dir and
// restores the previous directory on every exit path, including panics.
// Nested calls each restore the directory that was current when they started.
func withWorkingDir(dir string, fn func() error) (err error) {
	prev, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	if err := os.Chdir(dir); err != nil {
		return fmt.Errorf("failed to enter %s: %w", dir, err)
	}
	defer func() {
		if cerr := os.Chdir(prev); cerr != nil {
			logging.Error("failed to restore working directory", "path", prev, "error", cerr)
			if err == nil {
				err = fmt.Errorf("failed to restore working directory %s: %w", prev, cerr)
			}
		}
	}()
	return fn()
}
