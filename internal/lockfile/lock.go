package lockfile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// DefaultLockTimeout bounds how long Update waits for another process to
// release the lockfile.
const DefaultLockTimeout = 30 * time.Second

const lockRetryDelay = 100 * time.Millisecond

var ErrLocked = errors.New("lockfile is locked by another process")

// Lock acquires the advisory lock guarding the lockfile. The returned function
// releases it.
func (m *Manager) Lock(ctx context.Context) (func() error, error) {
	ctx, cancel := context.WithTimeout(ctx, m.lockTimeout)
	defer cancel()

	fl := flock.New(m.lockPath())
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w (lock file: %s, waited %s)", ErrLocked, m.lockPath(), m.lockTimeout)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", m.lockPath(), err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock file: %s)", ErrLocked, m.lockPath())
	}
	return fl.Unlock, nil
}

func (m *Manager) lockPath() string {
	return m.path + ".lock"
}
