// Package lock enforces the single-evaluator invariant across processes.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrHeld is returned when another process holds the lock.
var ErrHeld = errors.New("another evaluator instance holds the lock")

// Guard is an OS advisory lock scoped to the open file handle. The lock
// file itself is never deleted: exclusivity comes from the kernel lock,
// which is released when the handle is closed or the process exits, not
// from the file's existence. Deleting the file would let a second process
// lock a fresh inode while the first still holds the old one.
type Guard struct {
	fl *flock.Flock
}

// Acquire takes the exclusive lock without blocking.
func Acquire(path string) (*Guard, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", path, err)
	}
	if !locked {
		return nil, ErrHeld
	}
	return &Guard{fl: fl}, nil
}

// Release unlocks and closes the handle, leaving the lock file in place.
func (g *Guard) Release() error {
	return g.fl.Unlock()
}
