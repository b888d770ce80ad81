// Package runlock keeps two batch runs from writing into the same output
// root at the same time.
package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"watermark/internal/faults"
)

// FileName is the lock file created inside the output root.
const FileName = ".watermark.lock"

// ErrHeld is returned when another process holds the lock.
var ErrHeld = errors.New("output directory is in use by another run")

// Lock is an acquired output-root lock.
type Lock struct {
	path string
	lock *flock.Flock
}

// Acquire takes the advisory lock for outputRoot without blocking.
func Acquire(outputRoot string) (*Lock, error) {
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return nil, faults.Wrap(faults.ErrFilesystem, "runlock", "create output root", outputRoot, err)
	}
	path := filepath.Join(outputRoot, FileName)
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, faults.Wrap(faults.ErrFilesystem, "runlock", "acquire", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHeld, path)
	}
	return &Lock{path: path, lock: fl}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks and removes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if !l.lock.Locked() {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release %s: %w", l.path, err)
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", l.path, err)
	}
	return nil
}
