package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned when another shell instance holds the
// instance lock for the same data directory.
var ErrAlreadyRunning = fmt.Errorf("another dippershell instance is already running")

// InstanceLock serializes shell instances per data directory. Without it,
// two instances launched against the same app data dir would both probe
// the well-known port and could both adopt or spawn a backend.
type InstanceLock struct {
	fl *flock.Flock
}

// AcquireInstanceLock takes a non-blocking lock on <dir>/dippershell.lock.
// Returns ErrAlreadyRunning when the lock is held elsewhere.
func AcquireInstanceLock(dir string) (*InstanceLock, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	fl := flock.New(filepath.Join(dir, "dippershell.lock"))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire instance lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return &InstanceLock{fl: fl}, nil
}

// Release drops the lock. Safe to call once at process exit.
func (l *InstanceLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
