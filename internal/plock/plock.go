// Package plock guards a resource directory against two OS processes
// running an update concurrently. It is the cross-process analogue of the
// in-process "second update() call returns IRRELEVANT" rule: the engine's
// own idle check only protects against concurrent update() calls within
// one process, so a separate devops CLI invocation and a running
// cmd/pwned-mirror serve-cron process both acquire this lock before they
// touch the resource directory's inactive dataset or control file.
package plock

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/calvinalkan/pwnedmirror/pkg/fs"
)

// LockFileName is the well-known lock file name under the resource
// directory.
const LockFileName = ".pwned-mirror.lock"

// ErrLocked is returned when another process already holds the resource
// directory's update lock.
var ErrLocked = errors.New("resource directory is locked by another process")

// ProcessLock guards one resource directory.
type ProcessLock struct {
	locker *fs.Locker
	path   string
}

// New creates a ProcessLock for the resource directory at resourceDir.
func New(resourceDir string, fsys fs.FS) *ProcessLock {
	return &ProcessLock{
		locker: fs.NewLocker(fsys),
		path:   filepath.Join(resourceDir, LockFileName),
	}
}

// TryAcquire attempts to take the lock without blocking, returning
// [ErrLocked] if another process holds it.
func (p *ProcessLock) TryAcquire(_ context.Context) (*fs.Lock, error) {
	lock, err := p.locker.TryLock(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrWouldBlock) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, p.path)
		}
		return nil, fmt.Errorf("acquiring process lock %s: %w", p.path, err)
	}

	return lock, nil
}
