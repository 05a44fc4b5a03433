package fs_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/calvinalkan/pwnedmirror/pkg/fs"
)

func TestLocker_TryLock_ContendsAcrossInstances(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "resource.lock")
	a := fs.NewLocker(fs.NewReal())
	b := fs.NewLocker(fs.NewReal())

	held, err := a.TryLock(path)
	if err != nil {
		t.Fatalf("first TryLock: %v", err)
	}
	defer held.Close()

	_, err = b.TryLock(path)
	if !errors.Is(err, fs.ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock, got %v", err)
	}
}

func TestLocker_TryLock_SucceedsAfterRelease(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "resource.lock")
	locker := fs.NewLocker(fs.NewReal())

	held, err := locker.TryLock(path)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}

	if err := held.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	held2, err := locker.TryLock(path)
	if err != nil {
		t.Fatalf("TryLock after release: %v", err)
	}

	_ = held2.Close()
}

func TestLocker_LockWithTimeout_ExpiresWhileHeld(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "resource.lock")
	a := fs.NewLocker(fs.NewReal())
	b := fs.NewLocker(fs.NewReal())

	held, err := a.TryLock(path)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	defer held.Close()

	_, err = b.LockWithTimeout(path, 20*time.Millisecond)
	if !errors.Is(err, fs.ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock, got %v", err)
	}
}
