package lifecycle

import (
	"errors"
	"testing"
)

func TestInstanceLockExcludesSecondHolder(t *testing.T) {
	dir := t.TempDir()
	first, err := AcquireInstanceLock(dir)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer func() { _ = first.Release() }()

	if _, err := AcquireInstanceLock(dir); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second acquire: got %v want ErrAlreadyRunning", err)
	}
}

func TestInstanceLockReleaseAllowsReacquire(t *testing.T) {
	dir := t.TempDir()
	first, err := AcquireInstanceLock(dir)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	second, err := AcquireInstanceLock(dir)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	_ = second.Release()
}

func TestInstanceLockNilRelease(t *testing.T) {
	var l *InstanceLock
	if err := l.Release(); err != nil {
		t.Fatalf("nil release: %v", err)
	}
}
