package lock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireWritesHolderInfo(t *testing.T) {
	profileDir := filepath.Join(t.TempDir(), "profiles", "main")

	l, err := Acquire(profileDir)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer func() { _ = l.Release() }()

	// Acquire creates the profile dir itself on first run.
	if _, err := os.Stat(profileDir); err != nil {
		t.Fatalf("profile dir not created: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(profileDir, "LOCK"))
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	if pid := parsePID(string(data)); pid != os.Getpid() {
		t.Errorf("lock file pid = %d, want %d", pid, os.Getpid())
	}
}

func TestSecondAgentIsRejected(t *testing.T) {
	profileDir := t.TempDir()

	l1, err := Acquire(profileDir)
	if err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	defer func() { _ = l1.Release() }()

	_, err = Acquire(profileDir)
	if err == nil {
		t.Fatal("second Acquire() on the same profile should fail")
	}
	var held *LockHeldError
	if !errors.As(err, &held) {
		t.Fatalf("error type = %T, want *LockHeldError", err)
	}
	if held.PID != os.Getpid() {
		t.Errorf("reported holder pid = %d, want %d", held.PID, os.Getpid())
	}
}

func TestReleaseRemovesLockFile(t *testing.T) {
	profileDir := t.TempDir()

	l, err := Acquire(profileDir)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("Release() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(profileDir, "LOCK")); !os.IsNotExist(err) {
		t.Error("lock file should be removed on release")
	}

	// The profile is free again for the next agent.
	l2, err := Acquire(profileDir)
	if err != nil {
		t.Fatalf("re-Acquire() after release: %v", err)
	}
	_ = l2.Release()
}

func TestReleaseToleratesNilAndRepeats(t *testing.T) {
	var nilLock *Lock
	if err := nilLock.Release(); err != nil {
		t.Errorf("nil Release() error = %v", err)
	}

	l, err := Acquire(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("first Release() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}
