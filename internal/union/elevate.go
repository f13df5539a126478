package union

import (
	"runtime"
	"sync"

	"golang.org/x/sys/unix"
)

// elevation is the reentrant exclusive lock described in the design: one
// per mount, guarding the identity-elevation block used to perform
// underlying-FS operations as root.
//
// The original design flips a task's fsuid/fsgid to 0 inside a lock that
// is reentered by nested syscalls on the same kernel thread. Go has no
// stable notion of "current OS thread" across a call stack unless the
// goroutine is pinned to one, so reentrancy here is structural rather
// than lock-counted: a single top-level operation acquires the lock once
// via Elevated, and every nested call it makes (recursive copy-up,
// notify_change inside copy-up, ...) is a plain Go call within that same
// acquisition, never a second Lock(). There is deliberately no
// Lock-call-counting reentrant mutex, because re-entering it from a
// different goroutine would defeat its purpose.
type elevation struct {
	mu sync.Mutex
}

// Elevated runs fn with the calling OS thread's fsuid/fsgid raised to
// root, restoring the caller's identity on every exit path, success or
// error. The OS thread is locked for the duration since fsuid/fsgid are
// per-thread kernel state and Go may otherwise migrate the goroutine.
func (e *elevation) Elevated(fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	savedUID, err := unix.SetfsuidRetUid(0)
	if err != nil {
		return err
	}
	savedGID, err := unix.SetfsgidRetGid(0)
	if err != nil {
		unix.Setfsuid(savedUID)
		return err
	}
	defer func() {
		unix.Setfsuid(savedUID)
		unix.Setfsgid(savedGID)
	}()

	return fn()
}
