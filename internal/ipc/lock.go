package ipc

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

const (
	lockSuffix = ".lock"

	// lockWait bounds how long an operation waits for the peer process to
	// release a lock. Critical sections are tiny, so a hit on this deadline
	// means the peer is stuck; the caller skips the cycle instead of
	// hanging with it.
	lockWait = 500 * time.Millisecond

	lockRetryInterval = 10 * time.Millisecond
)

// withLock runs fn while holding an advisory flock. The lock lives on a
// sibling .lock file rather than the data file itself: atomic writes replace
// the data file's inode via rename, which would silently detach any lock
// held on it.
func withLock(path string, how int, fn func() error) error {
	f, err := os.OpenFile(path+lockSuffix, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open lock for %s: %w", path, err)
	}
	defer f.Close()

	if err := flockWithDeadline(int(f.Fd()), how); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	return fn()
}

func withExclusiveLock(path string, fn func() error) error {
	return withLock(path, unix.LOCK_EX, fn)
}

func withSharedLock(path string, fn func() error) error {
	return withLock(path, unix.LOCK_SH, fn)
}

// flockWithDeadline polls a non-blocking flock until it succeeds or the
// wait budget runs out.
func flockWithDeadline(fd, how int) error {
	deadline := time.Now().Add(lockWait)
	for {
		err := unix.Flock(fd, how|unix.LOCK_NB)
		if err == nil {
			return nil
		}
		if err != unix.EWOULDBLOCK && err != unix.EAGAIN {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("lock held by peer for over %v", lockWait)
		}
		time.Sleep(lockRetryInterval)
	}
}
