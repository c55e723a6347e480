package transfer

import (
	"os"
	"time"
)

// LockResult describes an acquired upload lock.
type LockResult struct {
	File       *os.File
	WaitTime   time.Duration
	AcquiredAt time.Time
}

// LockExclusive takes a non-blocking exclusive advisory lock on file.
// A file already locked by another transfer yields ErrBusy.
func LockExclusive(file *os.File) (*LockResult, error) {
	start := time.Now()
	if !tryExclusiveLock(file) {
		return nil, ErrBusy
	}
	now := time.Now()
	return &LockResult{
		File:       file,
		WaitTime:   now.Sub(start),
		AcquiredAt: now,
	}, nil
}

// Release drops the lock. The file stays open.
func (l *LockResult) Release() error {
	return unlockFile(l.File)
}
