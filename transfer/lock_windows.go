//go:build windows

package transfer

import (
	"os"

	"golang.org/x/sys/windows"
)

const maxUint32 = ^uint32(0)

func tryExclusiveLock(file *os.File) bool {
	ol := new(windows.Overlapped)
	err := windows.LockFileEx(windows.Handle(file.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY, 0, maxUint32, maxUint32, ol)
	return err == nil
}

func unlockFile(file *os.File) error {
	ol := new(windows.Overlapped)
	return windows.UnlockFileEx(windows.Handle(file.Fd()), 0, maxUint32, maxUint32, ol)
}
