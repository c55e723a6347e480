//go:build !windows

package transfer

import (
	"os"

	"golang.org/x/sys/unix"
)

func tryExclusiveLock(file *os.File) bool {
	return unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB) == nil
}

func unlockFile(file *os.File) error {
	return unix.Flock(int(file.Fd()), unix.LOCK_UN)
}
