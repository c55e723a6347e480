package transfer

import (
	"fmt"
	"time"
)

// Timer tracks one transfer, excluding time spent acquiring the file lock.
type Timer struct {
	transferStart time.Time
	lockWait      time.Duration
}

// Report summarizes a finished transfer.
type Report struct {
	Bytes         int64
	TransferTime  time.Duration
	LockWaitTime  time.Duration
	TransferSpeed float64 // MB/s over TransferTime
}

func NewTimer(lockWait time.Duration) *Timer {
	return &Timer{
		transferStart: time.Now(),
		lockWait:      lockWait,
	}
}

// Report generates the timing report for totalBytes moved so far.
func (t *Timer) Report(totalBytes int64) Report {
	elapsed := time.Since(t.transferStart)
	report := Report{
		Bytes:        totalBytes,
		TransferTime: elapsed,
		LockWaitTime: t.lockWait,
	}
	if elapsed > 0 {
		report.TransferSpeed = float64(totalBytes) / (1024 * 1024) / elapsed.Seconds()
	}
	return report
}

func (r Report) String() string {
	return fmt.Sprintf("%d bytes in %v (%.2f MB/s)", r.Bytes, r.TransferTime.Round(time.Millisecond), r.TransferSpeed)
}
