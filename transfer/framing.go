package transfer

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Framing selects how file bytes are delimited on the wire.
type Framing int

const (
	// Legacy streams raw chunks terminated by a text sentinel.
	Legacy Framing = iota
	// Sized streams length-prefixed frames terminated by an empty frame.
	Sized
)

const (
	DefaultChunkSize = 1024
	MaxFrameSize     = 1 << 20
	frameHeaderSize  = 4
)

var (
	ErrIncomplete    = errors.New("transfer ended before end marker")
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
	ErrBusy          = errors.New("file is locked by another transfer")
	// ErrWrite wraps a destination failure. The stream was still consumed
	// through its end marker.
	ErrWrite = errors.New("cannot write received data")
)

func (f Framing) String() string {
	switch f {
	case Legacy:
		return "legacy"
	case Sized:
		return "sized"
	}
	return fmt.Sprintf("framing(%d)", int(f))
}

// ParseFraming accepts "legacy" or "sized" in any case.
func ParseFraming(s string) (Framing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "legacy":
		return Legacy, nil
	case "sized":
		return Sized, nil
	}
	return Legacy, fmt.Errorf("unknown framing %q", s)
}

// Source is the read side of a transfer. Legacy framing peeks ahead for
// the sentinel so that nothing after it is consumed.
type Source interface {
	io.Reader
	Peek(n int) ([]byte, error)
	Discard(n int) (int, error)
	Buffered() int
}

func chunkSize(n int) int {
	if n <= 0 {
		return DefaultChunkSize
	}
	if n > MaxFrameSize {
		return MaxFrameSize
	}
	return n
}
