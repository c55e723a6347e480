package transfer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Receiver consumes one transfer stream and writes its payload to dst.
type Receiver struct {
	Framing   Framing
	ChunkSize int
	// End is the sentinel that terminates a legacy stream.
	End string
}

// Receive writes the payload to dst until the end marker. A stream that
// ends first yields ErrIncomplete together with the bytes already written.
// When dst fails the rest of the stream is still consumed, so the peer stays
// in step, and the failure is reported as ErrWrite.
func (r Receiver) Receive(dst io.Writer, src Source) (int64, error) {
	sink := &writeSink{dst: dst}
	var err error
	if r.Framing == Sized {
		err = r.receiveSized(sink, src)
	} else {
		err = r.receiveLegacy(sink, src)
	}
	if err == nil && sink.err != nil {
		err = fmt.Errorf("%w: %v", ErrWrite, sink.err)
	}
	return sink.written, err
}

// Drain consumes a stream up to its end marker and throws the payload away.
func (r Receiver) Drain(src Source) (int64, error) {
	return r.Receive(io.Discard, src)
}

// writeSink counts what reaches dst and swallows everything after the
// first write error.
type writeSink struct {
	dst     io.Writer
	written int64
	err     error
}

func (w *writeSink) Write(p []byte) (int, error) {
	if w.err != nil {
		return len(p), nil
	}
	n, err := w.dst.Write(p)
	w.written += int64(n)
	if err != nil {
		w.err = err
	}
	return len(p), nil
}

// receiveLegacy stops at the first occurrence of the sentinel. Payload that
// happens to contain the sentinel is truncated there. A tail that could be
// the start of a sentinel split across reads is held back until resolved.
func (r Receiver) receiveLegacy(dst io.Writer, src Source) error {
	end := []byte(r.End)
	if len(end) == 0 {
		return errors.New("legacy receiver has no end marker")
	}
	limit := chunkSize(r.ChunkSize)
	if limit < len(end) {
		limit = len(end)
	}

	for {
		if _, err := src.Peek(1); err != nil {
			return incomplete(err)
		}
		window := src.Buffered()
		if window > limit {
			window = limit
		}
		data, _ := src.Peek(window)

		if i := bytes.Index(data, end); i >= 0 {
			dst.Write(data[:i])
			src.Discard(i + len(end))
			return nil
		}

		keep := heldBack(data, end)
		if keep == len(data) {
			// Everything buffered may begin the sentinel; wait for one more byte.
			if _, err := src.Peek(len(data) + 1); err != nil {
				dst.Write(data)
				src.Discard(len(data))
				return incomplete(err)
			}
			continue
		}

		dst.Write(data[:len(data)-keep])
		src.Discard(len(data) - keep)
	}
}

// heldBack returns the length of the longest suffix of data that is a
// proper prefix of end.
func heldBack(data, end []byte) int {
	k := len(end) - 1
	if k > len(data) {
		k = len(data)
	}
	for ; k > 0; k-- {
		if bytes.HasSuffix(data, end[:k]) {
			return k
		}
	}
	return 0
}

func (r Receiver) receiveSized(dst io.Writer, src Source) error {
	var header [frameHeaderSize]byte

	for {
		if _, err := io.ReadFull(src, header[:]); err != nil {
			return incomplete(err)
		}
		size := binary.BigEndian.Uint32(header[:])
		if size == 0 {
			return nil
		}
		if size > MaxFrameSize {
			return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
		}
		if _, err := io.CopyN(dst, src, int64(size)); err != nil {
			return incomplete(err)
		}
	}
}

func incomplete(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrIncomplete
	}
	return err
}
