package transfer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"time"
)

// Sender streams a file to the peer in fixed-size chunks.
type Sender struct {
	Framing   Framing
	ChunkSize int
	// Pace is slept between chunks; zero sends back to back.
	Pace time.Duration
	// End is written after the last chunk in legacy framing.
	End string
	// Marker is what the legacy receiver scans for. It defaults to End.
	// Legacy payload is cut at its first occurrence.
	Marker string
}

// Send copies src to dst and then writes the end marker. It returns the
// number of payload bytes sent. In legacy framing nothing from the first
// occurrence of the marker onward is sent, so the receiver never sees bytes
// past the end of the stream.
func (s Sender) Send(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	size := chunkSize(s.ChunkSize)
	if s.Framing == Legacy {
		if marker := s.marker(); marker != "" {
			src = &cutReader{src: bufio.NewReader(src), marker: []byte(marker)}
		}
	}
	buf := make([]byte, frameHeaderSize+size)
	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, rerr := src.Read(buf[frameHeaderSize:])
		if n > 0 {
			if err := s.writeChunk(dst, buf, n); err != nil {
				return total, err
			}
			total += int64(n)
			if err := s.pause(ctx); err != nil {
				return total, err
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return total, rerr
		}
	}
	return total, s.Finish(dst)
}

// Finish writes only the end marker. A client uses it to release a server
// that is draining a refused upload.
func (s Sender) Finish(dst io.Writer) error {
	if s.Framing == Sized {
		var header [frameHeaderSize]byte
		_, err := dst.Write(header[:])
		return err
	}
	_, err := io.WriteString(dst, s.End)
	return err
}

func (s Sender) writeChunk(dst io.Writer, buf []byte, n int) error {
	if s.Framing == Sized {
		binary.BigEndian.PutUint32(buf[:frameHeaderSize], uint32(n))
		_, err := dst.Write(buf[:frameHeaderSize+n])
		return err
	}
	_, err := dst.Write(buf[frameHeaderSize : frameHeaderSize+n])
	return err
}

func (s Sender) pause(ctx context.Context) error {
	if s.Pace <= 0 {
		return nil
	}
	timer := time.NewTimer(s.Pace)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s Sender) marker() string {
	if s.Marker != "" {
		return s.Marker
	}
	return s.End
}

// cutReader ends its stream just before the first occurrence of marker.
type cutReader struct {
	src    *bufio.Reader
	marker []byte
	done   bool
}

func (c *cutReader) Read(p []byte) (int, error) {
	if c.done {
		return 0, io.EOF
	}
	for {
		if _, err := c.src.Peek(1); err != nil {
			return 0, err
		}
		data, _ := c.src.Peek(c.src.Buffered())

		if i := bytes.Index(data, c.marker); i >= 0 {
			if i == 0 {
				c.done = true
				return 0, io.EOF
			}
			n := copy(p, data[:i])
			c.src.Discard(n)
			return n, nil
		}

		keep := heldBack(data, c.marker)
		if keep == len(data) {
			if _, err := c.src.Peek(len(data) + 1); err != nil {
				// A partial marker at the end of the source is payload.
				n := copy(p, data)
				c.src.Discard(n)
				return n, nil
			}
			continue
		}
		n := copy(p, data[:len(data)-keep])
		c.src.Discard(n)
		return n, nil
	}
}
