package protocol

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

const readBufferSize = 4096

// Conn carries the session protocol over a stream connection. Reads go
// through one buffered reader so that command lines, reply lines and raw
// transfer bytes can be mixed on the same stream without losing data.
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader
	wmu    sync.Mutex
}

func NewConn(conn net.Conn) *Conn {
	return &Conn{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, readBufferSize),
	}
}

// ReadCommand returns the next command. When a newline is buffered the
// command ends there; otherwise everything one read delivered is the
// command, since legacy clients send a bare command and wait for the reply.
func (c *Conn) ReadCommand() (string, error) {
	if _, err := c.reader.Peek(1); err != nil {
		return "", err
	}
	n := c.reader.Buffered()
	buf, _ := c.reader.Peek(n)

	if i := bytes.IndexByte(buf, '\n'); i >= 0 {
		line := string(buf[:i])
		c.reader.Discard(i + 1)
		return strings.TrimRight(line, "\r"), nil
	}

	if n > MaxCommandLen {
		n = MaxCommandLen
	}
	line := string(buf[:n])
	c.reader.Discard(n)
	return line, nil
}

// ReadLine returns the next newline-terminated line without its terminator.
// A final unterminated line before EOF is returned without error.
func (c *Conn) ReadLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// HasPrefix reports whether the unread stream starts with prefix. It blocks
// only while the buffered bytes are still a proper prefix of it.
func (c *Conn) HasPrefix(prefix string) (bool, error) {
	want := []byte(prefix)
	for {
		if _, err := c.reader.Peek(1); err != nil {
			return false, err
		}
		buf, _ := c.reader.Peek(c.reader.Buffered())
		if len(buf) >= len(want) {
			return bytes.HasPrefix(buf, want), nil
		}
		if !bytes.HasPrefix(want, buf) {
			return false, nil
		}
		if _, err := c.reader.Peek(len(buf) + 1); err != nil {
			return false, err
		}
	}
}

// SkipLine consumes the next line if it is exactly line.
func (c *Conn) SkipLine(line string) (bool, error) {
	ok, err := c.HasPrefix(line + "\n")
	if err != nil || !ok {
		return false, err
	}
	c.reader.Discard(len(line) + 1)
	return true, nil
}

// SkipBufferedNewline drops a lone newline that is already buffered.
func (c *Conn) SkipBufferedNewline() {
	if c.reader.Buffered() == 0 {
		return
	}
	if b, _ := c.reader.Peek(1); len(b) == 1 && b[0] == '\n' {
		c.reader.Discard(1)
	}
}

// DiscardBuffered drops whatever is already buffered without blocking.
func (c *Conn) DiscardBuffered() int {
	n, _ := c.reader.Discard(c.reader.Buffered())
	return n
}

func (c *Conn) Read(p []byte) (int, error) {
	return c.reader.Read(p)
}

func (c *Conn) Peek(n int) ([]byte, error) {
	return c.reader.Peek(n)
}

func (c *Conn) Discard(n int) (int, error) {
	return c.reader.Discard(n)
}

func (c *Conn) Buffered() int {
	return c.reader.Buffered()
}

// Write sends raw bytes. Concurrent writers never interleave within one call.
func (c *Conn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.Write(p)
}

// WriteLine sends one reply line followed by a newline.
func (c *Conn) WriteLine(line string) error {
	_, err := c.Write([]byte(line + "\n"))
	return err
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) Close() error {
	return c.conn.Close()
}
