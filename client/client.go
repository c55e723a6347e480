// Package client speaks the file-sharing protocol to a server.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"fileshare/config"
	"fileshare/perfmetrics"
	"fileshare/protocol"
	"fileshare/transfer"
)

// pollWindow bounds how long PollNotices waits for a pending notice.
const pollWindow = 10 * time.Millisecond

var (
	ErrServerFull      = errors.New("server is full")
	ErrUnexpectedReply = errors.New("unexpected reply from server")
)

// ServerError is an error reply sent by the server.
type ServerError struct {
	Reply string
}

func (e *ServerError) Error() string {
	return e.Reply
}

// Client is one connected session. Its methods are safe for concurrent use
// but run one exchange at a time.
type Client struct {
	config  *config.ClientConfig
	conn    *protocol.Conn
	name    string
	welcome string
	framing transfer.Framing
	admin   atomic.Bool
	logger  *log.Logger

	mutex     sync.Mutex
	onPromote func()
}

// Dial connects to the configured server and completes the handshake.
func Dial(ctx context.Context, cfg *config.ClientConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dialer := net.Dialer{Timeout: cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Address, err)
	}
	c, err := NewClient(conn, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// NewClient runs the handshake over an established connection and, unless
// configured for legacy framing, switches the session to sized framing.
func NewClient(conn net.Conn, cfg *config.ClientConfig) (*Client, error) {
	c := &Client{
		config:  cfg,
		conn:    protocol.NewConn(conn),
		name:    protocol.TruncateName(cfg.Username),
		framing: transfer.Legacy,
		logger:  log.New(io.Discard, "", 0),
	}

	if cfg.Timeout > 0 {
		conn.SetDeadline(time.Now().Add(cfg.Timeout))
		defer conn.SetDeadline(time.Time{})
	}

	// A full server closes right away; its reply may still be readable
	// after the write fails.
	werr := c.conn.WriteLine(protocol.HandshakePrefix + c.name)
	reply, err := c.readReply()
	if err != nil {
		if werr != nil {
			return nil, fmt.Errorf("handshake: %w", werr)
		}
		return nil, fmt.Errorf("handshake: %w", err)
	}
	if reply == protocol.ServerFull {
		return nil, ErrServerFull
	}
	admin, ok := protocol.ParseWelcome(reply)
	if !ok {
		return nil, fmt.Errorf("handshake: %w: %q", ErrUnexpectedReply, reply)
	}
	c.welcome = reply
	if admin {
		c.admin.Store(true)
	}

	if cfg.Framing == transfer.Sized {
		if err := c.SetFraming(transfer.Sized); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SetLogger directs transfer and metrics diagnostics to logger.
func (c *Client) SetLogger(logger *log.Logger) {
	c.logger = logger
}

// OnPromote registers fn to run when the server grants admin rights.
func (c *Client) OnPromote(fn func()) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.onPromote = fn
}

func (c *Client) Name() string {
	return c.name
}

// Welcome returns the server's welcome line.
func (c *Client) Welcome() string {
	return c.welcome
}

func (c *Client) IsAdmin() bool {
	return c.admin.Load()
}

func (c *Client) Framing() transfer.Framing {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.framing
}

// SetFraming asks the server to use framing for later transfers.
func (c *Client) SetFraming(framing transfer.Framing) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	reply, err := c.command(protocol.Format(protocol.Mode, framing.String()))
	if err != nil {
		return err
	}
	if reply != protocol.ModeOK(framing.String()) {
		return fmt.Errorf("mode: %w: %q", ErrUnexpectedReply, reply)
	}
	c.framing = framing
	return nil
}

// Delete removes a remote file. Only the admin may delete.
func (c *Client) Delete(name string) error {
	if name == "" {
		return fmt.Errorf("delete: %w: file name", protocol.ErrMissingArgument)
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.expect(protocol.Format(protocol.Delete, name), protocol.DeleteOK)
}

// Rename renames a remote file. Only the admin may rename.
func (c *Client) Rename(oldName, newName string) error {
	if oldName == "" || newName == "" {
		return fmt.Errorf("rename: %w: old and new file names", protocol.ErrMissingArgument)
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.expect(protocol.Format(protocol.Rename, oldName, newName), protocol.RenameOK)
}

// Exit ends the session and closes the connection.
func (c *Client) Exit() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	werr := c.conn.WriteLine(protocol.Exit.String())
	cerr := c.conn.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

// Close drops the connection without sending EXIT.
func (c *Client) Close() error {
	return c.conn.Close()
}

// PollNotices picks up role notices the server sent while the client was
// idle. It reports whether the client was promoted.
func (c *Client) PollNotices() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.conn.SetReadDeadline(time.Now().Add(pollWindow))
	defer c.conn.SetReadDeadline(time.Time{})

	promoted := false
	for {
		ok, err := c.conn.SkipLine(protocol.AdminNotice)
		if err != nil || !ok {
			return promoted
		}
		c.promote()
		promoted = true
	}
}

// command sends one line and returns the first reply line. The caller
// holds the mutex.
func (c *Client) command(line string) (string, error) {
	if err := c.conn.WriteLine(line); err != nil {
		return "", err
	}
	reply, err := c.readReply()
	if err != nil {
		return "", err
	}
	if protocol.IsError(reply) {
		return reply, &ServerError{Reply: reply}
	}
	return reply, nil
}

func (c *Client) expect(line, want string) error {
	reply, err := c.command(line)
	if err != nil {
		return err
	}
	if reply != want {
		return fmt.Errorf("%w: %q", ErrUnexpectedReply, reply)
	}
	return nil
}

// readReply returns the next reply line, consuming any role notices and
// blank lines that precede it.
func (c *Client) readReply() (string, error) {
	for {
		line, err := c.conn.ReadLine()
		if err != nil {
			return "", err
		}
		switch line {
		case protocol.AdminNotice:
			c.promote()
		case "":
		default:
			return line, nil
		}
	}
}

func (c *Client) promote() {
	c.admin.Store(true)
	if c.onPromote != nil {
		c.onPromote()
	}
}

func (c *Client) recordTransfer(direction, fileName string, report transfer.Report) {
	if c.config.MetricsDir == "" {
		return
	}
	err := perfmetrics.LogTransferToCSV(c.config.MetricsDir, perfmetrics.DefaultFileName, perfmetrics.Record{
		Time:       time.Now(),
		Client:     c.name,
		Direction:  direction,
		FileName:   fileName,
		Bytes:      report.Bytes,
		Framing:    c.framing.String(),
		Duration:   report.TransferTime,
		Throughput: report.TransferSpeed,
	})
	if err != nil {
		c.logger.Printf("[METRICS] %v", err)
	}
}
