package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"fileshare/protocol"
	"fileshare/transfer"
)

// ClientSession is the server side of one connection.
type ClientSession struct {
	server  *Server
	conn    *protocol.Conn
	id      uint64
	name    string
	framing transfer.Framing
	logger  *log.Logger
	handler *CommandHandler

	// busy is held while a command or the handshake runs, so that queued
	// notices are never written into the middle of a reply.
	busy           sync.Mutex
	welcomed       bool
	noticeMutex    sync.Mutex
	pendingNotices []string
	closeOnce      sync.Once
}

func newClientSession(server *Server, conn net.Conn) *ClientSession {
	clientAddr := conn.RemoteAddr().String()
	session := &ClientSession{
		server:  server,
		conn:    protocol.NewConn(conn),
		framing: transfer.Legacy,
		logger:  log.New(server.logger.Writer(), fmt.Sprintf("[%s] ", clientAddr), log.LstdFlags),
	}
	session.handler = NewCommandHandler(session)
	return session
}

// handshake reads the name announcement and sends the welcome line.
func (session *ClientSession) handshake() bool {
	session.busy.Lock()
	defer session.busy.Unlock()

	session.setReadDeadline()
	message, err := session.conn.ReadCommand()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			session.logger.Printf("❌ [ERROR] Handshake failed: %v", err)
		}
		return false
	}

	name, ok := protocol.ParseHandshake(message)
	if !ok {
		session.logger.Printf("[WARN] Expected name announcement, discarded %q", message)
	}
	session.name = name
	session.server.registry.SetName(session.id, name)

	// The registry is updated before a notice is queued, so any promotion
	// dropped here is reflected in the welcome line.
	session.takeNotices()
	admin := session.IsAdmin()
	session.logger.Printf("[INFO] Client %q joined (id %d, admin %t)", name, session.id, admin)
	session.SendResponse(protocol.Welcome(name, admin))
	session.welcomed = true
	return true
}

// serve runs the command loop until EXIT, EOF or a connection error.
func (session *ClientSession) serve() {
	for {
		session.setReadDeadline()
		command, err := session.conn.ReadCommand()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				session.logger.Printf("❌ [ERROR] Connection error: %v", err)
			}
			return
		}
		session.conn.SetReadDeadline(time.Time{})

		command = strings.TrimSpace(command)
		if command == "" {
			continue
		}
		session.logger.Printf("➡️  [COMMAND] %s", command)

		session.busy.Lock()
		session.deliverNotices()
		exit := session.handler.HandleCommand(command)
		session.deliverNotices()
		session.busy.Unlock()

		if exit {
			return
		}
	}
}

func (session *ClientSession) setReadDeadline() {
	if timeout := session.server.config.IdleTimeout; timeout > 0 {
		session.conn.SetReadDeadline(time.Now().Add(timeout))
	}
}

// NotifyAdmin queues the promotion notice and delivers it as soon as the
// session is between commands.
func (session *ClientSession) NotifyAdmin() {
	session.noticeMutex.Lock()
	session.pendingNotices = append(session.pendingNotices, protocol.AdminNotice)
	session.noticeMutex.Unlock()

	// The goroutine waits out any command or transfer in flight and exits
	// once the session is idle or closed.
	go func() {
		session.busy.Lock()
		defer session.busy.Unlock()
		session.deliverNotices()
	}()
}

func (session *ClientSession) takeNotices() []string {
	session.noticeMutex.Lock()
	defer session.noticeMutex.Unlock()
	notices := session.pendingNotices
	session.pendingNotices = nil
	return notices
}

// deliverNotices must be called with busy held. Notices wait until the
// welcome line has been sent.
func (session *ClientSession) deliverNotices() {
	if !session.welcomed {
		return
	}
	for _, notice := range session.takeNotices() {
		session.logger.Printf("👑 [ADMIN] %s", notice)
		session.SendResponse(notice)
	}
}

// Close closes the connection. It is safe to call more than once.
func (session *ClientSession) Close() error {
	var err error
	session.closeOnce.Do(func() {
		err = session.conn.Close()
	})
	return err
}

// SessionInterface implementation

func (session *ClientSession) SendResponse(message string) {
	if err := session.conn.WriteLine(message); err != nil {
		session.logger.Printf("❌ [ERROR] Failed to send response: %v", err)
	}
}

func (session *ClientSession) LogPrintf(format string, args ...interface{}) {
	session.logger.Printf(format, args...)
}

func (session *ClientSession) GetID() uint64 {
	return session.id
}

func (session *ClientSession) GetName() string {
	return session.name
}

func (session *ClientSession) IsAdmin() bool {
	return session.server.registry.IsAdmin(session.id)
}

func (session *ClientSession) GetConn() *protocol.Conn {
	return session.conn
}

func (session *ClientSession) GetFraming() transfer.Framing {
	return session.framing
}

func (session *ClientSession) SetFraming(framing transfer.Framing) {
	session.framing = framing
}

func (session *ClientSession) GetServer() *Server {
	return session.server
}
