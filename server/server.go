// Package server implements the file-sharing server: it admits sessions,
// runs one command loop per connection and serves the shared directory.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"github.com/hashicorp/go-multierror"

	"fileshare/protocol"
	"fileshare/registry"
	"fileshare/storage"
)

// Server accepts client connections and serves the shared directory.
type Server struct {
	config   *Config
	dir      *storage.Dir
	registry *registry.Registry
	logger   *log.Logger

	mutex    sync.Mutex
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New prepares a server. A nil logger discards all log output.
func New(config *Config, logger *log.Logger) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	dir, err := storage.Open(config.RootDir)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:   config,
		dir:      dir,
		registry: registry.New(config.MaxClients, logger),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// ListenAndServe listens on the configured port and serves until ctx is
// done or Stop is called.
func (server *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", server.config.ListenPort))
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return server.Serve(ctx, listener)
}

// Serve runs the accept loop on listener.
func (server *Server) Serve(ctx context.Context, listener net.Listener) error {
	server.mutex.Lock()
	server.listener = listener
	server.mutex.Unlock()

	server.logger.Printf("Server started on %s", listener.Addr())
	server.logger.Printf("Shared directory: %s", server.dir.Root())
	server.logger.Printf("Max clients: %d", server.config.MaxClients)

	go func() {
		select {
		case <-ctx.Done():
			server.Stop()
		case <-server.ctx.Done():
		}
	}()

	if server.config.Watch {
		go server.watchDirectory()
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || server.ctx.Err() != nil {
				server.wg.Wait()
				return nil
			}
			server.logger.Printf("Error accepting connection: %v", err)
			continue
		}
		server.admit(conn)
	}
}

// admit registers a new connection or turns it away when the server is full.
// It runs on the accept loop so capacity is checked before the next accept.
func (server *Server) admit(conn net.Conn) {
	session := newClientSession(server, conn)

	id, admin, err := server.registry.Add(conn.RemoteAddr().String(), session)
	if err != nil {
		server.logger.Printf("Connection from %s rejected: %v", conn.RemoteAddr(), err)
		conn.Write([]byte(protocol.ServerFull + "\n"))
		conn.Close()
		return
	}
	session.id = id

	server.wg.Add(1)
	go func() {
		defer server.wg.Done()
		server.handleClient(session, admin)
	}()
}

// handleClient processes a single client connection
func (server *Server) handleClient(session *ClientSession, admin bool) {
	defer func() {
		session.Close()
		server.registry.Remove(session.id)
		session.logger.Printf("🔌 [INFO] Client disconnected (id %d)", session.id)
	}()

	session.logger.Printf("🌐 [INFO] Client connected (id %d, admin %t)", session.id, admin)
	if !session.handshake() {
		return
	}
	session.serve()
}

func (server *Server) watchDirectory() {
	err := server.dir.Watch(server.ctx,
		func(change storage.Change) {
			server.logger.Printf("[WATCH] %s %s", change.Op, change.Name)
		},
		func(err error) {
			server.logger.Printf("[WATCH] error: %v", err)
		})
	if err != nil {
		server.logger.Printf("[WATCH] disabled: %v", err)
	}
}

// Addr returns the listening address once Serve has started.
func (server *Server) Addr() net.Addr {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	if server.listener == nil {
		return nil
	}
	return server.listener.Addr()
}

func (server *Server) Registry() *registry.Registry {
	return server.registry
}

func (server *Server) Dir() *storage.Dir {
	return server.dir
}

// Stop closes the listener and every live session.
func (server *Server) Stop() error {
	server.cancel()

	var result *multierror.Error
	server.mutex.Lock()
	if server.listener != nil {
		if err := server.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, err)
		}
	}
	server.mutex.Unlock()

	if err := server.registry.CloseAll(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
