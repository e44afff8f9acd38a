// Package relay accepts chat connections, hands every client its identity and
// runs one goroutine per connection that feeds inbound lines to the router.
package relay

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyberinferno/chatrelay/handle"
	"github.com/cyberinferno/chatrelay/idgenerator"
	"github.com/cyberinferno/chatrelay/logger"
	"github.com/cyberinferno/chatrelay/metrics"
	"github.com/cyberinferno/chatrelay/registry"
	"github.com/cyberinferno/chatrelay/router"
	"github.com/cyberinferno/chatrelay/safeset"
)

var (
	// ErrServerClosed is returned by Serve after Stop was called.
	ErrServerClosed = errors.New("relay: server closed")

	// ErrAlreadyRunning is returned when Serve is called twice.
	ErrAlreadyRunning = errors.New("relay: server already running")
)

// Defaults applied by NewServer to zero Config fields.
const (
	DefaultAddr             = "0.0.0.0:8080"
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultMaxLineBytes     = 64 * 1024
	DefaultWriteQueue       = 16
)

// Config holds the relay's transport settings.
type Config struct {
	// Addr is the TCP address ListenAndServe binds.
	Addr string
	// WriteTimeout bounds each write to a client; 0 disables the bound. A
	// timed out write counts as a failed write and evicts the client.
	WriteTimeout time.Duration
	// HandshakeTimeout bounds the "Your ID" write done on the accept path.
	HandshakeTimeout time.Duration
	// MaxLineBytes is the longest inbound line accepted. A longer line ends
	// the connection.
	MaxLineBytes int
	// WriteQueue is the number of pending writes each client handle buffers.
	WriteQueue int
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = DefaultMaxLineBytes
	}
	if c.WriteQueue <= 0 {
		c.WriteQueue = DefaultWriteQueue
	}
}

// HandshakeLine is the first line a client receives, without terminator.
func HandshakeLine(id uint64) string {
	return fmt.Sprintf("Your ID: %d", id)
}

// Server is the chat relay. It owns the client registry, the identity
// generator and the router, and supervises every accepted connection.
type Server struct {
	cfg     Config
	logger  logger.Logger
	clients *registry.Registry
	ids     *idgenerator.IdGenerator
	router  *router.Router

	// conns tracks every open transport, including ones still handshaking,
	// so Stop can close them all.
	conns *safeset.SafeSet[net.Conn]

	mu        sync.Mutex
	listener  net.Listener
	serving   atomic.Bool
	closing   atomic.Bool
	serveDone chan struct{}
	units     sync.WaitGroup
}

// NewServer creates a relay server. Nothing is bound until ListenAndServe or
// Serve is called.
//
// Parameters:
//   - cfg: Transport settings; zero fields take the package defaults
//   - log: Logger for connection events; nil discards
//
// Returns:
//   - A Server ready to serve
func NewServer(cfg Config, log logger.Logger) *Server {
	cfg.applyDefaults()
	log = logger.OrNop(log)
	clients := registry.New()

	return &Server{
		cfg:       cfg,
		logger:    log,
		clients:   clients,
		ids:       idgenerator.New(0),
		router:    router.New(clients, log),
		conns:     safeset.New[net.Conn](),
		serveDone: make(chan struct{}),
	}
}

// Registry returns the live client registry.
func (s *Server) Registry() *registry.Registry { return s.clients }

// Identities returns the generator identities are drawn from.
func (s *Server) Identities() *idgenerator.IdGenerator { return s.ids }

// Addr returns the bound address, or nil before the server is serving.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// ListenAndServe binds cfg.Addr and serves until Stop is called or accepting
// fails.
//
// Returns:
//   - An error wrapping the bind failure, ErrServerClosed after Stop, or the
//     accept failure that ended the server
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.logger.Error("relay failed to bind", logger.Field{Key: "addr", Value: s.cfg.Addr}, logger.Field{Key: "error", Value: err.Error()})
		return fmt.Errorf("relay listen on %s: %w", s.cfg.Addr, err)
	}

	return s.Serve(ln)
}

// Serve runs the accept loop on ln. Every accepted connection gets the next
// identity and the handshake line, is registered, and is then read by its own
// goroutine. A failed accept is fatal: Serve closes ln and returns the error.
//
// Parameters:
//   - ln: The listener to accept from; Serve takes ownership of it
//
// Returns:
//   - ErrServerClosed after Stop, ErrAlreadyRunning on a second call, or the
//     accept error
func (s *Server) Serve(ln net.Listener) error {
	if !s.serving.CompareAndSwap(false, true) {
		_ = ln.Close()
		return ErrAlreadyRunning
	}
	defer close(s.serveDone)

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	if s.closing.Load() {
		_ = ln.Close()
		return ErrServerClosed
	}

	s.logger.Info("relay listening", logger.Field{Key: "addr", Value: ln.Addr().String()})

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closing.Load() {
				return ErrServerClosed
			}

			_ = ln.Close()
			s.logger.Error("relay accept failed", logger.Field{Key: "error", Value: err.Error()})
			return fmt.Errorf("relay accept: %w", err)
		}

		s.supervise(conn)
	}
}

// Stop closes the listener and every open connection, then waits for the
// accept loop and all connection goroutines to finish. Safe to call more than
// once and before Serve.
func (s *Server) Stop() {
	if !s.closing.CompareAndSwap(false, true) {
		return
	}

	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Unlock()

	if s.serving.Load() {
		<-s.serveDone
	}

	for _, conn := range s.conns.Drain() {
		_ = conn.Close()
	}
	s.units.Wait()

	s.logger.Info("relay stopped", logger.Field{Key: "identities_issued", Value: s.ids.Issued()})
}

// supervise runs on the accept loop: identity, handshake, registration and
// spawning of the connection goroutine.
func (s *Server) supervise(conn net.Conn) {
	id := s.ids.Next()
	metrics.IncConnection()

	s.conns.Add(conn)
	if s.closing.Load() {
		s.conns.Remove(conn)
		_ = conn.Close()
		return
	}

	log := s.logger.With(logger.Field{Key: "client_id", Value: id}, logger.Field{Key: "addr", Value: conn.RemoteAddr().String()})

	if err := s.handshake(conn, id); err != nil {
		metrics.IncHandshakeFailure()
		log.Warn("handshake failed, connection dropped", logger.Field{Key: "error", Value: err.Error()})
		s.conns.Remove(conn)
		_ = conn.Close()
		return
	}

	h := handle.New(conn, handle.Options{WriteTimeout: s.cfg.WriteTimeout, QueueSize: s.cfg.WriteQueue})
	if !s.clients.Insert(id, h) {
		// Identities are never reissued, so this only guards against misuse.
		log.Error("identity already registered")
		s.conns.Remove(conn)
		_ = h.Close()
		return
	}
	metrics.SetConnected(s.clients.Len())
	log.Info("client connected")

	s.units.Add(1)
	go s.serveConn(id, conn, log)
}

func (s *Server) handshake(conn net.Conn, id uint64) error {
	if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.HandshakeTimeout)); err != nil {
		return fmt.Errorf("set handshake deadline: %w", err)
	}

	if _, err := io.WriteString(conn, HandshakeLine(id)+"\n"); err != nil {
		return fmt.Errorf("write handshake: %w", err)
	}

	if err := conn.SetWriteDeadline(time.Time{}); err != nil {
		return fmt.Errorf("clear handshake deadline: %w", err)
	}

	return nil
}
