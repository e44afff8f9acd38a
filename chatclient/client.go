// Package chatclient connects to a chat relay, learns its identity from the
// handshake and exchanges newline-delimited messages.
package chatclient

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

const handshakePrefix = "Your ID: "

// ErrBadHandshake is returned when the first line from the relay is not an
// identity announcement.
var ErrBadHandshake = errors.New("chatclient: malformed handshake")

// Config holds the client's connection settings.
type Config struct {
	// Address is the relay's "host:port".
	Address string
	// ConnectionTimeout bounds dialing and reading the handshake.
	ConnectionTimeout time.Duration
	// WriteTimeout is the max duration for a single Send; 0 means no timeout.
	WriteTimeout time.Duration
	// MaxLineBytes is the longest line accepted from the relay.
	MaxLineBytes int
	// LineBuffer is the capacity of the Lines channel.
	LineBuffer int
}

// DefaultConfig returns a Config with default values for the given address.
//
// Parameters:
//   - address: The "host:port" to connect to
//
// Returns:
//   - A Config with defaults: ConnectionTimeout 10s, WriteTimeout 10s,
//     MaxLineBytes 64 KiB, LineBuffer 64
func DefaultConfig(address string) Config {
	return Config{
		Address:           address,
		ConnectionTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxLineBytes:      64 * 1024,
		LineBuffer:        64,
	}
}

// Client is a connected chat participant. Send is safe for concurrent use.
type Client struct {
	conn   net.Conn
	id     uint64
	config Config
	lines  chan string

	writeMu sync.Mutex

	mu      sync.Mutex
	readErr error

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// ParseHandshake extracts the identity from a "Your ID: N" line.
//
// Parameters:
//   - line: The first line received, with or without its terminator
//
// Returns:
//   - The identity, or an error wrapping ErrBadHandshake
func ParseHandshake(line string) (uint64, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), handshakePrefix)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBadHandshake, line)
	}

	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadHandshake, line)
	}

	return id, nil
}

// Dial connects to the relay and reads the handshake.
//
// Parameters:
//   - ctx: Cancels the dial
//   - cfg: Connection settings
//
// Returns:
//   - A connected Client whose Lines channel is already being filled
//   - An error if dialing fails or the handshake is missing or malformed
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	def := DefaultConfig(cfg.Address)
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = def.ConnectionTimeout
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = def.MaxLineBytes
	}
	if cfg.LineBuffer <= 0 {
		cfg.LineBuffer = def.LineBuffer
	}

	dialer := net.Dialer{Timeout: cfg.ConnectionTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Address, err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), cfg.MaxLineBytes)

	if err := conn.SetReadDeadline(time.Now().Add(cfg.ConnectionTimeout)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set handshake deadline: %w", err)
	}
	if !scanner.Scan() {
		_ = conn.Close()
		err := scanner.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read handshake: %w", err)
	}
	id, err := ParseHandshake(scanner.Text())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("clear handshake deadline: %w", err)
	}

	c := &Client{
		conn:   conn,
		id:     id,
		config: cfg,
		lines:  make(chan string, cfg.LineBuffer),
		done:   make(chan struct{}),
	}

	c.wg.Add(1)
	go c.readLoop(scanner)

	return c, nil
}

// ID returns the identity the relay assigned.
func (c *Client) ID() uint64 { return c.id }

// Lines delivers every line received after the handshake, without its
// terminator. It is closed when the connection ends.
func (c *Client) Lines() <-chan string { return c.lines }

// Err returns the read error that ended Lines, or nil after a clean EOF or
// Close.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

// Send writes one line to the relay. The line must not contain a newline.
func (c *Client) Send(line string) error {
	if strings.ContainsAny(line, "\n") {
		return fmt.Errorf("chatclient: line contains a newline")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.config.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	return nil
}

// CloseWrite half-closes the connection: the relay sees end of input while
// this client keeps receiving until the relay closes its side.
func (c *Client) CloseWrite() error {
	cw, ok := c.conn.(interface{ CloseWrite() error })
	if !ok {
		return c.Close()
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return cw.CloseWrite()
}

// Close closes the connection and waits for the reader to stop. Safe to
// call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	c.wg.Wait()

	return err
}

func (c *Client) readLoop(scanner *bufio.Scanner) {
	defer c.wg.Done()
	defer close(c.lines)

	for scanner.Scan() {
		select {
		case c.lines <- scanner.Text():
		case <-c.done:
			return
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case <-c.done:
		default:
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
		}
	}
}
