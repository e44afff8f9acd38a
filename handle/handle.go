// Package handle provides the write side of a relayed connection. A handle can
// only write whole lines; every write reports whether it reached the transport.
package handle

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// ErrClosed is returned by WriteLine once the handle is closed, either by an
// explicit Close or because an earlier write failed.
var ErrClosed = errors.New("handle: closed")

// Handle is the capability the registry stores for each connected client.
type Handle interface {
	// WriteLine writes line followed by a single '\n' and blocks until the
	// write completed or failed.
	//
	// Parameters:
	//   - line: The line to send, without terminator
	//
	// Returns:
	//   - An error if the line could not be delivered to the transport
	WriteLine(line string) error

	// Close releases the transport. It is safe to call multiple times.
	//
	// Returns:
	//   - An error if closing the transport failed
	Close() error
}

// Options configures a ConnHandle.
type Options struct {
	// WriteTimeout bounds every single write; 0 means no deadline.
	WriteTimeout time.Duration
	// QueueSize is the number of write requests that may wait for the writer
	// goroutine. Values below 1 are treated as 1.
	QueueSize int
}

type writeRequest struct {
	line   string
	result chan error
}

// ConnHandle is a Handle over a net.Conn. One goroutine owns the connection's
// write side and performs every write, so lines from concurrent senders are
// never interleaved on the wire.
type ConnHandle struct {
	conn         net.Conn
	writeTimeout time.Duration

	requests  chan writeRequest
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	mu    sync.Mutex
	cause error
}

// New wraps conn and starts the writer goroutine. The handle takes over
// responsibility for closing conn.
//
// Parameters:
//   - conn: The accepted connection whose write side the handle owns
//   - opts: Write timeout and queue size
//
// Returns:
//   - A running ConnHandle; call Close to stop it
func New(conn net.Conn, opts Options) *ConnHandle {
	queue := opts.QueueSize
	if queue < 1 {
		queue = 1
	}

	h := &ConnHandle{
		conn:         conn,
		writeTimeout: opts.WriteTimeout,
		requests:     make(chan writeRequest, queue),
		done:         make(chan struct{}),
	}
	go h.writeLoop()

	return h
}

// WriteLine implements Handle. The first failed write closes the handle; all
// later calls return ErrClosed wrapping that failure.
func (h *ConnHandle) WriteLine(line string) error {
	req := writeRequest{line: line, result: make(chan error, 1)}

	select {
	case <-h.done:
		return h.closedErr()
	default:
	}

	select {
	case h.requests <- req:
	case <-h.done:
		return h.closedErr()
	}

	select {
	case err := <-req.result:
		return err
	case <-h.done:
		// The writer may have answered just before shutting down.
		select {
		case err := <-req.result:
			return err
		default:
			return h.closedErr()
		}
	}
}

// Close implements Handle.
func (h *ConnHandle) Close() error {
	h.closeOnce.Do(func() {
		close(h.done)
		h.closeErr = h.conn.Close()
	})

	return h.closeErr
}

// Done returns a channel that is closed once the handle is closed.
func (h *ConnHandle) Done() <-chan struct{} {
	return h.done
}

func (h *ConnHandle) writeLoop() {
	for {
		select {
		case <-h.done:
			return
		case req := <-h.requests:
			err := h.write(req.line)
			req.result <- err
			if err != nil {
				h.fail(err)
				return
			}
		}
	}
}

func (h *ConnHandle) write(line string) error {
	if h.writeTimeout > 0 {
		if err := h.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	if _, err := io.WriteString(h.conn, line+"\n"); err != nil {
		return fmt.Errorf("write line: %w", err)
	}

	return nil
}

func (h *ConnHandle) fail(err error) {
	h.mu.Lock()
	if h.cause == nil {
		h.cause = err
	}
	h.mu.Unlock()

	_ = h.Close()
}

func (h *ConnHandle) closedErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cause != nil {
		return fmt.Errorf("%w: %w", ErrClosed, h.cause)
	}

	return ErrClosed
}
