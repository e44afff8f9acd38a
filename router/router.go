// Package router classifies inbound chat lines and delivers them through the
// registry. A line is either a private command addressed to one identity or a
// broadcast to every registered client. The router keeps no state of its own.
package router

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cyberinferno/chatrelay/handle"
	"github.com/cyberinferno/chatrelay/logger"
	"github.com/cyberinferno/chatrelay/metrics"
	"github.com/cyberinferno/chatrelay/registry"
)

const privatePrefix = "/msg "

// PrivateCommand is a parsed "/msg <id> <payload>" line.
type PrivateCommand struct {
	Target  uint64
	Payload string
}

// ParsePrivate recognises a private command. The line must start with the
// literal "/msg ", and splitting it on single spaces into at most three parts
// must yield exactly three parts whose second is a base-10 identity. The
// payload is the third part verbatim, spaces included.
//
// Lines that do not match, including a "/msg" with a missing or non-numeric
// target, are not errors: the caller broadcasts them unchanged.
//
// Parameters:
//   - line: The inbound line without its terminator
//
// Returns:
//   - The parsed command and true, or a zero value and false
func ParsePrivate(line string) (PrivateCommand, bool) {
	if !strings.HasPrefix(line, privatePrefix) {
		return PrivateCommand{}, false
	}

	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return PrivateCommand{}, false
	}

	target, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return PrivateCommand{}, false
	}

	return PrivateCommand{Target: target, Payload: parts[2]}, true
}

// FormatBroadcast builds the line every client receives for a broadcast.
func FormatBroadcast(sender uint64, line string) string {
	return fmt.Sprintf("Client %d: %s", sender, line)
}

// FormatPrivate builds the line the target receives for a private message.
func FormatPrivate(sender uint64, payload string) string {
	return fmt.Sprintf("[Private] Client %d: %s", sender, payload)
}

// Router delivers lines through a registry. It is safe for concurrent use by
// any number of connection goroutines.
type Router struct {
	clients *registry.Registry
	logger  logger.Logger
}

// New creates a Router over clients.
//
// Parameters:
//   - clients: The registry holding the live connections
//   - log: Logger for delivery events; nil discards
//
// Returns:
//   - A Router ready for use
func New(clients *registry.Registry, log logger.Logger) *Router {
	return &Router{clients: clients, logger: logger.OrNop(log)}
}

// Route classifies line and delivers it on behalf of sender. Surrounding
// whitespace is trimmed first. It returns once every delivery attempt for the
// line has finished.
func (r *Router) Route(sender uint64, line string) {
	line = strings.TrimSpace(line)
	if cmd, ok := ParsePrivate(line); ok {
		r.SendPrivate(sender, cmd.Target, cmd.Payload)
		return
	}

	r.Broadcast(sender, line)
}

// Broadcast writes "Client {sender}: {line}" to every registered client,
// the sender included. Clients whose write fails are evicted after the whole
// pass so that no entry is skipped or visited twice.
//
// Parameters:
//   - sender: Identity of the originating client
//   - line: The original line, written unchanged after the prefix
//
// Returns:
//   - The number of clients the line was delivered to
func (r *Router) Broadcast(sender uint64, line string) int {
	start := time.Now()
	msg := FormatBroadcast(sender, line)

	delivered := 0
	failed := r.clients.ForEach(func(id uint64, h handle.Handle) error {
		if err := h.WriteLine(msg); err != nil {
			r.logger.Debug("broadcast write failed", logger.Field{Key: "client_id", Value: id}, logger.Field{Key: "error", Value: err.Error()})
			return err
		}
		delivered++
		return nil
	})

	for _, id := range failed {
		r.Evict(id, metrics.ReasonWriteFailed)
	}

	metrics.IncMessage(metrics.KindBroadcast)
	metrics.ObserveDispatch(metrics.KindBroadcast, start)
	r.logger.Debug("broadcast",
		logger.Field{Key: "from", Value: sender},
		logger.Field{Key: "delivered", Value: delivered},
		logger.Field{Key: "evicted", Value: len(failed)},
	)

	return delivered
}

// SendPrivate writes "[Private] Client {sender}: {payload}" to target only.
// An unknown target is silently ignored; a failed write evicts the target and
// is not retried. The sender is never told either way.
//
// Parameters:
//   - sender: Identity of the originating client
//   - target: Identity of the recipient
//   - payload: Message text after the target
//
// Returns:
//   - true if the message reached the target's transport
func (r *Router) SendPrivate(sender, target uint64, payload string) bool {
	start := time.Now()
	defer metrics.ObserveDispatch(metrics.KindPrivate, start)
	metrics.IncMessage(metrics.KindPrivate)

	h, ok := r.clients.Get(target)
	if !ok {
		metrics.IncPrivateMiss()
		r.logger.Debug("private target not found",
			logger.Field{Key: "from", Value: sender},
			logger.Field{Key: "to", Value: target},
		)
		return false
	}

	if err := h.WriteLine(FormatPrivate(sender, payload)); err != nil {
		r.logger.Debug("private write failed", logger.Field{Key: "client_id", Value: target}, logger.Field{Key: "error", Value: err.Error()})
		r.Evict(target, metrics.ReasonWriteFailed)
		return false
	}

	r.logger.Debug("private message", logger.Field{Key: "from", Value: sender}, logger.Field{Key: "to", Value: target})
	return true
}

// Evict removes id from the registry and closes its handle. Evicting an id
// that is already gone does nothing, so the write-failure path and the
// owning connection's shutdown can race safely.
//
// Parameters:
//   - id: The identity to remove
//   - reason: Label recorded in the evictions metric
//
// Returns:
//   - true if this call removed the entry
func (r *Router) Evict(id uint64, reason string) bool {
	h, ok := r.clients.Remove(id)
	if !ok {
		return false
	}

	_ = h.Close()
	metrics.IncEviction(reason)
	metrics.SetConnected(r.clients.Len())
	r.logger.Info("client removed", logger.Field{Key: "client_id", Value: id}, logger.Field{Key: "reason", Value: reason})

	return true
}
