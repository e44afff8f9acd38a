package relay

import (
	"bufio"
	"errors"
	"net"

	"github.com/cyberinferno/chatrelay/logger"
	"github.com/cyberinferno/chatrelay/metrics"
)

// serveConn is the per-connection unit. It stays active while lines can be
// read and routes each one before reading the next, so a slow delivery only
// delays this sender. On EOF or any read error it removes its own identity,
// which is a no-op if a failed write already evicted it, and exits.
func (s *Server) serveConn(id uint64, conn net.Conn, log logger.Logger) {
	defer s.units.Done()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, min(4096, s.cfg.MaxLineBytes)), s.cfg.MaxLineBytes)

	for scanner.Scan() {
		s.router.Route(id, scanner.Text())
	}

	reason := "closed by peer"
	if err := scanner.Err(); err != nil {
		reason = err.Error()
		if errors.Is(err, bufio.ErrTooLong) {
			log.Warn("line exceeds limit, closing connection", logger.Field{Key: "max_line_bytes", Value: s.cfg.MaxLineBytes})
		}
	}

	s.router.Evict(id, metrics.ReasonDisconnected)
	_ = conn.Close()
	s.conns.Remove(conn)

	log.Info("client disconnected", logger.Field{Key: "reason", Value: reason})
}
