package chatclient

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/cyberinferno/chatrelay/logger"
)

// Run is the interactive client: it connects, announces the identity on out,
// sends every line read from in and prints every received line through
// Render. When in is exhausted the write side is half-closed and Run keeps
// printing until the relay hangs up.
//
// Parameters:
//   - ctx: Stops the session early when cancelled
//   - cfg: Connection settings
//   - in: Source of outgoing lines
//   - out: Destination for rendered lines
//   - log: Logger for connection events; nil discards
//
// Returns:
//   - nil when the relay closes cleanly or ctx is cancelled, otherwise the
//     dial, send or read error
func Run(ctx context.Context, cfg Config, in io.Reader, out io.Writer, log logger.Logger) error {
	log = logger.OrNop(log)

	c, err := Dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	log.Debug("connected to relay", logger.Field{Key: "addr", Value: cfg.Address}, logger.Field{Key: "client_id", Value: c.ID()})
	if _, err := fmt.Fprintf(out, "Connected as Client %d\n", c.ID()); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	inputDone := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			if err := c.Send(scanner.Text()); err != nil {
				inputDone <- err
				return
			}
		}
		if err := scanner.Err(); err != nil {
			inputDone <- fmt.Errorf("read input: %w", err)
			return
		}
		inputDone <- c.CloseWrite()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-c.Lines():
			if !ok {
				log.Debug("relay closed the connection")
				return c.Err()
			}
			if _, err := fmt.Fprintln(out, Render(line, c.ID())); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
		case err := <-inputDone:
			if err != nil {
				return err
			}
			// Input finished; keep draining until the relay hangs up.
			inputDone = nil
		}
	}
}
