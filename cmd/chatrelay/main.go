// Command chatrelay runs the chat relay server or an interactive client.
//
//	chatrelay server [-config path] [-addr host:port] [-log-level level] [addr]
//	chatrelay client [-addr host:port] [addr]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cyberinferno/chatrelay/chatclient"
)

const defaultClientAddr = "127.0.0.1:8080"

var errUsage = errors.New("usage: chatrelay [server|client] [address]")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()

	if err != nil && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) < 1 {
		return errUsage
	}

	switch args[0] {
	case "server":
		return runServer(ctx, args[1:], stdout)
	case "client":
		return runClient(ctx, args[1:], stdin, stdout)
	default:
		return fmt.Errorf("unknown mode %q: use 'server' or 'client'", args[0])
	}
}

func runClient(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	addr := fs.String("addr", defaultClientAddr, "relay address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		*addr = fs.Arg(0)
	}

	return chatclient.Run(ctx, chatclient.DefaultConfig(*addr), stdin, stdout, nil)
}
