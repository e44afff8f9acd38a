package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/chatrelay/admin"
	"github.com/cyberinferno/chatrelay/config"
	"github.com/cyberinferno/chatrelay/logger"
	"github.com/cyberinferno/chatrelay/relay"
	"github.com/cyberinferno/chatrelay/status"
)

const redisPingTimeout = 3 * time.Second

func runServer(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	addr := fs.String("addr", "", "chat listen address, overrides server.addr")
	level := fs.String("log-level", "", "log level, overrides log.level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *addr == "" && fs.NArg() > 0 {
		*addr = fs.Arg(0)
	}

	cfg, err := loadConfig(*configPath, *addr, *level)
	if err != nil {
		return err
	}

	opts := cfg.Logger()
	opts.Stdout = stdout
	log, err := logger.New(opts)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Close()

	cache, closeCache, err := newStatusCache(ctx, cfg)
	if err != nil {
		log.Error("status cache unavailable", logger.Field{Key: "error", Value: err.Error()})
		return err
	}
	defer closeCache()

	srv := relay.NewServer(cfg.Relay(), log)
	provider := status.NewProvider(cfg.Instance.Name, srv.Registry(), srv.Identities())
	snapshots := status.NewService(provider, cache, status.Key(cfg.Status.KeyPrefix, cfg.Instance.Name), cfg.Status.TTL, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, relay.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		srv.Stop()
		return nil
	})
	g.Go(func() error {
		return snapshots.Publish(gctx, cfg.Status.TTL)
	})
	if cfg.Admin.IsEnabled() {
		g.Go(func() error {
			return admin.NewServer(cfg.Admin.Addr, snapshots, log).Run(gctx)
		})
	}

	log.Info("chatrelay started",
		logger.Field{Key: "instance", Value: cfg.Instance.Name},
		logger.Field{Key: "addr", Value: cfg.Server.Addr},
		logger.Field{Key: "admin", Value: cfg.Admin.IsEnabled()},
		logger.Field{Key: "status_backend", Value: statusBackend(cfg)},
	)

	err = g.Wait()
	if err != nil {
		log.Error("chatrelay stopped with error", logger.Field{Key: "error", Value: err.Error()})
		return err
	}
	log.Info("chatrelay shut down")

	return nil
}

func loadConfig(path, addr, level string) (*config.Config, error) {
	cfg, err := config.LoadAndValidate(path)
	if err != nil {
		return nil, err
	}

	if addr == "" && level == "" {
		return cfg, nil
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if level != "" {
		cfg.Log.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate flags: %w", err)
	}

	return cfg, nil
}

func newStatusCache(ctx context.Context, cfg *config.Config) (status.Cache[status.Snapshot], func(), error) {
	if cfg.Status.Redis.Addr == "" {
		return status.NewMemoryCache[status.Snapshot](time.Minute), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Status.Redis.Addr,
		DB:       cfg.Status.Redis.DB,
		Password: cfg.Status.Redis.Password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("status redis ping %s: %w", cfg.Status.Redis.Addr, err)
	}

	return status.NewRedisCache[status.Snapshot](client), func() { _ = client.Close() }, nil
}

func statusBackend(cfg *config.Config) string {
	if cfg.Status.Redis.Addr == "" {
		return "memory"
	}
	return "redis"
}
