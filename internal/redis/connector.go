package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/nomad-reconciler/internal/logger"
)

// ConnectOptions describes the report sink connection.
type ConnectOptions struct {
	Addr         string        // Redis address (ex: "localhost:6379")
	User         string        // Optional username
	Password     string        // Optional password
	RedisDB      int           // Redis DB number
	DialTimeout  time.Duration // Redis dial timeout
	ReadTimeout  time.Duration // Redis read timeout
	WriteTimeout time.Duration // Redis write timeout
	PoolSize     int           // Redis connection pool size
	PingTimeout  time.Duration // timeout of the startup ping (ex: 2s)
}

// DefaultConnectOptions returns options suited to a low-traffic sink.
func DefaultConnectOptions(addr, password string, db int) ConnectOptions {
	return ConnectOptions{
		Addr:         addr,
		Password:     password,
		RedisDB:      db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     2,
		PingTimeout:  2 * time.Second,
	}
}

func validateOptions(opts ConnectOptions) error {
	if opts.Addr == "" {
		return fmt.Errorf("redis address is required")
	}
	if opts.PingTimeout <= 0 {
		return fmt.Errorf("PingTimeout must be > 0, got %v", opts.PingTimeout)
	}
	if opts.RedisDB < 0 {
		return fmt.Errorf("RedisDB must be >= 0, got %d", opts.RedisDB)
	}
	if opts.PoolSize < 0 {
		return fmt.Errorf("PoolSize must be >= 0, got %d", opts.PoolSize)
	}
	return nil
}

// New creates a Redis client and pings it once. There is no retry: the
// caller decides whether an unreachable sink is fatal.
func New(ctx context.Context, opts ConnectOptions, log logger.Logger) (*redis.Client, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.User,
		Password:     opts.Password,
		DB:           opts.RedisDB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
	})

	log.Info("connecting to redis", logger.String("addr", opts.Addr))

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis unavailable at %s: %w", opts.Addr, err)
	}

	log.Info("connected to redis", logger.String("addr", opts.Addr))
	return client, nil
}
