package redis

import (
	"bedrock/internal/types"
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Client is a named key-value client over one connection pool. The command
// facades are created once and shared; every call borrows a pooled
// connection for one round trip.
type Client struct {
	id  string
	cfg types.KVClientConfig
	cli *redis.Client

	keys       *Keys
	strings    *Strings
	lists      *Lists
	hashes     *Hashes
	sets       *Sets
	sortedSets *SortedSets
}

// NewClient opens the pool described by cfg and pings the server within the
// connect timeout. Every failure is returned as a *types.ClientInitError.
func NewClient(ctx context.Context, id string, cfg types.KVClientConfig) (*Client, error) {
	log.WithFields(log.Fields{"id": id, "config": cfg.String()}).Info("Start create RedisClient")

	opts, err := options(cfg)
	if err != nil {
		return nil, &types.ClientInitError{Kind: types.ClientKindKV, ID: id, Err: err}
	}
	cli := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
	defer cancel()
	if err := cli.Ping(pingCtx).Err(); err != nil {
		_ = cli.Close()
		return nil, &types.ClientInitError{Kind: types.ClientKindKV, ID: id, Err: fmt.Errorf("failed to ping Redis: %w", err)}
	}

	c := &Client{id: id, cfg: cfg, cli: cli}
	c.keys = &Keys{c: c}
	c.strings = &Strings{c: c}
	c.lists = &Lists{c: c}
	c.hashes = &Hashes{c: c}
	c.sets = &Sets{c: c}
	c.sortedSets = &SortedSets{c: c}
	log.WithFields(log.Fields{"id": id, "addr": cfg.Addr()}).Info("Succeed in creating RedisClient")
	return c, nil
}

func options(cfg types.KVClientConfig) (*redis.Options, error) {
	opts := &redis.Options{
		Addr:         cfg.Addr(),
		Username:     cfg.Username(),
		Password:     cfg.Password(),
		DB:           cfg.Database(),
		DialTimeout:  cfg.ConnectTimeout(),
		ReadTimeout:  cfg.ConnectTimeout(),
		WriteTimeout: cfg.ConnectTimeout(),
		PoolSize:     cfg.MaxTotal(),
		MaxIdleConns: cfg.MaxIdle(),
		MinIdleConns: cfg.MinIdle(),
		PoolTimeout:  cfg.PoolTimeout(),
	}
	if cfg.TLS() {
		tlsConfig, err := newTLSConfig(cfg.Host())
		if err != nil {
			return nil, err
		}
		opts.TLSConfig = tlsConfig
	}
	return opts, nil
}

func (c *Client) ID() string                   { return c.id }
func (c *Client) Kind() string                 { return types.ClientKindKV }
func (c *Client) Config() types.KVClientConfig { return c.cfg }

func (c *Client) Keys() *Keys             { return c.keys }
func (c *Client) Strings() *Strings       { return c.strings }
func (c *Client) Lists() *Lists           { return c.lists }
func (c *Client) Hashes() *Hashes         { return c.hashes }
func (c *Client) Sets() *Sets             { return c.sets }
func (c *Client) SortedSets() *SortedSets { return c.sortedSets }

// Redis exposes the underlying go-redis client for commands no facade covers.
func (c *Client) Redis() *redis.Client { return c.cli }

func (c *Client) Ping(ctx context.Context) error {
	return c.wrap("PING", "", c.cli.Ping(ctx).Err())
}

func (c *Client) Stats() *redis.PoolStats {
	return c.cli.PoolStats()
}

func (c *Client) Close() error {
	log.WithField("id", c.id).Info("closing redis client")
	return c.cli.Close()
}

// wrap translates a driver error. Pool timeouts are reported as
// *types.PoolExhaustedError, everything else as *types.CommandError.
func (c *Client) wrap(command, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.ErrPoolTimeout) || errors.Is(err, redis.ErrPoolExhausted) {
		return &types.PoolExhaustedError{ClientID: c.id, Timeout: c.cfg.PoolTimeout(), Err: err}
	}
	return &types.CommandError{Command: command, Key: key, Err: err}
}
