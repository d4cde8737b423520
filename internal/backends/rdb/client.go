package rdb

import (
	"bedrock/internal/mapping"
	"bedrock/internal/ports"
	"bedrock/internal/resource"
	"bedrock/internal/types"
	"context"
	"database/sql"

	log "github.com/sirupsen/logrus"
)

// Client is a named relational client. It owns exactly one SessionFactory and
// is safe for concurrent use; the sessions it hands out are not.
type Client struct {
	id      string
	cfg     types.SQLClientConfig
	factory *SessionFactory
}

// NewClient discovers the mapping resources of cfg in source, then builds the
// session factory. Every failure is returned as a *types.ClientInitError.
func NewClient(ctx context.Context, id string, cfg types.SQLClientConfig, source ports.ResourceSource) (*Client, error) {
	log.WithFields(log.Fields{"id": id, "config": cfg.String()}).Info("Start create SqlClient")

	var resources []resource.Descriptor
	if source != nil {
		var err error
		resources, err = resource.NewResolver(source).Resolve(ctx, cfg.MapperScanRoots(), cfg.MapperLocations())
		if err != nil {
			return nil, &types.ClientInitError{Kind: types.ClientKindSQL, ID: id, Err: err}
		}
	}

	factory, err := NewSessionFactory(ctx, id, cfg, resources)
	if err != nil {
		return nil, &types.ClientInitError{Kind: types.ClientKindSQL, ID: id, Err: err}
	}
	log.WithFields(log.Fields{"id": id, "resources": len(resources)}).Info("Succeed in creating SqlClient")
	return &Client{id: id, cfg: cfg, factory: factory}, nil
}

func (c *Client) ID() string                    { return c.id }
func (c *Client) Kind() string                  { return types.ClientKindSQL }
func (c *Client) Config() types.SQLClientConfig { return c.cfg }
func (c *Client) Mappings() *mapping.Mappings   { return c.factory.Mappings() }
func (c *Client) Factory() *SessionFactory      { return c.factory }

// Session opens a session with the simple executor in auto-commit.
func (c *Client) Session(ctx context.Context) (*Session, error) {
	return c.factory.OpenSession(ctx, DefaultMode())
}

// SessionWithExecutor opens an auto-commit session with the given executor.
func (c *Client) SessionWithExecutor(ctx context.Context, e types.ExecutorType) (*Session, error) {
	return c.factory.OpenSession(ctx, ExecutorMode(e))
}

// SessionWithIsolation opens a transactional session with the default executor.
func (c *Client) SessionWithIsolation(ctx context.Context, l types.IsolationLevel) (*Session, error) {
	return c.factory.OpenSession(ctx, TransactionalMode(types.DefaultExecutor, l))
}

// SessionWith opens a transactional session with the given executor and isolation.
func (c *Client) SessionWith(ctx context.Context, e types.ExecutorType, l types.IsolationLevel) (*Session, error) {
	return c.factory.OpenSession(ctx, TransactionalMode(e, l))
}

// OpenSession opens a session with an arbitrary mode.
func (c *Client) OpenSession(ctx context.Context, mode Mode) (*Session, error) {
	return c.factory.OpenSession(ctx, mode)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.factory.Ping(ctx)
}

func (c *Client) Stats() sql.DBStats {
	return c.factory.Stats()
}

func (c *Client) Close() error {
	log.WithField("id", c.id).Info("closing sql client")
	return c.factory.Close()
}
