package registry

import (
	"bedrock/internal/backends/rdb"
	"bedrock/internal/backends/redis"
	"bedrock/internal/ports"
	"bedrock/internal/types"
	"context"

	log "github.com/sirupsen/logrus"
)

// SQLRegistry holds the relational clients of the process. Mapping resources
// of every client are discovered in one shared source.
type SQLRegistry struct {
	*Registry[*rdb.Client]
	source ports.ResourceSource
}

func NewSQLRegistry(source ports.ResourceSource) *SQLRegistry {
	return &SQLRegistry{Registry: New[*rdb.Client](types.ClientKindSQL), source: source}
}

// Register builds the client outside any lock and publishes it. On failure
// the id stays unregistered.
func (r *SQLRegistry) Register(ctx context.Context, id string, cfg types.SQLClientConfig) (*rdb.Client, error) {
	if r.isClosed() {
		return nil, types.ErrRegistryClosed
	}
	log.WithFields(log.Fields{"id": id, "config": cfg.String()}).Info("register sql client")
	c, err := rdb.NewClient(ctx, id, cfg, r.source)
	if err != nil {
		return nil, err
	}
	if err := r.Put(c); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (r *SQLRegistry) RegisterDefault(ctx context.Context, cfg types.SQLClientConfig) (*rdb.Client, error) {
	return r.Register(ctx, types.DefaultClientID, cfg)
}

// RegisterSpec validates spec, then registers it.
func (r *SQLRegistry) RegisterSpec(ctx context.Context, id string, spec types.SQLClientSpec) (*rdb.Client, error) {
	cfg, err := spec.Build()
	if err != nil {
		return nil, err
	}
	return r.Register(ctx, id, cfg)
}

// OpenSession opens a session with mode on the client registered under id.
func (r *SQLRegistry) OpenSession(ctx context.Context, id string, mode rdb.Mode) (*rdb.Session, error) {
	c, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return c.OpenSession(ctx, mode)
}

// KVRegistry holds the key-value clients of the process.
type KVRegistry struct {
	*Registry[*redis.Client]
}

func NewKVRegistry() *KVRegistry {
	return &KVRegistry{Registry: New[*redis.Client](types.ClientKindKV)}
}

func (r *KVRegistry) Register(ctx context.Context, id string, cfg types.KVClientConfig) (*redis.Client, error) {
	if r.isClosed() {
		return nil, types.ErrRegistryClosed
	}
	log.WithFields(log.Fields{"id": id, "config": cfg.String()}).Info("register kv client")
	c, err := redis.NewClient(ctx, id, cfg)
	if err != nil {
		return nil, err
	}
	if err := r.Put(c); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (r *KVRegistry) RegisterDefault(ctx context.Context, cfg types.KVClientConfig) (*redis.Client, error) {
	return r.Register(ctx, types.DefaultClientID, cfg)
}

func (r *KVRegistry) RegisterSpec(ctx context.Context, id string, spec types.KVClientSpec) (*redis.Client, error) {
	cfg, err := spec.Build()
	if err != nil {
		return nil, err
	}
	return r.Register(ctx, id, cfg)
}

// RegisterAll registers every client of specs, key-value clients first, in id
// order. It stops at the first failure; clients registered before it stay.
func RegisterAll(ctx context.Context, specs types.ClientSpecs, sqlReg *SQLRegistry, kvReg *KVRegistry) error {
	for _, id := range specs.KVIDs() {
		if _, err := kvReg.RegisterSpec(ctx, id, specs.KV[id]); err != nil {
			return err
		}
	}
	for _, id := range specs.SQLIDs() {
		if _, err := sqlReg.RegisterSpec(ctx, id, specs.SQL[id]); err != nil {
			return err
		}
	}
	return nil
}
