package redis

import (
	"bedrock/internal/types"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	specKeyTemplate  = "bedrock:client:%s:%s"
	indexKeyTemplate = "bedrock:clients:%s"
)

// ConfigStore implements ports.ConfigStore on Redis. Each spec is one JSON
// string; the ids of every kind are indexed in a set.
type ConfigStore struct {
	cli *redis.Client
}

func NewConfigStore(cli *redis.Client) *ConfigStore {
	return &ConfigStore{cli: cli}
}

func (s *ConfigStore) GetSQLSpec(ctx context.Context, id string) (types.SQLClientSpec, error) {
	var spec types.SQLClientSpec
	err := s.get(ctx, types.ClientKindSQL, id, &spec)
	return spec, err
}

func (s *ConfigStore) GetKVSpec(ctx context.Context, id string) (types.KVClientSpec, error) {
	var spec types.KVClientSpec
	err := s.get(ctx, types.ClientKindKV, id, &spec)
	return spec, err
}

func (s *ConfigStore) PutSQLSpec(ctx context.Context, id string, spec types.SQLClientSpec) error {
	if _, err := spec.Build(); err != nil {
		return err
	}
	return s.put(ctx, types.ClientKindSQL, id, spec)
}

func (s *ConfigStore) PutKVSpec(ctx context.Context, id string, spec types.KVClientSpec) error {
	if _, err := spec.Build(); err != nil {
		return err
	}
	return s.put(ctx, types.ClientKindKV, id, spec)
}

// ListClients returns the stored ids of one kind, sorted.
func (s *ConfigStore) ListClients(ctx context.Context, kind string) ([]string, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	ids, err := s.cli.SMembers(ctx, indexKey(kind)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *ConfigStore) DeleteClientSpec(ctx context.Context, kind, id string) error {
	if err := checkKind(kind); err != nil {
		return err
	}
	_, err := s.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, specKey(kind, id))
		p.SRem(ctx, indexKey(kind), id)
		return nil
	})
	return err
}

func (s *ConfigStore) ClearAll(ctx context.Context) error {
	for _, kind := range []string{types.ClientKindSQL, types.ClientKindKV} {
		ids, err := s.cli.SMembers(ctx, indexKey(kind)).Result()
		if err != nil {
			return err
		}
		keys := []string{indexKey(kind)}
		for _, id := range ids {
			keys = append(keys, specKey(kind, id))
		}
		if err := s.cli.Del(ctx, keys...).Err(); err != nil {
			log.WithError(err).WithField("kind", kind).Error("failed to clear client specs")
			return err
		}
	}
	return nil
}

func (s *ConfigStore) get(ctx context.Context, kind, id string, dest any) error {
	out, err := s.cli.Get(ctx, specKey(kind, id)).Result()
	if errors.Is(err, redis.Nil) {
		return &types.UnknownClientError{Kind: kind, ID: id}
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(out), dest); err != nil {
		return fmt.Errorf("invalid stored %s spec [%s]: %w", kind, id, err)
	}
	return nil
}

func (s *ConfigStore) put(ctx context.Context, kind, id string, spec any) error {
	out, err := json.Marshal(spec)
	if err != nil {
		return err
	}
	_, err = s.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, specKey(kind, id), string(out), 0)
		p.SAdd(ctx, indexKey(kind), id)
		return nil
	})
	return err
}

func checkKind(kind string) error {
	switch kind {
	case types.ClientKindSQL, types.ClientKindKV:
		return nil
	}
	return fmt.Errorf("unknown client kind %q", kind)
}

func specKey(kind, id string) string {
	return fmt.Sprintf(specKeyTemplate, kind, id)
}

func indexKey(kind string) string {
	return fmt.Sprintf(indexKeyTemplate, kind)
}
