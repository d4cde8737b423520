// Package config loads client definitions from a YAML file or a shared
// config store.
package config

import (
	"bedrock/internal/ports"
	"bedrock/internal/types"
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	log "github.com/sirupsen/logrus"
)

// Load reads a client file. ${VAR} references are expanded from the
// environment before decoding, so secrets need not live in the file.
func Load(path string) (types.ClientSpecs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.ClientSpecs{}, fmt.Errorf("failed to read client file: %w", err)
	}
	specs, err := Parse(data)
	if err != nil {
		return types.ClientSpecs{}, fmt.Errorf("client file [%s]: %w", path, err)
	}
	log.WithFields(log.Fields{"path": path, "kv": len(specs.KV), "sql": len(specs.SQL)}).Info("loaded client file")
	return specs, nil
}

// Parse decodes a client document. Unknown fields are rejected and every
// entry is validated.
func Parse(data []byte) (types.ClientSpecs, error) {
	expanded := os.Expand(string(data), func(name string) string {
		if name == "$" {
			return "$"
		}
		return os.Getenv(name)
	})
	var specs types.ClientSpecs
	if err := yaml.UnmarshalWithOptions([]byte(expanded), &specs, yaml.DisallowUnknownField()); err != nil {
		return types.ClientSpecs{}, err
	}
	if err := validate(specs); err != nil {
		return types.ClientSpecs{}, err
	}
	return specs, nil
}

// FromStore reads every client definition kept in store.
func FromStore(ctx context.Context, store ports.ConfigStore) (types.ClientSpecs, error) {
	specs := types.ClientSpecs{
		KV:  map[string]types.KVClientSpec{},
		SQL: map[string]types.SQLClientSpec{},
	}
	kvIDs, err := store.ListClients(ctx, types.ClientKindKV)
	if err != nil {
		return types.ClientSpecs{}, err
	}
	for _, id := range kvIDs {
		if specs.KV[id], err = store.GetKVSpec(ctx, id); err != nil {
			return types.ClientSpecs{}, err
		}
	}
	sqlIDs, err := store.ListClients(ctx, types.ClientKindSQL)
	if err != nil {
		return types.ClientSpecs{}, err
	}
	for _, id := range sqlIDs {
		if specs.SQL[id], err = store.GetSQLSpec(ctx, id); err != nil {
			return types.ClientSpecs{}, err
		}
	}
	return specs, nil
}

func validate(specs types.ClientSpecs) error {
	for _, id := range specs.KVIDs() {
		if _, err := specs.KV[id].Build(); err != nil {
			return fmt.Errorf("kv client [%s]: %w", id, err)
		}
	}
	for _, id := range specs.SQLIDs() {
		if _, err := specs.SQL[id].Build(); err != nil {
			return fmt.Errorf("sql client [%s]: %w", id, err)
		}
	}
	return nil
}
