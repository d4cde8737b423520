package ports

import (
	"bedrock/internal/types"
	"context"
)

// ConfigStore keeps client specs outside the process so several processes can
// share one set of client definitions.
type ConfigStore interface {
	// GetSQLSpec MUST return an error wrapping types.ErrUnknownClient if the id does not exist.
	GetSQLSpec(ctx context.Context, id string) (types.SQLClientSpec, error)
	GetKVSpec(ctx context.Context, id string) (types.KVClientSpec, error)

	// PutSQLSpec validates the spec before storing it.
	PutSQLSpec(ctx context.Context, id string, spec types.SQLClientSpec) error
	PutKVSpec(ctx context.Context, id string, spec types.KVClientSpec) error

	ListClients(ctx context.Context, kind string) ([]string, error)

	DeleteClientSpec(ctx context.Context, kind, id string) error

	// ClearAll purges all stored specs. Used in tests only.
	ClearAll(ctx context.Context) error
}
