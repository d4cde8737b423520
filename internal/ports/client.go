package ports

import "context"

// Client is the lifecycle surface shared by every registered data client.
type Client interface {
	ID() string
	// Kind is "sql" or "kv".
	Kind() string
	Ping(ctx context.Context) error
	Close() error
}
