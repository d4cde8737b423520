package types

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidConfig      = errors.New("invalid client config")
	ErrResourceDiscovery  = errors.New("mapping resource discovery failed")
	ErrMappingParse       = errors.New("mapping resource parse failed")
	ErrPoolExhausted      = errors.New("connection pool exhausted")
	ErrUnknownClient      = errors.New("unknown client")
	ErrCommand            = errors.New("command failed")
	ErrClientInit         = errors.New("client init failed")
	ErrSessionClosed      = errors.New("session is closed")
	ErrUnknownStatement   = errors.New("unknown mapped statement")
	ErrRegistryClosed     = errors.New("registry is closed")
	ErrUnsupportedDialect = errors.New("unsupported sql driver")
)

func Err(typedError error, innerErr error, msgTemplate string, args ...any) error {
	if msgTemplate == "" {
		return errors.Join(typedError, innerErr)
	} else {
		return errors.Join(typedError, innerErr, fmt.Errorf(msgTemplate, args...))
	}
}

// ConfigValidationError reports the first violated field of a client config.
// It is a caller error and is never retried.
type ConfigValidationError struct {
	Field   string
	Rule    string
	Message string
}

func (e *ConfigValidationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("invalid config field [%s]: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid config field [%s]: failed rule %q", e.Field, e.Rule)
}

func (e *ConfigValidationError) Unwrap() error { return ErrInvalidConfig }

// ResourceDiscoveryError aborts client construction when a scan root cannot be
// enumerated or a location pattern cannot be compiled.
type ResourceDiscoveryError struct {
	Root string
	Err  error
}

func (e *ResourceDiscoveryError) Error() string {
	return fmt.Sprintf("failed to discover mapping resources under [%s]: %v", e.Root, e.Err)
}

func (e *ResourceDiscoveryError) Unwrap() []error { return []error{ErrResourceDiscovery, e.Err} }

// MappingParseError names the resource whose content could not be loaded into
// the mapping configuration.
type MappingParseError struct {
	Path string
	Err  error
}

func (e *MappingParseError) Error() string {
	return fmt.Sprintf("failed to parse mapping resource [%s]: %v", e.Path, e.Err)
}

func (e *MappingParseError) Unwrap() []error { return []error{ErrMappingParse, e.Err} }

// PoolExhaustedError is transient: the caller may retry after a backoff.
type PoolExhaustedError struct {
	ClientID string
	Timeout  time.Duration
	Err      error
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("client [%s]: no pooled connection available after %v", e.ClientID, e.Timeout)
}

func (e *PoolExhaustedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPoolExhausted}
	}
	return []error{ErrPoolExhausted, e.Err}
}

// UnknownClientError signals a lookup of an id that was never registered.
type UnknownClientError struct {
	Kind string
	ID   string
}

func (e *UnknownClientError) Error() string {
	return fmt.Sprintf("there is no %s client with id [%s]", e.Kind, e.ID)
}

func (e *UnknownClientError) Unwrap() error { return ErrUnknownClient }

// CommandError carries a backend-reported failure of one command verbatim.
type CommandError struct {
	Command string
	Key     string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s [%s] failed: %v", e.Command, e.Key, e.Err)
}

func (e *CommandError) Unwrap() []error { return []error{ErrCommand, e.Err} }

// ClientInitError wraps any construction-time failure of a client.
type ClientInitError struct {
	Kind string
	ID   string
	Err  error
}

func (e *ClientInitError) Error() string {
	return fmt.Sprintf("failed to init %s client with id [%s]: %v", e.Kind, e.ID, e.Err)
}

func (e *ClientInitError) Unwrap() []error { return []error{ErrClientInit, e.Err} }
