package types

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	DefaultKVConnectTimeout = 30000 * time.Millisecond
	DefaultKVMaxTotal       = 8
	DefaultKVMaxIdle        = 8
	DefaultKVMinIdle        = 0
	DefaultKVDatabase       = 0
)

// KVClientSpec is the mutable input shape of a key-value client config.
type KVClientSpec struct {
	Host     string `yaml:"host" json:"host" validate:"notblank"`
	Port     int    `yaml:"port" json:"port" validate:"min=1,max=65535"`
	Username string `yaml:"username" json:"username,omitempty"`
	Password string `yaml:"password" json:"password,omitempty"`

	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout" validate:"gte=0"`
	Database       int           `yaml:"database" json:"database" validate:"gte=0"`
	MaxTotal       int           `yaml:"max_total" json:"max_total" validate:"gte=0"`
	MaxIdle        int           `yaml:"max_idle" json:"max_idle" validate:"gte=0"`
	MinIdle        int           `yaml:"min_idle" json:"min_idle" validate:"gte=0"`
	TLS            bool          `yaml:"tls" json:"tls"`
	// PoolTimeout bounds how long a command waits for a pooled connection;
	// zero falls back to ConnectTimeout.
	PoolTimeout time.Duration `yaml:"pool_timeout" json:"pool_timeout" validate:"gte=0"`
}

func (s KVClientSpec) Build() (KVClientConfig, error) {
	if err := validateSpec(s); err != nil {
		return KVClientConfig{}, err
	}
	if s.ConnectTimeout == 0 {
		s.ConnectTimeout = DefaultKVConnectTimeout
	}
	if s.MaxTotal == 0 {
		s.MaxTotal = DefaultKVMaxTotal
	}
	if s.MaxIdle == 0 {
		s.MaxIdle = min(DefaultKVMaxIdle, s.MaxTotal)
	}
	if s.PoolTimeout == 0 {
		s.PoolTimeout = s.ConnectTimeout
	}
	if s.MaxIdle > s.MaxTotal {
		return KVClientConfig{}, &ConfigValidationError{
			Field:   "max_idle",
			Rule:    "ltefield",
			Message: fmt.Sprintf("must not exceed max_total (%d)", s.MaxTotal),
		}
	}
	if s.MinIdle > s.MaxIdle {
		return KVClientConfig{}, &ConfigValidationError{
			Field:   "min_idle",
			Rule:    "ltefield",
			Message: fmt.Sprintf("must not exceed max_idle (%d)", s.MaxIdle),
		}
	}
	return KVClientConfig{spec: s}, nil
}

// KVClientConfig is the validated, immutable config of a key-value client.
type KVClientConfig struct {
	spec KVClientSpec
}

func (c KVClientConfig) Host() string                  { return c.spec.Host }
func (c KVClientConfig) Port() int                     { return c.spec.Port }
func (c KVClientConfig) Username() string              { return c.spec.Username }
func (c KVClientConfig) Password() string              { return c.spec.Password }
func (c KVClientConfig) ConnectTimeout() time.Duration { return c.spec.ConnectTimeout }
func (c KVClientConfig) Database() int                 { return c.spec.Database }
func (c KVClientConfig) MaxTotal() int                 { return c.spec.MaxTotal }
func (c KVClientConfig) MaxIdle() int                  { return c.spec.MaxIdle }
func (c KVClientConfig) MinIdle() int                  { return c.spec.MinIdle }
func (c KVClientConfig) TLS() bool                     { return c.spec.TLS }
func (c KVClientConfig) PoolTimeout() time.Duration    { return c.spec.PoolTimeout }

func (c KVClientConfig) Addr() string {
	return net.JoinHostPort(c.spec.Host, strconv.Itoa(c.spec.Port))
}

func (c KVClientConfig) Spec() KVClientSpec { return c.spec }

func (c KVClientConfig) String() string {
	password := ""
	if c.spec.Password != "" {
		password = maskedPassword
	}
	return fmt.Sprintf("KVClientConfig{host=%s, port=%d, username=%s, password=%s, connectTimeout=%v, database=%d, "+
		"maxTotal=%d, maxIdle=%d, minIdle=%d, tls=%t, poolTimeout=%v}",
		c.spec.Host, c.spec.Port, c.spec.Username, password, c.spec.ConnectTimeout, c.spec.Database,
		c.spec.MaxTotal, c.spec.MaxIdle, c.spec.MinIdle, c.spec.TLS, c.spec.PoolTimeout)
}

// KVClientConfigBuilder assembles a KVClientSpec field by field.
type KVClientConfigBuilder struct {
	spec KVClientSpec
}

func NewKVClientConfigBuilder() *KVClientConfigBuilder {
	return &KVClientConfigBuilder{}
}

func (b *KVClientConfigBuilder) Host(v string) *KVClientConfigBuilder {
	b.spec.Host = v
	return b
}

func (b *KVClientConfigBuilder) Port(v int) *KVClientConfigBuilder {
	b.spec.Port = v
	return b
}

func (b *KVClientConfigBuilder) Username(v string) *KVClientConfigBuilder {
	b.spec.Username = v
	return b
}

func (b *KVClientConfigBuilder) Password(v string) *KVClientConfigBuilder {
	b.spec.Password = v
	return b
}

func (b *KVClientConfigBuilder) ConnectTimeout(v time.Duration) *KVClientConfigBuilder {
	b.spec.ConnectTimeout = v
	return b
}

func (b *KVClientConfigBuilder) Database(v int) *KVClientConfigBuilder {
	b.spec.Database = v
	return b
}

func (b *KVClientConfigBuilder) MaxTotal(v int) *KVClientConfigBuilder {
	b.spec.MaxTotal = v
	return b
}

func (b *KVClientConfigBuilder) MaxIdle(v int) *KVClientConfigBuilder {
	b.spec.MaxIdle = v
	return b
}

func (b *KVClientConfigBuilder) MinIdle(v int) *KVClientConfigBuilder {
	b.spec.MinIdle = v
	return b
}

func (b *KVClientConfigBuilder) TLS(v bool) *KVClientConfigBuilder {
	b.spec.TLS = v
	return b
}

func (b *KVClientConfigBuilder) PoolTimeout(v time.Duration) *KVClientConfigBuilder {
	b.spec.PoolTimeout = v
	return b
}

func (b *KVClientConfigBuilder) Build() (KVClientConfig, error) {
	return b.spec.Build()
}
