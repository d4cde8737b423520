package types

import (
	"fmt"
	"time"
)

const (
	DefaultSQLConnectionTimeout = 30 * time.Second
	DefaultSQLValidationTimeout = 5 * time.Second
	DefaultSQLIdleTimeout       = 10 * time.Minute
	DefaultSQLMaxLifetime       = 30 * time.Minute
	DefaultSQLMaxPoolSize       = 20
	DefaultSQLMinIdle           = 0
)

// SQLClientSpec is the mutable input shape of a relational client config, as
// assembled by the builder or decoded from a client file.
type SQLClientSpec struct {
	Driver   string `yaml:"driver" json:"driver" validate:"notblank"`
	URL      string `yaml:"url" json:"url" validate:"notblank"`
	Username string `yaml:"username" json:"username" validate:"notblank"`
	Password string `yaml:"password" json:"password" validate:"notblank"`

	MapperScanRoots []string `yaml:"mapper_scan_roots" json:"mapper_scan_roots,omitempty"`
	MapperLocations []string `yaml:"mapper_locations" json:"mapper_locations,omitempty"`
	// nil means enabled
	MapUnderscoreToCamelCase *bool `yaml:"map_underscore_to_camel_case" json:"map_underscore_to_camel_case,omitempty"`

	ConnectionTimeout time.Duration `yaml:"connection_timeout" json:"connection_timeout" validate:"gte=0"`
	ValidationTimeout time.Duration `yaml:"validation_timeout" json:"validation_timeout" validate:"gte=0"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" json:"idle_timeout" validate:"gte=0"`
	MaxLifetime       time.Duration `yaml:"max_lifetime" json:"max_lifetime" validate:"gte=0"`
	MaxPoolSize       int           `yaml:"max_pool_size" json:"max_pool_size" validate:"gte=0"`
	MinIdle           int           `yaml:"min_idle" json:"min_idle" validate:"gte=0"`
}

// Build validates the spec, fills defaults and freezes the result.
func (s SQLClientSpec) Build() (SQLClientConfig, error) {
	if err := validateSpec(s); err != nil {
		return SQLClientConfig{}, err
	}
	if s.MapUnderscoreToCamelCase == nil {
		enabled := true
		s.MapUnderscoreToCamelCase = &enabled
	}
	if s.ConnectionTimeout == 0 {
		s.ConnectionTimeout = DefaultSQLConnectionTimeout
	}
	if s.ValidationTimeout == 0 {
		s.ValidationTimeout = DefaultSQLValidationTimeout
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = DefaultSQLIdleTimeout
	}
	if s.MaxLifetime == 0 {
		s.MaxLifetime = DefaultSQLMaxLifetime
	}
	if s.MaxPoolSize == 0 {
		s.MaxPoolSize = DefaultSQLMaxPoolSize
	}
	if s.MinIdle > s.MaxPoolSize {
		return SQLClientConfig{}, &ConfigValidationError{
			Field:   "min_idle",
			Rule:    "ltefield",
			Message: fmt.Sprintf("must not exceed max_pool_size (%d)", s.MaxPoolSize),
		}
	}
	camel := *s.MapUnderscoreToCamelCase
	s.MapUnderscoreToCamelCase = &camel
	s.MapperScanRoots = copyStrings(s.MapperScanRoots)
	s.MapperLocations = copyStrings(s.MapperLocations)
	return SQLClientConfig{spec: s}, nil
}

// SQLClientConfig is the validated, immutable config of a relational client.
type SQLClientConfig struct {
	spec SQLClientSpec
}

func (c SQLClientConfig) Driver() string                   { return c.spec.Driver }
func (c SQLClientConfig) URL() string                      { return c.spec.URL }
func (c SQLClientConfig) Username() string                 { return c.spec.Username }
func (c SQLClientConfig) Password() string                 { return c.spec.Password }
func (c SQLClientConfig) MapperScanRoots() []string        { return copyStrings(c.spec.MapperScanRoots) }
func (c SQLClientConfig) MapperLocations() []string        { return copyStrings(c.spec.MapperLocations) }
func (c SQLClientConfig) ConnectionTimeout() time.Duration { return c.spec.ConnectionTimeout }
func (c SQLClientConfig) ValidationTimeout() time.Duration { return c.spec.ValidationTimeout }
func (c SQLClientConfig) IdleTimeout() time.Duration       { return c.spec.IdleTimeout }
func (c SQLClientConfig) MaxLifetime() time.Duration       { return c.spec.MaxLifetime }
func (c SQLClientConfig) MaxPoolSize() int                 { return c.spec.MaxPoolSize }
func (c SQLClientConfig) MinIdle() int                     { return c.spec.MinIdle }

func (c SQLClientConfig) MapUnderscoreToCamelCase() bool {
	return c.spec.MapUnderscoreToCamelCase == nil || *c.spec.MapUnderscoreToCamelCase
}

// Spec returns a detached copy of the values the config was built from,
// defaults included.
func (c SQLClientConfig) Spec() SQLClientSpec {
	s := c.spec
	s.MapperScanRoots = copyStrings(s.MapperScanRoots)
	s.MapperLocations = copyStrings(s.MapperLocations)
	if s.MapUnderscoreToCamelCase != nil {
		camel := *s.MapUnderscoreToCamelCase
		s.MapUnderscoreToCamelCase = &camel
	}
	return s
}

func (c SQLClientConfig) String() string {
	return fmt.Sprintf("SQLClientConfig{driver=%s, url=%s, username=%s, password=%s, mapperScanRoots=%v, mapperLocations=%v, "+
		"mapUnderscoreToCamelCase=%t, connectionTimeout=%v, validationTimeout=%v, idleTimeout=%v, maxLifetime=%v, maxPoolSize=%d, minIdle=%d}",
		c.spec.Driver, c.spec.URL, c.spec.Username, maskedPassword, c.spec.MapperScanRoots, c.spec.MapperLocations,
		c.MapUnderscoreToCamelCase(), c.spec.ConnectionTimeout, c.spec.ValidationTimeout, c.spec.IdleTimeout,
		c.spec.MaxLifetime, c.spec.MaxPoolSize, c.spec.MinIdle)
}

// SQLClientConfigBuilder assembles a SQLClientSpec field by field.
type SQLClientConfigBuilder struct {
	spec SQLClientSpec
}

func NewSQLClientConfigBuilder() *SQLClientConfigBuilder {
	return &SQLClientConfigBuilder{}
}

func (b *SQLClientConfigBuilder) Driver(v string) *SQLClientConfigBuilder {
	b.spec.Driver = v
	return b
}

func (b *SQLClientConfigBuilder) URL(v string) *SQLClientConfigBuilder {
	b.spec.URL = v
	return b
}

func (b *SQLClientConfigBuilder) Username(v string) *SQLClientConfigBuilder {
	b.spec.Username = v
	return b
}

func (b *SQLClientConfigBuilder) Password(v string) *SQLClientConfigBuilder {
	b.spec.Password = v
	return b
}

func (b *SQLClientConfigBuilder) MapperScanRoots(roots ...string) *SQLClientConfigBuilder {
	b.spec.MapperScanRoots = copyStrings(roots)
	return b
}

func (b *SQLClientConfigBuilder) AddMapperScanRoot(root string) *SQLClientConfigBuilder {
	b.spec.MapperScanRoots = append(b.spec.MapperScanRoots, root)
	return b
}

func (b *SQLClientConfigBuilder) MapperLocations(patterns ...string) *SQLClientConfigBuilder {
	b.spec.MapperLocations = copyStrings(patterns)
	return b
}

func (b *SQLClientConfigBuilder) AddMapperLocation(pattern string) *SQLClientConfigBuilder {
	b.spec.MapperLocations = append(b.spec.MapperLocations, pattern)
	return b
}

func (b *SQLClientConfigBuilder) MapUnderscoreToCamelCase(v bool) *SQLClientConfigBuilder {
	b.spec.MapUnderscoreToCamelCase = &v
	return b
}

func (b *SQLClientConfigBuilder) ConnectionTimeout(v time.Duration) *SQLClientConfigBuilder {
	b.spec.ConnectionTimeout = v
	return b
}

func (b *SQLClientConfigBuilder) ValidationTimeout(v time.Duration) *SQLClientConfigBuilder {
	b.spec.ValidationTimeout = v
	return b
}

func (b *SQLClientConfigBuilder) IdleTimeout(v time.Duration) *SQLClientConfigBuilder {
	b.spec.IdleTimeout = v
	return b
}

func (b *SQLClientConfigBuilder) MaxLifetime(v time.Duration) *SQLClientConfigBuilder {
	b.spec.MaxLifetime = v
	return b
}

func (b *SQLClientConfigBuilder) MaxPoolSize(v int) *SQLClientConfigBuilder {
	b.spec.MaxPoolSize = v
	return b
}

func (b *SQLClientConfigBuilder) MinIdle(v int) *SQLClientConfigBuilder {
	b.spec.MinIdle = v
	return b
}

func (b *SQLClientConfigBuilder) Build() (SQLClientConfig, error) {
	return b.spec.Build()
}
