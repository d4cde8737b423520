package config

import (
	"bedrock/internal/types"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/stretchr/testify/mock"
)

const clientFile = `
kv:
  DEFAULT:
    host: cache.internal
    port: 6379
    password: ${TEST_REDIS_PASS}
    connect_timeout: 2s
    max_total: 16
sql:
  main:
    driver: pgx
    url: postgres://db.internal:5432/app
    username: app
    password: ${TEST_SQL_PASS}
    mapper_scan_roots: [db]
    mapper_locations:
      - "classpath*:db/mappers/**/*.xml"
    map_underscore_to_camel_case: false
    max_pool_size: 5
`

func (s *UnitTestSuite) TestParseExpandsEnvironment() {
	s.T().Setenv("TEST_REDIS_PASS", "kv-secret")
	s.T().Setenv("TEST_SQL_PASS", "sql-secret")

	specs, err := Parse([]byte(clientFile))
	s.Require().NoError(err)
	s.Equal([]string{types.DefaultClientID}, specs.KVIDs())
	s.Equal([]string{"main"}, specs.SQLIDs())

	kv := specs.KV[types.DefaultClientID]
	s.Equal("cache.internal", kv.Host)
	s.Equal("kv-secret", kv.Password)
	s.Equal(2*time.Second, kv.ConnectTimeout)
	s.Equal(16, kv.MaxTotal)

	sqlSpec := specs.SQL["main"]
	s.Equal("sql-secret", sqlSpec.Password)
	s.Equal([]string{"db"}, sqlSpec.MapperScanRoots)
	s.Equal([]string{"classpath*:db/mappers/**/*.xml"}, sqlSpec.MapperLocations)
	cfg, err := sqlSpec.Build()
	s.Require().NoError(err)
	s.False(cfg.MapUnderscoreToCamelCase())
	s.Equal(5, cfg.MaxPoolSize())
}

func (s *UnitTestSuite) TestParseRejectsInvalidEntries() {
	s.T().Setenv("TEST_SQL_PASS", "")
	_, err := Parse([]byte(`
sql:
  main:
    driver: pgx
    url: postgres://db/app
    username: app
    password: ${TEST_SQL_PASS}
`))
	var cfgErr *types.ConfigValidationError
	s.Require().ErrorAs(err, &cfgErr)
	s.Equal("password", cfgErr.Field)
	s.Contains(err.Error(), "sql client [main]")

	_, err = Parse([]byte("kv:\n  c:\n    host: h\n    port: 1\n    colour: blue\n"))
	s.Error(err)
}

func (s *UnitTestSuite) TestLoad() {
	s.T().Setenv("TEST_REDIS_PASS", "x")
	s.T().Setenv("TEST_SQL_PASS", "y")
	path := filepath.Join(s.T().TempDir(), "clients.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(clientFile), 0o600))

	specs, err := Load(path)
	s.Require().NoError(err)
	s.False(specs.Empty())

	_, err = Load(filepath.Join(s.T().TempDir(), "missing.yaml"))
	s.Error(err)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetSQLSpec(ctx context.Context, id string) (types.SQLClientSpec, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.SQLClientSpec), args.Error(1)
}

func (m *mockStore) GetKVSpec(ctx context.Context, id string) (types.KVClientSpec, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.KVClientSpec), args.Error(1)
}

func (m *mockStore) PutSQLSpec(ctx context.Context, id string, spec types.SQLClientSpec) error {
	return m.Called(ctx, id, spec).Error(0)
}

func (m *mockStore) PutKVSpec(ctx context.Context, id string, spec types.KVClientSpec) error {
	return m.Called(ctx, id, spec).Error(0)
}

func (m *mockStore) ListClients(ctx context.Context, kind string) ([]string, error) {
	args := m.Called(ctx, kind)
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockStore) DeleteClientSpec(ctx context.Context, kind, id string) error {
	return m.Called(ctx, kind, id).Error(0)
}

func (m *mockStore) ClearAll(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (s *UnitTestSuite) TestFromStore() {
	ctx := context.Background()
	store := &mockStore{}
	kv := types.KVClientSpec{Host: "cache", Port: 6379}
	sqlSpec := types.SQLClientSpec{Driver: "pgx", URL: "postgres://db/app", Username: "app", Password: "pw"}
	store.On("ListClients", ctx, types.ClientKindKV).Return([]string{"cache"}, nil)
	store.On("ListClients", ctx, types.ClientKindSQL).Return([]string{"main"}, nil)
	store.On("GetKVSpec", ctx, "cache").Return(kv, nil)
	store.On("GetSQLSpec", ctx, "main").Return(sqlSpec, nil)

	specs, err := FromStore(ctx, store)
	s.Require().NoError(err)
	s.Equal(kv, specs.KV["cache"])
	s.Equal(sqlSpec, specs.SQL["main"])
	store.AssertExpectations(s.T())
}

func (s *UnitTestSuite) TestFromStorePropagatesMisses() {
	ctx := context.Background()
	store := &mockStore{}
	store.On("ListClients", ctx, types.ClientKindKV).Return([]string{"gone"}, nil)
	store.On("GetKVSpec", ctx, "gone").Return(types.KVClientSpec{}, &types.UnknownClientError{Kind: types.ClientKindKV, ID: "gone"})

	_, err := FromStore(ctx, store)
	s.ErrorIs(err, types.ErrUnknownClient)
}
