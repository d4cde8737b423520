package rdb

import (
	"bedrock/internal/resource"
	"bedrock/internal/types"
	"context"
	"errors"
	"path/filepath"
	"testing/fstest"
	"time"
)

const accountXML = `<?xml version="1.0" encoding="UTF-8"?>
<mapper namespace="account">
    <sql id="cols">id, owner_name, balance</sql>
    <select id="findById">SELECT <include refid="cols"/> FROM accounts WHERE id = #{id}</select>
    <select id="findAliased">SELECT id AS ID, owner_name AS OwnerName, balance AS Balance FROM accounts WHERE id = #{id}</select>
    <select id="listAll">SELECT <include refid="cols"/> FROM accounts ORDER BY id</select>
    <select id="count">SELECT count(*) FROM accounts</select>
    <insert id="insert">INSERT INTO accounts (id, owner_name, balance) VALUES (#{id}, #{owner}, #{balance})</insert>
    <update id="deposit">UPDATE accounts SET balance = balance + #{amount} WHERE id = #{id}</update>
    <delete id="deleteAll">DELETE FROM accounts</delete>
</mapper>`

type account struct {
	ID        int64
	OwnerName string
	Balance   int64
}

func mapperFS() fstest.MapFS {
	return fstest.MapFS{
		"db/mappers/account.xml": {Data: []byte(accountXML)},
		"db/mappers/README.md":   {Data: []byte("ignored")},
	}
}

func (s *UnitTestSuite) newClient(tune func(b *types.SQLClientConfigBuilder)) (*Client, error) {
	b := types.NewSQLClientConfigBuilder().
		Driver("sqlite").
		URL(filepath.Join(s.T().TempDir(), "bedrock.db")).
		Username("sa").
		Password("secret").
		MapperScanRoots("db").
		MapperLocations("classpath*:db/mappers/*.xml")
	if tune != nil {
		tune(b)
	}
	cfg, err := b.Build()
	s.Require().NoError(err)
	return NewClient(context.Background(), "main", cfg, resource.NewFSSource(mapperFS()))
}

func (s *UnitTestSuite) SetupTest() {
	client, err := s.newClient(nil)
	s.Require().NoError(err)
	s.client = client
	s.createSchema(client)
}

func (s *UnitTestSuite) TearDownTest() {
	if s.client != nil {
		s.NoError(s.client.Close())
		s.client = nil
	}
}

func (s *UnitTestSuite) createSchema(client *Client) {
	ctx := context.Background()
	sess, err := client.Session(ctx)
	s.Require().NoError(err)
	defer sess.Close()
	orm, err := sess.ORM(ctx)
	s.Require().NoError(err)
	s.Require().NoError(orm.Exec(`CREATE TABLE accounts (
		id INTEGER PRIMARY KEY,
		owner_name TEXT NOT NULL,
		balance INTEGER NOT NULL DEFAULT 0)`).Error)
}

func (s *UnitTestSuite) insert(sess *Session, id int64, owner string, balance int64) {
	n, err := sess.Exec(context.Background(), "account.insert", map[string]any{"id": id, "owner": owner, "balance": balance})
	s.Require().NoError(err)
	if sess.Mode().Executor != types.ExecutorBatch {
		s.Equal(int64(1), n)
	}
}

func (s *UnitTestSuite) count(client *Client) int64 {
	ctx := context.Background()
	sess, err := client.Session(ctx)
	s.Require().NoError(err)
	defer sess.Close()
	var n int64
	found, err := sess.SelectOne(ctx, "account.count", &n)
	s.Require().NoError(err)
	s.Require().True(found)
	return n
}

func (s *UnitTestSuite) TestClientIdentity() {
	s.Equal("main", s.client.ID())
	s.Equal(types.ClientKindSQL, s.client.Kind())
	s.Equal("sqlite", s.client.Config().Driver())
	s.Equal([]string{"db/mappers/account.xml"}, s.client.Mappings().Resources())
	s.NoError(s.client.Ping(context.Background()))
	s.Equal(types.DefaultSQLMaxPoolSize, s.client.Stats().MaxOpenConnections)
}

func (s *UnitTestSuite) TestDefaultSessionSelectAndExec() {
	ctx := context.Background()
	sess, err := s.client.Session(ctx)
	s.Require().NoError(err)
	defer sess.Close()

	s.Equal(DefaultMode(), sess.Mode())
	s.True(sess.Mode().AutoCommit)
	s.Equal(types.ExecutorSimple, sess.Mode().Executor)
	s.Equal(types.IsolationRepeatableRead, sess.Mode().Isolation)

	s.insert(sess, 1, "ann", 10)
	s.insert(sess, 2, "bob", 20)

	var a account
	found, err := sess.SelectOne(ctx, "account.findById", &a, map[string]any{"id": 1})
	s.Require().NoError(err)
	s.True(found)
	s.Equal(account{ID: 1, OwnerName: "ann", Balance: 10}, a)

	n, err := sess.Exec(ctx, "account.deposit", map[string]any{"id": 2, "amount": 5})
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	all := []account{{ID: 99}}
	s.Require().NoError(sess.SelectList(ctx, "listAll", &all))
	s.Equal([]account{{1, "ann", 10}, {2, "bob", 25}}, all)

	found, err = sess.SelectOne(ctx, "account.findById", &a, map[string]any{"id": 42})
	s.Require().NoError(err)
	s.False(found)
}

func (s *UnitTestSuite) TestSelectOneRejectsSeveralRows() {
	ctx := context.Background()
	sess, err := s.client.Session(ctx)
	s.Require().NoError(err)
	defer sess.Close()
	s.insert(sess, 1, "ann", 10)
	s.insert(sess, 2, "bob", 20)

	var a account
	_, err = sess.SelectOne(ctx, "account.listAll", &a)
	var cmdErr *types.CommandError
	s.Require().ErrorAs(err, &cmdErr)
	s.Equal("account.listAll", cmdErr.Command)
	s.ErrorIs(err, types.ErrCommand)
}

func (s *UnitTestSuite) TestStatementLookupErrors() {
	ctx := context.Background()
	sess, err := s.client.Session(ctx)
	s.Require().NoError(err)
	defer sess.Close()

	var a account
	_, err = sess.SelectOne(ctx, "account.nope", &a)
	s.ErrorIs(err, types.ErrUnknownStatement)

	_, err = sess.Exec(ctx, "account.findById", map[string]any{"id": 1})
	s.Error(err)

	_, err = sess.SelectOne(ctx, "account.findById", a, map[string]any{"id": 1})
	s.Error(err)

	var ids []int64
	_, err = sess.Exec(ctx, "account.insert", map[string]any{"id": 1, "owner": nil, "balance": 0})
	var cmdErr *types.CommandError
	s.Require().ErrorAs(err, &cmdErr)
	s.Equal("account.insert", cmdErr.Command)
	s.NoError(sess.SelectList(ctx, "account.count", &ids))
	s.Equal([]int64{0}, ids)
}

func (s *UnitTestSuite) TestMapperView() {
	ctx := context.Background()
	sess, err := s.client.Session(ctx)
	s.Require().NoError(err)
	defer sess.Close()

	m := sess.Mapper("account")
	s.Equal("account", m.Namespace())
	_, err = m.Exec(ctx, "insert", map[string]any{"id": 7, "owner": "eve", "balance": 1})
	s.Require().NoError(err)

	var a account
	found, err := m.SelectOne(ctx, "findById", &a, map[string]any{"id": 7})
	s.Require().NoError(err)
	s.True(found)
	s.Equal("eve", a.OwnerName)

	var all []account
	s.Require().NoError(m.SelectList(ctx, "listAll", &all))
	s.Len(all, 1)

	_, err = sess.Mapper("missing").Exec(ctx, "insert")
	s.ErrorIs(err, types.ErrUnknownStatement)
}

func (s *UnitTestSuite) TestIsolationOnlySessionDisablesAutoCommit() {
	ctx := context.Background()
	sess, err := s.client.SessionWithIsolation(ctx, types.IsolationReadCommitted)
	s.Require().NoError(err)
	defer sess.Close()

	s.False(sess.Mode().AutoCommit)
	s.Equal(types.ExecutorSimple, sess.Mode().Executor)
	s.Equal(types.IsolationReadCommitted, sess.Mode().Isolation)

	s.insert(sess, 1, "ann", 10)
	s.Require().NoError(sess.Rollback(ctx))

	var n int64
	_, err = sess.SelectOne(ctx, "account.count", &n)
	s.Require().NoError(err)
	s.Equal(int64(0), n)
}

func (s *UnitTestSuite) TestExecutorOnlySessionAutoCommits() {
	ctx := context.Background()
	sess, err := s.client.SessionWithExecutor(ctx, types.ExecutorReuse)
	s.Require().NoError(err)
	s.True(sess.Mode().AutoCommit)
	s.Equal(types.ExecutorReuse, sess.Mode().Executor)
	s.insert(sess, 1, "ann", 10)
	s.NoError(sess.Close())

	s.Equal(int64(1), s.count(s.client))
}

func (s *UnitTestSuite) TestCommitPersists() {
	ctx := context.Background()
	sess, err := s.client.SessionWith(ctx, types.ExecutorSimple, types.IsolationSerializable)
	s.Require().NoError(err)
	s.False(sess.Mode().AutoCommit)
	s.insert(sess, 1, "ann", 10)
	s.Require().NoError(sess.Commit(ctx))
	s.insert(sess, 2, "bob", 20)
	s.Require().NoError(sess.Commit(ctx))
	s.NoError(sess.Close())

	s.Equal(int64(2), s.count(s.client))
}

func (s *UnitTestSuite) TestTransactionOutlivesStatementContext() {
	ctx := context.Background()
	sess, err := s.client.SessionWithIsolation(ctx, types.IsolationNone)
	s.Require().NoError(err)
	defer sess.Close()
	s.Require().NoError(sess.Commit(ctx))

	// the next statement starts the transaction under a short-lived context
	stmtCtx, cancel := context.WithTimeout(ctx, time.Minute)
	_, err = sess.Exec(stmtCtx, "account.insert", map[string]any{"id": 1, "owner": "ann", "balance": 10})
	s.Require().NoError(err)
	cancel()

	s.insert(sess, 2, "bob", 20)
	s.Require().NoError(sess.Commit(ctx))
	s.Equal(int64(2), s.count(s.client))
}

func (s *UnitTestSuite) TestTransactionOutlivesOpenContext() {
	openCtx, cancel := context.WithCancel(context.Background())
	sess, err := s.client.SessionWithIsolation(openCtx, types.IsolationNone)
	s.Require().NoError(err)
	defer sess.Close()
	cancel()

	ctx := context.Background()
	s.insert(sess, 1, "ann", 10)
	s.Require().NoError(sess.Commit(ctx))
	s.Equal(int64(1), s.count(s.client))
}

func (s *UnitTestSuite) TestCloseRollsBackAndIsIdempotent() {
	ctx := context.Background()
	sess, err := s.client.SessionWithIsolation(ctx, types.IsolationNone)
	s.Require().NoError(err)
	s.insert(sess, 1, "ann", 10)

	s.NoError(sess.Close())
	s.NoError(sess.Close())
	s.Equal(0, s.client.Stats().InUse)

	_, err = sess.Exec(ctx, "account.insert", map[string]any{"id": 2, "owner": "bob", "balance": 0})
	s.ErrorIs(err, types.ErrSessionClosed)
	_, err = sess.Flush(ctx)
	s.ErrorIs(err, types.ErrSessionClosed)
	s.ErrorIs(sess.Commit(ctx), types.ErrSessionClosed)

	s.Equal(int64(0), s.count(s.client))
}

func (s *UnitTestSuite) TestBatchExecutorQueuesUntilFlush() {
	ctx := context.Background()
	sess, err := s.client.SessionWithExecutor(ctx, types.ExecutorBatch)
	s.Require().NoError(err)
	defer sess.Close()

	n, err := sess.Exec(ctx, "account.insert", map[string]any{"id": 1, "owner": "ann", "balance": 10})
	s.Require().NoError(err)
	s.Equal(int64(0), n)
	s.insert(sess, 2, "bob", 20)
	s.Equal(int64(0), s.count(s.client))

	results, err := sess.Flush(ctx)
	s.Require().NoError(err)
	s.Equal([]BatchResult{
		{StatementID: "account.insert", RowsAffected: 1},
		{StatementID: "account.insert", RowsAffected: 1},
	}, results)

	// a select flushes pending writes first
	s.insert(sess, 3, "cat", 30)
	var total int64
	_, err = sess.SelectOne(ctx, "account.count", &total)
	s.Require().NoError(err)
	s.Equal(int64(3), total)

	results, err = sess.Flush(ctx)
	s.NoError(err)
	s.Empty(results)
}

func (s *UnitTestSuite) TestBatchFlushStopsAtFirstFailure() {
	ctx := context.Background()
	sess, err := s.client.SessionWithExecutor(ctx, types.ExecutorBatch)
	s.Require().NoError(err)
	defer sess.Close()

	s.insert(sess, 1, "ann", 10)
	s.insert(sess, 1, "dup", 10)
	s.insert(sess, 2, "bob", 20)

	results, err := sess.Flush(ctx)
	var cmdErr *types.CommandError
	s.Require().ErrorAs(err, &cmdErr)
	s.Len(results, 1)
	s.Equal(int64(1), s.count(s.client))
}

func (s *UnitTestSuite) TestBatchRollbackDiscardsPending() {
	ctx := context.Background()
	sess, err := s.client.SessionWith(ctx, types.ExecutorBatch, types.IsolationRepeatableRead)
	s.Require().NoError(err)
	defer sess.Close()

	s.insert(sess, 1, "ann", 10)
	s.Require().NoError(sess.Rollback(ctx))
	s.Require().NoError(sess.Commit(ctx))
	s.Equal(int64(0), s.count(s.client))

	s.insert(sess, 2, "bob", 20)
	s.Require().NoError(sess.Commit(ctx))
	s.Equal(int64(1), s.count(s.client))
}

func (s *UnitTestSuite) TestReuseExecutorCachesStatements() {
	ctx := context.Background()
	sess, err := s.client.SessionWith(ctx, types.ExecutorReuse, types.IsolationRepeatableRead)
	s.Require().NoError(err)
	defer sess.Close()

	s.insert(sess, 1, "ann", 10)
	s.insert(sess, 2, "bob", 20)
	var a account
	for _, id := range []int64{1, 2} {
		found, err := sess.SelectOne(ctx, "account.findById", &a, map[string]any{"id": id})
		s.Require().NoError(err)
		s.True(found)
	}
	s.Equal(2, sess.stmts.len())

	s.Require().NoError(sess.Commit(ctx))
	s.Equal(0, sess.stmts.len())

	// statements prepared in the finished transaction are not reused
	s.insert(sess, 3, "cat", 30)
	s.Require().NoError(sess.Commit(ctx))
	s.Equal(int64(3), s.count(s.client))
}

func (s *UnitTestSuite) TestCamelCaseMappingDisabled() {
	client, err := s.newClient(func(b *types.SQLClientConfigBuilder) {
		b.MapUnderscoreToCamelCase(false)
	})
	s.Require().NoError(err)
	defer client.Close()
	s.createSchema(client)

	ctx := context.Background()
	sess, err := client.Session(ctx)
	s.Require().NoError(err)
	defer sess.Close()
	s.insert(sess, 1, "ann", 10)

	var a account
	found, err := sess.SelectOne(ctx, "account.findById", &a, map[string]any{"id": 1})
	s.Require().NoError(err)
	s.True(found)
	s.Empty(a.OwnerName)

	found, err = sess.SelectOne(ctx, "account.findAliased", &a, map[string]any{"id": 1})
	s.Require().NoError(err)
	s.True(found)
	s.Equal(account{ID: 1, OwnerName: "ann", Balance: 10}, a)
}

func (s *UnitTestSuite) TestPoolExhausted() {
	client, err := s.newClient(func(b *types.SQLClientConfigBuilder) {
		b.MaxPoolSize(1).ConnectionTimeout(100 * time.Millisecond)
	})
	s.Require().NoError(err)
	defer client.Close()

	ctx := context.Background()
	held, err := client.Session(ctx)
	s.Require().NoError(err)

	_, err = client.Session(ctx)
	var pe *types.PoolExhaustedError
	s.Require().ErrorAs(err, &pe)
	s.Equal("main", pe.ClientID)
	s.Equal(100*time.Millisecond, pe.Timeout)
	s.ErrorIs(err, types.ErrPoolExhausted)

	s.NoError(held.Close())
	sess, err := client.Session(ctx)
	s.Require().NoError(err)
	s.NoError(sess.Close())
}

func (s *UnitTestSuite) TestCanceledContextIsNotPoolExhaustion() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.client.Session(ctx)
	s.ErrorIs(err, context.Canceled)
	s.False(errors.Is(err, types.ErrPoolExhausted))
}

func (s *UnitTestSuite) TestBadMappingAbortsConstruction() {
	cfg, err := types.NewSQLClientConfigBuilder().
		Driver("sqlite").
		URL(filepath.Join(s.T().TempDir(), "bad.db")).
		Username("sa").
		Password("secret").
		MapperScanRoots("mappers").
		MapperLocations("mappers/**/*.xml").
		Build()
	s.Require().NoError(err)

	source := resource.NewFSSource(fstest.MapFS{
		"mappers/good.xml":   {Data: []byte(accountXML)},
		"mappers/x/bad.xml":  {Data: []byte(`<mapper namespace="bad"><select id="a">SELECT 1`)},
		"mappers/other.yaml": {Data: []byte("not: [matched")},
	})
	client, err := NewClient(context.Background(), "broken", cfg, source)
	s.Nil(client)

	var initErr *types.ClientInitError
	s.Require().ErrorAs(err, &initErr)
	s.Equal("broken", initErr.ID)
	s.Equal(types.ClientKindSQL, initErr.Kind)
	var parseErr *types.MappingParseError
	s.Require().ErrorAs(err, &parseErr)
	s.Equal("mappers/x/bad.xml", parseErr.Path)
}

func (s *UnitTestSuite) TestMissingScanRootAbortsConstruction() {
	_, err := s.newClient(func(b *types.SQLClientConfigBuilder) {
		b.MapperScanRoots("nowhere")
	})
	var discErr *types.ResourceDiscoveryError
	s.Require().ErrorAs(err, &discErr)
	s.Equal("nowhere", discErr.Root)
	s.ErrorIs(err, types.ErrClientInit)
}

func (s *UnitTestSuite) TestNoLocationsLoadsNothing() {
	client, err := s.newClient(func(b *types.SQLClientConfigBuilder) {
		b.MapperLocations()
	})
	s.Require().NoError(err)
	defer client.Close()
	s.Equal(0, client.Mappings().Len())
}

func (s *UnitTestSuite) TestUnknownDialect() {
	_, err := s.newClient(func(b *types.SQLClientConfigBuilder) {
		b.Driver("com.example.Driver")
	})
	s.ErrorIs(err, types.ErrUnsupportedDialect)
	s.ErrorIs(err, types.ErrClientInit)
}

func (s *UnitTestSuite) TestDialectLookup() {
	for _, name := range []string{"pgx", "POSTGRES", " org.postgresql.Driver "} {
		d, err := LookupDialect(name)
		s.Require().NoError(err)
		s.Equal("postgres", d.Name())
		s.True(d.SupportsIsolation())
	}
	d, err := LookupDialect("sqlite3")
	s.Require().NoError(err)
	s.False(d.SupportsIsolation())
}
