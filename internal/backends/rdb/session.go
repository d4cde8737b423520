package rdb

import (
	"bedrock/internal/mapping"
	"bedrock/internal/types"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// BatchResult reports one statement executed by Flush.
type BatchResult struct {
	StatementID  string
	RowsAffected int64
}

type pendingExec struct {
	st   *mapping.Statement
	args []any
}

// Session is one borrowed pooled connection plus its execution mode. It is
// not safe for concurrent use and must be closed exactly once; Close releases
// the connection and rolls back any open transaction.
//
// Statement arguments are passed through to gorm: positional values for ?
// placeholders, or a map[string]any, a struct or sql.Named values for @name
// placeholders.
type Session struct {
	factory *SessionFactory
	mode    Mode
	conn    *sql.Conn
	tx      *sql.Tx
	stmts   *stmtCache
	orm     *gorm.DB
	pending []pendingExec
	closed  bool
}

func (s *Session) Mode() Mode { return s.mode }

// SelectOne scans at most one row into dest, which must be a non-nil pointer.
// It reports false when the statement returned no row.
func (s *Session) SelectOne(ctx context.Context, id string, dest any, args ...any) (bool, error) {
	st, err := s.statement(id, true)
	if err != nil {
		return false, err
	}
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return false, fmt.Errorf("statement [%s]: destination must be a non-nil pointer, got %T", st.ID, dest)
	}
	rows := reflect.New(reflect.SliceOf(rv.Elem().Type()))
	if err := s.query(ctx, st, rows.Interface(), args); err != nil {
		return false, err
	}
	switch n := rows.Elem().Len(); n {
	case 0:
		return false, nil
	case 1:
		rv.Elem().Set(rows.Elem().Index(0))
		return true, nil
	default:
		return false, &types.CommandError{Command: st.ID, Err: fmt.Errorf("expected one result (or null) but found %d", n)}
	}
}

// SelectList scans every row into dest, a pointer to a slice. Existing
// elements are discarded.
func (s *Session) SelectList(ctx context.Context, id string, dest any, args ...any) error {
	st, err := s.statement(id, true)
	if err != nil {
		return err
	}
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("statement [%s]: destination must be a pointer to a slice, got %T", st.ID, dest)
	}
	rv.Elem().SetLen(0)
	return s.query(ctx, st, dest, args)
}

// Exec runs an insert, update or delete and returns the affected row count.
// With the batch executor the statement is queued and 0 is returned; counts
// are reported by Flush.
func (s *Session) Exec(ctx context.Context, id string, args ...any) (int64, error) {
	st, err := s.statement(id, false)
	if err != nil {
		return 0, err
	}
	if s.mode.Executor == types.ExecutorBatch {
		s.pending = append(s.pending, pendingExec{st: st, args: args})
		return 0, nil
	}
	return s.exec(ctx, st, args)
}

// Flush runs the queued batch in order. On failure the results of the
// statements that ran are returned with the error and the rest of the batch
// is dropped.
func (s *Session) Flush(ctx context.Context) ([]BatchResult, error) {
	if s.closed {
		return nil, types.ErrSessionClosed
	}
	pending := s.pending
	s.pending = nil
	results := make([]BatchResult, 0, len(pending))
	for _, p := range pending {
		n, err := s.exec(ctx, p.st, p.args)
		if err != nil {
			return results, err
		}
		results = append(results, BatchResult{StatementID: p.st.ID, RowsAffected: n})
	}
	return results, nil
}

// Commit flushes pending statements and commits the open transaction. In
// auto-commit mode only the flush happens. The next statement starts a new
// transaction.
func (s *Session) Commit(ctx context.Context) error {
	if _, err := s.Flush(ctx); err != nil {
		return err
	}
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.endTx()
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Rollback discards pending statements and rolls the open transaction back.
func (s *Session) Rollback(_ context.Context) error {
	if s.closed {
		return types.ErrSessionClosed
	}
	s.pending = nil
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.endTx()
	if err != nil {
		return fmt.Errorf("failed to roll back: %w", err)
	}
	return nil
}

// Close returns the connection to the pool. Calling it again is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.pending = nil
	var errs []error
	if s.tx != nil {
		if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, err)
		}
		s.tx = nil
	}
	if err := s.release(); err != nil {
		errs = append(errs, err)
	}
	log.WithField("id", s.factory.id).Debug("sql session closed")
	return errors.Join(errs...)
}

// ORM returns a gorm handle bound to this session's connection and
// transaction, for queries that are not mapped statements.
func (s *Session) ORM(ctx context.Context) (*gorm.DB, error) {
	if _, err := s.Flush(ctx); err != nil {
		return nil, err
	}
	return s.handle(ctx)
}

// Mapper returns a view of the session that qualifies statement names with
// namespace.
func (s *Session) Mapper(namespace string) *Mapper {
	return &Mapper{session: s, namespace: namespace}
}

func (s *Session) statement(id string, query bool) (*mapping.Statement, error) {
	if s.closed {
		return nil, types.ErrSessionClosed
	}
	st, ok := s.factory.mappings.Statement(id)
	if !ok {
		return nil, fmt.Errorf("%w: [%s]", types.ErrUnknownStatement, id)
	}
	if st.Kind.IsQuery() != query {
		return nil, fmt.Errorf("statement [%s] is a %s statement", st.ID, st.Kind)
	}
	return st, nil
}

func (s *Session) query(ctx context.Context, st *mapping.Statement, dest any, args []any) error {
	if _, err := s.Flush(ctx); err != nil {
		return err
	}
	orm, err := s.handle(ctx)
	if err != nil {
		return err
	}
	if err := orm.Raw(st.SQL, args...).Scan(dest).Error; err != nil {
		return &types.CommandError{Command: st.ID, Err: err}
	}
	return nil
}

func (s *Session) exec(ctx context.Context, st *mapping.Statement, args []any) (int64, error) {
	orm, err := s.handle(ctx)
	if err != nil {
		return 0, err
	}
	res := orm.Exec(st.SQL, args...)
	if res.Error != nil {
		return 0, &types.CommandError{Command: st.ID, Err: res.Error}
	}
	return res.RowsAffected, nil
}

// handle returns the gorm handle for one statement, starting a transaction
// first when the previous one ended.
func (s *Session) handle(ctx context.Context) (*gorm.DB, error) {
	if s.closed {
		return nil, types.ErrSessionClosed
	}
	if !s.mode.AutoCommit && s.tx == nil {
		if err := s.begin(ctx); err != nil {
			return nil, err
		}
		s.rebind()
	}
	return s.orm.WithContext(ctx), nil
}

// begin detaches the transaction from ctx: database/sql rolls a transaction
// back when its context ends, and a session transaction ends only through
// Commit, Rollback or Close.
func (s *Session) begin(ctx context.Context) error {
	tx, err := s.conn.BeginTx(context.WithoutCancel(ctx), s.factory.txOptions(s.mode))
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = tx
	if s.stmts != nil {
		s.stmts.bindTx(tx)
	}
	return nil
}

// endTx drops the finished transaction. Statements prepared inside it are
// closed with it, so the reuse cache starts over.
func (s *Session) endTx() {
	s.tx = nil
	if s.stmts != nil {
		s.stmts.bindTx(nil)
	}
	s.rebind()
}

func (s *Session) rebind() {
	s.orm = s.factory.bind(s.connPool())
}

func (s *Session) connPool() gorm.ConnPool {
	switch {
	case s.stmts != nil:
		return s.stmts
	case s.tx != nil:
		return s.tx
	default:
		return s.conn
	}
}

func (s *Session) release() error {
	if s.stmts != nil {
		s.stmts.reset()
	}
	return s.conn.Close()
}

// Mapper is a namespace-bound view of a Session.
type Mapper struct {
	session   *Session
	namespace string
}

func (m *Mapper) Namespace() string { return m.namespace }

func (m *Mapper) SelectOne(ctx context.Context, name string, dest any, args ...any) (bool, error) {
	return m.session.SelectOne(ctx, m.qualify(name), dest, args...)
}

func (m *Mapper) SelectList(ctx context.Context, name string, dest any, args ...any) error {
	return m.session.SelectList(ctx, m.qualify(name), dest, args...)
}

func (m *Mapper) Exec(ctx context.Context, name string, args ...any) (int64, error) {
	return m.session.Exec(ctx, m.qualify(name), args...)
}

func (m *Mapper) qualify(name string) string {
	return m.namespace + "." + name
}
