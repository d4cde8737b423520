package rdb

import (
	"bedrock/internal/mapping"
	"bedrock/internal/resource"
	"bedrock/internal/types"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const slowStatementThreshold = 200 * time.Millisecond

// SessionFactory owns the connection pool and the frozen mapping set of one
// relational client. It is immutable after construction and safe for
// concurrent session creation.
type SessionFactory struct {
	id       string
	cfg      types.SQLClientConfig
	dialect  Dialect
	db       *sql.DB
	orm      *gorm.DB
	mappings *mapping.Mappings
}

// NewSessionFactory opens and validates the pool, then loads every mapping
// resource. Any failure closes the pool and aborts construction.
func NewSessionFactory(ctx context.Context, id string, cfg types.SQLClientConfig, resources []resource.Descriptor) (*SessionFactory, error) {
	dialect, err := LookupDialect(cfg.Driver())
	if err != nil {
		return nil, err
	}
	db, err := dialect.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s pool: %w", dialect.Name(), err)
	}
	db.SetMaxOpenConns(cfg.MaxPoolSize())
	db.SetMaxIdleConns(cfg.MaxPoolSize())
	db.SetConnMaxIdleTime(cfg.IdleTimeout())
	db.SetConnMaxLifetime(cfg.MaxLifetime())

	f := &SessionFactory{id: id, cfg: cfg, dialect: dialect, db: db}
	if err := f.init(ctx, resources); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.WithFields(log.Fields{
		"id":         id,
		"dialect":    dialect.Name(),
		"statements": f.mappings.Len(),
	}).Info("sql session factory ready")
	return f, nil
}

func (f *SessionFactory) init(ctx context.Context, resources []resource.Descriptor) error {
	pingCtx, cancel := context.WithTimeout(ctx, f.cfg.ValidationTimeout())
	defer cancel()
	if err := f.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}
	if err := f.warmUp(ctx); err != nil {
		return err
	}

	orm, err := gorm.Open(f.dialect.Dialector(f.db), &gorm.Config{
		Logger:                 newGormLogger(),
		NamingStrategy:         namingStrategy(f.cfg.MapUnderscoreToCamelCase()),
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	if err != nil {
		return fmt.Errorf("failed to init orm: %w", err)
	}
	f.orm = orm

	conf := mapping.NewConfiguration()
	for _, res := range resources {
		if err := loadResource(ctx, conf, res); err != nil {
			return err
		}
	}
	f.mappings, err = conf.Freeze()
	return err
}

func loadResource(ctx context.Context, conf *mapping.Configuration, res resource.Descriptor) error {
	rc, err := res.Open(ctx)
	if err != nil {
		return &types.MappingParseError{Path: res.Path, Err: err}
	}
	defer rc.Close()
	return conf.Parse(res.Path, rc)
}

// warmUp opens MinIdle connections up front so the first sessions do not pay
// for connection setup.
func (f *SessionFactory) warmUp(ctx context.Context) error {
	n := f.cfg.MinIdle()
	if n == 0 {
		return nil
	}
	warmCtx, cancel := context.WithTimeout(ctx, f.cfg.ConnectionTimeout())
	defer cancel()
	conns := make([]*sql.Conn, 0, n)
	defer func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}()
	for i := 0; i < n; i++ {
		c, err := f.db.Conn(warmCtx)
		if err != nil {
			return fmt.Errorf("failed to open %d idle connections: %w", n, err)
		}
		conns = append(conns, c)
	}
	return nil
}

// OpenSession borrows one pooled connection for the lifetime of the session.
// It blocks at most ConnectionTimeout when the pool is exhausted.
func (f *SessionFactory) OpenSession(ctx context.Context, mode Mode) (*Session, error) {
	mode = mode.normalize()
	if err := mode.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acquireCtx, cancel := context.WithTimeout(ctx, f.cfg.ConnectionTimeout())
	defer cancel()
	conn, err := f.db.Conn(acquireCtx)
	if err != nil {
		if errors.Is(acquireCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &types.PoolExhaustedError{ClientID: f.id, Timeout: f.cfg.ConnectionTimeout(), Err: err}
		}
		return nil, err
	}

	s := &Session{factory: f, mode: mode, conn: conn}
	if mode.Executor == types.ExecutorReuse {
		s.stmts = newStmtCache(conn)
	}
	if !mode.AutoCommit {
		if err := s.begin(ctx); err != nil {
			s.release()
			return nil, err
		}
	}
	s.rebind()
	log.WithFields(log.Fields{"id": f.id, "mode": mode.String()}).Debug("sql session opened")
	return s, nil
}

// bind returns a gorm handle whose statements run on pool.
func (f *SessionFactory) bind(pool gorm.ConnPool) *gorm.DB {
	orm := f.orm.Session(&gorm.Session{NewDB: true, Context: context.Background()})
	orm.Statement.ConnPool = pool
	return orm
}

func (f *SessionFactory) txOptions(mode Mode) *sql.TxOptions {
	if !f.dialect.SupportsIsolation() {
		return &sql.TxOptions{Isolation: sql.LevelDefault}
	}
	return &sql.TxOptions{Isolation: mode.Isolation.SQL()}
}

func (f *SessionFactory) ID() string                    { return f.id }
func (f *SessionFactory) Config() types.SQLClientConfig { return f.cfg }
func (f *SessionFactory) Mappings() *mapping.Mappings   { return f.mappings }
func (f *SessionFactory) Dialect() Dialect              { return f.dialect }

func (f *SessionFactory) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, f.cfg.ValidationTimeout())
	defer cancel()
	return f.db.PingContext(pingCtx)
}

func (f *SessionFactory) Stats() sql.DBStats {
	return f.db.Stats()
}

// Close drains the pool. Sessions still open fail on their next statement.
func (f *SessionFactory) Close() error {
	return f.db.Close()
}

func namingStrategy(mapUnderscoreToCamelCase bool) schema.Namer {
	if mapUnderscoreToCamelCase {
		return schema.NamingStrategy{}
	}
	// column names must equal field names
	return schema.NamingStrategy{NoLowerCase: true}
}

func newGormLogger() logger.Interface {
	return logger.New(log.StandardLogger(), logger.Config{
		SlowThreshold:             slowStatementThreshold,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}
