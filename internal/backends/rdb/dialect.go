package rdb

import (
	"bedrock/internal/types"
	"database/sql"
	"strings"
	"sync"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Dialect opens the connection pool of one database family and tells gorm
// how to speak to it.
type Dialect interface {
	Name() string
	// Open returns a lazily connecting pool; sizing is applied by the caller.
	Open(cfg types.SQLClientConfig) (*sql.DB, error)
	Dialector(db *sql.DB) gorm.Dialector
	// SupportsIsolation reports whether explicit isolation levels are passed
	// to the driver when a transaction begins.
	SupportsIsolation() bool
}

var (
	dialectsMu sync.RWMutex
	dialects   = map[string]Dialect{}
)

func init() {
	for _, name := range []string{"pgx", "postgres", "postgresql", "org.postgresql.Driver"} {
		RegisterDialect(name, postgresDialect{})
	}
	for _, name := range []string{"sqlite", "sqlite3", "org.sqlite.JDBC"} {
		RegisterDialect(name, sqliteDialect{})
	}
}

// RegisterDialect binds a driver identifier to a dialect, replacing any
// previous binding. Identifiers are case-insensitive.
func RegisterDialect(driver string, d Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[strings.ToLower(strings.TrimSpace(driver))] = d
}

func LookupDialect(driver string) (Dialect, error) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	d, ok := dialects[strings.ToLower(strings.TrimSpace(driver))]
	if !ok {
		return nil, types.Err(types.ErrUnsupportedDialect, nil, "no dialect registered for driver [%s]", driver)
	}
	return d, nil
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

// Open parses the URL with pgx and injects the configured credentials, so
// passwords never need to be embedded in the URL.
func (postgresDialect) Open(cfg types.SQLClientConfig) (*sql.DB, error) {
	connConfig, err := pgx.ParseConfig(strings.TrimPrefix(cfg.URL(), "jdbc:"))
	if err != nil {
		return nil, err
	}
	connConfig.User = cfg.Username()
	connConfig.Password = cfg.Password()
	connConfig.ConnectTimeout = cfg.ConnectionTimeout()
	return stdlib.OpenDB(*connConfig), nil
}

func (postgresDialect) Dialector(db *sql.DB) gorm.Dialector {
	return postgres.New(postgres.Config{Conn: db})
}

func (postgresDialect) SupportsIsolation() bool { return true }

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

// Open ignores the credentials; SQLite has no authentication.
func (sqliteDialect) Open(cfg types.SQLClientConfig) (*sql.DB, error) {
	dsn := strings.TrimPrefix(cfg.URL(), "jdbc:sqlite:")
	return sql.Open(sqlite.DriverName, dsn)
}

func (sqliteDialect) Dialector(db *sql.DB) gorm.Dialector {
	return &sqlite.Dialector{Conn: db}
}

// SQLite transactions are always serializable.
func (sqliteDialect) SupportsIsolation() bool { return false }
