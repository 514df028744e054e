// Package metadata keeps the durable user and file records.
//
// The schema is owned by goose migrations embedded in the binary. SQLite
// (modernc.org/sqlite) is the default backend; PostgreSQL is reached through
// the pgx stdlib driver. Queries are written once with ? placeholders and
// rebound for PostgreSQL.
package metadata

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"filehost/pkg/log"
)

// Supported drivers.
const (
	DriverSQLite = "sqlite"
	DriverPgx    = "pgx"
)

const (
	pingTimeout = 5 * time.Second

	sqliteUniqueViolation = "UNIQUE constraint failed"
	sqliteForeignKeyFail  = "FOREIGN KEY constraint failed"
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// goose keeps its settings in package globals.
var gooseMu sync.Mutex

// Options selects the backend.
type Options struct {
	Driver string
	DSN    string
}

// Store manages user and file records.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database, verifies connectivity and migrates the schema.
func Open(ctx context.Context, opts Options) (*Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	var dsn string
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(opts.DSN)
	case DriverPgx:
		dsn = opts.DSN
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	database, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrDatabaseError, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := database.PingContext(pingCtx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("%w: failed to connect: %w", ErrDatabaseError, err)
	}

	store := NewFromDB(database, driver)
	if err := store.Migrate(ctx); err != nil {
		_ = database.Close()
		return nil, err
	}

	if driver == DriverSQLite {
		// One writer at a time; concurrent requests queue on the pool instead of getting SQLITE_BUSY.
		database.SetMaxOpenConns(1)
	}

	log.Info().Str("driver", driver).Msg("Metadata store ready")
	return store, nil
}

// NewFromDB wraps an existing handle without running migrations.
func NewFromDB(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

// sqliteDSN turns on foreign keys, WAL and a busy timeout for every pooled connection.
func sqliteDSN(path string) string {
	if path == "" {
		path = "filehost.db"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// Migrate applies the embedded schema migrations. Running it twice is a no-op.
func (s *Store) Migrate(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	dialect, dir := "sqlite3", "migrations/sqlite"
	if s.driver == DriverPgx {
		dialect, dir = "postgres", "migrations/postgres"
	}

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("%w: failed to set migration dialect: %w", ErrDatabaseError, err)
	}
	if err := goose.UpContext(ctx, s.db, dir); err != nil {
		return fmt.Errorf("%w: failed to initialize schema: %w", ErrDatabaseError, err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPgx {
		return query
	}

	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), sqliteUniqueViolation)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	return strings.Contains(err.Error(), sqliteForeignKeyFail)
}

// violatedColumn names the column behind a unique violation, when the driver tells us.
func violatedColumn(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName + " " + pgErr.Detail
	}
	return err.Error()
}

// gooseLogger routes migration output through zerolog.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...any) {
	log.Debug().Msgf(strings.TrimSpace(format), v...)
}

func (gooseLogger) Fatalf(format string, v ...any) {
	log.Error().Msgf(strings.TrimSpace(format), v...)
}
