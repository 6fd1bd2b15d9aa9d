package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// ErrUnsupportedDriver is returned for a SQL driver with no known dialect.
var ErrUnsupportedDriver = errors.New("unsupported credential database driver")

const defaultTable = "credentials"

type credentialRow struct {
	bun.BaseModel `bun:"table:credentials,alias:c"`

	Name  string         `bun:"name,pk"`
	Value sql.NullString `bun:"value"`
}

// SQL is a Store backed by a two column table (name, value).
type SQL struct {
	db    *bun.DB
	table string
}

// NewSQL wraps db. An empty table defaults to "credentials"; the name is
// always quoted as an identifier.
func NewSQL(db *bun.DB, table string) (*SQL, error) {
	if db == nil {
		return nil, errors.New("sql credential store requires a database")
	}
	if strings.TrimSpace(table) == "" {
		table = defaultTable
	}
	return &SQL{db: db, table: table}, nil
}

// OpenSQL opens driver/dsn and picks the bun dialect for driver. The driver
// itself must be registered by the caller.
func OpenSQL(driver, dsn, table string) (*SQL, error) {
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	sqldb, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open credential database: %w", err)
	}
	return NewSQL(bun.NewDB(sqldb, dialect), table)
}

func dialectFor(driver string) (schema.Dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return sqlitedialect.New(), nil
	case "postgres", "pgx":
		return pgdialect.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

func (s *SQL) Get(key string) (string, bool, error) {
	row := new(credentialRow)
	err := s.db.NewSelect().
		Model(row).
		ModelTableExpr("? AS c", bun.Ident(s.table)).
		Where("name = ?", key).
		Limit(1).
		Scan(context.Background())
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("query credential %q: %w", key, err)
	case !row.Value.Valid:
		return "", false, nil
	}
	return row.Value.String, true, nil
}

// EnsureSchema creates the backing table when missing.
func (s *SQL) EnsureSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*credentialRow)(nil)).
		ModelTableExpr("?", bun.Ident(s.table)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create credential table: %w", err)
	}
	return nil
}

// Put upserts value under key.
func (s *SQL) Put(ctx context.Context, key, value string) error {
	row := &credentialRow{Name: key, Value: sql.NullString{String: value, Valid: true}}
	_, err := s.db.NewInsert().
		Model(row).
		ModelTableExpr("?", bun.Ident(s.table)).
		On("CONFLICT (name) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("store credential %q: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (s *SQL) Remove(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*credentialRow)(nil)).
		ModelTableExpr("?", bun.Ident(s.table)).
		Where("name = ?", key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("remove credential %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQL) Close() error {
	return s.db.Close()
}
