// Package scriptstore keeps named scripts in a SQL database.
package scriptstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	"github.com/gosimple/slug"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/multierr"
	_ "modernc.org/sqlite"
)

const DefaultTable = "zenoscript_scripts"

var (
	ErrNotFound    = errors.New("scriptstore: script not found")
	ErrInvalidName = errors.New("scriptstore: name has no usable characters")
)

// Script is one stored script. Slug is the lookup key derived from Name.
type Script struct {
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Lang      string    `json:"lang"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Store struct {
	db      *sql.DB
	dialect Dialect
	table   string
}

// Open connects to the database and verifies the connection. Zero pool sizes
// fall back to 100 open and 25 idle connections.
func Open(driverName, dsn string, maxOpen, maxIdle int) (*Store, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to ping database: %w", err), db.Close())
	}
	configurePool(db, maxOpen, maxIdle)
	return New(db, driverName), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, driverName string) *Store {
	return &Store{db: db, dialect: GetDialect(driverName), table: DefaultTable}
}

func configurePool(db *sql.DB, maxOpen, maxIdle int) {
	if maxOpen == 0 {
		maxOpen = 100
	}
	if maxIdle == 0 {
		maxIdle = 25
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the scripts table when it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	q := s.dialect.QuoteIdentifier
	columns := strings.Join([]string{
		q("slug") + " VARCHAR(191) NOT NULL PRIMARY KEY",
		q("name") + " VARCHAR(255) NOT NULL",
		q("lang") + " VARCHAR(32) NOT NULL",
		q("source") + " " + s.dialect.TextType() + " NOT NULL",
		q("created_at") + " BIGINT NOT NULL",
		q("updated_at") + " BIGINT NOT NULL",
	}, ", ")
	if _, err := s.db.ExecContext(ctx, s.dialect.CreateTable(s.table, columns)); err != nil {
		return fmt.Errorf("failed to migrate %s: %w", s.table, err)
	}
	return nil
}

// Put creates or replaces the script stored under slug.Make(name).
func (s *Store) Put(ctx context.Context, name, lang, source string) (Script, error) {
	key := Slug(name)
	if key == "" {
		return Script{}, ErrInvalidName
	}
	ms := time.Now().UnixMilli()

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s = %s, %s = %s, %s = %s, %s = %s WHERE %s = %s",
			s.tableName(),
			s.col("name"), s.ph(1),
			s.col("lang"), s.ph(2),
			s.col("source"), s.ph(3),
			s.col("updated_at"), s.ph(4),
			s.col("slug"), s.ph(5),
		),
		name, lang, source, ms, key,
	)
	if err != nil {
		return Script{}, fmt.Errorf("failed to update script %q: %w", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return s.Get(ctx, key)
	}

	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (%s, %s, %s, %s, %s, %s) VALUES (%s, %s, %s, %s, %s, %s)",
			s.tableName(),
			s.col("slug"), s.col("name"), s.col("lang"), s.col("source"), s.col("created_at"), s.col("updated_at"),
			s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6),
		),
		key, name, lang, source, ms, ms,
	)
	if err != nil {
		return Script{}, fmt.Errorf("failed to insert script %q: %w", key, err)
	}
	return Script{
		Slug:      key,
		Name:      name,
		Lang:      lang,
		Source:    source,
		CreatedAt: time.UnixMilli(ms).UTC(),
		UpdatedAt: time.UnixMilli(ms).UTC(),
	}, nil
}

// Get looks a script up by name or slug.
func (s *Store) Get(ctx context.Context, name string) (Script, error) {
	key := Slug(name)
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s", s.columns(true), s.tableName(), s.col("slug"), s.ph(1)),
		key,
	)
	sc, err := scanScript(row.Scan, true)
	if errors.Is(err, sql.ErrNoRows) {
		return Script{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return Script{}, fmt.Errorf("failed to read script %q: %w", key, err)
	}
	return sc, nil
}

// List returns scripts ordered by slug, without their source.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Script, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", s.columns(false), s.tableName(), s.col("slug")) +
		s.dialect.Limit(limit, offset)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list scripts: %w", err)
	}
	defer rows.Close()

	out := []Script{}
	for rows.Next() {
		sc, err := scanScript(rows.Scan, false)
		if err != nil {
			return nil, fmt.Errorf("failed to scan script: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, name string) error {
	key := Slug(name)
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s = %s", s.tableName(), s.col("slug"), s.ph(1)),
		key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete script %q: %w", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Slug is the storage key for a script name.
func Slug(name string) string {
	return slug.Make(name)
}

func (s *Store) tableName() string {
	return s.dialect.QuoteIdentifier(s.table)
}

func (s *Store) col(name string) string {
	return s.dialect.QuoteIdentifier(name)
}

func (s *Store) ph(n int) string {
	return s.dialect.Placeholder(n)
}

func (s *Store) columns(withSource bool) string {
	cols := []string{s.col("slug"), s.col("name"), s.col("lang")}
	if withSource {
		cols = append(cols, s.col("source"))
	}
	cols = append(cols, s.col("created_at"), s.col("updated_at"))
	return strings.Join(cols, ", ")
}

func scanScript(scan func(dest ...interface{}) error, withSource bool) (Script, error) {
	var (
		sc               Script
		created, updated int64
	)
	dest := []interface{}{&sc.Slug, &sc.Name, &sc.Lang}
	if withSource {
		dest = append(dest, &sc.Source)
	}
	dest = append(dest, &created, &updated)
	if err := scan(dest...); err != nil {
		return Script{}, err
	}
	sc.CreatedAt = time.UnixMilli(created).UTC()
	sc.UpdatedAt = time.UnixMilli(updated).UTC()
	return sc, nil
}
