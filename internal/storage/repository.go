// Package storage persists stores, daily reports, POS lines and general
// expenses in SQLite or PostgreSQL through database/sql.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"cashrecon/internal/core"
	"cashrecon/internal/sources"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

// Repository implements sources.Repository on a SQL database.
type Repository struct {
	db      *sql.DB
	dialect Dialect
}

var _ sources.Repository = (*Repository)(nil)

func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	// Foreign keys on, and wait on a busy writer instead of failing.
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	return open(SQLite, dsn)
}

func NewPostgresRepository(url string) (*Repository, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("postgres url is empty")
	}
	return open(Postgres, url)
}

func open(d Dialect, dsn string) (*Repository, error) {
	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d, err)
	}
	if d == SQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(d, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, dialect: d}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (r *Repository) rebind(query string) string {
	if r.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// dateColumn scans DATE columns (time.Time from PostgreSQL, text from SQLite).
type dateColumn struct {
	Date core.Date
}

func (c *dateColumn) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		c.Date = core.NewDate(v.Year(), int(v.Month()), v.Day())
		return nil
	case string:
		return c.parse(v)
	case []byte:
		return c.parse(string(v))
	case nil:
		c.Date = core.Date{}
		return nil
	}
	return fmt.Errorf("scan date: unsupported type %T", src)
}

func (c *dateColumn) parse(s string) error {
	if len(s) > 10 {
		s = s[:10]
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return err
	}
	c.Date = d
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// timeColumn scans nullable timestamps from either dialect.
type timeColumn struct {
	Time time.Time
}

func (c *timeColumn) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		c.Time = v.UTC()
		return nil
	case nil:
		c.Time = time.Time{}
		return nil
	case []byte:
		src = string(v)
	}
	s, ok := src.(string)
	if !ok {
		return fmt.Errorf("scan time: unsupported type %T", src)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			c.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("scan time: unrecognised format %q", s)
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
