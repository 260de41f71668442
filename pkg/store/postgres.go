package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/apoxy-dev/shorty/pkg/store/migrations"
)

// DefaultSchema is the postgres schema used when Options.Schema is empty.
const DefaultSchema = "sh"

// PostgresStore keeps mappings in a postgres table with unique constraints on
// both columns.
type PostgresStore struct {
	db *sql.DB

	selectURL string
	selectKey string
	insert    string
	list      string
}

// OpenPostgres connects to postgres, applies pending migrations and returns
// the store.
func OpenPostgres(ctx context.Context, opts Options) (*PostgresStore, error) {
	cfg, err := pgx.ParseConfig(opts.Connection)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if opts.User != "" {
		cfg.User = opts.User
	}
	if opts.Password != "" {
		cfg.Password = opts.Password
	}
	schema := opts.Schema
	if schema == "" {
		schema = DefaultSchema
	}

	slog.Info("Connecting to database...", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	if err := migrations.Run(cfg, schema); err != nil {
		return nil, err
	}

	db := stdlib.OpenDB(*cfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	table := pgx.Identifier{schema, "mappings"}.Sanitize()
	return &PostgresStore{
		db:        db,
		selectURL: "SELECT value FROM " + table + " WHERE key = $1",
		selectKey: "SELECT key FROM " + table + " WHERE md5(value) = md5($1) AND value = $1",
		insert:    "INSERT INTO " + table + " (key, value) VALUES ($1, $2)",
		list:      "SELECT key, value FROM " + table + " ORDER BY key",
	}, nil
}

func (s *PostgresStore) queryString(ctx context.Context, query, arg string) (string, error) {
	var out string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&out)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return out, err
}

func (s *PostgresStore) GetURLForKey(ctx context.Context, key string) (string, error) {
	return s.queryString(ctx, s.selectURL, key)
}

func (s *PostgresStore) SaveMapping(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.insert, key, value)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		if pgErr.ConstraintName == migrations.ValueIndex {
			return fmt.Errorf("%w: %w", ErrDuplicateURL, err)
		}
		// The primary key is checked first, so a row with the same key and
		// the same value surfaces here.
		if existing, lookupErr := s.GetKeyForURL(ctx, value); lookupErr == nil && existing != "" {
			return fmt.Errorf("%w: %w", ErrDuplicateURL, err)
		}
		return fmt.Errorf("%w: %w", ErrDuplicateKey, err)
	}
	return err
}

func (s *PostgresStore) GetKeyForURL(ctx context.Context, value string) (string, error) {
	return s.queryString(ctx, s.selectKey, value)
}

// ListMappings returns all mappings ordered by key.
func (s *PostgresStore) ListMappings(ctx context.Context) ([]Mapping, error) {
	rows, err := s.db.QueryContext(ctx, s.list)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Mapping
	for rows.Next() {
		var m Mapping
		if err := rows.Scan(&m.Key, &m.Value); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
