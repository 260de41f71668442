// Package migrations provides database migrations for the postgres store.
package migrations

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"text/template"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/apoxy-dev/shorty/pkg/log"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// ValueIndex is the name of the unique index on mapping values. It indexes
// md5(value) since btree entries are limited to roughly a third of a page.
const ValueIndex = "mappings_value_md5_uindex"

// tmplFS is a wrapper around fs.FS that renders each file as a template.
type tmplFS struct {
	src  fs.FS
	data any
}

// Open opens the named file, rendering it with the template data.
func (t tmplFS) Open(name string) (fs.File, error) {
	f, err := t.src.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	} else if info.IsDir() {
		return f, nil
	}
	defer f.Close()

	src, err := fs.ReadFile(t.src, name)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse migration %s: %w", name, err)
	}
	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, t.data); err != nil {
		return nil, fmt.Errorf("failed to render migration %s: %w", name, err)
	}

	log.Debugf("rendered migration %s: %s", name, buf.String())

	return &tmplFile{Reader: bytes.NewReader(buf.Bytes()), info: info}, nil
}

// ReadDir lists the migration directory.
func (t tmplFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return fs.ReadDir(t.src, name)
}

// tmplFile is a rendered migration that implements fs.File.
type tmplFile struct {
	*bytes.Reader
	info fs.FileInfo
}

// Stat returns the FileInfo of the source template.
func (f *tmplFile) Stat() (fs.FileInfo, error) {
	return renderedInfo{FileInfo: f.info, size: f.Size()}, nil
}

// Close is a no-op; the rendered file lives in memory.
func (f *tmplFile) Close() error {
	return nil
}

type renderedInfo struct {
	fs.FileInfo
	size int64
}

func (i renderedInfo) Size() int64 { return i.size }

// VersionTable returns the name of the table tracking the applied migrations
// of schema.
func VersionTable(schema string) string {
	return schema + "_schema_migrations"
}

type migrationData struct {
	// Schema is the quoted schema identifier.
	Schema string
}

// Run applies all pending migrations to the database described by cfg. The
// mappings table is created in schema.
func Run(cfg *pgx.ConnConfig, schema string) error {
	if schema == "" {
		return errors.New("schema must not be empty")
	}
	src, err := iofs.New(tmplFS{
		src:  migrationsFS,
		data: migrationData{Schema: pgx.Identifier{schema}.Sanitize()},
	}, "sql")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	// The migrate driver closes the database it is given, so it gets its own.
	db := stdlib.OpenDB(*cfg.Copy())
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{
		MigrationsTable: VersionTable(schema),
	})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	m.Log = log.Leveled{Component: "migrate", Demote: true}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warnf("failed to close migrator: source: %v, database: %v", srcErr, dbErr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
