// Package migrations resolves the embedded SQL trees per database dialect and
// hands them to a migration runner.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"

	reconcile "github.com/goliatone/go-reconcile"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	embeddedRoot = "data/sql/migrations"
)

// Source is the migration tree of one dialect.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// RegisterFunc receives one migration tree, typically forwarding it to
// persistence.Client.RegisterSQLMigrations.
type RegisterFunc func(ctx context.Context, source Source) error

// DialectForDriver maps a database/sql driver name to its migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("migrations: no migration tree for driver %q", driver)
	}
}

// Sources returns the postgres tree, kept at the root of the migrations
// directory, and the sqlite tree under sqlite/. A nil root uses the embedded
// migrations.
func Sources(root fs.FS) ([]Source, error) {
	if root == nil {
		root = reconcile.GetMigrationsFS()
	}
	base, basePath, err := locateRoot(root)
	if err != nil {
		return nil, err
	}
	sqliteFS, err := fs.Sub(base, DialectSQLite)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite tree: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: basePath, FS: base},
		{Dialect: DialectSQLite, Path: path.Join(basePath, DialectSQLite), FS: sqliteFS},
	}
	for _, source := range sources {
		ups, err := fs.Glob(source.FS, "*.up.sql")
		if err != nil {
			return nil, fmt.Errorf("migrations: glob %s: %w", source.Path, err)
		}
		if len(ups) == 0 {
			return nil, fmt.Errorf("migrations: %s tree %q has no *.up.sql files", source.Dialect, source.Path)
		}
	}
	return sources, nil
}

// Register hands the embedded tree of each dialect to fn. With no dialects
// every tree is registered.
func Register(ctx context.Context, fn RegisterFunc, dialects ...string) ([]Source, error) {
	if fn == nil {
		return nil, fmt.Errorf("migrations: register function is required")
	}
	sources, err := Sources(nil)
	if err != nil {
		return nil, err
	}

	wanted := map[string]bool{}
	for _, dialect := range dialects {
		dialect = strings.ToLower(strings.TrimSpace(dialect))
		if dialect == "" {
			continue
		}
		if dialect != DialectPostgres && dialect != DialectSQLite {
			return nil, fmt.Errorf("migrations: unknown dialect %q", dialect)
		}
		wanted[dialect] = true
	}

	registered := make([]Source, 0, len(sources))
	for _, source := range sources {
		if len(wanted) > 0 && !wanted[source.Dialect] {
			continue
		}
		if err := fn(ctx, source); err != nil {
			return registered, fmt.Errorf("migrations: register %s (%s): %w", source.Dialect, source.Path, err)
		}
		registered = append(registered, source)
	}
	return registered, nil
}

// locateRoot accepts either a tree containing data/sql/migrations or a
// directory of .sql files.
func locateRoot(root fs.FS) (fs.FS, string, error) {
	if sub, err := fs.Sub(root, embeddedRoot); err == nil {
		if _, statErr := fs.Stat(sub, "."); statErr == nil {
			if ups, _ := fs.Glob(sub, "*.up.sql"); len(ups) > 0 {
				return sub, embeddedRoot, nil
			}
		}
	}
	if ups, _ := fs.Glob(root, "*.up.sql"); len(ups) > 0 {
		return root, ".", nil
	}
	return nil, "", fmt.Errorf("migrations: %s not found", embeddedRoot)
}
