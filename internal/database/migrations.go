package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"

	"github.com/jackc/pgx/v5"
)

// migrationLockID serialises concurrent api and migrate processes.
const migrationLockID = 727_001

var migrationName = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.sql$`)

// ErrChecksumMismatch means an applied migration file was edited afterwards.
var ErrChecksumMismatch = errors.New("migration checksum mismatch")

// Migration is one numbered SQL file, e.g. 001_init.sql.
type Migration struct {
	Version  int
	Name     string
	Checksum string
	SQL      string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version  int
	Name     string
	Checksum string
}

// MigrationReport summarises a Migrate or Pending call.
type MigrationReport struct {
	Current int
	Applied []Migration
	Pending []Migration
}

// LoadMigrations reads every NNN_name.sql file at the top of fsys, ordered by version.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}

	var out []Migration
	seen := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		m := migrationName.FindStringSubmatch(e.Name())
		if m == nil {
			return nil, fmt.Errorf("migration %q must be named NNN_name.sql", e.Name())
		}
		version, _ := strconv.Atoi(m[1])
		if version == 0 {
			return nil, fmt.Errorf("migration %q: versions start at 1", e.Name())
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %q and %q share version %d", prev, e.Name(), version)
		}
		seen[version] = e.Name()

		body, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", e.Name(), err)
		}
		sum := sha256.Sum256(body)
		out = append(out, Migration{
			Version:  version,
			Name:     m[2],
			Checksum: hex.EncodeToString(sum[:]),
			SQL:      string(body),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// PlanMigrations compares the files with what the database has recorded and
// returns the migrations still to run. An applied file whose checksum changed,
// or a recorded version with no file, is an error.
func PlanMigrations(files []Migration, applied map[int]AppliedMigration) ([]Migration, error) {
	known := make(map[int]bool, len(files))
	var pending []Migration
	for _, m := range files {
		known[m.Version] = true
		done, ok := applied[m.Version]
		if !ok {
			pending = append(pending, m)
			continue
		}
		if done.Checksum != m.Checksum {
			return nil, fmt.Errorf("%w: %03d_%s", ErrChecksumMismatch, m.Version, m.Name)
		}
	}
	for v, done := range applied {
		if !known[v] {
			return nil, fmt.Errorf("version %d (%s) is recorded but its file is missing", v, done.Name)
		}
	}
	return pending, nil
}

// MigrationsDir opens a migrations directory on disk.
func MigrationsDir(dir string) fs.FS {
	return os.DirFS(dir)
}

// Pending reports what Migrate would apply without changing the schema.
func (db *DB) Pending(ctx context.Context, fsys fs.FS) (*MigrationReport, error) {
	files, err := LoadMigrations(fsys)
	if err != nil {
		return nil, err
	}
	if err := db.Exec(ctx, createMigrationsTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	applied, err := appliedMigrations(ctx, db.Pool)
	if err != nil {
		return nil, err
	}
	pending, err := PlanMigrations(files, applied)
	if err != nil {
		return nil, err
	}
	return &MigrationReport{Current: currentVersion(applied), Pending: pending}, nil
}

// Migrate applies every pending migration, each in its own transaction
// together with its schema_migrations row. An advisory lock keeps two
// processes from migrating at once.
func (db *DB) Migrate(ctx context.Context, fsys fs.FS) (*MigrationReport, error) {
	files, err := LoadMigrations(fsys)
	if err != nil {
		return nil, err
	}
	if err := db.Exec(ctx, createMigrationsTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return nil, fmt.Errorf("failed to take migration lock: %w", err)
	}
	defer conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockID)

	applied, err := appliedMigrations(ctx, conn)
	if err != nil {
		return nil, err
	}
	pending, err := PlanMigrations(files, applied)
	if err != nil {
		return nil, err
	}

	report := &MigrationReport{Current: currentVersion(applied)}
	for _, m := range pending {
		err := pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, recordMigrationSQL, m.Version, m.Name, m.Checksum)
			return err
		})
		if err != nil {
			return report, fmt.Errorf("failed to apply migration %03d_%s: %w", m.Version, m.Name, err)
		}
		report.Applied = append(report.Applied, m)
		report.Current = m.Version

		db.logger.Info("migration_applied", fmt.Sprintf("Applied migration %03d_%s", m.Version, m.Name), "startup",
			map[string]interface{}{"version": m.Version, "name": m.Name, "checksum": m.Checksum[:12]})
	}
	return report, nil
}

const createMigrationsTableSQL = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		checksum CHAR(64) NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

const recordMigrationSQL = `INSERT INTO schema_migrations (version, name, checksum) VALUES ($1, $2, $3)`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func appliedMigrations(ctx context.Context, q querier) (map[int]AppliedMigration, error) {
	rows, err := q.Query(ctx, "SELECT version, name, checksum FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]AppliedMigration)
	for rows.Next() {
		var m AppliedMigration
		if err := rows.Scan(&m.Version, &m.Name, &m.Checksum); err != nil {
			return nil, err
		}
		applied[m.Version] = m
	}
	return applied, rows.Err()
}

func currentVersion(applied map[int]AppliedMigration) int {
	current := 0
	for v := range applied {
		if v > current {
			current = v
		}
	}
	return current
}
