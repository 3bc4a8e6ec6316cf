package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrMigrationFailed wraps any failure while applying or reverting a migration.
var ErrMigrationFailed = errors.New("postgres: migration failed")

const migrationsTable = "schema_migrations"

// Migration is one versioned schema change.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string

	// Filled by Status.
	AppliedAt time.Time
	IsApplied bool
}

// GetMigrations returns the built-in schema in version order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_members", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_projects", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_tasks", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// Migrator applies migrations and records them in schema_migrations.
// Each migration runs in its own transaction together with its bookkeeping row.
type Migrator struct {
	db         Executor
	migrations []Migration
}

// NewMigrator uses the built-in schema.
func NewMigrator(db Executor) *Migrator {
	return NewMigratorWithMigrations(db, GetMigrations())
}

// NewMigratorWithMigrations uses the given migrations, sorted by version.
func NewMigratorWithMigrations(db Executor, migrations []Migration) *Migrator {
	sorted := slices.Clone(migrations)
	slices.SortFunc(sorted, func(a, b Migration) int { return a.Version - b.Version })
	return &Migrator{db: db, migrations: sorted}
}

// Migrate applies pending migrations and returns how many ran.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		if mig.UpSQL == "" {
			return count, fmt.Errorf("%w: migration %d has no up SQL", ErrMigrationFailed, mig.Version)
		}

		err := withTx(ctx, m.db, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, "INSERT INTO "+migrationsTable+" (version, name) VALUES ($1, $2)", mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return count, fmt.Errorf("%w: %d_%s: %w", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
		count++
	}
	return count, nil
}

// Rollback reverts the highest applied migration. No-op on an empty schema.
func (m *Migrator) Rollback(ctx context.Context) error {
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}

	last := slices.Max(mapKeys(applied))
	idx := slices.IndexFunc(m.migrations, func(mig Migration) bool { return mig.Version == last })
	if idx < 0 || m.migrations[idx].DownSQL == "" {
		return fmt.Errorf("%w: migration %d cannot be reverted", ErrMigrationFailed, last)
	}
	mig := m.migrations[idx]

	err = withTx(ctx, m.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, mig.DownSQL); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, "DELETE FROM "+migrationsTable+" WHERE version = $1", last)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: revert %d_%s: %w", ErrMigrationFailed, mig.Version, mig.Name, err)
	}
	return nil
}

// Status lists every known migration with its applied time.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := slices.Clone(m.migrations)
	for i := range out {
		if at, ok := applied[out[i].Version]; ok {
			out[i].IsApplied = true
			out[i].AppliedAt = at
		}
	}
	return out, nil
}

// applied creates the bookkeeping table when missing and reads it.
func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	_, err := m.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+migrationsTable+` (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", migrationsTable, err)
	}

	rows, err := m.db.Query(ctx, "SELECT version, applied_at FROM "+migrationsTable+" ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", migrationsTable, err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var (
			version int
			at      time.Time
		)
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("scan %s: %w", migrationsTable, err)
		}
		applied[version] = at
	}
	return applied, rows.Err()
}

func mapKeys(m map[int]time.Time) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
