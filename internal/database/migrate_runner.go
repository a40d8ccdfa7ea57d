package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"ctfarena/internal/middleware"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// appliedMigration is one row of the migration log.
type appliedMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

func (appliedMigration) TableName() string { return "schema_migrations" }

const createMigrationLogSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const undefinedTable = "42P01"

func isMissingTable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == undefinedTable
	}
	return strings.Contains(err.Error(), "no such table")
}

// appliedVersions lists logged migration versions in ascending order. A
// database that never ran migrations has none.
func appliedVersions(ctx context.Context, db *gorm.DB) ([]int, error) {
	var versions []int
	err := db.WithContext(ctx).Model(&appliedMigration{}).Order("version").Pluck("version", &versions).Error
	if err != nil {
		if isMissingTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read migration log: %w", err)
	}
	return versions, nil
}

// pendingMigrations returns registered migrations missing from applied.
func pendingMigrations(applied []int) []Migration {
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}
	var pending []Migration
	for _, m := range GetMigrations() {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending
}

// RunMigrations applies every pending migration, each in its own transaction
// together with its log row.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).Exec(createMigrationLogSQL).Error; err != nil {
		return fmt.Errorf("create migration log: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}
	if err := validateAppliedVersions(applied, GetMigrations()); err != nil {
		return err
	}

	pending := pendingMigrations(applied)
	if len(pending) == 0 {
		middleware.Logger.Debug("Schema up to date", slog.Int("applied", len(applied)))
		return nil
	}
	for _, m := range pending {
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(m.UpScript).Error; err != nil {
				return fmt.Errorf("apply migration %s: %w", m.String(), err)
			}
			return tx.Create(&appliedMigration{Version: m.Version, Name: m.Name}).Error
		})
		if err != nil {
			return err
		}
		middleware.Logger.Info("Migration applied", slog.Int("version", m.Version), slog.String("name", m.Name))
	}
	return nil
}

// validateAppliedVersions fails when the log names versions this binary does
// not ship, which means the database is ahead of the code.
func validateAppliedVersions(applied []int, registered []Migration) error {
	known := make(map[int]bool, len(registered))
	for _, m := range registered {
		known[m.Version] = true
	}

	var unknown []string
	sorted := append([]int(nil), applied...)
	sort.Ints(sorted)
	for _, v := range sorted {
		if !known[v] {
			unknown = append(unknown, fmt.Sprintf("%06d", v))
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("schema_migrations has versions unknown to this build: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// RollbackMigration runs the down script of an applied migration and removes
// its log row in the same transaction.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	m := GetMigrationByVersion(version)
	if m == nil {
		return fmt.Errorf("migration version %d not found", version)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}
	if i := sort.SearchInts(applied, version); i == len(applied) || applied[i] != version {
		return fmt.Errorf("migration %d has not been applied", version)
	}

	middleware.Logger.Info("Rolling back migration", slog.Int("version", version), slog.String("name", m.Name))
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.DownScript).Error; err != nil {
			return fmt.Errorf("rollback %s: %w", m.String(), err)
		}
		return tx.Where("version = ?", version).Delete(&appliedMigration{}).Error
	})
}
