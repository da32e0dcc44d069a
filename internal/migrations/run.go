// Package migrations применяет SQL-миграции схемы Planzy из каталога ./migrations.
package migrations

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	// Источник миграций из файловой системы.
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func newMigrate(db *sql.DB, path string) (*migrate.Migrate, error) {
	driver, err := pgxv5.WithInstance(db, &pgxv5.Config{})
	if err != nil {
		return nil, err
	}
	return migrate.NewWithDatabaseInstance("file://"+path, "pgx_v5", driver)
}

// Run применяет все недостающие миграции. Повторный вызов ничего не делает.
func Run(db *sql.DB, path string) error {
	const op = "migrations.Run"

	m, err := newMigrate(db, path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Version возвращает текущую версию схемы и признак незавершённой миграции.
func Version(db *sql.DB, path string) (uint, bool, error) {
	const op = "migrations.Version"

	m, err := newMigrate(db, path)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	return version, dirty, nil
}
