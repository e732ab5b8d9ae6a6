package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	accountdomain "github.com/roomvision/roomvision/internal/account/domain"
	auditdomain "github.com/roomvision/roomvision/internal/audit/domain"
	generationdomain "github.com/roomvision/roomvision/internal/generation/domain"
	sessiondomain "github.com/roomvision/roomvision/internal/session/domain"
	settlementdomain "github.com/roomvision/roomvision/internal/settlement/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded SQL migrations so a fresh database
// is usable out of the box for local and self-hosted installs.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate covers non-postgres databases, mainly sqlite in development,
// where the embedded SQL migrations do not apply.
func AutoMigrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	return conn.AutoMigrate(
		&accountdomain.User{},
		&accountdomain.Transaction{},
		&generationdomain.Video{},
		&settlementdomain.EventRecord{},
		&sessiondomain.Session{},
		&auditdomain.AuditLog{},
	)
}
