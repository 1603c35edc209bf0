package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/apperror"
	"github.com/BroAegg/web-koperasi-umb-sub001/pkg/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies all pending schema migrations embedded in the binary.
// Safe to call on every startup.
func Migrate(ctx context.Context, connString string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return apperror.NewStorage(fmt.Errorf("load embedded migrations: %w", err))
	}

	// golang-migrate registers the pgx v5 driver under the pgx5 scheme.
	url := strings.Replace(connString, "postgres://", "pgx5://", 1)
	url = strings.Replace(url, "postgresql://", "pgx5://", 1)

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return apperror.NewStorage(fmt.Errorf("create migrator: %w", err))
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info(ctx, "schema up to date")
			return nil
		}
		return apperror.NewStorage(fmt.Errorf("apply migrations: %w", err))
	}

	version, dirty, err := m.Version()
	if err != nil {
		return apperror.NewStorage(fmt.Errorf("read migration version: %w", err))
	}
	logger.Info(ctx, "migrations applied", "version", version, "dirty", dirty)
	return nil
}
