package db

import (
	"errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/fablekit/worldgraph/internal/util"
	"github.com/fablekit/worldgraph/pkg/logger"
)

// RunMigrations applies pending schema migrations against DATABASE_URL.
// The migration source defaults to the on-disk migrations directory and
// can be overridden with MIGRATIONS_URL.
func RunMigrations() error {
	sourceURL := util.GetEnvString("MIGRATIONS_URL", "file://internal/db/migrations")

	m, err := migrate.New(sourceURL, util.GetEnv("DATABASE_URL"))
	if err != nil {
		return err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn("Failed to close migration handles", "source_err", srcErr, "db_err", dbErr)
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("Schema is up to date")
			return nil
		}
		return err
	}

	logger.Info("Schema migrations applied")
	return nil
}
