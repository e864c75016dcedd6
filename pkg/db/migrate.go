package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // file:// source driver
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// MigrationState is the schema version after a migration run
type MigrationState struct {
	Version uint
	Dirty   bool
	Changed bool
}

// RunMigrations moves the schema found at migrationsPath (e.g.
// "file://migrations"). steps == 0 applies everything pending; a negative
// value rolls back that many migrations.
func RunMigrations(databaseURL, caCertPath, migrationsPath string, steps int) (MigrationState, error) {
	conn, err := openMigrationDB(databaseURL, caCertPath)
	if err != nil {
		return MigrationState{}, err
	}
	defer conn.Close()

	driver, err := postgres.WithInstance(conn, &postgres.Config{MigrationsTable: "carreiras_schema_migrations"})
	if err != nil {
		return MigrationState{}, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(migrationsPath, "postgres", driver)
	if err != nil {
		return MigrationState{}, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if steps == 0 {
		err = m.Up()
	} else {
		err = m.Steps(steps)
	}

	state := MigrationState{Changed: true}
	if errors.Is(err, migrate.ErrNoChange) {
		state.Changed = false
	} else if err != nil {
		return MigrationState{}, fmt.Errorf("failed to run migrations: %w", err)
	}

	state.Version, state.Dirty, err = m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrationState{}, fmt.Errorf("failed to read schema version: %w", err)
	}
	return state, nil
}

// openMigrationDB opens a database/sql handle over pgx with the pool's TLS rules
func openMigrationDB(databaseURL, caCertPath string) (*sql.DB, error) {
	connConfig, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	tlsConfig, err := configureTLS(databaseURL, caCertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to configure TLS: %w", err)
	}
	if tlsConfig != nil {
		connConfig.TLSConfig = tlsConfig
	}

	conn := stdlib.OpenDB(*connConfig)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}
