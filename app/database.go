package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sweater-ventures/psph/config"
)

const dbPingTimeout = 5 * time.Second

// connectToDB opens the pool backing PostgresSource. The lists are read once
// per process, so a failed ping at startup is reported rather than left to
// the first search.
func connectToDB(ctx context.Context, cfg *config.AppConfig) (*pgxpool.Pool, error) {
	dbconfig, err := pgxpool.ParseConfig(
		fmt.Sprintf("host=%s user=%s password=%s port=%d sslmode=%s dbname=%s pool_max_conns=%d",
			cfg.DBHost,
			cfg.DBUsername,
			cfg.DBPassword,
			cfg.DBPort,
			cfg.DBSSLMode,
			cfg.DBName,
			cfg.DBMaxConns,
		),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing database configuration: %w", err)
	}
	dbconfig.ConnConfig.RuntimeParams["application_name"] = "psph"

	pool, err := pgxpool.NewWithConfig(ctx, dbconfig)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, dbPingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging %s:%d: %w", cfg.DBHost, cfg.DBPort, err)
	}

	slog.Info("Reference data database pool established",
		slog.String("host", cfg.DBHost),
		slog.String("dbname", cfg.DBName),
		slog.String("districts_table", cfg.DistrictsTable),
		slog.String("schools_table", cfg.SchoolsTable),
	)
	return pool, nil
}
