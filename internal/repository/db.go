package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"careerguide/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresDSN adjusts the configured connection string for the environment.
func PostgresDSN(cfg *config.Config) string {
	dsn := cfg.DBConnectionString
	// Local databases run without TLS.
	if cfg.IsDevelopment() && !strings.Contains(dsn, "sslmode") {
		dsn = appendDSNParam(dsn, "sslmode=disable")
	}
	// Transaction poolers like pgbouncer break server-side prepared statements.
	if !cfg.IsDevelopment() && !strings.Contains(dsn, "prefer_simple_protocol") {
		dsn = appendDSNParam(dsn, "prefer_simple_protocol=true")
	}
	return dsn
}

func appendDSNParam(dsn, param string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		if strings.Contains(dsn, "?") {
			return dsn + "&" + param
		}
		return dsn + "?" + param
	}
	return dsn + " " + param
}

// OpenDB opens and pings the Postgres pool through the pgx stdlib driver.
func OpenDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if cfg.DBConnectionString == "" {
		return nil, fmt.Errorf("DB_CONNECTION_STRING is not set")
	}
	db, err := sql.Open("pgx", PostgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}
