package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/fee-ledger-api/pkg/config"
)

const (
	postgresApplication = "fee-ledger-api"
	postgresPingTimeout = 5 * time.Second
)

// NewPostgres opens the ledger on PostgreSQL. Ledger writes hold a
// per-student advisory lock for the life of their transaction, so the pool
// keeps at least two connections to let readers through while a write waits.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.Host == "" || cfg.Name == "" {
		return nil, fmt.Errorf("postgres host and database name are required")
	}

	db, err := sqlx.Open("postgres", postgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen > 0 && maxOpen < 2 {
		maxOpen = 2
	}
	db.SetMaxOpenConns(maxOpen)
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), postgresPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres %s: %w", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)), err)
	}
	return db, nil
}

// postgresDSN builds a URL connection string so credentials containing
// spaces or quotes survive intact.
func postgresDSN(cfg config.DatabaseConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	query := url.Values{}
	query.Set("sslmode", sslMode)
	query.Set("application_name", postgresApplication)

	dsn := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:     "/" + cfg.Name,
		RawQuery: query.Encode(),
	}
	if cfg.User != "" {
		dsn.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return dsn.String()
}
