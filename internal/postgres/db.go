package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultPingTimeout = 5 * time.Second

// Config holds pool overrides; zero values keep pgxpool's defaults or
// whatever the DSN already sets.
type Config struct {
	DSN               string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ApplicationName   string
	PingTimeout       time.Duration
}

// poolConfig parses the DSN and layers the non-zero overrides on top.
func (c Config) poolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	setIf(&pc.MaxConns, c.MaxConns)
	setIf(&pc.MinConns, c.MinConns)
	setIf(&pc.MaxConnLifetime, c.MaxConnLifetime)
	setIf(&pc.MaxConnIdleTime, c.MaxConnIdleTime)
	setIf(&pc.HealthCheckPeriod, c.HealthCheckPeriod)
	if c.ApplicationName != "" {
		if pc.ConnConfig.RuntimeParams == nil {
			pc.ConnConfig.RuntimeParams = map[string]string{}
		}
		pc.ConnConfig.RuntimeParams["application_name"] = c.ApplicationName
	}
	return pc, nil
}

func setIf[T int32 | time.Duration](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}

// NewPool opens the audit pool and fails unless the server answers a ping.
// The effective settings are logged without credentials.
func NewPool(ctx context.Context, cfg Config, log *slog.Logger) (*pgxpool.Pool, error) {
	if log == nil {
		log = slog.Default()
	}
	pc, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := Ping(ctx, pool, cfg.PingTimeout); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres %s:%d: %w", pc.ConnConfig.Host, pc.ConnConfig.Port, err)
	}

	log.Info("postgres pool ready",
		"host", pc.ConnConfig.Host,
		"port", pc.ConnConfig.Port,
		"database", pc.ConnConfig.Database,
		"max_conns", pc.MaxConns,
		"min_conns", pc.MinConns,
		"max_conn_lifetime", pc.MaxConnLifetime,
		"health_check_period", pc.HealthCheckPeriod)
	return pool, nil
}

// Ping checks pool within timeout (default 5s).
func Ping(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return pool.Ping(ctx)
}
