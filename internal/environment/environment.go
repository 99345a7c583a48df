// Package environment prepares the external trading environment: the
// exchange connection and the postgres database the system reports into.
package environment

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"master-agent/internal/config"
	errs "master-agent/internal/errors"
)

// Environment is the setup hook the supervisor runs at the end of
// initialization. Failures are fatal to startup.
type Environment interface {
	SetupExchange(ctx context.Context) error
	SetupDatabase(ctx context.Context) error
	Close() error
}

// Production connects to the configured exchange and postgres instance.
type Production struct {
	log zerolog.Logger
	cfg config.Config
	db  *sql.DB
}

// NewProduction creates a production environment from config.
func NewProduction(cfg config.Config, log zerolog.Logger) *Production {
	return &Production{log: log, cfg: cfg}
}

// SetupExchange validates that exchange credentials are present. Paper
// trading mode runs without credentials.
func (p *Production) SetupExchange(ctx context.Context) error {
	if p.cfg.Exchange.PaperTrading {
		p.log.Info().Msg("Exchange setup skipped, paper trading enabled")
		return nil
	}
	if p.cfg.Exchange.APIKey == "" || p.cfg.Exchange.APISecret == "" {
		return errs.Wrap(errs.ErrConfigInvalid, "exchange credentials missing")
	}

	p.log.Info().Msg("Exchange connection configured")
	return nil
}

// SetupDatabase opens the postgres pool and verifies connectivity with a
// bounded retry. Postgres may still be starting when we are.
func (p *Production) SetupDatabase(ctx context.Context) error {
	db, err := sql.Open("postgres", p.cfg.Database.DSN())
	if err != nil {
		return errs.Wrap(err, "failed to open database")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	const attempts = 5
	backoff := time.Second
	for i := 1; i <= attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			p.db = db
			p.log.Info().
				Str("host", p.cfg.Database.Host).
				Int("port", p.cfg.Database.Port).
				Msg("Database connection established")
			return nil
		}

		p.log.Warn().Err(err).Int("attempt", i).Msg("Database ping failed")
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			db.Close()
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	db.Close()
	return errs.Wrap(err, fmt.Sprintf("database unreachable after %d attempts", attempts))
}

// DB returns the postgres pool, nil before SetupDatabase succeeds.
func (p *Production) DB() *sql.DB {
	return p.db
}

// Close releases the database pool.
func (p *Production) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

// Nop satisfies Environment without touching anything external. Used by
// tests and persistence-free runs.
type Nop struct{}

func (Nop) SetupExchange(context.Context) error { return nil }
func (Nop) SetupDatabase(context.Context) error { return nil }
func (Nop) Close() error                        { return nil }
