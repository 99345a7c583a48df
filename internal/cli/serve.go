package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"master-agent/internal/api"
	"master-agent/internal/environment"
	"master-agent/internal/ledger"
	"master-agent/internal/logging"
	"master-agent/internal/monitor"
	"master-agent/internal/risk"
	"master-agent/internal/store"
	"master-agent/internal/supervisor"
)

func newServeCmd(app *App) *cobra.Command {
	var noDatabase bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the supervision system and HTTP API",
		Long: `Initializes the core agents, starts health monitoring and metrics
collection, and serves the HTTP API until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(app, noDatabase)
		},
	}

	cmd.Flags().BoolVar(&noDatabase, "no-database", false, "run without postgres and the sqlite journal")
	return cmd
}

func runServe(app *App, noDatabase bool) error {
	cfg := app.Config
	log := app.Logger

	var journal store.Journal = store.NopJournal{}
	var env environment.Environment = environment.Nop{}
	if !noDatabase {
		sqliteJournal, err := store.NewSQLiteJournal(cfg.Database.JournalPath)
		if err != nil {
			log.Warn().Err(err).Msg("Journal unavailable, continuing without persistence")
		} else {
			journal = sqliteJournal
			defer sqliteJournal.Close()
		}
		if cfg.Database.Enabled {
			env = environment.NewProduction(*cfg, logging.WithComponent(log, "environment"))
		}
	}

	book := ledger.New(logging.WithComponent(log, "ledger"),
		ledger.WithLimits(cfg.Ledger.MaxPositions, cfg.Ledger.MaxExposure),
		ledger.WithReopenPolicy(ledger.ReopenPolicy(cfg.Ledger.ReopenPolicy)),
		ledger.WithJournal(journal),
	)
	collector := monitor.NewCollector(cfg.Monitor, logging.WithComponent(log, "monitor"), monitor.WithJournal(journal))
	calculator := risk.NewCalculator(logging.WithComponent(log, "risk"))

	sup := supervisor.New(cfg.Supervisor, supervisor.Deps{
		Collector:   collector,
		Ledger:      book,
		Risk:        calculator,
		Environment: env,
		Journal:     journal,
	}, logging.WithComponent(log, "supervisor"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sup.Initialize(ctx); err != nil {
		return err
	}

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: api.NewServer(sup, book, logging.WithComponent(log, "api")).Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	return sup.Shutdown(shutdownCtx)
}
