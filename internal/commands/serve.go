package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tinoosan/groupledger/internal/events"
	httpapi "github.com/tinoosan/groupledger/internal/httpapi/v1"
	"github.com/tinoosan/groupledger/internal/storage/memory"
	"github.com/tinoosan/groupledger/internal/storage/migrations"
	pgstore "github.com/tinoosan/groupledger/internal/storage/postgres"
	"github.com/tinoosan/groupledger/internal/storage/sqlite"
)

func newServeCommand(a *app) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				a.cfg.Port = port
				if err := a.cfg.Validate(); err != nil {
					return err
				}
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, a)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")

	return cmd
}

func runServe(ctx context.Context, a *app) error {
	store, closeStore, err := openStore(ctx, a)
	if err != nil {
		return err
	}
	defer closeStore()

	pub, closePub := openPublisher(a)
	defer closePub()

	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           httpapi.New(store, a.log, httpapi.Options{DefaultCurrency: a.cfg.DefaultCurrency, Publisher: pub}).Handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("groupledger listening", "addr", srv.Addr, "storage", a.cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutting down", "timeout", a.cfg.ShutdownTimeout.String())
		ctxShutdown, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// openStore returns the configured backend and a func that releases it.
func openStore(ctx context.Context, a *app) (httpapi.Store, func(), error) {
	switch a.cfg.StorageBackend {
	case "sqlite":
		s, err := sqlite.Open(a.cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		if a.cfg.MigrateOnStart {
			v, err := migrations.Postgres(a.cfg.DatabaseURL)
			if err != nil {
				return nil, nil, err
			}
			a.log.Info("migrations applied", "version", v)
		}
		s, err := pgstore.Open(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		return s, s.Close, nil
	default:
		return memory.New(), func() {}, nil
	}
}

// openPublisher falls back to a no-op publisher when AMQP is not configured
// or the broker is unreachable at startup.
func openPublisher(a *app) (events.Publisher, func()) {
	if a.cfg.AMQPURL == "" {
		return events.Nop{}, func() {}
	}
	p, err := events.NewAMQPPublisher(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.log)
	if err != nil {
		a.log.Warn("amqp unavailable, events disabled", "err", err)
		return events.Nop{}, func() {}
	}
	return p, func() { _ = p.Close() }
}
