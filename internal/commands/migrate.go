package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tinoosan/groupledger/internal/storage/migrations"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations for the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				v   uint
				err error
			)
			switch a.cfg.StorageBackend {
			case "sqlite":
				v, err = migrations.SQLite(a.cfg.SQLitePath)
			case "postgres":
				v, err = migrations.Postgres(a.cfg.DatabaseURL)
			default:
				return fmt.Errorf("storage backend %q has no schema", a.cfg.StorageBackend)
			}
			if err != nil {
				return err
			}
			a.log.Info("migrations applied", "backend", a.cfg.StorageBackend, "version", v)
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return nil
		},
	}
}
