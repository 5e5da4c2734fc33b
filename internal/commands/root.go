package commands

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tinoosan/groupledger/internal/config"
	"github.com/tinoosan/groupledger/internal/logging"
)

// Version is stamped at build time with -ldflags "-X ...commands.Version=...".
var Version = "dev"

// app carries what every subcommand needs once the root has loaded it.
type app struct {
	cfg *config.Config
	log *slog.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:     "groupledger",
		Short:   "Shared expense ledger for groups",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is fine outside local development.
			_ = godotenv.Load()
			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logging.New(cmd.OutOrStdout(), cfg.LogFormat, logging.ParseLevel(cfg.LogLevel))
			slog.SetDefault(a.log)
			return nil
		},
	}

	rootCmd.AddCommand(newServeCommand(a))
	rootCmd.AddCommand(newMigrateCommand(a))

	return rootCmd
}
