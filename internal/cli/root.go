// Package cli implements the catalog command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrlokans/catalog/internal/config"
	"github.com/mrlokans/catalog/internal/logging"
)

// app carries state shared by every subcommand.
type app struct {
	version string
	cfg     *config.Config
}

// NewRootCommand builds the catalog command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{version: version}

	root := &cobra.Command{
		Use:   "catalog",
		Short: "Catalog data-access core: schema, search and activity log maintenance",
		Long: `catalog manages the book catalog database.

Configuration is read from environment variables (DATABASE_HOST, DATABASE_NAME,
ACTIVITY_RETENTION_DAYS, ...) and optionally from the file named by
CATALOG_CONFIG_FILE.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return err
			}
			logging.Setup(cfg.LoggingConfig())
			a.cfg = cfg
			return nil
		},
	}

	root.AddCommand(
		newMigrateCommand(a),
		newSearchCommand(a),
		newPruneLogsCommand(a),
		newWorkerCommand(a),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute(version string) {
	if err := NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
