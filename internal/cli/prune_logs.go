package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrlokans/catalog/internal/activity"
	"github.com/mrlokans/catalog/internal/database"
	"github.com/mrlokans/catalog/internal/database/logs"
)

func newPruneLogsCommand(a *app) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune-logs",
		Short: "Delete activity log entries older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("days") {
				days = a.cfg.Activity.RetentionDays
			}
			if days <= 0 {
				return fmt.Errorf("--days must be positive, got %d", days)
			}

			ctx := cmd.Context()
			pool, err := database.Open(ctx, a.cfg.LoggingPool(), database.WithName("prune"))
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := activity.NewService(logs.NewRepository(pool), a.cfg.ActivityConfig())
			deleted, err := svc.Prune(ctx, time.Duration(days)*24*time.Hour)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d log entries older than %d days\n", deleted, days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Retention in days (default: ACTIVITY_RETENTION_DAYS)")
	return cmd
}
