package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrlokans/catalog/internal/entrypoint"
)

func newWorkerCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run activity writers, the task queue and log retention until stopped",
		Long: `Run the long-lived background work of the catalog: the activity log
writers, the durable task queue (when ACTIVITY_DURABLE or
ACTIVITY_CLEANUP_VIA_QUEUE is set), the log retention schedule and the admin
server exposing /healthz and /metrics. SIGINT or SIGTERM triggers a graceful
shutdown bounded by SHUTDOWN_TIMEOUT_IN_SECONDS.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return entrypoint.RunWorker(a.cfg, a.version)
		},
	}
}
