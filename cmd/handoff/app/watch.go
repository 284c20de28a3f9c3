package app

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jdziat/simple-cdc-handoff/pkg/metrics"
	"github.com/jdziat/simple-cdc-handoff/pkg/watch"
)

func newWatchCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [job]",
		Short: "Keep checking that a worker claims the job",
		Long: `Check the job's claim once, then on the configured schedule until
interrupted. Owner changes and a lost claim are logged and counted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := metrics.New(nil)
			stopMetrics := a.serveMetrics(m)
			defer stopMetrics()

			w, err := watch.New(a.controlPlane(), a.jobArg(args),
				watch.Schedule(a.cfg.Watch.Schedule),
				watch.WithLogger(a.logger),
				watch.WithMetrics(m),
				watch.OnReport(func(r watch.Report) {
					a.logger.Info("claim checked",
						zap.String("outcome", r.Outcome),
						zap.Stringer("status", r.Status),
						zap.String("owner", r.Owner))
				}))
			if err != nil {
				return err
			}

			if r, err := w.Check(cmd.Context()); err == nil {
				a.logger.Info("claim checked",
					zap.String("outcome", r.Outcome),
					zap.Stringer("status", r.Status),
					zap.String("owner", r.Owner))
			}
			return w.Run(cmd.Context())
		},
	}
}
