package app

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

const statusRunLimit = 10

func newStatusCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status [job]",
		Short: "Show control plane jobs and journaled handoff runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := a.jobArg(args)
			states, err := a.controlPlane().ListJobs(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "JOB\tSTATUS\tOWNER\t")
			for _, s := range states {
				name := s.Name.String()
				if s.Name == job {
					name = "* " + name
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t\n", name, s.Status, s.Owner)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			j, closeJournal, err := a.journal(cmd.Context())
			if err != nil {
				return err
			}
			defer closeJournal()
			if j == nil {
				return nil
			}
			runs, err := j.Runs(cmd.Context(), job, statusRunLimit)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "\nhandoff runs of %s:\n", job)
			tw = tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTATE\tOUTCOME\tMARKER\tSTARTED\tERROR\t")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
					r.ID, r.State, r.Outcome, r.Marker, r.StartedAt.Format(time.RFC3339), r.LastError)
			}
			return tw.Flush()
		},
	}
}

func newCheckpointCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect the stream checkpoint of a job",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get [job]",
		Short: "Print the checkpoint stored in the control plane",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cp, err := a.controlPlane().ReadCheckpoint(cmd.Context(), a.jobArg(args))
			if err != nil {
				return err
			}
			return a.printJSON(cp)
		},
	})
	return cmd
}
