package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jdziat/simple-cdc-handoff/pkg/coordinator"
	"github.com/jdziat/simple-cdc-handoff/pkg/core"
	"github.com/jdziat/simple-cdc-handoff/pkg/metrics"
)

func newRunCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a full snapshot-to-stream handoff",
		Long: `Upload the job configuration, capture the consistency marker, run LOAD,
write the marker as stream checkpoint, request STREAM and wait until a
worker claims the job.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.cfg.Job.ConfigFile
			payload, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read job configuration: %w", err)
			}
			cfg := core.JobConfiguration{FileName: filepath.Base(path), Payload: payload}

			return a.handoff(cmd, func(c *coordinator.Coordinator) (*coordinator.Result, error) {
				return c.Run(cmd.Context(), core.JobName(a.cfg.Job.Name), cfg)
			})
		},
	}
}

func newResumeCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "resume [job]",
		Short: "Continue an interrupted handoff from its checkpoint",
		Long: `Continue the latest journaled handoff of a job. Only handoffs that wrote
their checkpoint can be resumed; earlier failures must be rerun from scratch.
Requires --journal.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := a.jobArg(args)
			return a.handoff(cmd, func(c *coordinator.Coordinator) (*coordinator.Result, error) {
				return c.Resume(cmd.Context(), job)
			})
		},
	}
}

// handoff wires a coordinator, runs fn with it and prints the result.
func (a *App) handoff(cmd *cobra.Command, fn func(*coordinator.Coordinator) (*coordinator.Result, error)) error {
	markers, err := a.markerSource()
	if err != nil {
		return err
	}
	j, closeJournal, err := a.journal(cmd.Context())
	if err != nil {
		return err
	}
	defer closeJournal()

	m := metrics.New(nil)
	stopMetrics := a.serveMetrics(m)
	defer stopMetrics()

	c, err := a.coordinator(a.controlPlane(), markers, j, m)
	if err != nil {
		return err
	}
	res, err := fn(c)
	if err != nil {
		return err
	}
	return a.printJSON(resultView{
		RunID:     res.RunID,
		Job:       res.Job,
		Marker:    res.Marker,
		Owner:     res.Owner,
		Duration:  res.Duration.String(),
		Confirmed: res.Confirmed,
	})
}

type resultView struct {
	RunID     string       `json:"run_id"`
	Job       core.JobName `json:"job"`
	Marker    core.Marker  `json:"marker"`
	Owner     string       `json:"owner"`
	Duration  string       `json:"duration"`
	Confirmed bool         `json:"checkpoint_confirmed"`
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
