// Package app provides the commands of the handoff CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jdziat/simple-cdc-handoff/pkg/config"
	"github.com/jdziat/simple-cdc-handoff/pkg/core"
	"github.com/jdziat/simple-cdc-handoff/pkg/logging"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitFatal       = 1
	ExitInterrupted = 2 // cancelled or timed out; the handoff may be resumed
)

// App holds what every command shares once flags are parsed.
type App struct {
	out    io.Writer
	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCmd creates the root command with all subcommands.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{out: os.Stdout})
}

func newRootCmd(a *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "handoff",
		Short: "Bootstrap a CDC job from snapshot to stream",
		Long: `handoff drives a change-data-capture job through a one-time LOAD and into
continuous STREAM. The consistency marker captured from the source database
before the snapshot becomes the stream checkpoint, so no change is lost.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	fs := root.PersistentFlags()
	fs.String("config", "", "Path to a YAML configuration file")
	fs.String("env-file", "", "Path to an env file (default .env when present)")
	fs.String("host", "", "Control plane host (REDIS_CONNECT_HOST)")
	fs.Int("port", 0, "Control plane port (REDIS_CONNECT_PORT)")
	fs.Duration("request-timeout", 0, "Timeout of a single control plane request")
	fs.Int("retries", 0, "Retries of failed control plane requests")
	fs.String("job", "", "Job name (JOB_NAME)")
	fs.String("config-file", "", "Job configuration JSON uploaded to the control plane (JOB_CONFIG_FILE)")
	fs.String("marker-policy", "", "When to capture the marker: before-load or after-load")
	fs.String("dialect", "", "Source database: oracle, postgres, tidb, mysql or sqlite")
	fs.String("source-dsn", "", "Source database DSN; Oracle may use ORACLE_* variables instead")
	fs.String("marker-query", "", "Override the dialect's marker query")
	fs.Duration("poll-interval", 0, "Wait between two status polls")
	fs.Duration("snapshot-timeout", 0, "Bound on waiting for LOAD to finish (0 waits forever)")
	fs.Duration("claim-timeout", 0, "Bound on waiting for a worker to claim the job (0 waits forever)")
	fs.String("journal", "", "Journal DSN: a SQLite path or postgres:// URL; empty disables")
	fs.String("schedule", "", "Claim watcher schedule, e.g. @every 30s")
	fs.String("log-level", "", "Log level: debug, info, warn or error")
	fs.String("log-format", "", "Log format: json or console")
	fs.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	root.AddCommand(
		newRunCmd(a),
		newResumeCmd(a),
		newStatusCmd(a),
		newCheckpointCmd(a),
		newWatchCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *App) load(cmd *cobra.Command) error {
	flags := cmd.Flags()
	configFile, _ := flags.GetString("config")
	envFile, _ := flags.GetString("env-file")

	cfg, err := config.Load(config.Sources{ConfigFile: configFile, EnvFile: envFile, Flags: flags})
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// jobArg returns the job named on the command line or the configured one.
func (a *App) jobArg(args []string) core.JobName {
	if len(args) > 0 && args[0] != "" {
		return core.JobName(args[0])
	}
	return core.JobName(a.cfg.Job.Name)
}

// ExitCode maps the result of a command onto the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case core.IsInterrupted(err), errors.Is(err, context.Canceled):
		return ExitInterrupted
	default:
		return ExitFatal
	}
}

// ReportError prints err and, for handoff failures, the recovery guidance.
func ReportError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "handoff: %v\n", err)
	var se *core.StateError
	if errors.As(err, &se) {
		fmt.Fprintf(w, "last completed state: %s\n", se.Completed)
		fmt.Fprintf(w, "recovery: %s\n", se.Recovery())
	}
}
