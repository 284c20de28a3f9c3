package app

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X github.com/jdziat/simple-cdc-handoff/cmd/handoff/app.Version=...".
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func newVersionCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// No configuration is needed to print the version.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versionInfo{
				Version:   Version,
				Commit:    Commit,
				BuildDate: BuildDate,
				GoVersion: runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			}
			format, _ := cmd.Flags().GetString("format")
			if format == "json" {
				return a.printJSON(info)
			}
			_, err := fmt.Fprintf(a.out, "handoff %s (commit %s, built %s, %s, %s)\n",
				info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
			return err
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}
