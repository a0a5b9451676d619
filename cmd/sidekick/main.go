package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command and wires all subcommands.
func buildRoot() *cobra.Command {
	runFlags := &RunFlags{}
	statusFlags := &StatusFlags{}
	stopFlags := &StopFlags{}
	probeFlags := &ProbeFlags{}
	originsFlags := &OriginsFlags{}

	root := &cobra.Command{
		Use:           "sidekick",
		Short:         "Supervise the desktop app's local backend process",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		createRunCommand(runFlags),
		createStatusCommand(statusFlags),
		createStopCommand(stopFlags),
		createProbeCommand(probeFlags),
		createOriginsCommand(originsFlags),
	)
	return root
}

func createRunCommand(f *RunFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Launch the backend and supervise its readiness",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runRun(f)
		},
	}
	cmd.Flags().StringVarP(&f.ConfigPath, "config", "c", "sidekick.toml", "path to config file")
	cmd.Flags().BoolVar(&f.ExitOnFailed, "exit-on-failed", false, "exit non-zero when readiness fails instead of keeping the control API up")
	return cmd
}

func createStatusCommand(f *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a running supervisor's lifecycle state",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runStatus(f)
		},
	}
	addClientFlags(cmd, &f.ClientFlags)
	return cmd
}

func createStopCommand(f *StopFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running supervisor and its backend",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runStop(f)
		},
	}
	addClientFlags(cmd, &f.ClientFlags)
	return cmd
}

func createProbeCommand(f *ProbeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Issue a single health check against the backend",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runProbe(f)
		},
	}
	cmd.Flags().StringVar(&f.BaseURL, "base-url", "", "backend base URL (default: resolved loopback endpoint)")
	cmd.Flags().StringVar(&f.Path, "path", "", "health endpoint path")
	cmd.Flags().StringVar(&f.Marker, "marker", "", "readiness marker expected in the body")
	cmd.Flags().BoolVar(&f.MarkerAny, "marker-any", false, "treat any 2xx response as healthy")
	cmd.Flags().DurationVar(&f.Timeout, "timeout", 0, "probe timeout")
	return cmd
}

func createOriginsCommand(f *OriginsFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "origins",
		Short: "Print the resolved origin policy for an execution context",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runOrigins(f)
		},
	}
	cmd.Flags().StringVar(&f.Context, "context", "packaged", "execution context: packaged or development")
	cmd.Flags().IntVar(&f.Port, "port", 0, "backend port")
	cmd.Flags().IntVar(&f.DevPort, "dev-port", 0, "frontend dev server port")
	cmd.Flags().BoolVar(&f.AllowAll, "allow-all", false, "include the wildcard fallback")
	return cmd
}
