package main

import (
	"time"

	"github.com/spf13/cobra"
)

// RunFlags configures the long-running supervisor process.
type RunFlags struct {
	ConfigPath   string
	ExitOnFailed bool
}

// ClientFlags configure commands that talk to a running supervisor's control API.
type ClientFlags struct {
	APIUrl     string
	APITimeout time.Duration
}

type StatusFlags struct {
	ClientFlags
}

type StopFlags struct {
	ClientFlags
}

// ProbeFlags configure a one-shot health check.
type ProbeFlags struct {
	BaseURL   string
	Path      string
	Marker    string
	MarkerAny bool
	Timeout   time.Duration
}

// OriginsFlags configure origin policy resolution without a config file.
type OriginsFlags struct {
	Context  string
	Port     int
	DevPort  int
	AllowAll bool
}

func addClientFlags(cmd *cobra.Command, f *ClientFlags) {
	cmd.Flags().StringVar(&f.APIUrl, "api-url", "", "control API base URL (default http://127.0.0.1:8091/api)")
	cmd.Flags().DurationVar(&f.APITimeout, "api-timeout", 0, "control API request timeout")
}
