package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/sidekick"
	"github.com/loykin/sidekick/internal/backend"
	"github.com/loykin/sidekick/internal/logger"
	"github.com/loykin/sidekick/internal/origin"
	"github.com/loykin/sidekick/internal/probe"
	"github.com/loykin/sidekick/internal/server"
	"github.com/loykin/sidekick/internal/supervisor"
)

func runRun(f *RunFlags) error {
	fc, err := sidekick.LoadConfig(f.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(fc.Log.Level, fc.Log.File)

	// Missing runtime is a missing prerequisite: report and exit non-zero
	// before touching the process at all.
	if len(fc.Backend.BundledRuntimes) > 0 || len(fc.Backend.RuntimeCandidates) > 0 {
		rt, err := backend.FindRuntime(fc.Backend.BundledRuntimes, fc.Backend.RuntimeCandidates)
		if err != nil {
			return fmt.Errorf("backend runtime not found: install it or fix backend.bundled_runtimes / backend.runtime_candidates")
		}
		log.Info("backend runtime found", "path", rt.Path, "source", string(rt.Source), "version", rt.Version)
	}

	sc, err := sidekick.New(fc, log)
	if err != nil {
		return err
	}
	defer func() { _ = sc.Close() }()

	if err := sidekick.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	ctl := server.NewServer(fc.Control.Listen, fc.Control.BasePath, sc.Supervisor(), sc.Policy())
	defer func() { _ = ctl.Close() }()
	log.Info("control API listening", "addr", fc.Control.Listen, "base_path", fc.Control.BasePath)

	if err := sc.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutting down")
		return sc.Stop()
	case <-sc.Supervisor().Done():
	}
	if snap := sc.Snapshot(); snap.State == supervisor.StateFailed && f.ExitOnFailed {
		_ = sc.Stop()
		return fmt.Errorf("backend failed to become ready: %s", snap.Reason)
	}

	// Stay up for the shell: serve status/restart until asked to quit.
	<-sigCh
	log.Info("shutting down")
	return sc.Stop()
}

func runStatus(f *StatusFlags) error {
	client := NewAPIClient(f.APIUrl, f.APITimeout)
	snap, err := client.Status()
	if err != nil {
		return fmt.Errorf("supervisor not reachable: %w (is 'sidekick run' active?)", err)
	}
	printJSON(snap)
	return nil
}

func runStop(f *StopFlags) error {
	client := NewAPIClient(f.APIUrl, f.APITimeout)
	if err := client.Stop(); err != nil {
		return err
	}
	fmt.Println("stopped")
	return nil
}

func runProbe(f *ProbeFlags) error {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = supervisor.DefaultProbeTimeout
	}
	baseURL := f.BaseURL
	if baseURL == "" {
		baseURL = origin.Resolver{}.Resolve(origin.ContextPackaged).BaseURL
	}
	var opts []probe.Option
	if f.Path != "" {
		opts = append(opts, probe.WithPath(f.Path))
	}
	switch {
	case f.MarkerAny:
		opts = append(opts, probe.WithMarker(""))
	case f.Marker != "":
		opts = append(opts, probe.WithMarker(f.Marker))
	}
	p := probe.New(timeout, opts...)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	res := p.Check(ctx, baseURL)
	printJSON(res)
	if res.Outcome != probe.OutcomeHealthy {
		return fmt.Errorf("backend not healthy: %s", res.Outcome)
	}
	return nil
}

func runOrigins(f *OriginsFlags) error {
	c, err := origin.ParseContext(f.Context)
	if err != nil {
		return err
	}
	r := origin.Resolver{Port: f.Port, DevPort: f.DevPort, AllowAll: f.AllowAll}
	printJSON(r.Resolve(c))
	return nil
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(b))
}
