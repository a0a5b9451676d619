// Package client is an embeddable Go client for the sidekick control API.
// The hosting shell (or any local tool) can use it to query the backend
// lifecycle and drive stop/restart without shelling out to the CLI.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/loykin/sidekick/internal/origin"
	"github.com/loykin/sidekick/internal/supervisor"
)

// Config holds client configuration.
type Config struct {
	BaseURL string        // control API base, e.g. "http://127.0.0.1:8091/api"
	Timeout time.Duration
	Logger  *slog.Logger // optional
}

// DefaultConfig returns the configuration matching a default `sidekick run`.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:8091/api",
		Timeout: 10 * time.Second,
	}
}

// Client talks to a running sidekick supervisor.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// New creates a client from cfg, filling unset fields from DefaultConfig.
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}
}

// Status returns the supervisor's current lifecycle snapshot.
func (c *Client) Status(ctx context.Context) (supervisor.Snapshot, error) {
	var snap supervisor.Snapshot
	err := c.getJSON(ctx, "/status", &snap)
	return snap, err
}

// Origins returns the resolved origin policy.
func (c *Client) Origins(ctx context.Context) (origin.Policy, error) {
	var p origin.Policy
	err := c.getJSON(ctx, "/origins", &p)
	return p, err
}

// Healthy reports whether the control API itself answers.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Stop asks the supervisor to stop the backend process.
func (c *Client) Stop(ctx context.Context) error {
	return c.post(ctx, "/stop")
}

// Restart asks the supervisor to begin a fresh supervised run.
func (c *Client) Restart(ctx context.Context) error {
	return c.post(ctx, "/restart")
}

// WaitReady polls Status until the backend is ready, the run ends in another
// terminal state, or ctx expires.
func (c *Client) WaitReady(ctx context.Context, poll time.Duration) (supervisor.Snapshot, error) {
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}
	for {
		snap, err := c.Status(ctx)
		if err == nil {
			switch snap.State {
			case supervisor.StateReady:
				return snap, nil
			case supervisor.StateFailed, supervisor.StateStopped:
				return snap, fmt.Errorf("backend ended %s: %s", snap.StateName, snap.Reason)
			}
		} else {
			c.logger.Debug("status poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return supervisor.Snapshot{}, ctx.Err()
		case <-time.After(poll):
		}
	}
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return c.apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return c.apiError(resp)
	}
	return nil
}

func (c *Client) apiError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		return fmt.Errorf("control API: status %d", resp.StatusCode)
	}
	return fmt.Errorf("control API: %s", body.Error)
}
