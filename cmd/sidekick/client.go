package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/loykin/sidekick/internal/supervisor"
)

// APIClient talks to the control API exposed by a running `sidekick run`.
type APIClient struct {
	baseURL string
	client  *http.Client
}

// NewAPIClient creates a new control API client.
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8091/api"
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// IsReachable checks whether the supervisor is running and reachable.
func (c *APIClient) IsReachable() bool {
	resp, err := c.client.Get(c.baseURL + "/healthz")
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode != http.StatusNotFound
}

// Status fetches the current lifecycle snapshot.
func (c *APIClient) Status() (supervisor.Snapshot, error) {
	var snap supervisor.Snapshot
	resp, err := c.client.Get(c.baseURL + "/status")
	if err != nil {
		return snap, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return snap, apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, err
	}
	return snap, nil
}

// Stop asks the supervisor to stop the backend.
func (c *APIClient) Stop() error {
	resp, err := c.client.Post(c.baseURL+"/stop", "application/json", nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

// Restart asks the supervisor to begin a fresh readiness run.
func (c *APIClient) Restart() error {
	resp, err := c.client.Post(c.baseURL+"/restart", "application/json", nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

func apiError(resp *http.Response) error {
	var errorResp struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
		return fmt.Errorf("API error: status %d", resp.StatusCode)
	}
	return fmt.Errorf("API error: %s", errorResp.Error)
}
