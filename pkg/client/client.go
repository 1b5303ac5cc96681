// Package client is a Go client for the reptlab HTTP API. It drives
// simulations remotely: create, step, tune, read geometry and
// statistics, and fetch reports.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"reptlab/internal/rept"
)

// Client talks to a reptlab server.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// New creates a client for the server at baseURL
// (e.g. "http://localhost:8080").
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// NewWithHTTPClient is New with a custom HTTP client.
func NewWithHTTPClient(baseURL string, httpc *http.Client) *Client {
	return &Client{baseURL: baseURL, httpc: httpc}
}

// CreateRequest is the body for CreateSimulation: structural
// parameters plus optional runtime overrides.
type CreateRequest struct {
	Simulation rept.SimulationConfig `json:"simulation"`
	Runtime    *rept.RuntimeConfig   `json:"runtime,omitempty"`
}

// do sends a request and decodes the JSON response into out (out may
// be nil for endpoints whose body the caller does not need).
func (c *Client) do(ctx context.Context, method string, pathSegments []string, query url.Values, body any, out any) error {
	u, err := url.JoinPath(c.baseURL, pathSegments...)
	if err != nil {
		return fmt.Errorf("failed to build URL: %w", err)
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Health checks server liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, []string{"healthz"}, nil, nil, nil)
}

// CreateSimulation creates a simulation under the given ID and
// returns its initial statistics.
func (c *Client) CreateSimulation(ctx context.Context, simID string, req CreateRequest) (rept.Stats, error) {
	var stats rept.Stats
	err := c.do(ctx, http.MethodPost, []string{"sim", simID}, nil, req, &stats)
	return stats, err
}

// DeleteSimulation removes a simulation.
func (c *Client) DeleteSimulation(ctx context.Context, simID string) error {
	return c.do(ctx, http.MethodDelete, []string{"sim", simID}, nil, nil, nil)
}

// Step advances the simulation by n ensemble sweeps and returns the
// statistics afterwards.
func (c *Client) Step(ctx context.Context, simID string, n int) (rept.Stats, error) {
	var stats rept.Stats
	query := url.Values{"sweeps": {fmt.Sprint(n)}}
	err := c.do(ctx, http.MethodPost, []string{"sim", simID, "step"}, query, nil, &stats)
	return stats, err
}

// UpdateRuntimeParams replaces the runtime-tunable parameters without
// resetting geometry.
func (c *Client) UpdateRuntimeParams(ctx context.Context, simID string, runtime rept.RuntimeConfig) error {
	return c.do(ctx, http.MethodPut, []string{"sim", simID, "params"}, nil, runtime, nil)
}

// Reset regenerates the simulation's obstacles and chains.
func (c *Client) Reset(ctx context.Context, simID string) (rept.Stats, error) {
	var stats rept.Stats
	err := c.do(ctx, http.MethodPost, []string{"sim", simID, "reset"}, nil, nil, &stats)
	return stats, err
}

// Stats fetches the current statistics record.
func (c *Client) Stats(ctx context.Context, simID string) (rept.Stats, error) {
	var stats rept.Stats
	err := c.do(ctx, http.MethodGet, []string{"sim", simID, "stats"}, nil, nil, &stats)
	return stats, err
}

// Chains fetches a read-only view of the chain population.
func (c *Client) Chains(ctx context.Context, simID string) ([]rept.Chain, error) {
	var chains []rept.Chain
	err := c.do(ctx, http.MethodGet, []string{"sim", simID, "chains"}, nil, nil, &chains)
	return chains, err
}

// Obstacles fetches the quenched obstacle set.
func (c *Client) Obstacles(ctx context.Context, simID string) ([]rept.Site, error) {
	var obstacles []rept.Site
	err := c.do(ctx, http.MethodGet, []string{"sim", simID, "obstacles"}, nil, nil, &obstacles)
	return obstacles, err
}

// History fetches the downsampled statistics series.
func (c *Client) History(ctx context.Context, simID string) ([]rept.Sample, error) {
	var samples []rept.Sample
	err := c.do(ctx, http.MethodGet, []string{"sim", simID, "history"}, nil, nil, &samples)
	return samples, err
}

// Snapshot exports the simulation state.
func (c *Client) Snapshot(ctx context.Context, simID string) (rept.Snapshot, error) {
	var snap rept.Snapshot
	err := c.do(ctx, http.MethodGet, []string{"sim", simID, "snapshot"}, nil, nil, &snap)
	return snap, err
}

// RestoreSnapshot replaces the simulation state with the snapshot's.
func (c *Client) RestoreSnapshot(ctx context.Context, simID string, snap rept.Snapshot) error {
	return c.do(ctx, http.MethodPost, []string{"sim", simID, "snapshot"}, nil, snap, nil)
}

// Report fetches the markdown run report.
func (c *Client) Report(ctx context.Context, simID string) (string, error) {
	u, err := url.JoinPath(c.baseURL, "sim", simID, "report")
	if err != nil {
		return "", fmt.Errorf("failed to build URL: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return string(body), nil
}
