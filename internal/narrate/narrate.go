// Package narrate turns a statistics record into prose commentary by
// calling an external text-generation service. The call is an opaque,
// fallible collaborator: it never touches simulation state, and every
// failure degrades to an error the caller can surface as "analysis
// unavailable".
package narrate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"reptlab/internal/rept"
)

const (
	// DefaultBaseURL targets the Gemini generateContent REST API.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash-exp"

	apiKeyEnv         = "REPTLAB_API_KEY"
	fallbackAPIKeyEnv = "API_KEY"
)

// ErrNoAPIKey is returned when no API key could be resolved from the
// environment or a .env file.
var ErrNoAPIKey = errors.New("narration API key not found")

// Client calls the text-generation service.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	httpc   *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithModel overrides the default model name.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithBaseURL overrides the service endpoint, mainly for tests.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// NewClient creates a narration client with the given API key.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		model:   DefaultModel,
		baseURL: DefaultBaseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadAPIKey resolves the API key from the environment, falling back
// to a .env file in the working directory.
func LoadAPIKey() (string, error) {
	if key := os.Getenv(apiKeyEnv); key != "" {
		return key, nil
	}
	if key := os.Getenv(fallbackAPIKeyEnv); key != "" {
		return key, nil
	}
	if key := keyFromDotEnv(".env"); key != "" {
		return key, nil
	}
	return "", ErrNoAPIKey
}

func keyFromDotEnv(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		for _, prefix := range []string{apiKeyEnv + "=", fallbackAPIKeyEnv + "="} {
			if strings.HasPrefix(line, prefix) {
				return strings.TrimSpace(strings.TrimPrefix(line, prefix))
			}
		}
	}
	return ""
}

// BuildPrompt renders the request sent to the service: the run
// parameters and statistics plus the physics framing the commentary
// should address.
func BuildPrompt(cfg rept.SimulationConfig, stats rept.Stats) string {
	var b strings.Builder
	b.WriteString("Analyze the following polymer reptation Monte Carlo simulation results:\n")
	fmt.Fprintf(&b, "- Lattice: %dx%d\n", cfg.LatticeSize, cfg.LatticeSize)
	fmt.Fprintf(&b, "- Chains: %d, Length (N): %d\n", cfg.NumChains, cfg.ChainLength)
	fmt.Fprintf(&b, "- Obstacle Density: %.1f%%\n", cfg.ObstacleConcentration*100)
	fmt.Fprintf(&b, "- Sweeps Completed: %d\n", stats.Steps)
	fmt.Fprintf(&b, "- RMS End-to-End: %.3f\n", stats.RMSEndToEnd)
	fmt.Fprintf(&b, "- Radius of Gyration: %.3f\n", stats.RadiusOfGyration)
	fmt.Fprintf(&b, "- Autocorrelation: %.3f\n", stats.Autocorrelation)
	fmt.Fprintf(&b, "- Acceptance Ratio: %.2f%%\n", stats.AcceptanceRatio*100)
	b.WriteString("\nExplain the physical significance of the autocorrelation decay. ")
	b.WriteString("If it is still near 1.0, what does that say about the relaxation time relative to the simulation duration? ")
	b.WriteString("Mention how the obstacle density affects the tube width in the De Gennes reptation model. ")
	b.WriteString("Use professional physics terminology.")
	return b.String()
}

// generateContent request/response shapes, reduced to the fields we
// read and write.
type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Describe asks the service for a narrative reading of the current
// statistics. Any transport, status or decoding failure is returned
// as an error; the caller decides how to degrade.
func (c *Client) Describe(ctx context.Context, cfg rept.SimulationConfig, stats rept.Stats) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: BuildPrompt(cfg, stats)}}}},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("narration request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("narration service returned status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("narration service error %d: %s", out.Error.Code, out.Error.Message)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("narration service returned no candidates")
	}

	var text strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return text.String(), nil
}
