// Package ollama is the client for a local Ollama server. It backs both
// capability interfaces of the engine: text completion and embeddings.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/internal/metrics"
)

// Config configures the Ollama client.
type Config struct {
	BaseURL    string        `json:"base_url" yaml:"base_url"`
	Model      string        `json:"model" yaml:"model"`
	EmbedModel string        `json:"embed_model" yaml:"embed_model"`
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout"`
}

// Client talks to one Ollama server.
type Client struct {
	cfg     Config
	baseURL string
	client  *http.Client
	metrics *metrics.Collector
	logger  *zap.Logger
}

// New creates a client. collector may be nil.
func New(cfg Config, collector *metrics.Collector, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3"
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "nomic-embed-text"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		metrics: collector,
		logger:  logger.With(zap.String("component", "ollama_client")),
	}
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama request failed: path=%s status=%d body=%s", path, resp.StatusCode, string(raw))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Complete generates a full (non-streamed) completion for the prompt.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	req := struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
		Stream bool   `json:"stream"`
	}{Model: c.cfg.Model, Prompt: prompt, Stream: false}

	var resp struct {
		Response string `json:"response"`
	}
	if err := c.post(ctx, "/api/generate", req, &resp); err != nil {
		c.metrics.RecordBackendRequest("ollama", "complete", "error", time.Since(start))
		return "", err
	}

	c.metrics.RecordBackendRequest("ollama", "complete", "success", time.Since(start))
	c.logger.Debug("completion finished",
		zap.String("model", c.cfg.Model),
		zap.Duration("took", time.Since(start)))
	return resp.Response, nil
}

// Embed returns the embedding vector for the text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	start := time.Now()

	req := struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}{Model: c.cfg.EmbedModel, Prompt: text}

	var resp struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := c.post(ctx, "/api/embeddings", req, &resp); err != nil {
		c.metrics.RecordBackendRequest("ollama", "embed", "error", time.Since(start))
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		c.metrics.RecordBackendRequest("ollama", "embed", "error", time.Since(start))
		return nil, fmt.Errorf("ollama returned an empty embedding for model %q", c.cfg.EmbedModel)
	}

	c.metrics.RecordBackendRequest("ollama", "embed", "success", time.Since(start))
	return resp.Embedding, nil
}

// Health checks server reachability via the model listing endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ollama health check failed: status=%d", resp.StatusCode)
	}
	return nil
}
