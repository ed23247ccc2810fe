// Package remote talks to a generative model served over HTTP.
//
// The server exposes:
//
//	GET  /health       200 when the model is loaded
//	GET  /config       model.Config as JSON
//	POST /embed_style  {"style": "..."} -> {"embedding": [...]}
//	POST /generate     {"state", "style", "seed"} -> {"samples", "channels", "state"}
//
// Samples travel as base64 little-endian float32, interleaved. The state is
// an opaque base64 token that is handed back unchanged on the next call.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/satindergrewal/rtradio/internal/audio"
	"github.com/satindergrewal/rtradio/internal/model"
)

// Client is a model.Model backed by a remote model server.
type Client struct {
	apiURL string
	apiKey string
	http   *http.Client
	logger *slog.Logger
	cfg    model.Config
}

// NewClient creates a client. Call Connect before use.
func NewClient(apiURL, apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiURL: strings.TrimRight(apiURL, "/"),
		apiKey: apiKey,
		http:   &http.Client{Timeout: 60 * time.Second}, // a chunk can take a while on a cold GPU
		logger: logger,
	}
}

type embedRequest struct {
	Style string `json:"style"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error"`
}

type generateRequest struct {
	State string    `json:"state,omitempty"`
	Style []float32 `json:"style"`
	Seed  int       `json:"seed"`
}

type generateResponse struct {
	Samples  string `json:"samples"`
	Channels int    `json:"channels"`
	State    string `json:"state"`
	Error    string `json:"error"`
}

// WaitForHealthy blocks until the server responds to health checks.
func (c *Client) WaitForHealthy(ctx context.Context, interval time.Duration) error {
	c.logger.Info("waiting for model server", "url", c.apiURL)
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/health", nil)
		if err != nil {
			return fmt.Errorf("create health request: %w", err)
		}
		resp, err := c.http.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				c.logger.Info("model server is healthy")
				return nil
			}
		}

		c.logger.Info("model server not ready, retrying", "in", interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Connect fetches the model's static configuration.
func (c *Client) Connect(ctx context.Context) error {
	var cfg model.Config
	if err := c.do(ctx, http.MethodGet, "/config", nil, &cfg); err != nil {
		return fmt.Errorf("fetch config: %w", err)
	}
	if err := cfg.Format().Validate(); err != nil {
		return fmt.Errorf("model config: %w", err)
	}
	c.cfg = cfg
	return nil
}

// Config implements model.Model.
func (c *Client) Config() model.Config {
	return c.cfg
}

// EmbedStyle implements model.Model.
func (c *Client) EmbedStyle(ctx context.Context, name string) (model.Embedding, error) {
	var resp embedResponse
	if err := c.do(ctx, http.MethodPost, "/embed_style", embedRequest{Style: name}, &resp); err != nil {
		return nil, fmt.Errorf("embed style %q: %w", name, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("embed style %q: %s", name, resp.Error)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("embed style %q: empty embedding", name)
	}
	return resp.Embedding, nil
}

// Generate implements model.Model. The state must be nil or a token
// returned by a previous call.
func (c *Client) Generate(ctx context.Context, state model.State, style model.Embedding, seed int) (audio.Segment, model.State, error) {
	req := generateRequest{Style: style, Seed: seed}
	if state != nil {
		tok, ok := state.(string)
		if !ok {
			return audio.Segment{}, nil, fmt.Errorf("generate: foreign state %T", state)
		}
		req.State = tok
	}

	var resp generateResponse
	if err := c.do(ctx, http.MethodPost, "/generate", req, &resp); err != nil {
		return audio.Segment{}, nil, fmt.Errorf("generate: %w", err)
	}
	if resp.Error != "" {
		return audio.Segment{}, nil, fmt.Errorf("generate: %s", resp.Error)
	}

	samples, err := decodeSamples(resp.Samples)
	if err != nil {
		return audio.Segment{}, nil, fmt.Errorf("generate: %w", err)
	}
	ch := resp.Channels
	if ch == 0 {
		ch = c.cfg.Channels
	}
	if ch <= 0 || len(samples)%ch != 0 {
		return audio.Segment{}, nil, fmt.Errorf("generate: %d samples not divisible by %d channels", len(samples), ch)
	}

	var next model.State
	if resp.State != "" {
		next = resp.State
	}
	return audio.Segment{Samples: samples, Channels: ch}, next, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeSamples(s string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode samples: %w", err)
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("decode samples: %d bytes is not a whole number of float32", len(raw))
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}

// EncodeSamples is the inverse of the wire decoding, for servers and tests.
func EncodeSamples(samples []float32) string {
	raw := make([]byte, len(samples)*4)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	return base64.StdEncoding.EncodeToString(raw)
}
