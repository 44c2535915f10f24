// Package visionhttp adapts a local HTTP vision-embedding server to the
// capability.Embedder interface, in the same request/decode shape as the
// teacher's Ollama text-embedding client, retargeted from text prompts to
// image payloads.
package visionhttp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
)

// Client calls a local vision-embedding server's /api/embeddings endpoint
// with a base64-encoded image instead of a text prompt.
type Client struct {
	baseURL string
	model   string
	dim     int
	http    *http.Client
}

func New(baseURL, model string, dim int) *Client {
	return &Client{baseURL: baseURL, model: model, dim: dim, http: &http.Client{}}
}

func (c *Client) Dimensions() int { return c.dim }

type embedRequest struct {
	Model string `json:"model"`
	Image string `json:"image"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed posts the image as base64 and decodes the returned float vector.
func (c *Client) Embed(ctx context.Context, imageBytes []byte) ([]float32, error) {
	body, err := json.Marshal(embedRequest{
		Model: c.model,
		Image: base64.StdEncoding.EncodeToString(imageBytes),
	})
	if err != nil {
		return nil, fmt.Errorf("visionhttp: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("visionhttp: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("visionhttp: embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("visionhttp: embed: status %d", resp.StatusCode)
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("visionhttp: decode response: %w", err)
	}

	out := make([]float32, len(decoded.Embedding))
	for i, v := range decoded.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}
