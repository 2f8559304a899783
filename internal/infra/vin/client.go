package vin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vietddude/vinspect/internal/core/domain"
)

// Config holds VIN decoder settings.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// DecodeResult is the subset of vehicle attributes the inspection flow uses.
type DecodeResult struct {
	VIN       string `json:"vin"`
	Make      string `json:"make"`
	Model     string `json:"model"`
	ModelYear string `json:"model_year"`
	BodyClass string `json:"body_class"`
}

// Client talks to a vPIC-style VIN decoding API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a VIN decoder client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Decode resolves a VIN to vehicle attributes.
func (c *Client) Decode(ctx context.Context, vin string) (*DecodeResult, error) {
	url := fmt.Sprintf("%s/vehicles/DecodeVinValues/%s?format=json", c.cfg.BaseURL, vin)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("decode vin: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, &domain.HTTPError{Provider: "vin-decoder", Status: resp.StatusCode, Body: string(snippet)}
	}

	var payload struct {
		Results []struct {
			Make      string `json:"Make"`
			Model     string `json:"Model"`
			ModelYear string `json:"ModelYear"`
			BodyClass string `json:"BodyClass"`
		} `json:"Results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(payload.Results) == 0 {
		return nil, fmt.Errorf("no decode results for vin %s", vin)
	}

	r := payload.Results[0]
	return &DecodeResult{
		VIN:       vin,
		Make:      r.Make,
		Model:     r.Model,
		ModelYear: r.ModelYear,
		BodyClass: r.BodyClass,
	}, nil
}
