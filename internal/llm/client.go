package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Client is a client for a multimodal generation API.
// Thread-safe for concurrent use.
type Client struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new client with the given configuration.
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Client{
		config:  config,
		baseURL: config.APIURL,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}, nil
}

// TranscribeAudio sends one multimodal generation request pairing an audio
// URL with a text instruction, and returns the generated text.
func (c *Client) TranscribeAudio(ctx context.Context, audioURL, instruction string) (string, error) {
	request := GenerationRequest{
		Model: c.config.Model,
		Input: Input{
			Messages: []Message{
				{
					Role: "user",
					Content: []ContentPart{
						{Audio: audioURL},
						{Text: instruction},
					},
				},
			},
		},
		Parameters: map[string]any{},
	}

	response, err := c.makeRequest(ctx, request)
	if err != nil {
		return "", fmt.Errorf("multimodal generation failed: %w", err)
	}

	if response.Output == nil {
		return "", fmt.Errorf("no output in response")
	}
	return response.Output.Text, nil
}

// makeRequest posts a generation request and decodes the response.
func (c *Client) makeRequest(ctx context.Context, payload GenerationRequest) (*GenerationResponse, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.config.GetHeaders() {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return nil, fmt.Errorf("request timed out: %w", err)
		}
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var generation GenerationResponse
	if err := json.Unmarshal(responseBody, &generation); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if err := generation.Err(); err != nil {
		return &generation, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &generation, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(responseBody))
	}

	return &generation, nil
}
