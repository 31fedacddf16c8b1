package llm

import (
	"fmt"
)

// Config holds the configuration for the multimodal model client.
// Any DashScope-compatible multimodal generation endpoint works; the model
// only needs to accept an audio URL plus a text instruction in one message.
type Config struct {
	APIKey  string `json:"api_key"`
	APIURL  string `json:"api_url"`
	Model   string `json:"model"`
	Timeout int    `json:"timeout"` // seconds
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if c.APIURL == "" {
		return fmt.Errorf("API URL is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	return nil
}

// GetHeaders returns the headers for a model API request.
func (c *Config) GetHeaders() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.APIKey,
		"Content-Type":  "application/json",
	}
}
