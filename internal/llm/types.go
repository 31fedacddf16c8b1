package llm

import "fmt"

// ContentPart is one element of a multimodal message. Exactly one field is
// set per part.
type ContentPart struct {
	Audio string `json:"audio,omitempty"`
	Text  string `json:"text,omitempty"`
}

// Message is a single conversation message holding multimodal content.
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// GenerationRequest is a multimodal generation request in the DashScope
// format: the model name, an input message list, and a free-form parameter
// object.
type GenerationRequest struct {
	Model      string         `json:"model"`
	Input      Input          `json:"input"`
	Parameters map[string]any `json:"parameters"`
}

// Input wraps the messages of a generation request.
type Input struct {
	Messages []Message `json:"messages"`
}

// GenerationResponse is a multimodal generation response.
type GenerationResponse struct {
	Output    *Output `json:"output,omitempty"`
	RequestID string  `json:"request_id,omitempty"`
	Code      string  `json:"code,omitempty"`
	Message   string  `json:"message,omitempty"`
}

// Output carries the generated text.
type Output struct {
	Text string `json:"text"`
}

// Err reports an API-level error encoded in the response body, if any.
func (r *GenerationResponse) Err() error {
	if r.Code == "" {
		return nil
	}
	return fmt.Errorf("model API error %s: %s", r.Code, r.Message)
}
