package backend

import "PerplexityAssistant/internal/session"

// PerplexityRequest represents the request body for the Perplexity chat completions API
type PerplexityRequest struct {
	Model       string            `json:"model"`
	Messages    []session.Message `json:"messages"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens"`
}

// PerplexityResponse represents the response from the Perplexity chat completions API
type PerplexityResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Citations []string               `json:"citations,omitempty"`
	Usage     map[string]interface{} `json:"usage"`
}

// Reply is the part of a completion the popup consumes.
type Reply struct {
	Content   string
	Citations []string
}
