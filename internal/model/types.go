// Package model provides types for reasoning service operations.
package model

// Request represents a completion request.
type Request struct {
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature"`
	JSON        bool    `json:"json,omitempty"` // request strict JSON output
}

// Response represents a completion response.
type Response struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used"`
	Model      string `json:"model"`
}

// StreamChunk is one fragment of a streamed completion.
type StreamChunk struct {
	Text string // text delta
	Done bool   // final chunk marker
	Err  error  // terminal stream error, if any
}
