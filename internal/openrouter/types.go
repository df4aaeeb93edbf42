package openrouter

import "encoding/json"

// Message represents a single chat message sent to OpenRouter.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the chat-completions request body.
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// Completion is a successful answer from one model.
type Completion struct {
	Model     string          `json:"model"`
	Content   string          `json:"content"`
	Reasoning json.RawMessage `json:"reasoning_details,omitempty"`
}

// apiResponse is the subset of the chat-completions response we read.
// Content is a pointer so that a null content is told apart from a missing choice.
type apiResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Reasoning json.RawMessage `json:"reasoning,omitempty"`
}
