package generator

import "context"

// LLMClient abstracts the text generation capability so providers can be
// swapped or mocked.
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// LLMSettings is the base configuration handed to concrete clients.
type LLMSettings struct {
	Provider string
	Model    string
	BaseURL  string
	Keys     KeySource
}
