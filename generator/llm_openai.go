package generator

import (
	"context"
	"errors"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAILLM implements LLMClient using the official openai-go SDK (chat
// completions). It serves any OpenAI-compatible endpoint through BaseURL.
// Grounding tools have no equivalent there and are ignored.
type OpenAILLM struct {
	Model string
	Keys  KeySource
	Opts  []option.RequestOption
}

func NewOpenAILLMFromConfig(cfg *LLMSettings) (*OpenAILLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.Keys == nil {
		return nil, errors.New("llm key source is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	var opts []option.RequestOption
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAILLM{Model: cfg.Model, Keys: cfg.Keys, Opts: opts}, nil
}

func (o *OpenAILLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	key, err := o.Keys.APIKey()
	if err != nil {
		return "", err
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(key)}, o.Opts...)...)

	var msgs []openai.ChatCompletionMessageParamUnion
	if prompt.System != "" {
		msgs = append(msgs, openai.SystemMessage(prompt.System))
	}
	msgs = append(msgs, openai.UserMessage(prompt.User))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.Model),
		Messages: msgs,
	}
	if prompt.Options.Temperature > 0 {
		params.Temperature = openai.Float(float64(prompt.Options.Temperature))
	}
	if prompt.Options.TopP > 0 {
		params.TopP = openai.Float(float64(prompt.Options.TopP))
	}
	if prompt.Options.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(prompt.Options.MaxOutputTokens))
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
