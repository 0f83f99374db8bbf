package generator

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Agent generates post batches from a request.
type Agent struct {
	llm    LLMClient
	keys   KeySource
	logger *slog.Logger
}

func NewAgent(llm LLMClient, keys KeySource, logger *slog.Logger) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if keys == nil {
		return nil, errors.New("key source is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{llm: llm, keys: keys, logger: logger}, nil
}

// Generate validates req, issues exactly one remote call and parses the
// reply into one post per target language. The model samples with a fixed
// temperature and top-p, so identical requests do not yield identical
// posts across runs. Failures are returned as-is; retrying is up to the
// caller.
func (a *Agent) Generate(ctx context.Context, req GenerationRequest) ([]GeneratedPost, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := a.keys.APIKey(); err != nil {
		return nil, err
	}

	prompt := BuildGenerationPrompt(req, LanguagesForPrompt(req.TargetLanguages))
	a.logger.Info("generating batch",
		"languages", LanguagesForPrompt(req.TargetLanguages),
		"urls", len(req.AllURLs()),
		"grounding", prompt.Options.WebSearch,
	)

	start := time.Now()
	raw, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		a.logger.Error("generation call failed", "error", err.Error())
		return nil, Remote("generate", err)
	}

	posts, err := ParseResponse(raw, req.TargetLanguages)
	if err != nil {
		a.logger.Warn("generation reply rejected", "error", err.Error(), "reply_len", len(raw))
		return nil, err
	}
	a.logger.Info("batch generated", "posts", len(posts), "elapsed", time.Since(start).String())
	return posts, nil
}

// Complete is the raw remote-call primitive shared with the reconciler.
func (a *Agent) Complete(ctx context.Context, prompt Prompt) (string, error) {
	if _, err := a.keys.APIKey(); err != nil {
		return "", err
	}
	raw, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		return "", Remote("complete", err)
	}
	return raw, nil
}
