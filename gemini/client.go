// Package gemini adapts the Google Gen AI SDK to the generator and media
// interfaces.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"bloggerator/generator"
	"bloggerator/media"
)

const (
	DefaultTextModel  = "gemini-3-flash-preview"
	DefaultImageModel = "gemini-3-pro-image-preview"
	DefaultVideoModel = "veo-3.1-generate-preview"
)

// Client talks to the Gemini API. A fresh SDK client is built on every call
// so a key set at runtime takes effect immediately.
type Client struct {
	Keys       generator.KeySource
	TextModel  string
	ImageModel string
	VideoModel string

	// BaseURL and HTTPClient override the SDK transport, mainly for tests.
	BaseURL    string
	HTTPClient *http.Client
}

func New(keys generator.KeySource, textModel, imageModel, videoModel string) (*Client, error) {
	if keys == nil {
		return nil, fmt.Errorf("gemini: key source is required")
	}
	c := &Client{
		Keys:       keys,
		TextModel:  textModel,
		ImageModel: imageModel,
		VideoModel: videoModel,
	}
	if c.TextModel == "" {
		c.TextModel = DefaultTextModel
	}
	if c.ImageModel == "" {
		c.ImageModel = DefaultImageModel
	}
	if c.VideoModel == "" {
		c.VideoModel = DefaultVideoModel
	}
	return c, nil
}

func (c *Client) sdk(ctx context.Context) (*genai.Client, error) {
	key, err := c.Keys.APIKey()
	if err != nil {
		return nil, err
	}
	cfg := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.HTTPClient,
	}
	if c.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return client, nil
}

// Complete sends a text prompt and returns the concatenated text parts of
// the first candidate.
func (c *Client) Complete(ctx context.Context, prompt generator.Prompt) (string, error) {
	client, err := c.sdk(ctx)
	if err != nil {
		return "", err
	}

	opts := prompt.Options
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(opts.Temperature),
		TopP:            genai.Ptr(opts.TopP),
		MaxOutputTokens: int32(opts.MaxOutputTokens),
	}
	if strings.TrimSpace(prompt.System) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(prompt.System, genai.RoleUser)
	}
	if opts.WebSearch {
		cfg.Tools = append(cfg.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	if opts.URLContext {
		cfg.Tools = append(cfg.Tools, &genai.Tool{URLContext: &genai.URLContext{}})
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt.User, genai.RoleUser)}
	resp, err := client.Models.GenerateContent(ctx, c.TextModel, contents, cfg)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, part := range firstParts(resp) {
		if part.Text != "" && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

// GenerateImage asks the image model for one image and returns the first
// inline image part.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (media.Image, error) {
	client, err := c.sdk(ctx)
	if err != nil {
		return media.Image{}, err
	}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityImage)},
	}
	resp, err := client.Models.GenerateContent(ctx, c.ImageModel, genai.Text(prompt), cfg)
	if err != nil {
		return media.Image{}, err
	}
	for _, part := range firstParts(resp) {
		if part.InlineData != nil && strings.HasPrefix(part.InlineData.MIMEType, "image/") && len(part.InlineData.Data) > 0 {
			return media.Image{MIMEType: part.InlineData.MIMEType, Data: part.InlineData.Data}, nil
		}
	}
	return media.Image{}, fmt.Errorf("%w: image model returned no image", generator.ErrNoMediaProduced)
}

// StartVideo submits a long-running video generation.
func (c *Client) StartVideo(ctx context.Context, prompt string) (*media.Operation, error) {
	client, err := c.sdk(ctx)
	if err != nil {
		return nil, err
	}
	op, err := client.Models.GenerateVideos(ctx, c.VideoModel, prompt, nil, nil)
	if err != nil {
		return nil, err
	}
	return toOperation(op)
}

// PollVideo refreshes the status of a video operation.
func (c *Client) PollVideo(ctx context.Context, op *media.Operation) (*media.Operation, error) {
	raw, ok := op.Handle.(*genai.GenerateVideosOperation)
	if !ok || raw == nil {
		raw = &genai.GenerateVideosOperation{Name: op.Name}
	}
	client, err := c.sdk(ctx)
	if err != nil {
		return nil, err
	}
	next, err := client.Operations.GetVideosOperation(ctx, raw, nil)
	if err != nil {
		return nil, err
	}
	return toOperation(next)
}

func toOperation(op *genai.GenerateVideosOperation) (*media.Operation, error) {
	if op == nil {
		return nil, errors.New("gemini: empty video operation")
	}
	if len(op.Error) > 0 {
		return nil, fmt.Errorf("gemini: video operation %s failed: %v", op.Name, op.Error)
	}
	out := &media.Operation{Name: op.Name, Done: op.Done, Handle: op}
	if op.Done && op.Response != nil {
		for _, v := range op.Response.GeneratedVideos {
			if v != nil && v.Video != nil && v.Video.URI != "" {
				out.VideoURI = v.Video.URI
				break
			}
		}
	}
	return out, nil
}

func firstParts(resp *genai.GenerateContentResponse) []*genai.Part {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	return resp.Candidates[0].Content.Parts
}
