// Package media runs image and video generation jobs for post placeholders
// and tracks their live progress.
package media

import (
	"context"
	"encoding/base64"
	"fmt"
)

// Image is a generated image payload.
type Image struct {
	MIMEType string
	Data     []byte
}

// ImageGenerator produces one image per call. It returns an error wrapping
// generator.ErrNoMediaProduced when the reply carries no image.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (Image, error)
}

// Operation is a long-running video generation handle. Handle carries the
// provider's own operation value between polls.
type Operation struct {
	Name     string
	Done     bool
	VideoURI string
	Handle   any
}

// VideoGenerator starts and polls video operations. PollVideo is an
// idempotent status check.
type VideoGenerator interface {
	StartVideo(ctx context.Context, prompt string) (*Operation, error)
	PollVideo(ctx context.Context, op *Operation) (*Operation, error)
}

// Downloader fetches a finished video with the service credential.
type Downloader interface {
	Download(ctx context.Context, uri, apiKey string) ([]byte, string, error)
}

// Store materializes media bytes into a resource the client can play and
// returns its URL.
type Store interface {
	Save(ctx context.Context, name, mimeType string, data []byte) (string, error)
}

// Result is what a successful job attached to its placeholder.
type Result struct {
	URL            string `json:"url"`
	MIMEType       string `json:"mimeType"`
	ElapsedSeconds int    `json:"elapsedSeconds"`
}

// Progress is reported by video jobs on every poll.
type Progress struct {
	Status         string `json:"status"`
	ElapsedSeconds int    `json:"elapsedSeconds"`
}

// DataURL encodes bytes as a data: URL.
func DataURL(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}
