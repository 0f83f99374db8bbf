package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"bloggerator/generator"
)

// APIKeyHeader carries the service credential on video downloads.
const APIKeyHeader = "x-goog-api-key"

// HTTPDownloader fetches finished videos over HTTP.
type HTTPDownloader struct {
	client *http.Client
}

func NewHTTPDownloader(client *http.Client) *HTTPDownloader {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &HTTPDownloader{client: client}
}

func (d *HTTPDownloader) Download(ctx context.Context, uri, apiKey string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, "", &generator.MediaDownloadError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set(APIKeyHeader, apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, "", &generator.MediaDownloadError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &generator.MediaDownloadError{StatusCode: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &generator.MediaDownloadError{Err: fmt.Errorf("read body: %w", err)}
	}
	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = "video/mp4"
	}
	return data, mimeType, nil
}
