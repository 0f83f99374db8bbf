// Package publisher exports a generated batch: media is copied into an
// object store, markers become embeds, and each post is written as
// markdown and HTML next to a manifest.
package publisher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"bloggerator/generator"
	"bloggerator/media"
)

// Options locate media that was stored locally by the media manager.
type Options struct {
	// MediaDir and MediaBaseURL match the media.DirStore the jobs wrote to.
	MediaDir     string
	MediaBaseURL string
	Logger       *slog.Logger
	Now          func() time.Time
}

// Publisher orchestrates media upload, conversion and manifest writing.
type Publisher struct {
	store  ObjectStore
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// Manifest describes one export.
type Manifest struct {
	Prefix     string         `json:"prefix"`
	ExportedAt time.Time      `json:"exportedAt"`
	Posts      []ExportedPost `json:"posts"`
	Skipped    []SkippedMedia `json:"skipped,omitempty"`
}

type ExportedPost struct {
	ID          string              `json:"id"`
	Language    string              `json:"language"`
	Title       string              `json:"title"`
	Slug        string              `json:"slug"`
	SEO         *generator.SEO      `json:"seo,omitempty"`
	MarkdownURL string              `json:"markdownUrl"`
	HTMLURL     string              `json:"htmlUrl"`
	Media       map[string]string   `json:"media,omitempty"`
	Stats       generator.PostStats `json:"stats"`
}

// SkippedMedia records a generated placeholder whose media could not be
// read. The export continues without it.
type SkippedMedia struct {
	PostID  string `json:"postId"`
	MediaID string `json:"mediaId"`
	Reason  string `json:"reason"`
}

func New(store ObjectStore, opts Options) (*Publisher, error) {
	if store == nil {
		return nil, errors.New("object store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Publisher{store: store, opts: opts, logger: logger, now: now}, nil
}

// Export writes every post under prefix and returns the manifest, which is
// also stored as prefix/manifest.json.
func (p *Publisher) Export(ctx context.Context, prefix string, posts []generator.GeneratedPost) (Manifest, error) {
	if len(posts) == 0 {
		return Manifest{}, errors.New("nothing to export")
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = p.now().UTC().Format("20060102-150405")
	}
	manifest := Manifest{Prefix: prefix, ExportedAt: p.now().UTC()}

	for _, post := range posts {
		exported, skipped, err := p.exportPost(ctx, prefix, post)
		if err != nil {
			return Manifest{}, fmt.Errorf("export %s: %w", post.Language, err)
		}
		manifest.Posts = append(manifest.Posts, exported)
		manifest.Skipped = append(manifest.Skipped, skipped...)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return Manifest{}, err
	}
	if _, err := p.store.Put(ctx, path.Join(prefix, "manifest.json"), "application/json", data); err != nil {
		return Manifest{}, err
	}
	p.logger.Info("batch exported", "prefix", prefix, "posts", len(manifest.Posts), "skipped_media", len(manifest.Skipped))
	return manifest, nil
}

func (p *Publisher) exportPost(ctx context.Context, prefix string, post generator.GeneratedPost) (ExportedPost, []SkippedMedia, error) {
	base := path.Join(prefix, string(post.Language))
	slug := slugFor(post)

	urls := map[string]string{}
	var skipped []SkippedMedia
	for _, mp := range post.MediaPlaceholders {
		if !mp.Generated || mp.URL == "" {
			continue
		}
		u, err := p.materialize(ctx, base, mp)
		if err != nil {
			p.logger.Warn("media skipped", "post_id", post.ID, "media_id", mp.ID, "error", err)
			skipped = append(skipped, SkippedMedia{PostID: post.ID, MediaID: mp.ID, Reason: err.Error()})
			continue
		}
		urls[mp.ID] = u
	}

	markdown := replaceMarkers(post.Markdown, post.MediaPlaceholders, urls)
	mdURL, err := p.store.Put(ctx, path.Join(base, slug+".md"), "text/markdown; charset=utf-8", []byte(markdown))
	if err != nil {
		return ExportedPost{}, nil, err
	}
	doc, err := renderPage(post, markdown)
	if err != nil {
		return ExportedPost{}, nil, fmt.Errorf("render html: %w", err)
	}
	htmlURL, err := p.store.Put(ctx, path.Join(base, slug+".html"), "text/html; charset=utf-8", []byte(doc))
	if err != nil {
		return ExportedPost{}, nil, err
	}

	out := ExportedPost{
		ID:          post.ID,
		Language:    string(post.Language),
		Title:       post.Title,
		Slug:        slug,
		SEO:         post.SEO,
		MarkdownURL: mdURL,
		HTMLURL:     htmlURL,
		Stats:       generator.Stats(post),
	}
	if len(urls) > 0 {
		out.Media = urls
	}
	return out, skipped, nil
}

// materialize copies a placeholder's media into the store. Remote http(s)
// URLs are referenced as they are.
func (p *Publisher) materialize(ctx context.Context, base string, mp generator.MediaPlaceholder) (string, error) {
	if strings.HasPrefix(mp.URL, "http://") || strings.HasPrefix(mp.URL, "https://") {
		return mp.URL, nil
	}
	mimeType, data, err := p.readMedia(mp.URL)
	if err != nil {
		return "", err
	}
	key := path.Join(base, "media", mp.ID+media.Extension(mimeType))
	return p.store.Put(ctx, key, mimeType, data)
}

func (p *Publisher) readMedia(ref string) (string, []byte, error) {
	if strings.HasPrefix(ref, "data:") {
		return decodeDataURL(ref)
	}
	if p.opts.MediaDir == "" {
		return "", nil, fmt.Errorf("unsupported media reference %q", ref)
	}
	name := ref
	if base := strings.TrimRight(p.opts.MediaBaseURL, "/"); base != "" {
		name = strings.TrimPrefix(ref, base+"/")
	}
	if u, err := url.Parse(name); err == nil {
		name = u.Path
	}
	local := filepath.Join(p.opts.MediaDir, filepath.Base(name))
	data, err := os.ReadFile(local)
	if err != nil {
		return "", nil, err
	}
	return mimeFromExt(filepath.Ext(local)), data, nil
}

func decodeDataURL(ref string) (string, []byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return "", nil, errors.New("malformed data url")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data url: %w", err)
	}
	return strings.TrimSuffix(header, ";base64"), data, nil
}

func mimeFromExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	}
	return "application/octet-stream"
}
