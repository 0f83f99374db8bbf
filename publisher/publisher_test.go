package publisher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"bloggerator/generator"
)

func fixedNow() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

func samplePost() generator.GeneratedPost {
	img := generator.MediaPlaceholder{ID: "media-img", Type: generator.MediaImage, Prompt: "diagram", Tool: generator.ToolNanoBanana, Generated: true, URL: "data:image/png;base64,AQID"}
	vid := generator.MediaPlaceholder{ID: "media-vid", Type: generator.MediaVideo, Prompt: "clip", Tool: generator.ToolVeo3, Generated: true, URL: "/media/media-vid.mp4"}
	pending := generator.MediaPlaceholder{ID: "media-pending", Type: generator.MediaImage, Prompt: "later", Tool: generator.ToolNanoBanana}
	return generator.GeneratedPost{
		ID:       "post-en",
		Language: generator.LanguageEnglish,
		Title:    "Context in Go",
		Markdown: "# Context in Go\n\nIntro text.\n\n<!-- IMAGE: [flow diagram, flat] -->\n\nMore.\n\n<!-- VIDEO: [timelapse] -->\n\n<!-- IMAGE: [second one] -->\n",
		SEO: &generator.SEO{
			MetaTitle:       "Context in Go: cancellation",
			MetaDescription: "How cancellation flows",
			Slug:            "context-in-go",
			Tags:            []string{"go", "context"},
		},
		MediaPlaceholders: []generator.MediaPlaceholder{img, vid, pending},
	}
}

func TestExportToDir(t *testing.T) {
	mediaDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(mediaDir, "media-vid.mp4"), []byte("mp4"), 0o644); err != nil {
		t.Fatal(err)
	}
	outDir := t.TempDir()
	store, err := NewDirStore(outDir, "")
	if err != nil {
		t.Fatalf("dir store: %v", err)
	}
	pub, err := New(store, Options{MediaDir: mediaDir, MediaBaseURL: "/media", Now: fixedNow})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	manifest, err := pub.Export(context.Background(), "", []generator.GeneratedPost{samplePost()})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if manifest.Prefix != "20260304-050607" || len(manifest.Posts) != 1 || len(manifest.Skipped) != 0 {
		t.Fatalf("unexpected manifest: %+v", manifest)
	}

	base := filepath.Join(outDir, "20260304-050607", "en")
	img, err := os.ReadFile(filepath.Join(base, "media", "media-img.png"))
	if err != nil || string(img) != "\x01\x02\x03" {
		t.Fatalf("image not materialized: %v %q", err, img)
	}
	if _, err := os.Stat(filepath.Join(base, "media", "media-vid.mp4")); err != nil {
		t.Fatalf("video not copied: %v", err)
	}

	mdOut, err := os.ReadFile(filepath.Join(base, "context-in-go.md"))
	if err != nil {
		t.Fatalf("markdown missing: %v", err)
	}
	md := string(mdOut)
	if !strings.Contains(md, "![flow diagram, flat]("+filepath.Join(base, "media", "media-img.png")+")") {
		t.Errorf("image marker not replaced:\n%s", md)
	}
	if !strings.Contains(md, "<video controls") {
		t.Errorf("video marker not replaced:\n%s", md)
	}
	if !strings.Contains(md, "<!-- IMAGE: [second one] -->") {
		t.Errorf("marker without generated media must stay:\n%s", md)
	}

	htmlOut, err := os.ReadFile(filepath.Join(base, "context-in-go.html"))
	if err != nil {
		t.Fatalf("html missing: %v", err)
	}
	page := string(htmlOut)
	for _, want := range []string{`<html lang="en">`, "<title>Context in Go: cancellation</title>", `content="How cancellation flows"`, "<h1>Context in Go</h1>", "<img", "<video controls"} {
		if !strings.Contains(page, want) {
			t.Errorf("html missing %q", want)
		}
	}

	raw, err := os.ReadFile(filepath.Join(outDir, "20260304-050607", "manifest.json"))
	if err != nil {
		t.Fatalf("manifest missing: %v", err)
	}
	var decoded Manifest
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("manifest json: %v", err)
	}
	if decoded.Posts[0].Slug != "context-in-go" || len(decoded.Posts[0].Media) != 2 {
		t.Errorf("unexpected manifest entry: %+v", decoded.Posts[0])
	}
}

func TestExportSkipsUnreadableMedia(t *testing.T) {
	store, _ := NewDirStore(t.TempDir(), "https://cdn.example.com")
	pub, _ := New(store, Options{MediaDir: t.TempDir(), MediaBaseURL: "/media", Now: fixedNow})

	post := samplePost()
	manifest, err := pub.Export(context.Background(), "batch-1", []generator.GeneratedPost{post})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(manifest.Skipped) != 1 || manifest.Skipped[0].MediaID != "media-vid" {
		t.Fatalf("expected the missing video to be skipped: %+v", manifest.Skipped)
	}
	if got := manifest.Posts[0].HTMLURL; got != "https://cdn.example.com/batch-1/en/context-in-go.html" {
		t.Errorf("unexpected html url %q", got)
	}
}

func TestReplaceMarkersAppendsLeftovers(t *testing.T) {
	media := []generator.MediaPlaceholder{
		{ID: "a", Type: generator.MediaImage, Prompt: "first"},
		{ID: "b", Type: generator.MediaImage, Prompt: "second"},
	}
	out := replaceMarkers("text\n<!-- IMAGE: one -->\n", media, map[string]string{"a": "u1", "b": "u2"})
	if !strings.Contains(out, "![one](u1)") || !strings.HasSuffix(out, "![second](u2)\n") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestSlugFor(t *testing.T) {
	cases := []struct {
		post generator.GeneratedPost
		want string
	}{
		{generator.GeneratedPost{ID: "p", Title: "Hello, World!"}, "hello-world"},
		{generator.GeneratedPost{ID: "p", Title: "x", SEO: &generator.SEO{Slug: "My Slug"}}, "my-slug"},
		{generator.GeneratedPost{ID: "p", Title: "!!!"}, "p"},
	}
	for _, c := range cases {
		if got := slugFor(c.post); got != c.want {
			t.Errorf("slugFor(%q) = %q, want %q", c.post.Title, got, c.want)
		}
	}
}

func TestS3StorePut(t *testing.T) {
	var mu sync.Mutex
	var gotPath, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotPath, gotType, gotBody = r.URL.Path, r.Header.Get("Content-Type"), string(body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := NewS3Store(S3Config{
		Endpoint:        srv.URL,
		Bucket:          "blog",
		AccessKeyID:     "id",
		SecretAccessKey: "secret",
		PublicURL:       "https://pub.example.com",
	})
	if err != nil {
		t.Fatalf("new s3 store: %v", err)
	}
	u, err := store.Put(context.Background(), "b1/en/post.md", "text/markdown", []byte("# hi"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if u != "https://pub.example.com/b1/en/post.md" {
		t.Errorf("unexpected url %q", u)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/blog/b1/en/post.md" || gotType != "text/markdown" || !strings.Contains(gotBody, "# hi") {
		t.Errorf("unexpected request: %s %s %q", gotPath, gotType, gotBody)
	}
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	if _, err := NewS3Store(S3Config{AccessKeyID: "a", SecretAccessKey: "b"}); err == nil {
		t.Fatal("expected error without bucket")
	}
}
