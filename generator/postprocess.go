package generator

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const defaultTitle = "Untitled"

// documentSchema is the document-level contract of a generation reply.
// Entry fields are deliberately unconstrained: incomplete entries are
// default-filled, not rejected.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["posts"],
  "properties": {
    "posts": { "type": "array" }
  }
}`

var postsSchema = jsonschema.MustCompileString("posts.schema.json", documentSchema)

// ParseResponse turns raw model text into posts. The reply may be wrapped
// in prose or code fences; the span from the first '{' to the last '}' is
// decoded. Only a broken document fails; the batch is all-or-nothing.
func ParseResponse(raw string, targetLanguages []Language) ([]GeneratedPost, error) {
	return parseResponse(raw, targetLanguages, time.Now())
}

func parseResponse(raw string, targetLanguages []Language, now time.Time) ([]GeneratedPost, error) {
	doc, err := extractDocument(raw)
	if err != nil {
		return nil, err
	}
	if err := postsSchema.Validate(doc); err != nil {
		return nil, &MalformedResponseError{Reason: "response does not contain a posts array", Err: err}
	}

	entries, _ := doc.(map[string]any)["posts"].([]any)
	posts := make([]GeneratedPost, 0, len(entries))
	for i, entry := range entries {
		fields, _ := entry.(map[string]any)
		posts = append(posts, buildPost(fields, i, targetLanguages, now))
	}
	return posts, nil
}

func extractDocument(raw string) (any, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, &MalformedResponseError{Reason: "response does not contain a JSON object"}
	}
	var doc any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &doc); err != nil {
		return nil, &MalformedResponseError{Reason: "response JSON could not be decoded", Err: err}
	}
	return doc, nil
}

func buildPost(fields map[string]any, index int, targetLanguages []Language, now time.Time) GeneratedPost {
	title := stringField(fields, "title")
	if title == "" {
		title = defaultTitle
	}
	post := GeneratedPost{
		ID:                "post-" + uuid.NewString(),
		Language:          resolveLanguage(stringField(fields, "language"), index, targetLanguages),
		Title:             title,
		Markdown:          stringField(fields, "markdown"),
		SEO:               buildSEO(fields["seo"]),
		MediaPlaceholders: []MediaPlaceholder{},
		GeneratedAt:       now,
	}

	items, _ := fields["mediaPlaceholders"].([]any)
	for _, item := range items {
		mp, _ := item.(map[string]any)
		t := MediaImage
		if strings.EqualFold(stringField(mp, "type"), string(MediaVideo)) {
			t = MediaVideo
		}
		post.MediaPlaceholders = append(post.MediaPlaceholders, NewMediaPlaceholder(t, stringField(mp, "prompt")))
	}
	return post
}

func resolveLanguage(value string, index int, targetLanguages []Language) Language {
	if lang, ok := ParseLanguage(value); ok {
		return lang
	}
	if index < len(targetLanguages) && targetLanguages[index].Valid() {
		return targetLanguages[index]
	}
	return LanguageEnglish
}

func buildSEO(v any) *SEO {
	fields, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	seo := &SEO{
		MetaTitle:       stringField(fields, "metaTitle"),
		MetaDescription: stringField(fields, "metaDescription"),
		Slug:            stringField(fields, "slug"),
		Tags:            []string{},
	}
	tags, _ := fields["tags"].([]any)
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		s, ok := t.(string)
		s = strings.TrimSpace(s)
		if !ok || s == "" || seen[s] {
			continue
		}
		seen[s] = true
		seo.Tags = append(seo.Tags, s)
	}
	return seo
}

// stringField reads a string value; missing or non-string values read as
// empty.
func stringField(fields map[string]any, key string) string {
	if fields == nil {
		return ""
	}
	s, _ := fields[key].(string)
	return s
}
