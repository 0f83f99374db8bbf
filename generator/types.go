package generator

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Language is a target language for a post variant.
type Language string

const (
	LanguagePortuguese Language = "pt-br"
	LanguageEnglish    Language = "en"
	LanguageSpanish    Language = "es"
)

// SupportedLanguages lists every language a batch can be generated in.
var SupportedLanguages = []Language{LanguagePortuguese, LanguageEnglish, LanguageSpanish}

var promptNames = map[Language]string{
	LanguagePortuguese: "Brazilian Portuguese",
	LanguageEnglish:    "English",
	LanguageSpanish:    "Spanish",
}

var displayNames = map[Language]string{
	LanguagePortuguese: "Português",
	LanguageEnglish:    "English",
	LanguageSpanish:    "Español",
}

// ParseLanguage accepts the canonical codes plus a few loose spellings
// models tend to produce ("PT-BR", "pt_BR", "pt").
func ParseLanguage(s string) (Language, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, "_", "-")
	switch v {
	case "pt-br", "pt", "pt-pt":
		return LanguagePortuguese, true
	case "en", "en-us", "en-gb":
		return LanguageEnglish, true
	case "es", "es-es", "es-mx":
		return LanguageSpanish, true
	}
	return "", false
}

func (l Language) Valid() bool {
	_, ok := promptNames[l]
	return ok
}

// PromptName is the language name as written into model instructions.
func (l Language) PromptName() string {
	if n, ok := promptNames[l]; ok {
		return n
	}
	return string(l)
}

func (l Language) DisplayName() string {
	if n, ok := displayNames[l]; ok {
		return n
	}
	return string(l)
}

// LanguagesForPrompt renders a language list for the generation prompt.
func LanguagesForPrompt(langs []Language) string {
	names := make([]string, 0, len(langs))
	for _, l := range langs {
		names = append(names, l.PromptName())
	}
	return strings.Join(names, ", ")
}

// MediaType is the kind of media a placeholder asks for.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// MediaTool names the generator backing a placeholder.
type MediaTool string

const (
	ToolNanoBanana MediaTool = "nano-banana"
	ToolVeo3       MediaTool = "veo3"
)

// ToolFor derives the tool for a media type. Anything that is not a video
// is treated as an image.
func ToolFor(t MediaType) MediaTool {
	if t == MediaVideo {
		return ToolVeo3
	}
	return ToolNanoBanana
}

// SEO holds search metadata suggested by the model.
type SEO struct {
	MetaTitle       string   `json:"metaTitle"`
	MetaDescription string   `json:"metaDescription"`
	Slug            string   `json:"slug"`
	Tags            []string `json:"tags"`
}

// MediaPlaceholder is a request to generate one image or video for a post.
// Tool is fixed when the placeholder is created.
type MediaPlaceholder struct {
	ID        string    `json:"id"`
	Type      MediaType `json:"type"`
	Prompt    string    `json:"prompt"`
	Tool      MediaTool `json:"tool"`
	Generated bool      `json:"generated"`
	URL       string    `json:"url,omitempty"`
}

// NewMediaPlaceholder mints a placeholder with a fresh id.
func NewMediaPlaceholder(t MediaType, prompt string) MediaPlaceholder {
	if t != MediaVideo {
		t = MediaImage
	}
	return MediaPlaceholder{
		ID:     "media-" + uuid.NewString(),
		Type:   t,
		Prompt: prompt,
		Tool:   ToolFor(t),
	}
}

// Attach records a successful generation.
func (m *MediaPlaceholder) Attach(url string) {
	m.URL = url
	m.Generated = true
}

// GeneratedPost is one language variant of a generated batch.
type GeneratedPost struct {
	ID                string             `json:"id"`
	Language          Language           `json:"language"`
	Title             string             `json:"title"`
	Markdown          string             `json:"markdown"`
	SEO               *SEO               `json:"seo,omitempty"`
	MediaPlaceholders []MediaPlaceholder `json:"mediaPlaceholders"`
	GeneratedAt       time.Time          `json:"generatedAt"`
}

// Placeholder returns a pointer into the post's placeholder slice.
func (p *GeneratedPost) Placeholder(id string) (*MediaPlaceholder, bool) {
	for i := range p.MediaPlaceholders {
		if p.MediaPlaceholders[i].ID == id {
			return &p.MediaPlaceholders[i], true
		}
	}
	return nil, false
}

func (p *GeneratedPost) AddPlaceholder(t MediaType, prompt string) MediaPlaceholder {
	mp := NewMediaPlaceholder(t, prompt)
	p.MediaPlaceholders = append(p.MediaPlaceholders, mp)
	return mp
}

// RemovePlaceholder reports whether a placeholder with id existed.
func (p *GeneratedPost) RemovePlaceholder(id string) bool {
	for i := range p.MediaPlaceholders {
		if p.MediaPlaceholders[i].ID == id {
			p.MediaPlaceholders = append(p.MediaPlaceholders[:i], p.MediaPlaceholders[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand to another goroutine.
func (p GeneratedPost) Clone() GeneratedPost {
	out := p
	if p.SEO != nil {
		seo := *p.SEO
		seo.Tags = append([]string(nil), p.SEO.Tags...)
		out.SEO = &seo
	}
	out.MediaPlaceholders = append([]MediaPlaceholder(nil), p.MediaPlaceholders...)
	return out
}

// Turn records one step of a session's history.
type Turn struct {
	Kind      string    `json:"kind"`
	Language  Language  `json:"language,omitempty"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"createdAt"`
}
