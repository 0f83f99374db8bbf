package generator

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	MaxReferenceBlogs = 5
	MaxContextURLs    = 15
	MaxTotalURLs      = 20
)

// GenerationRequest is what the user asks the generator for.
type GenerationRequest struct {
	ReferenceBlogs  []string   `json:"referenceBlogs"`
	ContextURLs     []string   `json:"contextUrls"`
	Direction       string     `json:"direction"`
	TargetLanguages []Language `json:"targetLanguages"`
}

// Normalize trims the direction and drops blank URL rows and duplicate
// languages.
func (r *GenerationRequest) Normalize() {
	r.ReferenceBlogs = compactURLs(r.ReferenceBlogs)
	r.ContextURLs = compactURLs(r.ContextURLs)
	r.Direction = strings.TrimSpace(r.Direction)

	seen := make(map[Language]bool, len(r.TargetLanguages))
	langs := make([]Language, 0, len(r.TargetLanguages))
	for _, l := range r.TargetLanguages {
		if seen[l] {
			continue
		}
		seen[l] = true
		langs = append(langs, l)
	}
	r.TargetLanguages = langs
}

// AllURLs returns reference blogs followed by context URLs.
func (r GenerationRequest) AllURLs() []string {
	out := make([]string, 0, len(r.ReferenceBlogs)+len(r.ContextURLs))
	out = append(out, r.ReferenceBlogs...)
	return append(out, r.ContextURLs...)
}

// Validate checks the request shape. The combined URL budget is checked
// first so an oversized request is rejected regardless of other fields.
func (r GenerationRequest) Validate() error {
	if total := len(r.ReferenceBlogs) + len(r.ContextURLs); total > MaxTotalURLs {
		return &ValidationError{
			Field:   "urls",
			Message: fmt.Sprintf("limit of %d urls exceeded: total %d", MaxTotalURLs, total),
		}
	}

	languages := make([]any, 0, len(SupportedLanguages))
	for _, l := range SupportedLanguages {
		languages = append(languages, l)
	}

	err := validation.ValidateStruct(&r,
		validation.Field(&r.ReferenceBlogs,
			validation.Length(0, MaxReferenceBlogs),
			validation.Each(validation.Required, is.RequestURL),
		),
		validation.Field(&r.ContextURLs,
			validation.Length(0, MaxContextURLs),
			validation.Each(validation.Required, is.RequestURL),
		),
		validation.Field(&r.Direction, validation.Required, validation.By(notBlank)),
		validation.Field(&r.TargetLanguages,
			validation.Required,
			validation.Each(validation.Required, validation.In(languages...)),
		),
	)
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if errors.As(err, &errs) {
		for _, field := range []string{"referenceBlogs", "contextUrls", "direction", "targetLanguages"} {
			if fieldErr, ok := errs[field]; ok {
				return &ValidationError{Field: field, Err: fieldErr}
			}
		}
	}
	return &ValidationError{Err: err}
}

func notBlank(value any) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return validation.NewError("generator.direction.blank", "direction must not be blank")
	}
	return nil
}

func compactURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
