package publisher

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"bloggerator/generator"
)

var markerPattern = regexp.MustCompile(`<!--\s*(IMAGE|VIDEO)\s*:\s*\[?([^\]]*?)\]?\s*-->`)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

func mdToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// replaceMarkers swaps media markers for embeds of generated media. The
// n-th marker of a type takes the n-th generated placeholder of that type;
// placeholders left over are appended at the end.
func replaceMarkers(src string, media []generator.MediaPlaceholder, urls map[string]string) string {
	queues := map[generator.MediaType][]generator.MediaPlaceholder{}
	for _, mp := range media {
		if _, ok := urls[mp.ID]; ok {
			queues[mp.Type] = append(queues[mp.Type], mp)
		}
	}

	out := markerPattern.ReplaceAllStringFunc(src, func(marker string) string {
		parts := markerPattern.FindStringSubmatch(marker)
		t := generator.MediaImage
		if parts[1] == "VIDEO" {
			t = generator.MediaVideo
		}
		q := queues[t]
		if len(q) == 0 {
			return marker
		}
		queues[t] = q[1:]
		return embed(q[0], urls[q[0].ID], strings.TrimSpace(parts[2]))
	})

	var rest []string
	for _, t := range []generator.MediaType{generator.MediaImage, generator.MediaVideo} {
		for _, mp := range queues[t] {
			rest = append(rest, embed(mp, urls[mp.ID], mp.Prompt))
		}
	}
	if len(rest) > 0 {
		out = strings.TrimRight(out, "\n") + "\n\n" + strings.Join(rest, "\n\n") + "\n"
	}
	return out
}

func embed(mp generator.MediaPlaceholder, url, alt string) string {
	if alt == "" {
		alt = mp.Prompt
	}
	alt = strings.NewReplacer("[", "", "]", "", "\n", " ").Replace(alt)
	if mp.Type == generator.MediaVideo {
		return fmt.Sprintf(`<video controls src="%s" title="%s"></video>`, template.HTMLEscapeString(url), template.HTMLEscapeString(alt))
	}
	return fmt.Sprintf("![%s](%s)", alt, url)
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<meta name="description" content="{{.Description}}">
{{- range .Tags}}
<meta property="article:tag" content="{{.}}">
{{- end}}
</head>
<body>
<article>
{{.Body}}
</article>
</body>
</html>
`))

type page struct {
	Lang        string
	Title       string
	Description string
	Tags        []string
	Body        template.HTML
}

func renderPage(post generator.GeneratedPost, markdown string) (string, error) {
	body, err := mdToHTML(markdown)
	if err != nil {
		return "", err
	}
	p := page{
		Lang:  string(post.Language),
		Title: post.Title,
		Body:  template.HTML(body),
	}
	if post.SEO != nil {
		if post.SEO.MetaTitle != "" {
			p.Title = post.SEO.MetaTitle
		}
		p.Description = post.SEO.MetaDescription
		p.Tags = post.SEO.Tags
	}
	if p.Description == "" {
		p.Description = defaultDigest(markerPattern.ReplaceAllString(markdown, ""), 155)
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, p); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func defaultDigest(src string, limit int) string {
	compact := strings.Fields(strings.NewReplacer("#", "", "*", "", "`", "").Replace(src))
	joined := strings.Join(compact, " ")
	r := []rune(joined)
	if len(r) <= limit {
		return joined
	}
	return string(r[:limit])
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// slugFor prefers the SEO slug and falls back to the title.
func slugFor(post generator.GeneratedPost) string {
	src := post.Title
	if post.SEO != nil && post.SEO.Slug != "" {
		src = post.SEO.Slug
	}
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(src), "-"), "-")
	if s == "" {
		return post.ID
	}
	return s
}
