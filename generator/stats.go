package generator

import (
	"math"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const wordsPerMinute = 200

// PostStats summarizes a post for the editor.
type PostStats struct {
	Words          int    `json:"words"`
	ReadingMinutes int    `json:"readingMinutes"`
	SEOScore       int    `json:"seoScore"`
	SEORating      string `json:"seoRating"`
}

func Stats(p GeneratedPost) PostStats {
	words := WordCount(p.Markdown)
	st := PostStats{
		Words:          words,
		ReadingMinutes: ReadingMinutes(words),
	}
	if p.SEO != nil {
		st.SEOScore = SEOScore(*p.SEO)
		st.SEORating = SEORating(st.SEOScore)
	}
	return st
}

// WordCount counts words of the rendered text. Code blocks and raw HTML
// (media markers) are skipped; link text counts, URLs do not.
func WordCount(markdown string) int {
	src := []byte(markdown)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			sb.Write(node.Segment.Value(src))
			sb.WriteByte(' ')
		case *ast.String:
			sb.Write(node.Value)
			sb.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return len(strings.Fields(sb.String()))
}

// ReadingMinutes is never below one minute.
func ReadingMinutes(words int) int {
	return max(1, int(math.Round(float64(words)/wordsPerMinute)))
}

// SEOScore counts how many of the four metadata checks pass: title length
// 50-60, description 120-158, lowercase slug without spaces, 3-5 tags.
func SEOScore(seo SEO) int {
	score := 0
	if n := len([]rune(seo.MetaTitle)); n >= 50 && n <= 60 {
		score++
	}
	if n := len([]rune(seo.MetaDescription)); n >= 120 && n <= 158 {
		score++
	}
	if seo.Slug != "" && seo.Slug == strings.ToLower(seo.Slug) && !strings.Contains(seo.Slug, " ") {
		score++
	}
	if n := len(seo.Tags); n >= 3 && n <= 5 {
		score++
	}
	return score
}

func SEORating(score int) string {
	switch {
	case score == 4:
		return "great"
	case score >= 2:
		return "good"
	default:
		return "improve"
	}
}
