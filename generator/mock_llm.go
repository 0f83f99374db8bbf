package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// MockLLM is an offline stand-in for local runs; it never calls a model.
// Generation prompts get one canned post per requested language, sync
// prompts get the edited text back.
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	if strings.Contains(prompt.User, "EDITED POST:") {
		return mockSyncReply(prompt.User), nil
	}

	direction := section(prompt.User, "## USER DIRECTION\n", "\n\n")
	var posts []map[string]any
	for _, lang := range mockLanguages(prompt.User) {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("# %s\n\n", direction))
		sb.WriteString("Auto-generated sample introduction.\n\n")
		sb.WriteString("<!-- IMAGE: [overview diagram, flat style] -->\n\n")
		sb.WriteString("## Body\n\n")
		sb.WriteString(fmt.Sprintf("Generated in %s from the direction above.\n", lang.PromptName()))
		posts = append(posts, map[string]any{
			"language": string(lang),
			"title":    direction,
			"markdown": sb.String(),
			"mediaPlaceholders": []map[string]string{
				{"type": "image", "prompt": "overview diagram, flat style"},
			},
		})
	}
	out, err := json.Marshal(map[string]any{"posts": posts})
	if err != nil {
		return "", err
	}
	return "```json\n" + string(out) + "\n```", nil
}

func mockLanguages(user string) []Language {
	line := section(user, "for each language: ", "\n")
	var langs []Language
	for _, lang := range SupportedLanguages {
		if strings.Contains(line, lang.PromptName()) {
			langs = append(langs, lang)
		}
	}
	if len(langs) == 0 {
		langs = []Language{LanguageEnglish}
	}
	return langs
}

func mockSyncReply(user string) string {
	return strings.TrimSpace(section(user, "EDITED POST:\n", "\n\nCURRENT POST IN THE TARGET LANGUAGE:"))
}

func section(s, start, end string) string {
	i := strings.Index(s, start)
	if i < 0 {
		return ""
	}
	rest := s[i+len(start):]
	if j := strings.Index(rest, end); j >= 0 {
		return rest[:j]
	}
	return rest
}
