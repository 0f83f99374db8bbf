package generator

import (
	"fmt"
	"strings"
)

// Prompt is the set of messages sent to the model.
type Prompt struct {
	System  string
	User    string
	Options GenerationOptions
}

// GenerationOptions tune a single text generation call.
type GenerationOptions struct {
	Temperature     float32
	TopP            float32
	MaxOutputTokens int
	// WebSearch and URLContext enable the provider's grounding tools.
	WebSearch  bool
	URLContext bool
}

// DefaultGenerationOptions is the fixed sampling profile for batch
// generation.
func DefaultGenerationOptions() GenerationOptions {
	return GenerationOptions{
		Temperature:     0.8,
		TopP:            0.95,
		MaxOutputTokens: 8192,
	}
}

const generationGuidelines = `## BLOG BEST PRACTICES (SEO)

### Length and structure
- Ideal length: 1500-2500 words, adjusted to the complexity of the topic
- Short paragraphs: 2-4 lines at most
- Clear hierarchy: H1 (title), H2 (main sections), H3 (subsections)
- Scannability: use lists, bullets and tables to break dense text

### Post structure
1. Title (H1): compelling, about 60 characters, with the main keyword
2. Introduction: hook, context, and what the reader will learn
3. Body: logical H2/H3 sections, each answering one question
4. Key Takeaways: bullet summary of the main points
5. Conclusion: recap and next steps
6. Call to action: invite the reader to comment, share or read related posts

### Formatting
- Bold for important terms
- Code blocks with syntax highlighting
- Relevant internal and external links
- Images and videos at strategic points

### SEO metadata
- metaTitle: 50-60 characters
- metaDescription: 120-158 characters
- slug: lowercase words joined by hyphens
- tags: 3-5 tags

## MEDIA INSTRUCTIONS
Suggest images and videos at the right points:
- Short posts (< 1000 words): 1-2 images
- Medium posts (1000-2000 words): 2-3 images and 0-1 video
- Long posts (> 2000 words): 3-5 images and 1 video

Media kinds:
- Diagrams to explain systems and flows
- Screenshots for tutorials
- Tech-art illustrations for abstract concepts
- Videos for step-by-step demonstrations

Mark each media position in the markdown:
- Image: <!-- IMAGE: [description, visual style] -->
- Video: <!-- VIDEO: [scene description, style] -->
`

const outputContract = `## RESPONSE FORMAT
Valid JSON matching exactly this shape:
{
  "posts": [
    {
      "language": "en",
      "title": "Post title",
      "markdown": "# Title\n\nIntroduction...\n\n## Section 1\n\n...\n\n## Key Takeaways\n\n- Point 1\n- Point 2\n\n## Conclusion\n\n...\n\n## References\n\n- [Source](url)",
      "seo": {
        "metaTitle": "...",
        "metaDescription": "...",
        "slug": "post-title",
        "tags": ["tag1", "tag2", "tag3"]
      },
      "mediaPlaceholders": [
        { "type": "image", "prompt": "Detailed description with visual style" },
        { "type": "video", "prompt": "Scene description and style" }
      ]
    }
  ]
}

IMPORTANT: reply with ONLY this JSON, no prose and no code fences.`

// BuildGenerationPrompt assembles the batch generation instructions.
// Sections without input are left out.
func BuildGenerationPrompt(req GenerationRequest, languagesText string) Prompt {
	var sb strings.Builder
	sb.WriteString("You are a ghostwriter who writes high-quality, SEO-optimized technical blog posts.\n\n")

	if len(req.ReferenceBlogs) > 0 {
		sb.WriteString("## REFERENCE BLOGS (MANDATORY)\n")
		sb.WriteString("Open and read the full content of every URL below:\n")
		writeNumbered(&sb, req.ReferenceBlogs)
		sb.WriteString("\nYou MUST:\n")
		sb.WriteString("- Faithfully replicate the writing style of these blogs\n")
		sb.WriteString("- Follow the same structure and formatting\n")
		sb.WriteString("- Use the same tone of voice (formal, informal, technical)\n")
		sb.WriteString("- Copy the pattern of titles and subtitles\n")
		sb.WriteString("- Keep the same approach when explaining code\n\n")
	}

	if len(req.ContextURLs) > 0 {
		sb.WriteString("## CONTENT SOURCES (MANDATORY)\n")
		sb.WriteString("Open and read the full content of every URL below:\n")
		writeNumbered(&sb, req.ContextURLs)
		sb.WriteString("\nYou MUST:\n")
		sb.WriteString("- Use ONLY factually correct information from these URLs\n")
		sb.WriteString("- Reuse the concepts, definitions and terminology of the sources\n")
		sb.WriteString("- Base code samples on the sources, adapted to the post\n")
		sb.WriteString("- NOT invent information that is not in these URLs\n")
		sb.WriteString("- Cite the sources inline with markdown links [text](url)\n\n")
	}

	sb.WriteString("## USER DIRECTION\n")
	sb.WriteString(req.Direction)
	sb.WriteString("\n\n")

	sb.WriteString(generationGuidelines)
	sb.WriteString("\n## CONTENT INSTRUCTIONS\n")
	sb.WriteString(fmt.Sprintf("1. Write one complete blog post for each language: %s\n", languagesText))
	sb.WriteString("2. Keep the writing style of the reference blogs\n")
	sb.WriteString("3. Insert relevant inline links with [text](url)\n")
	sb.WriteString("4. Add a \"## References\" section at the end\n\n")

	sb.WriteString(outputContract)

	opts := DefaultGenerationOptions()
	if len(req.AllURLs()) > 0 {
		opts.WebSearch = true
		opts.URLContext = true
	}

	return Prompt{
		System:  "Answer strictly with the requested JSON document.",
		User:    sb.String(),
		Options: opts,
	}
}

// BuildSyncPrompt asks the model to carry an edit made in one variant over
// to a sibling variant.
func BuildSyncPrompt(editedLang Language, snapshot, edited string, sibling GeneratedPost) Prompt {
	var sb strings.Builder
	sb.WriteString("You are a translator specialized in technical blogs.\n\n")
	sb.WriteString(fmt.Sprintf("The user edited a post written in %s.\n", editedLang.PromptName()))
	sb.WriteString(fmt.Sprintf("Adapt the changes to %s.\n\n", sibling.Language.PromptName()))
	sb.WriteString("ORIGINAL POST (before the edits):\n")
	sb.WriteString(snapshot)
	sb.WriteString("\n\nEDITED POST:\n")
	sb.WriteString(edited)
	sb.WriteString("\n\nCURRENT POST IN THE TARGET LANGUAGE:\n")
	sb.WriteString(sibling.Markdown)
	sb.WriteString("\n\nINSTRUCTIONS:\n")
	sb.WriteString("1. Identify the differences between the original and the edited post\n")
	sb.WriteString("2. Apply the same changes to the post in the target language\n")
	sb.WriteString(fmt.Sprintf("3. Keep the post in %s and keep its markdown style and formatting\n", sibling.Language.PromptName()))
	sb.WriteString("4. Return ONLY the updated markdown, without explanations")

	return Prompt{
		System: "Return only markdown.",
		User:   sb.String(),
		Options: GenerationOptions{
			Temperature:     0.2,
			TopP:            0.95,
			MaxOutputTokens: 8192,
		},
	}
}

// BuildImagePrompt enriches a placeholder prompt for image generation.
func BuildImagePrompt(prompt string, lang Language) string {
	return fmt.Sprintf("%s. IMPORTANT: Any text in the image must be in %s.", strings.TrimSpace(prompt), lang.PromptName())
}

// BuildVideoPrompt enriches a placeholder prompt for video generation.
func BuildVideoPrompt(prompt string, lang Language) string {
	return fmt.Sprintf("%s. IMPORTANT REQUIREMENTS: 1) Any on-screen text or graphics must be in %s. "+
		"2) NO narration, NO dialogue, NO voices - only ambient sounds and music. "+
		"3) Keep visual style cinematic and professional.", strings.TrimSpace(prompt), lang.PromptName())
}

func writeNumbered(sb *strings.Builder, items []string) {
	for i, item := range items {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, item))
	}
}
