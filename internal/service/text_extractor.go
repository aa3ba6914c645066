package service

import (
	"regexp"
	"strings"

	"github.com/cloo-solutions/learnings/internal/domain"
)

// ExtractionOptions controls how artifact text is prepared for embedding
type ExtractionOptions struct {
	IncludeCodeBlocks bool
	MaxTextLength     int
}

// ExtractionOptionsFor derives extraction options from an organization's configuration
func ExtractionOptionsFor(cfg *domain.RagLabConfiguration) ExtractionOptions {
	return ExtractionOptions{
		IncludeCodeBlocks: cfg.IncludeCodeBlocks,
		MaxTextLength:     cfg.MaxTextLength,
	}
}

var (
	fencedCodeRe  = regexp.MustCompile("(?s)```[^\\n`]*\\n?(.*?)```")
	imageRe       = regexp.MustCompile(`!\[((?:[^\[\]]|\[[^\[\]]*\])*)\]\([^)]*\)`)
	linkRe        = regexp.MustCompile(`\[((?:[^\[\]]|\[[^\[\]]*\])*)\]\([^)]*\)`)
	inlineCodeRe  = regexp.MustCompile("`([^`\\n]*)`")
	blockquoteRe  = regexp.MustCompile(`(?m)^[ \t]*(?:>[ \t]?)+`)
	hrRe          = regexp.MustCompile(`(?m)^[ \t]*(?:[-*_][ \t]*){3,}$`)
	headingRe     = regexp.MustCompile(`(?m)^[ \t]*#{1,6}(?:[ \t]+|$)`)
	listMarkerRe  = regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+`)
	numberedRe    = regexp.MustCompile(`(?m)^[ \t]*\d+[.)][ \t]+`)
	strongUnderRe = regexp.MustCompile(`__([^_\n]+)__`)
	emUnderRe     = regexp.MustCompile(`(^|[^\w])_([^_\n]+)_([^\w]|$)`)
	strikeRe      = regexp.MustCompile(`~~([^~\n]+)~~`)
	whitespaceRe  = regexp.MustCompile(`\s+`)

	residualMarkup = strings.NewReplacer("#", "", "*", "", "`", "", "[", "", "]", "")
)

// ExtractStandardText builds the plain text embedded for a standard version
func ExtractStandardText(version *domain.StandardVersion, opts ExtractionOptions) string {
	parts := []string{version.Name, version.Description}
	for _, rule := range version.Rules {
		parts = append(parts, rule.Content)
	}
	return extractText(parts, opts)
}

// ExtractRecipeText builds the plain text embedded for a recipe version
func ExtractRecipeText(version *domain.RecipeVersion, opts ExtractionOptions) string {
	return extractText([]string{version.Name, version.Content}, opts)
}

func extractText(parts []string, opts ExtractionOptions) string {
	text := cleanMarkdown(strings.Join(parts, "\n\n"), opts.IncludeCodeBlocks)
	if opts.MaxTextLength > 0 {
		text = cleanMarkdown(truncateRunes(text, opts.MaxTextLength), opts.IncludeCodeBlocks)
	}
	return text
}

// cleanMarkdown repeats the stripping pass until the text stops changing,
// so its output is always a fixed point.
func cleanMarkdown(text string, includeCodeBlocks bool) string {
	for {
		next := stripMarkdown(text, includeCodeBlocks)
		if next == text {
			return next
		}
		text = next
	}
}

func stripMarkdown(text string, includeCodeBlocks bool) string {
	if includeCodeBlocks {
		text = fencedCodeRe.ReplaceAllString(text, "\n$1\n")
	} else {
		text = fencedCodeRe.ReplaceAllString(text, "\n")
	}
	text = imageRe.ReplaceAllString(text, "$1")
	text = linkRe.ReplaceAllString(text, "$1")
	text = inlineCodeRe.ReplaceAllString(text, "$1")
	text = blockquoteRe.ReplaceAllString(text, "")
	text = hrRe.ReplaceAllString(text, "")
	text = headingRe.ReplaceAllString(text, "")
	text = listMarkerRe.ReplaceAllString(text, "")
	text = numberedRe.ReplaceAllString(text, "")
	text = strongUnderRe.ReplaceAllString(text, "$1")
	text = emUnderRe.ReplaceAllString(text, "$1$2$3")
	text = strikeRe.ReplaceAllString(text, "$1")
	text = residualMarkup.Replace(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
