package enrich

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/autonews-pipeline/internal/article"
)

// Categorizer assigns one label from a closed vocabulary.
type Categorizer struct {
	caller     caller
	categories article.Categories
}

// NewCategorizer builds a Categorizer over categories.
func NewCategorizer(gen Generator, retry RetryConfig, categories article.Categories, logger *zap.Logger) *Categorizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Categorizer{
		caller:     caller{gen: gen, retry: retry.withDefaults(), operation: "categorize", logger: logger},
		categories: categories,
	}
}

var nonLetters = regexp.MustCompile(`[^a-zA-Z\s]`)

// Categorize returns a vocabulary member for text. Blank input, failed calls
// and answers outside the vocabulary all yield the fallback category.
func (c *Categorizer) Categorize(ctx context.Context, text string) string {
	fallback := c.categories.Fallback()
	if strings.TrimSpace(text) == "" {
		return fallback
	}
	out, err := c.caller.call(ctx, c.prompt(text))
	if err != nil {
		return fallback
	}
	label := strings.TrimSpace(nonLetters.ReplaceAllString(strings.TrimSpace(out), ""))
	if label == "" || !c.categories.Contains(label) {
		return fallback
	}
	return label
}

func (c *Categorizer) prompt(text string) string {
	return fmt.Sprintf(
		"Analyze this text and determine its main category.\n"+
			"Choose from: %s\n"+
			"Return ONLY the category name without additional text:\n\n%s",
		strings.Join(c.categories.Names(), ", "), text,
	)
}
