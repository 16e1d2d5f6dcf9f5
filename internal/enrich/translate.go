package enrich

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Languages names the translation direction used in prompts.
type Languages struct {
	Source string
	Target string
}

// Translator turns source-language text into the target language.
type Translator struct {
	caller caller
	langs  Languages
}

// NewTranslator builds a Translator.
func NewTranslator(gen Generator, retry RetryConfig, langs Languages, logger *zap.Logger) *Translator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if langs.Source == "" {
		langs.Source = "Arabic"
	}
	if langs.Target == "" {
		langs.Target = "English"
	}
	return &Translator{
		caller: caller{gen: gen, retry: retry.withDefaults(), operation: "translate", logger: logger},
		langs:  langs,
	}
}

var markupReplacer = strings.NewReplacer("*", "", "`", "", `"`, "")

// Translate returns the translation of text, or "" when text is blank or
// every attempt failed. Blank input makes no remote call.
func (t *Translator) Translate(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	out, err := t.caller.call(ctx, t.prompt(text))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(markupReplacer.Replace(strings.TrimSpace(out)))
}

func (t *Translator) prompt(text string) string {
	return fmt.Sprintf(
		"Translate this %s text to %s accurately and professionally.\n"+
			"Return ONLY the translation without additional text:\n\n%s",
		t.langs.Source, t.langs.Target, text,
	)
}
