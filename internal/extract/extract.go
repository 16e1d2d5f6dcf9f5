// Package extract pulls article fields out of parsed HTML using ordered,
// data-driven selector rules. Extraction never fails: missing fields come
// back empty.
package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/autonews-pipeline/internal/article"
)

// Fields is everything the pipeline needs from one article page.
type Fields struct {
	Title           string
	Date            string
	Body            string
	ImageCandidates []string
}

// Options tunes candidate filtering.
type Options struct {
	MinImageWidth  int
	MinImageHeight int
}

// Extractor applies the rule tables to a document.
type Extractor struct {
	opts Options
}

// New builds an Extractor. Zero thresholds fall back to 300x200.
func New(opts Options) *Extractor {
	if opts.MinImageWidth <= 0 {
		opts.MinImageWidth = 300
	}
	if opts.MinImageHeight <= 0 {
		opts.MinImageHeight = 200
	}
	return &Extractor{opts: opts}
}

// Extract runs every field rule against doc.
func (e *Extractor) Extract(doc *goquery.Document, baseURL string) Fields {
	return Fields{
		Title:           e.Title(doc),
		Date:            e.Date(doc),
		Body:            e.Body(doc),
		ImageCandidates: e.ImageCandidates(doc, baseURL),
	}
}

// rule reads a value from the first element matching selector.
type rule struct {
	selector string
	value    func(*goquery.Selection) string
}

func spacedText(s *goquery.Selection) string { return joinText(s, " ") }

func attr(name string) func(*goquery.Selection) string {
	return func(s *goquery.Selection) string {
		v, _ := s.Attr(name)
		return v
	}
}

func firstAttr(names ...string) func(*goquery.Selection) string {
	return func(s *goquery.Selection) string {
		for _, name := range names {
			if v, ok := s.Attr(name); ok && strings.TrimSpace(v) != "" {
				return v
			}
		}
		return ""
	}
}

var titleRules = []rule{
	{"h1.entry-title", spacedText},
	{"h1", spacedText},
	{"h2.entry-title", spacedText},
	{"h1.post-title", spacedText},
	{"h1.article-title", spacedText},
	{"header h1", spacedText},
	{`meta[property="og:title"]`, attr("content")},
	{`meta[property="title"]`, attr("content")},
	{"title", spacedText},
}

var dateRules = []rule{
	{"time", firstAttr("datetime")},
	{"time", spacedText},
	{`meta[property="article:published_time"]`, attr("content")},
	{`meta[property="date"]`, attr("content")},
	{`meta[name="date"]`, attr("content")},
}

var bodyContainers = []string{
	"div.entry-content",
	"div.post-content",
	"div.content",
	"article",
	`div[itemprop="articleBody"]`,
}

var imageSelectors = []string{
	"img.entry-thumbnail",
	"img.wp-post-image",
	"img.attachment-full",
	"img.size-full",
	".entry-content img",
	".post-content img",
	".article-content img",
	".news-content img",
	"figure img",
	`img[src*="wp-content"]`,
	`img[src*="uploads"]`,
}

var imageMetaSelectors = []string{
	`meta[property="og:image"]`,
	`meta[name="twitter:image"]`,
}

func applyRules(doc *goquery.Document, rules []rule) string {
	if doc == nil {
		return ""
	}
	for _, r := range rules {
		sel := doc.Find(r.selector).First()
		if sel.Length() == 0 {
			continue
		}
		if v := Normalize(r.value(sel)); v != "" {
			return v
		}
	}
	return ""
}

// Title returns the first non-empty title by rule priority, or "".
func (e *Extractor) Title(doc *goquery.Document) string {
	return applyRules(doc, titleRules)
}

// Date returns the raw publication date string, or "". No parsing is attempted.
func (e *Extractor) Date(doc *goquery.Document) string {
	return applyRules(doc, dateRules)
}

// Body returns the text of the first non-empty content container, falling
// back to the concatenated paragraphs of the page.
func (e *Extractor) Body(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	for _, selector := range bodyContainers {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		if text := Normalize(joinText(sel, "\n")); text != "" {
			return text
		}
	}
	var paragraphs []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		paragraphs = append(paragraphs, joinText(p, ""))
	})
	return Normalize(strings.Join(paragraphs, "\n"))
}

// ImageCandidates lists image URLs in priority order: content images first,
// then social meta images. Images declaring both dimensions below the
// thresholds are skipped. Duplicates keep their first position.
func (e *Extractor) ImageCandidates(doc *goquery.Document, baseURL string) []string {
	if doc == nil {
		return nil
	}
	var out []string
	seen := make(map[string]struct{})
	add := func(u string) {
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}

	for _, selector := range imageSelectors {
		doc.Find(selector).Each(func(_ int, img *goquery.Selection) {
			src, ok := img.Attr("src")
			if !ok || src == "" {
				return
			}
			c := article.ImageCandidate{
				URL:    NormalizeURL(src, baseURL),
				Width:  dimension(img, "width"),
				Height: dimension(img, "height"),
			}
			if c.TooSmall(e.opts.MinImageWidth, e.opts.MinImageHeight) {
				return
			}
			add(c.URL)
		})
	}

	for _, selector := range imageMetaSelectors {
		meta := doc.Find(selector).First()
		if meta.Length() == 0 {
			continue
		}
		if v := firstAttr("content", "href")(meta); v != "" {
			add(NormalizeURL(v, baseURL))
		}
	}
	return out
}

// dimension parses a width/height attribute. Anything that is not a plain
// integer counts as missing.
func dimension(s *goquery.Selection, name string) *int {
	raw, ok := s.Attr(name)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return &v
}
